// Package export selects sub-collections of the record store by named
// profile and packages them into a standalone directory with a frontend
// listing file.
package export
