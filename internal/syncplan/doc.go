// Package syncplan computes the minimal ordered set of filesystem actions
// bringing the collection tree in line with the record store. Planning is a
// pure in-memory computation over the records, the naming configuration, and
// a probed filesystem state; actions are data for the executor, never side
// effects. Planning twice with no intervening change yields an empty plan.
package syncplan
