// Package fsprobe reports the actual state of the collection tree: which
// asset files exist, where, and with what content fingerprint. The probe is
// recomputed every run; nothing here is cached as ground truth between runs.
package fsprobe
