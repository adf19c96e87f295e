// Package services defines the provider adapter contract and the shared
// error taxonomy used to classify failures across a sync run. Each upstream
// provider lives in its own subpackage and returns snapshots in the shared
// normalized shape; the reconciliation core never sees provider specifics.
package services
