// Package persistence snapshots the workflow state into a JSON record and
// keeps it under a single well-known key of a ports.RecordStore.
//
// Live file handles never reach storage: only the id, display name and MIME
// type of each uploaded image are written. Generated images are embedded as
// data URIs so a record is self-contained.
//
// A record that is missing or does not parse is treated as absent. Loading
// never fails the caller; corruption is only logged.
package persistence
