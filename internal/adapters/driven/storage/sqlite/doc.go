// Package sqlite stores document metadata in a single SQLite file
// (<data dir>/metadata.db) using the pure Go modernc.org/sqlite driver.
//
// Status changes are conditional UPDATEs keyed on the expected current
// status, so when two workers race on a document only one sees its row
// change. The schema is versioned by the files under migrations/.
package sqlite
