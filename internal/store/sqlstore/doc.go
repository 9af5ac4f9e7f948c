// Package sqlstore implements the store contract on SQLite.
//
// It stands in for a MongoDB deployment when none is available: documents are
// stored as canonical extended JSON so numeric widths, object ids and field
// order survive the round trip, and filters use the same value equality the
// harness asserts with.
package sqlstore
