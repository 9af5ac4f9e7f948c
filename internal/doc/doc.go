// Package doc holds the document model exchanged with the target store.
//
// A Document is an ordered list of fields backed by bson.D. Field order is
// kept from YAML input through the driver and back, so a document read from
// the store can be compared with the one that was written either strictly
// (Equal) or by the fields under test (Matches, ValuesEqual).
//
// MarshalCanonical renders documents and trace snapshots as canonical JSON
// for golden file comparison.
package doc
