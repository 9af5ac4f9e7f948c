// Package store defines the driver contract the harness talks to.
//
// A Dialer turns a Config into a Conn. Conn implementations live in
// sub-packages: mongostore speaks to a real MongoDB deployment and sqlstore
// keeps documents in SQLite so sequences can run without a server. Errors
// are classified by wrapping ErrNotFound, ErrTimeout and ErrClosed.
package store
