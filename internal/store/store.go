package store

//go:generate mockgen -source=store.go -destination=./mock_store/store.go

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/roundtrip/internal/doc"
)

// Errors a Conn reports through wrapping. Implementations wrap driver errors
// so callers can classify them with errors.Is.
var (
	// ErrNotFound means a query executed successfully but matched nothing.
	ErrNotFound = errors.New("no matching document")

	// ErrTimeout means an operation ran out of time before the store answered.
	ErrTimeout = errors.New("operation timed out")

	// ErrClosed means the connection was already closed.
	ErrClosed = errors.New("connection closed")
)

// Dialer opens connections to a target store.
type Dialer interface {
	Dial(ctx context.Context, cfg Config) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, cfg Config) (Conn, error)

// Dial calls f(ctx, cfg).
func (f DialerFunc) Dial(ctx context.Context, cfg Config) (Conn, error) {
	return f(ctx, cfg)
}

// Conn is one pooled connection to a document store.
type Conn interface {
	// InsertOne persists d in the named collection and returns the id the
	// store assigned to it.
	InsertOne(ctx context.Context, collection string, d doc.Document) (any, error)

	// FindOne returns the first document matching filter, or an error
	// wrapping ErrNotFound.
	FindOne(ctx context.Context, collection string, filter doc.Document, pref ReadPref) (doc.Document, error)

	// Find opens a cursor over the documents matching filter.
	Find(ctx context.Context, collection string, filter doc.Document, pref ReadPref) (Cursor, error)

	// Drop removes the collection and all of its documents.
	Drop(ctx context.Context, collection string) error

	// Close releases the connection and its pool.
	Close(ctx context.Context) error
}

// Cursor iterates over query results.
type Cursor interface {
	Next(ctx context.Context) bool
	Document() (doc.Document, error)
	Err() error
	Close(ctx context.Context) error
}

// Schemes routes dialing to an implementation by the target's URI scheme.
//
//	store.Schemes{
//	    "mongodb": mongostore.Dialer{},
//	    "sqlite":  sqlstore.Dialer{},
//	}
type Schemes map[string]Dialer

// Dial picks the Dialer registered for cfg.URI's scheme.
func (s Schemes) Dial(ctx context.Context, cfg Config) (Conn, error) {
	scheme := Scheme(cfg.URI)
	d, ok := s[scheme]
	if !ok {
		return nil, fmt.Errorf("no store registered for scheme %q", scheme)
	}
	return d.Dial(ctx, cfg)
}

// Scheme returns the scheme part of a target URI ("mongodb+srv" is reported
// as "mongodb").
func Scheme(uri string) string {
	i := strings.Index(uri, ":")
	if i <= 0 {
		return ""
	}
	scheme := strings.ToLower(uri[:i])
	if scheme == "mongodb+srv" {
		return "mongodb"
	}
	return scheme
}
