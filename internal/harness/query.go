package harness

import (
	"fmt"
	"slices"

	"github.com/roach88/roundtrip/internal/doc"
	"github.com/roach88/roundtrip/internal/store"
)

// FetchMode selects how ReadDocument retrieves a document.
type FetchMode int

const (
	// FetchDirect is a point lookup returning the first match.
	FetchDirect FetchMode = iota
	// FetchCursor opens a cursor and advances it once.
	FetchCursor
)

func (m FetchMode) String() string {
	switch m {
	case FetchDirect:
		return "direct"
	case FetchCursor:
		return "cursor"
	default:
		return fmt.Sprintf("FetchMode(%d)", int(m))
	}
}

// Query describes a read. Build it with NewQuery; it is not modified afterwards.
type Query struct {
	collection string
	filter     doc.Document
	readPref   store.ReadPref
	mode       FetchMode
}

// QueryOption configures a Query.
type QueryOption func(*Query)

// WithReadPref routes the read by preference. The harness passes it to the
// driver and never checks which member answered.
func WithReadPref(p store.ReadPref) QueryOption {
	return func(q *Query) { q.readPref = p }
}

// WithMode selects direct or cursor fetching. The default is FetchDirect.
func WithMode(m FetchMode) QueryOption {
	return func(q *Query) { q.mode = m }
}

// NewQuery builds a query over collection. A nil filter matches everything.
func NewQuery(collection string, filter doc.Document, opts ...QueryOption) Query {
	q := Query{collection: collection, filter: slices.Clone(filter)}
	if q.filter == nil {
		q.filter = doc.Document{}
	}
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

func (q Query) Collection() string       { return q.collection }
func (q Query) Filter() doc.Document     { return slices.Clone(q.filter) }
func (q Query) ReadPref() store.ReadPref { return q.readPref }
func (q Query) Mode() FetchMode          { return q.mode }

// op is the operation name a read with this query is reported under.
func (q Query) op() string {
	if q.mode == FetchCursor {
		return OpFind
	}
	return OpFindOne
}
