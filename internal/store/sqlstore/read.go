package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/roundtrip/internal/doc"
	"github.com/roach88/roundtrip/internal/store"
)

// FindOne returns the earliest inserted document matching filter.
// Returns an error wrapping store.ErrNotFound if nothing matches.
func (c *Conn) FindOne(ctx context.Context, collection string, filter doc.Document, pref store.ReadPref) (doc.Document, error) {
	cur, err := c.Find(ctx, collection, filter, pref)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("find one in %q: %w", collection, store.ErrNotFound)
	}
	return cur.Document()
}

// Find opens a cursor over the documents in collection matching filter, in
// insertion order. Filtering on _id is pushed down to SQL; every other field
// is matched as rows are read.
func (c *Conn) Find(ctx context.Context, collection string, filter doc.Document, _ store.ReadPref) (store.Cursor, error) {
	if err := c.checkOpen(); err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}

	where := sq.Eq{"collection": collection}
	if id, ok := filter.Get("_id"); ok {
		idKey, err := marshalID(id)
		if err != nil {
			return nil, fmt.Errorf("find: %w", err)
		}
		where["doc_id"] = idKey
	}

	query, args, err := sq.Select("body").
		From("documents").
		Where(where).
		OrderBy("seq ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("find: build query: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find: %w", classify(err))
	}
	return &Cursor{rows: rows, filter: filter}, nil
}

// Cursor streams matching documents from an open result set.
// Callers must Close it; an open cursor holds one pooled connection.
type Cursor struct {
	rows    *sql.Rows
	filter  doc.Document
	current doc.Document
	err     error
}

// Next advances to the next matching document.
func (c *Cursor) Next(ctx context.Context) bool {
	c.current = nil
	if c.err != nil {
		return false
	}
	for c.rows.Next() {
		if err := ctx.Err(); err != nil {
			c.err = fmt.Errorf("cursor: %w", classify(err))
			return false
		}
		var body string
		if err := c.rows.Scan(&body); err != nil {
			c.err = fmt.Errorf("cursor: scan: %w", classify(err))
			return false
		}
		d, err := unmarshalBody(body)
		if err != nil {
			c.err = fmt.Errorf("cursor: %w", err)
			return false
		}
		if d.Matches(c.filter) {
			c.current = d
			return true
		}
	}
	if err := c.rows.Err(); err != nil {
		c.err = fmt.Errorf("cursor: iterate: %w", classify(err))
	}
	return false
}

// Document returns the document the last successful Next stopped on.
func (c *Cursor) Document() (doc.Document, error) {
	if c.current == nil {
		return nil, errors.New("cursor: no current document")
	}
	return c.current, nil
}

// Err returns the error that ended iteration, if any.
func (c *Cursor) Err() error {
	return c.err
}

// Close releases the result set. Safe to call more than once.
func (c *Cursor) Close(_ context.Context) error {
	return c.rows.Close()
}
