package sqlstore

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/roach88/roundtrip/internal/doc"
)

// InsertOne stores d in collection and returns its _id.
// A document without an _id gets a fresh ObjectID as its first field, the way
// the MongoDB driver does it. Inserting a second document with the same _id
// into the same collection fails.
func (c *Conn) InsertOne(ctx context.Context, collection string, d doc.Document) (any, error) {
	if err := c.checkOpen(); err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}

	id, ok := d.Get("_id")
	if !ok {
		id = primitive.NewObjectID()
		withID := make(doc.Document, 0, d.Len()+1)
		withID = append(withID, doc.Field{Key: "_id", Value: id})
		d = append(withID, d...)
	}

	idKey, err := marshalID(id)
	if err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}
	body, err := marshalBody(d)
	if err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}

	query, args, err := sq.Insert("documents").
		Columns("collection", "doc_id", "body").
		Values(collection, idKey, body).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("insert: build query: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("insert: duplicate key %s in collection %q", idKey, collection)
		}
		return nil, fmt.Errorf("insert: %w", classify(err))
	}
	return id, nil
}

// Drop deletes every document in collection. Dropping an empty or unknown
// collection succeeds.
func (c *Conn) Drop(ctx context.Context, collection string) error {
	if err := c.checkOpen(); err != nil {
		return fmt.Errorf("drop: %w", err)
	}

	query, args, err := sq.Delete("documents").
		Where(sq.Eq{"collection": collection}).
		ToSql()
	if err != nil {
		return fmt.Errorf("drop: build query: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("drop: %w", classify(err))
	}
	return nil
}
