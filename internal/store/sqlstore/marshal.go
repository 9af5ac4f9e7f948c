package sqlstore

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/roundtrip/internal/doc"
)

// marshalBody converts a document to canonical extended JSON TEXT for storage.
// Canonical mode keeps numeric widths, so int32 values come back as int32.
func marshalBody(d doc.Document) (string, error) {
	data, err := bson.MarshalExtJSON(d.D(), true, false)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	return string(data), nil
}

// unmarshalBody parses stored extended JSON back into an ordered document.
func unmarshalBody(data string) (doc.Document, error) {
	var d bson.D
	if err := bson.UnmarshalExtJSON([]byte(data), true, &d); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	if d == nil {
		d = bson.D{}
	}
	return doc.Document(d), nil
}

// marshalID renders an _id value as the key of the (collection, doc_id)
// uniqueness constraint.
func marshalID(id any) (string, error) {
	data, err := bson.MarshalExtJSON(bson.D{{Key: "_id", Value: id}}, true, false)
	if err != nil {
		return "", fmt.Errorf("marshal _id: %w", err)
	}
	return string(data), nil
}
