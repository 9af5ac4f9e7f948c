package doc

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document is an ordered set of fields.
//
// It shares its representation with bson.D so it can be handed to the
// MongoDB driver without copying, and keeps field order through a round trip.
type Document bson.D

// Field is a single key/value pair of a Document.
type Field = bson.E

// New builds a Document from alternating key/value arguments.
//
//	doc.New("a", int32(1), "b", "x")
//
// Panics if a key is not a string or the argument count is odd.
func New(kv ...any) Document {
	if len(kv)%2 != 0 {
		panic("doc.New: odd number of arguments")
	}
	d := make(Document, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("doc.New: key %v is not a string", kv[i]))
		}
		d = append(d, Field{Key: key, Value: kv[i+1]})
	}
	return d
}

// D returns the document as a bson.D.
func (d Document) D() bson.D {
	return bson.D(d)
}

// Len returns the number of fields.
func (d Document) Len() int {
	return len(d)
}

// Keys returns the field names in order.
func (d Document) Keys() []string {
	keys := make([]string, len(d))
	for i, f := range d {
		keys[i] = f.Key
	}
	return keys
}

// Get returns the value of the first field with the given name.
func (d Document) Get(name string) (any, bool) {
	for _, f := range d {
		if f.Key == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Without returns a copy of d with the named fields removed.
func (d Document) Without(names ...string) Document {
	out := make(Document, 0, len(d))
	for _, f := range d {
		skip := false
		for _, n := range names {
			if f.Key == n {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, f)
		}
	}
	return out
}

func (d Document) typeError(name, kind string) error {
	if _, ok := d.Get(name); !ok {
		return fmt.Errorf("field %q not found", name)
	}
	return fmt.Errorf("field %q is not %s", name, kind)
}

// Int32 returns the named field as an int32.
func (d Document) Int32(name string) (int32, error) {
	v, _ := d.Get(name)
	if i, ok := v.(int32); ok {
		return i, nil
	}
	return 0, d.typeError(name, "an int32")
}

// Int64 returns the named field as an int64. Int32 values are widened.
func (d Document) Int64(name string) (int64, error) {
	v, _ := d.Get(name)
	switch i := v.(type) {
	case int64:
		return i, nil
	case int32:
		return int64(i), nil
	}
	return 0, d.typeError(name, "an int64")
}

// Float64 returns the named field as a float64.
func (d Document) Float64(name string) (float64, error) {
	v, _ := d.Get(name)
	if f, ok := v.(float64); ok {
		return f, nil
	}
	return 0, d.typeError(name, "a float64")
}

// String returns the named field as a string.
func (d Document) String(name string) (string, error) {
	v, _ := d.Get(name)
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", d.typeError(name, "a string")
}

// Bool returns the named field as a bool.
func (d Document) Bool(name string) (bool, error) {
	v, _ := d.Get(name)
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, d.typeError(name, "a bool")
}

// Document returns the named field as an embedded document.
func (d Document) Document(name string) (Document, error) {
	v, _ := d.Get(name)
	if sub, ok := asDocument(v); ok {
		return sub, nil
	}
	return nil, d.typeError(name, "a document")
}

// Array returns the named field as an array.
func (d Document) Array(name string) ([]any, error) {
	v, _ := d.Get(name)
	switch a := v.(type) {
	case bson.A:
		return []any(a), nil
	case []any:
		return a, nil
	}
	return nil, d.typeError(name, "an array")
}

// ObjectID returns the named field as an ObjectID.
func (d Document) ObjectID(name string) (primitive.ObjectID, error) {
	v, _ := d.Get(name)
	if id, ok := v.(primitive.ObjectID); ok {
		return id, nil
	}
	return primitive.NilObjectID, d.typeError(name, "an object id")
}

// Time returns the named field as a time instance.
func (d Document) Time(name string) (time.Time, error) {
	v, _ := d.Get(name)
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case primitive.DateTime:
		return t.Time(), nil
	}
	return time.Unix(0, 0), d.typeError(name, "a time instance")
}

// Equal reports whether d and other hold the same fields, in the same order,
// with deeply equal values.
func (d Document) Equal(other Document) bool {
	if len(d) != len(other) {
		return false
	}
	for i := range d {
		if d[i].Key != other[i].Key {
			return false
		}
		a, aok := asDocument(d[i].Value)
		b, bok := asDocument(other[i].Value)
		if aok || bok {
			if !aok || !bok || !a.Equal(b) {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(d[i].Value, other[i].Value) {
			return false
		}
	}
	return true
}

// Matches reports whether every field of filter is present in d with an equal
// value. Numbers compare by value regardless of their BSON width.
func (d Document) Matches(filter Document) bool {
	for _, f := range filter {
		v, ok := d.Get(f.Key)
		if !ok || !ValuesEqual(v, f.Value) {
			return false
		}
	}
	return true
}

// ValuesEqual compares two field values. Numeric values compare by value,
// embedded documents field by field, everything else with reflect.DeepEqual.
func ValuesEqual(a, b any) bool {
	if ai, ok := integer(a); ok {
		if bi, ok := integer(b); ok {
			return ai == bi
		}
		if bf, ok := b.(float64); ok {
			return floatEqualsInt(bf, ai)
		}
		return false
	}
	if af, ok := number(a); ok {
		if bi, ok := integer(b); ok {
			return floatEqualsInt(af, bi)
		}
		if bf, ok := number(b); ok {
			return af == bf
		}
		return false
	}
	if ad, ok := asDocument(a); ok {
		bd, ok := asDocument(b)
		if !ok || len(ad) != len(bd) {
			return false
		}
		for i := range ad {
			if ad[i].Key != bd[i].Key || !ValuesEqual(ad[i].Value, bd[i].Value) {
				return false
			}
		}
		return true
	}
	if aa, ok := asArray(a); ok {
		ba, ok := asArray(b)
		if !ok || len(aa) != len(ba) {
			return false
		}
		for i := range aa {
			if !ValuesEqual(aa[i], ba[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// integer widens the integral BSON types to int64.
func integer(v any) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

func number(v any) (float64, bool) {
	if n, ok := v.(float64); ok && !math.IsNaN(n) {
		return n, true
	}
	return 0, false
}

// floatEqualsInt reports whether f holds exactly the integer i.
func floatEqualsInt(f float64, i int64) bool {
	if math.IsNaN(f) || f != math.Trunc(f) || f < -(1<<63) || f >= 1<<63 {
		return false
	}
	return int64(f) == i
}

func asDocument(v any) (Document, bool) {
	switch d := v.(type) {
	case Document:
		return d, true
	case bson.D:
		return Document(d), true
	}
	return nil, false
}

func asArray(v any) ([]any, bool) {
	switch a := v.(type) {
	case bson.A:
		return []any(a), true
	case []any:
		return a, true
	}
	return nil, false
}
