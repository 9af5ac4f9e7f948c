package doc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
	"unicode/utf16"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/text/unicode/norm"
)

// Map returns a plain map view of the document. Int32 values are widened to
// int64, object ids become hex strings and datetimes become time.Time, so the
// result can be fed to expression evaluators.
func (d Document) Map() map[string]any {
	m := make(map[string]any, len(d))
	for _, f := range d {
		m[f.Key] = plain(f.Value)
	}
	return m
}

func plain(v any) any {
	switch val := v.(type) {
	case int32:
		return int64(val)
	case int:
		return int64(val)
	case Document:
		return val.Map()
	case bson.D:
		return Document(val).Map()
	case bson.A:
		return plainArray(val)
	case []any:
		return plainArray(val)
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC()
	default:
		return v
	}
}

func plainArray(a []any) []any {
	out := make([]any, len(a))
	for i, elem := range a {
		out[i] = plain(elem)
	}
	return out
}

// MarshalCanonical produces canonical JSON for golden snapshots.
//
// Object keys are sorted by UTF-16 code units, strings are NFC normalized and
// HTML characters are not escaped. Datetimes render as RFC 3339 strings in UTC
// and object ids as hex strings. NaN and infinities are rejected.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON renders the document as canonical JSON.
func (d Document) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(d)
}

// UnmarshalJSON reads relaxed extended JSON, so canonical output reads back
// with integers as int32 or int64 and embedded objects as documents.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw bson.D
	if err := bson.UnmarshalExtJSON(data, false, &raw); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	*d = Document(raw)
	return nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("non-finite number is not representable: %v", val)
		}
		buf.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	case string:
		return writeCanonicalString(buf, val)
	case primitive.ObjectID:
		return writeCanonicalString(buf, val.Hex())
	case primitive.DateTime:
		return writeCanonicalString(buf, val.Time().UTC().Format(time.RFC3339Nano))
	case time.Time:
		return writeCanonicalString(buf, val.UTC().Format(time.RFC3339Nano))
	case Document:
		return writeCanonicalObject(buf, val.Map())
	case bson.D:
		return writeCanonicalObject(buf, Document(val).Map())
	case map[string]any:
		return writeCanonicalObject(buf, val)
	case bson.A:
		return writeCanonicalArray(buf, val)
	case []any:
		return writeCanonicalArray(buf, val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

func writeCanonicalArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonical(buf, elem); err != nil {
			return fmt.Errorf("array[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeCanonicalObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return lessUTF16(keys[i], keys[j])
	})

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonicalString(buf, k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := writeCanonical(buf, obj[k]); err != nil {
			return fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// lessUTF16 orders strings by UTF-16 code units as RFC 8785 requires.
func lessUTF16(a, b string) bool {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			return ua[i] < ub[i]
		}
	}
	return len(ua) < len(ub)
}

// writeCanonicalString writes s NFC normalized, without HTML escaping, and
// with U+2028/U+2029 left literal.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte("\n"))
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes emitted by
// encoding/json back into literal characters. An escape preceded by an odd
// number of backslashes is literal text and is left alone.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	backslashes := 0
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c == '\\' && backslashes%2 == 0 && i+5 < len(data) &&
			data[i+1] == 'u' && data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			backslashes = 0
			continue
		}
		if c == '\\' {
			backslashes++
		} else {
			backslashes = 0
		}
		out = append(out, c)
	}
	return out
}
