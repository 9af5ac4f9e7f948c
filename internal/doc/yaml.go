package doc

import (
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes a YAML mapping into d, keeping the authoring order of
// keys. Integers become int32 when they fit and int64 otherwise.
func (d *Document) UnmarshalYAML(node *yaml.Node) error {
	out, err := documentFromNode(node)
	if err != nil {
		return err
	}
	*d = out
	return nil
}

func documentFromNode(node *yaml.Node) (Document, error) {
	if node.Kind == yaml.AliasNode {
		return documentFromNode(node.Alias)
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping, got %s", node.Line, kindName(node))
	}
	d := make(Document, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		if keyNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: field names must be scalars", keyNode.Line)
		}
		val, err := valueFromNode(valNode)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", keyNode.Value, err)
		}
		d = append(d, Field{Key: keyNode.Value, Value: val})
	}
	return d, nil
}

func valueFromNode(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.AliasNode:
		return valueFromNode(node.Alias)
	case yaml.MappingNode:
		return documentFromNode(node)
	case yaml.SequenceNode:
		arr := make(bson.A, 0, len(node.Content))
		for i, elem := range node.Content {
			v, err := valueFromNode(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.ScalarNode:
		return scalarFromNode(node)
	default:
		return nil, fmt.Errorf("line %d: unsupported node %s", node.Line, kindName(node))
	}
}

func scalarFromNode(node *yaml.Node) (any, error) {
	switch node.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return nil, err
		}
		return b, nil
	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			return nil, err
		}
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return int32(i), nil
		}
		return i, nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, err
		}
		return f, nil
	case "!!str":
		return node.Value, nil
	case "!!timestamp":
		var t time.Time
		if err := node.Decode(&t); err != nil {
			return nil, err
		}
		return primitive.NewDateTimeFromTime(t), nil
	default:
		return nil, fmt.Errorf("line %d: unsupported scalar tag %s", node.Line, node.ShortTag())
	}
}

func kindName(node *yaml.Node) string {
	switch node.Kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown"
}
