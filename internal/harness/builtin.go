package harness

import (
	"github.com/roach88/roundtrip/internal/doc"
	"github.com/roach88/roundtrip/internal/store"
)

// BuiltinCollection is the collection the built-in scenarios use.
const BuiltinCollection = "test1"

// Builtin returns the reference round-trip scenarios: a point lookup, a
// cursor read routed to a secondary, and a lookup that must miss.
// Each call returns fresh values.
func Builtin() []*Scenario {
	return []*Scenario{
		{
			Name:        "direct_fetch",
			Description: "Insert a document and read it back with a point lookup",
			Collection:  BuiltinCollection,
			Steps: []Step{
				{Op: OpInsert, Document: doc.New("a", int32(1))},
				{
					Op:     OpFindOne,
					Filter: doc.New("a", int32(1)),
					Expect: &Expect{Fields: doc.New("a", int32(1))},
				},
			},
		},
		{
			Name:        "cursor_secondary",
			Description: "Insert a document and read it back through a cursor routed to a secondary",
			Collection:  BuiltinCollection,
			Steps: []Step{
				{Op: OpInsert, Document: doc.New("a", int32(1))},
				{
					Op:             OpFind,
					Filter:         doc.New("a", int32(1)),
					ReadPreference: string(store.ReadSecondary),
					Expect:         &Expect{Fields: doc.New("a", int32(1))},
				},
			},
		},
		{
			Name:        "not_found",
			Description: "A point lookup for a value that was never written reports not_found",
			Collection:  BuiltinCollection,
			Steps: []Step{
				{
					Op:     OpFindOne,
					Filter: doc.New("a", int32(999)),
					Expect: &Expect{Error: string(KindNotFound)},
				},
			},
		},
	}
}

// BuiltinByName returns the named built-in scenario.
func BuiltinByName(name string) (*Scenario, bool) {
	for _, sc := range Builtin() {
		if sc.Name == name {
			return sc, true
		}
	}
	return nil, false
}
