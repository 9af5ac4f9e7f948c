package testutil

// FixedRunID returns the same run id every time.
//
// The harness stamps every result with a run id. Production runs use random
// UUIDs; tests pin the id so results and golden snapshots compare byte for byte.
//
// Thread-safety: FixedRunID is stateless and safe for concurrent use.
type FixedRunID string

// DefaultRunID is used by NewFixedRunID when no id is given.
const DefaultRunID = "run-00000000-0000-0000-0000-000000000000"

// NewFixedRunID creates a generator for id, or DefaultRunID if id is empty.
func NewFixedRunID(id string) FixedRunID {
	if id == "" {
		id = DefaultRunID
	}
	return FixedRunID(id)
}

// Generate returns the fixed id.
func (g FixedRunID) Generate() string {
	return string(g)
}
