package harness

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

type scenarioSchema struct {
	ctx *cue.Context
	def cue.Value
}

var loadSchema = sync.OnceValues(func() (*scenarioSchema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile scenario schema: %w", err)
	}
	def := v.LookupPath(cue.ParsePath("#Scenario"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("lookup #Scenario: %w", err)
	}
	return &scenarioSchema{ctx: ctx, def: def}, nil
})

// validateSchema checks raw scenario YAML against the #Scenario definition.
// A cue.Context is not safe for concurrent use, so validations are serialized.
var schemaMu sync.Mutex

func validateSchema(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	s, err := loadSchema()
	if err != nil {
		return err
	}

	schemaMu.Lock()
	defer schemaMu.Unlock()

	v := s.ctx.Encode(raw)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}
	if err := s.def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError keeps the first CUE error, which names the offending path.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	if len(errs) == 1 {
		return fmt.Errorf("schema: %s", errs[0].Error())
	}
	return fmt.Errorf("schema: %s (and %d more errors)", errs[0].Error(), len(errs)-1)
}
