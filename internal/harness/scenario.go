package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/roundtrip/internal/doc"
	"github.com/roach88/roundtrip/internal/store"
)

// Scenario is one round-trip sequence: connect, run Steps in order, close.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file too.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Collection is the default collection for steps that do not name one.
	Collection string `yaml:"collection,omitempty"`

	// Steps run strictly in order. The first step whose outcome differs from
	// its expectation ends the sequence.
	Steps []Step `yaml:"steps"`

	// Path is the file the scenario was loaded from, if any.
	Path string `yaml:"-"`
}

// Step is one operation of a scenario.
type Step struct {
	// Op is one of insert, find_one, find or drop.
	Op string `yaml:"op"`

	// Collection overrides the scenario's default collection.
	Collection string `yaml:"collection,omitempty"`

	// Document is the document to insert (insert only).
	Document doc.Document `yaml:"document,omitempty"`

	// Filter selects the document to read (find_one and find).
	Filter doc.Document `yaml:"filter,omitempty"`

	// ReadPreference routes the read (find_one and find).
	ReadPreference string `yaml:"read_preference,omitempty"`

	// Expect describes the required outcome. Mandatory for reads; writes
	// without one must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is the required outcome of a step.
// Error excludes Fields and Expr.
type Expect struct {
	// Fields must all be present in the read document with equal values.
	Fields doc.Document `yaml:"fields,omitempty"`

	// Error is the failure kind the operation must end with.
	Error string `yaml:"error,omitempty"`

	// Expr is a CEL predicate over the read document, bound to doc.
	Expr string `yaml:"expr,omitempty"`
}

// collection resolves the collection a step operates on.
func (s *Scenario) collection(step Step) string {
	if step.Collection != "" {
		return step.Collection
	}
	return s.Collection
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or breaks a validation rule.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.Path = path
	return sc, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse with strict field validation (catches typos like "filters:" vs "filter:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateSchema(data); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// ScenarioFiles expands paths into scenario files. Directories contribute
// their *.yaml and *.yml files in lexical order; files are taken as given.
func ScenarioFiles(paths ...string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read scenario path: %w", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read scenario directory: %w", err)
		}
		var found []string
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
				found = append(found, filepath.Join(p, e.Name()))
			}
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

// LoadScenarios loads every scenario named by paths (see ScenarioFiles).
// Scenario names must be unique.
func LoadScenarios(paths ...string) ([]*Scenario, error) {
	files, err := ScenarioFiles(paths...)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]string, len(files))
	scenarios := make([]*Scenario, 0, len(files))
	for _, f := range files {
		sc, err := LoadScenario(f)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[sc.Name]; ok {
			return nil, fmt.Errorf("duplicate scenario name %q in %s and %s", sc.Name, prev, f)
		}
		seen[sc.Name] = f
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

// validateScenario checks the rules a schema cannot express conveniently.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(s, step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(s *Scenario, step Step) error {
	if s.collection(step) == "" {
		return fmt.Errorf("collection is required (set it on the step or the scenario)")
	}

	switch step.Op {
	case OpInsert:
		if step.Document == nil {
			return fmt.Errorf("document is required for insert")
		}
		if step.Filter != nil || step.ReadPreference != "" {
			return fmt.Errorf("insert takes no filter or read_preference")
		}
		return validateWriteExpect(step)
	case OpDrop:
		if step.Document != nil || step.Filter != nil || step.ReadPreference != "" {
			return fmt.Errorf("drop takes no document, filter or read_preference")
		}
		return validateWriteExpect(step)
	case OpFindOne, OpFind:
		if step.Document != nil {
			return fmt.Errorf("%s takes no document", step.Op)
		}
		if step.Filter == nil {
			return fmt.Errorf("filter is required for %s (use {} to match everything)", step.Op)
		}
		if _, err := store.ParseReadPref(step.ReadPreference); err != nil {
			return err
		}
		if step.Expect == nil {
			return fmt.Errorf("expect is required for %s", step.Op)
		}
		return validateExpect(step.Expect)
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

func validateWriteExpect(step Step) error {
	if step.Expect == nil {
		return nil
	}
	if step.Expect.Fields != nil || step.Expect.Expr != "" {
		return fmt.Errorf("expect on %s may only name an error", step.Op)
	}
	return validateExpect(step.Expect)
}

func validateExpect(e *Expect) error {
	if e.Error != "" {
		if e.Fields != nil || e.Expr != "" {
			return fmt.Errorf("expect.error cannot be combined with fields or expr")
		}
		kind, err := ParseKind(e.Error)
		if err != nil {
			return fmt.Errorf("expect.error: %w", err)
		}
		if kind == KindAssertion {
			return fmt.Errorf("expect.error: %s is not an operation outcome", kind)
		}
		return nil
	}
	if e.Fields == nil && e.Expr == "" {
		return fmt.Errorf("expect needs fields, expr or error")
	}
	if e.Expr != "" {
		if _, err := compileExpr(e.Expr); err != nil {
			return fmt.Errorf("expect.expr: %w", err)
		}
	}
	return nil
}
