// internal/catalog/catalog.go
// Package catalog reads architectural patterns from YAML and seeds them into
// a store.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

//go:embed default.yaml
var defaultCatalog []byte

// Entry is one pattern as written in a catalog file
type Entry struct {
	Name              string                  `yaml:"name"`
	Type              string                  `yaml:"type"`
	DecisionPoint     string                  `yaml:"decision_point"`
	Definition        types.PatternDefinition `yaml:"definition"`
	ContextSimilarity float64                 `yaml:"context_similarity"`
	SuccessRate       float64                 `yaml:"success_rate"`
	UsageFrequency    int                     `yaml:"usage_frequency"`
	Examples          []string                `yaml:"examples"`
	Metadata          map[string]any          `yaml:"metadata"`
}

// Catalog is a parsed catalog file
type Catalog struct {
	Source   string  `yaml:"-"`
	Patterns []Entry `yaml:"patterns"`
}

// ParseError reports a catalog that could not be decoded or validated
type ParseError struct {
	Source string
	Index  int // -1 when the failure is not tied to one entry
	Err    error
}

func (e *ParseError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: pattern %d: %v", e.Source, e.Index, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Default returns the built-in catalog of common patterns
func Default() (*Catalog, error) {
	return Parse("builtin", bytes.NewReader(defaultCatalog))
}

// Load parses the catalog file at path
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()
	return Parse(path, f)
}

// Parse decodes and validates a catalog. Unknown fields are rejected.
func Parse(source string, r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		if err == io.EOF {
			return nil, &ParseError{Source: source, Index: -1, Err: fmt.Errorf("catalog is empty")}
		}
		return nil, &ParseError{Source: source, Index: -1, Err: err}
	}
	c.Source = source

	for i := range c.Patterns {
		if _, err := c.Patterns[i].Pattern(); err != nil {
			return nil, &ParseError{Source: source, Index: i, Err: err}
		}
	}
	return &c, nil
}

// Pattern converts the entry into a validated domain pattern with a fresh ID
func (e Entry) Pattern() (types.ArchitecturalPattern, error) {
	p := types.NewArchitecturalPattern(strings.TrimSpace(e.Name), patternType(e.Type), e.Definition)
	p.ContextSimilarity = e.ContextSimilarity
	p.SuccessRate = e.SuccessRate
	p.UsageFrequency = e.UsageFrequency
	p.Examples = e.Examples
	for k, v := range e.Metadata {
		p.Metadata[k] = v
	}
	if dp := strings.TrimSpace(e.DecisionPoint); dp != "" {
		p.Metadata[types.MetaCanonicalDecisionPoint] = dp
	}
	if err := p.Validate(); err != nil {
		return types.ArchitecturalPattern{}, err
	}
	return p, nil
}

func patternType(s string) types.PatternType {
	s = strings.TrimSpace(s)
	for _, t := range []types.PatternType{types.PatternDomain, types.PatternApplication, types.PatternInfrastructure, types.PatternInterface} {
		if strings.EqualFold(s, string(t)) {
			return t
		}
	}
	return types.PatternType(s)
}

// Sink accepts patterns. The service and the API client both satisfy it.
type Sink interface {
	StorePattern(ctx context.Context, p types.ArchitecturalPattern) (*types.ArchitecturalPattern, error)
}

// Import stores every pattern of c in order and returns what was stored.
// It stops at the first failure.
func Import(ctx context.Context, sink Sink, c *Catalog) ([]types.ArchitecturalPattern, error) {
	stored := make([]types.ArchitecturalPattern, 0, len(c.Patterns))
	for i, e := range c.Patterns {
		p, err := e.Pattern()
		if err != nil {
			return stored, &ParseError{Source: c.Source, Index: i, Err: err}
		}
		got, err := sink.StorePattern(ctx, p)
		if err != nil {
			return stored, fmt.Errorf("failed to store pattern %q: %w", p.PatternName, err)
		}
		stored = append(stored, *got)
	}
	return stored, nil
}
