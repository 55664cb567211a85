// internal/types/pattern.go
package types

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// MetaCanonicalDecisionPoint tags a pattern with the decision point it answers
const MetaCanonicalDecisionPoint = "canonical_decision_point"

// PatternDefinition is the structured description of an architectural pattern
type PatternDefinition struct {
	Summary   string   `json:"summary,omitempty" yaml:"summary" bson:"summary,omitempty"`
	Structure string   `json:"structure,omitempty" yaml:"structure" bson:"structure,omitempty"`
	Benefits  []string `json:"benefits,omitempty" yaml:"benefits" bson:"benefits,omitempty"`
	Example   string   `json:"example,omitempty" yaml:"example" bson:"example,omitempty"`
}

// Describe returns the most descriptive single line of the definition
func (d PatternDefinition) Describe() string {
	if s := strings.TrimSpace(d.Summary); s != "" {
		return s
	}
	return strings.TrimSpace(d.Structure)
}

// Text flattens every field into one string for lexical indexing
func (d PatternDefinition) Text() string {
	parts := []string{d.Summary, d.Structure}
	parts = append(parts, d.Benefits...)
	parts = append(parts, d.Example)
	return strings.Join(nonEmpty(parts), " ")
}

// ArchitecturalPattern is a reusable design pattern observed or catalogued
type ArchitecturalPattern struct {
	ID                string            `json:"id"`
	PatternName       string            `json:"pattern_name"`
	PatternType       PatternType       `json:"pattern_type"`
	Definition        PatternDefinition `json:"pattern_definition"`
	ContextSimilarity float64           `json:"context_similarity"`
	UsageFrequency    int               `json:"usage_frequency"`
	SuccessRate       float64           `json:"success_rate"`
	LastUsed          *time.Time        `json:"last_used,omitempty"`
	Examples          []string          `json:"examples,omitempty"`
	Metadata          map[string]any    `json:"metadata,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// NewArchitecturalPattern creates an unused pattern with a fresh ID
func NewArchitecturalPattern(name string, patternType PatternType, def PatternDefinition) ArchitecturalPattern {
	return ArchitecturalPattern{
		ID:          uuid.NewString(),
		PatternName: name,
		PatternType: patternType,
		Definition:  def,
		Metadata:    map[string]any{},
		CreatedAt:   time.Now().UTC(),
	}
}

// Validate checks the invariants a store enforces on write
func (p ArchitecturalPattern) Validate() error {
	if !hasWord(p.PatternName) {
		return &ValidationError{Field: "pattern_name", Reason: "pattern_name must contain at least one word"}
	}
	if err := p.PatternType.Validate(); err != nil {
		return err
	}
	if err := checkUnit("context_similarity", p.ContextSimilarity); err != nil {
		return err
	}
	if err := checkUnit("success_rate", p.SuccessRate); err != nil {
		return err
	}
	if p.UsageFrequency < 0 {
		return &ValidationError{Field: "usage_frequency", Reason: "usage_frequency must not be negative"}
	}
	return nil
}

// SearchText is the text lexical similarity is computed against
func (p ArchitecturalPattern) SearchText() string {
	return strings.TrimSpace(p.PatternName + " " + p.Definition.Text())
}

// Description returns the definition summary, falling back to the name
func (p ArchitecturalPattern) Description() string {
	if d := p.Definition.Describe(); d != "" {
		return d
	}
	return p.PatternName
}

// CanonicalDecisionPoint returns the decision point the pattern is tagged with
func (p ArchitecturalPattern) CanonicalDecisionPoint() string {
	if p.Metadata == nil {
		return ""
	}
	s, _ := p.Metadata[MetaCanonicalDecisionPoint].(string)
	return s
}

// ActiveAt is the instant used for lookback windows: last use, or creation if unused
func (p ArchitecturalPattern) ActiveAt() time.Time {
	if p.LastUsed != nil {
		return *p.LastUsed
	}
	return p.CreatedAt
}

// RecordUse folds one more usage outcome into the pattern's evidence
func (p *ArchitecturalPattern) RecordUse(success bool, at time.Time) {
	outcome := 0.0
	if success {
		outcome = 1
	}
	n := float64(p.UsageFrequency)
	p.SuccessRate = Clamp01((p.SuccessRate*n + outcome) / (n + 1))
	p.UsageFrequency++
	at = at.UTC()
	p.LastUsed = &at
}

// PatternMatch is a pattern returned by similarity search with its score
type PatternMatch struct {
	ArchitecturalPattern
	Similarity float64 `json:"similarity"`
}

func hasWord(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func nonEmpty(in []string) []string {
	out := in[:0:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
