// internal/types/types.go
// Package types contains shared data types that have no CGO dependencies.
// This allows packages like the shim and the API client to use the domain
// model without pulling in sqlite-vec.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultRetentionDays is used when a recommendation is created without a TTL
const DefaultRetentionDays = 90

// MetaRepo is the specification metadata key holding the source repository
const MetaRepo = "repo"

// SpecType identifies the kind of specification document
type SpecType string

const (
	SpecADR SpecType = "ADR"
	SpecPRD SpecType = "PRD"
	SpecSDS SpecType = "SDS"
	SpecTS  SpecType = "TS"
)

// Valid returns true if the SpecType is a known valid type
func (t SpecType) Valid() bool {
	switch t {
	case SpecADR, SpecPRD, SpecSDS, SpecTS:
		return true
	}
	return false
}

// Validate returns an error if the SpecType is invalid
func (t SpecType) Validate() error {
	if !t.Valid() {
		return &ValidationError{Field: "spec_type", Reason: fmt.Sprintf("invalid spec type %q: must be ADR, PRD, SDS, or TS", t)}
	}
	return nil
}

// ParseSpecType normalizes s and reports whether it names a known spec type
func ParseSpecType(s string) (SpecType, bool) {
	t := SpecType(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.Valid()
}

// PatternType represents the architectural layer a pattern belongs to
type PatternType string

const (
	PatternDomain         PatternType = "Domain"
	PatternApplication    PatternType = "Application"
	PatternInfrastructure PatternType = "Infrastructure"
	PatternInterface      PatternType = "Interface"
)

// Valid returns true if the PatternType is a known valid type
func (t PatternType) Valid() bool {
	switch t {
	case PatternDomain, PatternApplication, PatternInfrastructure, PatternInterface:
		return true
	}
	return false
}

// Validate returns an error if the PatternType is invalid
func (t PatternType) Validate() error {
	if !t.Valid() {
		return &ValidationError{Field: "pattern_type", Reason: fmt.Sprintf("invalid pattern type %q: must be Domain, Application, Infrastructure, or Interface", t)}
	}
	return nil
}

// SpecificationRecord is one immutable version of a specification document
type SpecificationRecord struct {
	ID         string         `json:"id"`
	SpecType   SpecType       `json:"spec_type"`
	Identifier string         `json:"identifier"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	Author     string         `json:"author,omitempty"`
	Version    int            `json:"version"`
	Hash       string         `json:"hash"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewSpecificationRecord stamps a fresh first version of a specification
func NewSpecificationRecord(specType SpecType, identifier, title, content, author string) SpecificationRecord {
	return SpecificationRecord{
		ID:         uuid.NewString(),
		SpecType:   specType,
		Identifier: identifier,
		Title:      title,
		Content:    content,
		Author:     author,
		Version:    1,
		Hash:       ContentHash(content),
		Metadata:   map[string]any{},
		CreatedAt:  time.Now().UTC(),
	}
}

// Validate checks the fields a store requires before persisting the record
func (r SpecificationRecord) Validate() error {
	if err := r.SpecType.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Identifier) == "" {
		return &ValidationError{Field: "identifier", Reason: "identifier is required"}
	}
	if strings.TrimSpace(r.Title) == "" {
		return &ValidationError{Field: "title", Reason: "title is required"}
	}
	if r.Content == "" {
		return &ValidationError{Field: "content", Reason: "content is required"}
	}
	if r.Version < 0 {
		return &ValidationError{Field: "version", Reason: "version must not be negative"}
	}
	return nil
}

// ContentHash returns the hex sha256 of a specification body
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Decision is an immutable fact: at SpecID, for DecisionPoint, the team chose SelectedOption
type Decision struct {
	ID             string    `json:"id"`
	SpecID         string    `json:"spec_id"`
	DecisionPoint  string    `json:"decision_point"`
	SelectedOption string    `json:"selected_option"`
	Context        string    `json:"context,omitempty"`
	Author         string    `json:"author,omitempty"`
	Confidence     float64   `json:"confidence"`
	CreatedAt      time.Time `json:"created_at"`
}

// Validate checks the fields a store requires before appending the decision
func (d Decision) Validate() error {
	if strings.TrimSpace(d.SpecID) == "" {
		return &ValidationError{Field: "spec_id", Reason: "spec_id is required"}
	}
	if strings.TrimSpace(d.DecisionPoint) == "" {
		return &ValidationError{Field: "decision_point", Reason: "decision_point is required"}
	}
	if strings.TrimSpace(d.SelectedOption) == "" {
		return &ValidationError{Field: "selected_option", Reason: "selected_option is required"}
	}
	if err := checkUnit("confidence", d.Confidence); err != nil {
		return err
	}
	return nil
}

// DecisionStat summarizes every decision recorded for one decision point
// inside a lookback window
type DecisionStat struct {
	DecisionPoint  string         `json:"decision_point"`
	Provenance     string         `json:"spec_type"`
	TotalDecisions int            `json:"total_decisions"`
	SelectedCount  int            `json:"selected_count"`
	DominantOption string         `json:"dominant_option"`
	DominantCount  int            `json:"dominant_count"`
	MeanConfidence float64        `json:"mean_confidence"`
	Options        map[string]int `json:"options"`
	TopContexts    []string       `json:"top_contexts"`
	FirstDecidedAt time.Time      `json:"first_decided_at"`
	LastDecidedAt  time.Time      `json:"last_decided_at"`
}

// SimilarityQuery configures lexical pattern search
type SimilarityQuery struct {
	Text          string
	MinSimilarity float64
	LookbackDays  int
}

// RecommendationListOpts configures recommendation listing
type RecommendationListOpts struct {
	Limit          int
	IncludeExpired bool
}

// SpecListOpts configures recent specification listing
type SpecListOpts struct {
	Limit    int
	SpecType SpecType
}

func checkUnit(field string, v float64) error {
	if v < 0 || v > 1 || v != v {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("%s must be between 0 and 1, got %v", field, v)}
	}
	return nil
}

// Clamp01 bounds v to the closed unit interval
func Clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
