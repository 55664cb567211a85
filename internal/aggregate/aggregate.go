// internal/aggregate/aggregate.go
// Package aggregate folds raw decision rows into per-decision-point statistics.
// It is pure so every storage backend produces identical analysis.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

// SelectedThreshold is the confidence above which a decision counts as selected
const SelectedThreshold = 0.7

// MaxTopContexts caps DecisionStat.TopContexts
const MaxTopContexts = 3

// UnknownProvenance is reported when no spec type can be resolved
const UnknownProvenance = "unknown"

// ProvenanceFunc maps a decision's spec id to the spec type that produced it
type ProvenanceFunc func(specID string) string

// SpecRef is the minimal view of a stored specification needed to resolve provenance
type SpecRef struct {
	Identifier string
	SpecType   types.SpecType
}

// Resolver returns a ProvenanceFunc that prefers the longest stored identifier
// prefixing the spec id, then the spec id's own leading segment when it names a
// spec type, then UnknownProvenance
func Resolver(specs []SpecRef) ProvenanceFunc {
	sorted := make([]SpecRef, 0, len(specs))
	for _, s := range specs {
		if s.Identifier != "" {
			sorted = append(sorted, s)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Identifier) > len(sorted[j].Identifier)
	})

	return func(specID string) string {
		for _, s := range sorted {
			if strings.HasPrefix(specID, s.Identifier) {
				return string(s.SpecType)
			}
		}
		head, _, _ := strings.Cut(specID, "-")
		if st, ok := types.ParseSpecType(head); ok {
			return string(st)
		}
		return UnknownProvenance
	}
}

type group struct {
	stat        types.DecisionStat
	confSum     float64
	optionLast  map[string]time.Time
	contextSeen map[string]int
	contextLast map[string]time.Time
	provenance  map[string]int
}

// Decisions groups decisions by decision point. Decisions created after now are
// ignored. Results are ordered by total decisions desc, latest decision desc,
// then decision point asc.
func Decisions(decisions []types.Decision, provenance ProvenanceFunc, now time.Time) []types.DecisionStat {
	if provenance == nil {
		provenance = Resolver(nil)
	}

	groups := make(map[string]*group)
	for _, d := range decisions {
		if d.CreatedAt.After(now) || strings.TrimSpace(d.DecisionPoint) == "" {
			continue
		}
		g, ok := groups[d.DecisionPoint]
		if !ok {
			g = &group{
				stat: types.DecisionStat{
					DecisionPoint:  d.DecisionPoint,
					Options:        map[string]int{},
					FirstDecidedAt: d.CreatedAt,
					LastDecidedAt:  d.CreatedAt,
				},
				optionLast:  map[string]time.Time{},
				contextSeen: map[string]int{},
				contextLast: map[string]time.Time{},
				provenance:  map[string]int{},
			}
			groups[d.DecisionPoint] = g
		}

		g.stat.TotalDecisions++
		if d.Confidence > SelectedThreshold {
			g.stat.SelectedCount++
		}
		g.confSum += d.Confidence
		g.stat.Options[d.SelectedOption]++
		if d.CreatedAt.After(g.optionLast[d.SelectedOption]) {
			g.optionLast[d.SelectedOption] = d.CreatedAt
		}
		if d.CreatedAt.Before(g.stat.FirstDecidedAt) {
			g.stat.FirstDecidedAt = d.CreatedAt
		}
		if d.CreatedAt.After(g.stat.LastDecidedAt) {
			g.stat.LastDecidedAt = d.CreatedAt
		}
		if c := strings.TrimSpace(d.Context); c != "" {
			g.contextSeen[c]++
			if d.CreatedAt.After(g.contextLast[c]) {
				g.contextLast[c] = d.CreatedAt
			}
		}
		g.provenance[provenance(d.SpecID)]++
	}

	out := make([]types.DecisionStat, 0, len(groups))
	for _, g := range groups {
		st := g.stat
		st.MeanConfidence = g.confSum / float64(st.TotalDecisions)
		st.DominantOption, st.DominantCount = rank(st.Options, g.optionLast)
		st.TopContexts = topContexts(g.contextSeen, g.contextLast)
		st.Provenance = dominantProvenance(g.provenance)
		out = append(out, st)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TotalDecisions != b.TotalDecisions {
			return a.TotalDecisions > b.TotalDecisions
		}
		if !a.LastDecidedAt.Equal(b.LastDecidedAt) {
			return a.LastDecidedAt.After(b.LastDecidedAt)
		}
		return a.DecisionPoint < b.DecisionPoint
	})
	return out
}

// rank picks the most frequent key; ties go to the more recent, then the lexically smaller
func rank(counts map[string]int, last map[string]time.Time) (string, int) {
	var best string
	bestN := -1
	for k, n := range counts {
		switch {
		case n > bestN:
		case n == bestN && last[k].After(last[best]):
		case n == bestN && last[k].Equal(last[best]) && k < best:
		default:
			continue
		}
		best, bestN = k, n
	}
	if bestN < 0 {
		return "", 0
	}
	return best, bestN
}

func topContexts(seen map[string]int, last map[string]time.Time) []string {
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if seen[a] != seen[b] {
			return seen[a] > seen[b]
		}
		if !last[a].Equal(last[b]) {
			return last[a].After(last[b])
		}
		return a < b
	})
	if len(keys) > MaxTopContexts {
		keys = keys[:MaxTopContexts]
	}
	return keys
}

func dominantProvenance(counts map[string]int) string {
	var best string
	bestN := 0
	for k, n := range counts {
		if k == UnknownProvenance {
			continue
		}
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	if best == "" {
		return UnknownProvenance
	}
	return best
}
