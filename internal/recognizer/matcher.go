// internal/recognizer/matcher.go
package recognizer

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

// CandidateMinSimilarity is the lexical floor for a pattern to be considered
// against a decision point's dominant option
const CandidateMinSimilarity = 0.1

// PatternSource is the slice of the store the matcher reads
type PatternSource interface {
	ListPatterns(ctx context.Context, lookbackDays int) ([]types.ArchitecturalPattern, error)
	GetSimilarPatterns(ctx context.Context, q types.SimilarityQuery) ([]types.PatternMatch, error)
}

// Candidate pairs a decision point's statistics with the pattern chosen for it
type Candidate struct {
	Stat    types.DecisionStat
	Pattern types.PatternMatch
}

// Matcher finds the best stored pattern for each aggregated decision point
type Matcher struct {
	Source       PatternSource
	LookbackDays int
	MinDecisions int
	Concurrency  int
}

// Match returns one candidate per stat that has an eligible pattern, in the
// order of stats
func (m *Matcher) Match(ctx context.Context, stats []types.DecisionStat) ([]Candidate, error) {
	if len(stats) == 0 || m.LookbackDays <= 0 {
		return nil, nil
	}

	canonical, err := m.Source.ListPatterns(ctx, m.LookbackDays)
	if err != nil {
		return nil, err
	}

	minDecisions := max(m.MinDecisions, 1)
	picks := make([]*types.PatternMatch, len(stats))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(m.Concurrency, 1))
	for i, st := range stats {
		if st.TotalDecisions < minDecisions {
			continue
		}
		g.Go(func() error {
			similar, err := m.Source.GetSimilarPatterns(gctx, types.SimilarityQuery{
				Text:          Query(st),
				MinSimilarity: CandidateMinSimilarity,
				LookbackDays:  m.LookbackDays,
			})
			if err != nil {
				return err
			}
			picks[i] = best(mergeCandidates(st.DecisionPoint, canonical, similar))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Candidate
	for i, p := range picks {
		if p != nil {
			out = append(out, Candidate{Stat: stats[i], Pattern: *p})
		}
	}
	return out, nil
}

// Query is the lexical search text for a decision point: its dominant option
// plus the words of the decision point itself
func Query(st types.DecisionStat) string {
	point := strings.NewReplacer("_", " ", "-", " ").Replace(st.DecisionPoint)
	return strings.TrimSpace(st.DominantOption + " " + point)
}

// SimilarityTier is how far below the best lexical similarity a candidate may
// sit and still compete on success rate
const SimilarityTier = 0.05

// candidate is a pattern considered for one decision point. Canonical
// candidates are tagged with the decision point and outrank lexical ones.
type candidate struct {
	types.PatternMatch
	canonical bool
}

// mergeCandidates unions canonically tagged patterns with lexical matches,
// keeping the higher similarity for patterns found both ways
func mergeCandidates(decisionPoint string, canonical []types.ArchitecturalPattern, similar []types.PatternMatch) []candidate {
	byID := make(map[string]candidate)
	for _, p := range canonical {
		if p.CanonicalDecisionPoint() == decisionPoint {
			byID[p.ID] = candidate{PatternMatch: types.PatternMatch{ArchitecturalPattern: p}, canonical: true}
		}
	}
	for _, m := range similar {
		prev, ok := byID[m.ID]
		if !ok {
			byID[m.ID] = candidate{PatternMatch: m}
		} else if m.Similarity > prev.Similarity {
			prev.Similarity = m.Similarity
			byID[m.ID] = prev
		}
	}

	out := make([]candidate, 0, len(byID))
	for _, c := range byID {
		if c.ContextSimilarity > 0 {
			out = append(out, c)
		}
	}
	return out
}

// topTier keeps the canonical candidates when there are any, otherwise the
// lexical candidates within SimilarityTier of the best similarity
func topTier(cands []candidate) []candidate {
	var tagged []candidate
	maxSim := 0.0
	for _, c := range cands {
		if c.canonical {
			tagged = append(tagged, c)
		}
		maxSim = max(maxSim, c.Similarity)
	}
	if len(tagged) > 0 {
		return tagged
	}
	var out []candidate
	for _, c := range cands {
		if c.Similarity >= maxSim-SimilarityTier {
			out = append(out, c)
		}
	}
	return out
}

// best picks from the top similarity tier, preferring higher success rate,
// then usage, then most recent use, then name
func best(cands []candidate) *types.PatternMatch {
	cands = topTier(cands)
	if len(cands) == 0 {
		return nil
	}
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.SuccessRate != b.SuccessRate {
			return a.SuccessRate > b.SuccessRate
		}
		if a.UsageFrequency != b.UsageFrequency {
			return a.UsageFrequency > b.UsageFrequency
		}
		at, bt := lastUsed(a.ArchitecturalPattern), lastUsed(b.ArchitecturalPattern)
		if at != bt {
			return at > bt
		}
		if a.PatternName != b.PatternName {
			return a.PatternName < b.PatternName
		}
		return a.ID < b.ID
	})
	return &cands[0].PatternMatch
}

func lastUsed(p types.ArchitecturalPattern) int64 {
	if p.LastUsed == nil {
		return 0
	}
	return p.LastUsed.UnixNano()
}
