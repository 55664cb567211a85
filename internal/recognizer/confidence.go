// internal/recognizer/confidence.go
package recognizer

import "github.com/MereWhiplash/decision-cogitator/internal/types"

// Weights balances the three evidence sources of a recommendation's confidence
type Weights struct {
	Decision float64 // mean confidence of the supporting decisions
	Success  float64 // pattern success rate
	Context  float64 // pattern context similarity prior
}

// DefaultWeights favours what the team actually decided over pattern priors
var DefaultWeights = Weights{Decision: 0.5, Success: 0.3, Context: 0.2}

// normalized scales w to sum to one. Negative or all-zero weights fall back
// to DefaultWeights so the result stays monotonic.
func (w Weights) normalized() Weights {
	if w.Decision < 0 || w.Success < 0 || w.Context < 0 {
		return DefaultWeights
	}
	total := w.Decision + w.Success + w.Context
	if total <= 0 || total != total {
		return DefaultWeights
	}
	return Weights{Decision: w.Decision / total, Success: w.Success / total, Context: w.Context / total}
}

// Confidence combines the evidence into [0,1]. It never decreases when any
// input increases.
func (w Weights) Confidence(meanDecision, successRate, contextSimilarity float64) float64 {
	n := w.normalized()
	return types.Clamp01(
		n.Decision*types.Clamp01(meanDecision) +
			n.Success*types.Clamp01(successRate) +
			n.Context*types.Clamp01(contextSimilarity),
	)
}
