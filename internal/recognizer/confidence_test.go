package recognizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidence_DefaultWeights(t *testing.T) {
	got := DefaultWeights.Confidence(0.93, 0.87, 0.92)
	assert.InDelta(t, 0.5*0.93+0.3*0.87+0.2*0.92, got, 1e-9)
}

func TestConfidence_Bounds(t *testing.T) {
	assert.Equal(t, 0.0, DefaultWeights.Confidence(0, 0, 0))
	assert.InDelta(t, 1.0, DefaultWeights.Confidence(1, 1, 1), 1e-9)
	assert.InDelta(t, 1.0, DefaultWeights.Confidence(5, 2, 9), 1e-9)
	assert.Equal(t, 0.0, DefaultWeights.Confidence(-1, -1, -1))
}

func TestConfidence_Monotonic(t *testing.T) {
	weights := []Weights{DefaultWeights, {Decision: 1}, {Decision: 2, Success: 2, Context: 1}}
	steps := []float64{0, 0.1, 0.25, 0.5, 0.55, 0.75, 0.9, 1}

	for _, w := range weights {
		for _, base := range steps {
			for i := 1; i < len(steps); i++ {
				lo, hi := steps[i-1], steps[i]
				assert.LessOrEqual(t, w.Confidence(lo, base, base), w.Confidence(hi, base, base))
				assert.LessOrEqual(t, w.Confidence(base, lo, base), w.Confidence(base, hi, base))
				assert.LessOrEqual(t, w.Confidence(base, base, lo), w.Confidence(base, base, hi))
			}
		}
	}
}

func TestWeights_Normalized(t *testing.T) {
	n := Weights{Decision: 5, Success: 3, Context: 2}.normalized()
	assert.InDelta(t, 0.5, n.Decision, 1e-9)
	assert.InDelta(t, 0.3, n.Success, 1e-9)
	assert.InDelta(t, 0.2, n.Context, 1e-9)

	assert.Equal(t, DefaultWeights, Weights{}.normalized())
	assert.Equal(t, DefaultWeights, Weights{Decision: -1, Success: 2}.normalized())
}
