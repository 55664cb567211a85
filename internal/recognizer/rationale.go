// internal/recognizer/rationale.go
package recognizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

// Rationale explains a recommendation in plain sentences, one per line
func Rationale(c Candidate, confidence float64) string {
	st, p := c.Stat, c.Pattern
	lines := []string{
		fmt.Sprintf("%s: %s", p.PatternName, p.Description()),
		fmt.Sprintf("Observed %d/%d recent decisions on '%s' made with high confidence; the team chose %s %d times.",
			st.SelectedCount, st.TotalDecisions, st.DecisionPoint, st.DominantOption, st.DominantCount),
		fmt.Sprintf("Estimated confidence: %.2f%%.", confidence*100),
	}
	if len(st.TopContexts) > 0 {
		lines = append(lines, "Representative contexts: "+strings.Join(st.TopContexts, "; ")+".")
	}
	lines = append(lines, fmt.Sprintf("Historical success rate: %.2f%% over %d uses.", p.SuccessRate*100, p.UsageFrequency))
	return strings.Join(lines, "\n")
}

// Tags are the lowercase pattern layer and the hyphenated decision point, sorted
func Tags(c Candidate) []string {
	set := map[string]struct{}{
		strings.ToLower(string(c.Pattern.PatternType)): {},
		strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(c.Stat.DecisionPoint, "_", " ")), "-")): {},
	}
	tags := make([]string, 0, len(set))
	for t := range set {
		if t != "" {
			tags = append(tags, t)
		}
	}
	sort.Strings(tags)
	return tags
}

func metadata(c Candidate, ttlDays int) map[string]any {
	st, p := c.Stat, c.Pattern
	return map[string]any{
		"pattern_id":             p.ID,
		"decision_point":         st.DecisionPoint,
		types.MetaTotalDecisions: st.TotalDecisions,
		"selected_count":         st.SelectedCount,
		"dominant_option":        st.DominantOption,
		"mean_confidence":        st.MeanConfidence,
		"success_rate":           p.SuccessRate,
		"context_similarity":     p.ContextSimilarity,
		"query_similarity":       p.Similarity,
		"usage_frequency":        p.UsageFrequency,
		"top_contexts":           append([]string{}, st.TopContexts...),
		"tags":                   Tags(c),
		"ttl_days":               ttlDays,
	}
}
