package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MereWhiplash/decision-cogitator/internal/apitypes/apitypestest"
	"github.com/MereWhiplash/decision-cogitator/internal/catalog"
	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

const sample = `
patterns:
  - name: Hexagonal Architecture
    type: application
    decision_point: integration_strategy
    definition:
      summary: Ports and adapters for service orchestration.
    context_similarity: 0.92
    success_rate: 0.87
    usage_frequency: 8
    metadata:
      owner: platform
`

func TestParse(t *testing.T) {
	c, err := catalog.Parse("sample", strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, c.Patterns, 1)

	p, err := c.Patterns[0].Pattern()
	require.NoError(t, err)
	assert.Equal(t, types.PatternApplication, p.PatternType)
	assert.Equal(t, "integration_strategy", p.CanonicalDecisionPoint())
	assert.Equal(t, "platform", p.Metadata["owner"])
	assert.Equal(t, 8, p.UsageFrequency)
	assert.NotEmpty(t, p.ID)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"unknown field", "patterns:\n  - name: X\n    colour: red\n"},
		{"bad type", "patterns:\n  - name: X\n    type: Galactic\n"},
		{"bad success", "patterns:\n  - name: X\n    type: Domain\n    success_rate: 1.5\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := catalog.Parse("doc", strings.NewReader(tc.doc))
			var perr *catalog.ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "doc", perr.Source)
		})
	}

	_, err := catalog.Parse("doc", strings.NewReader("patterns:\n  - name: X\n    type: Galactic\n"))
	var verr *types.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDefault(t *testing.T) {
	c, err := catalog.Default()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(c.Patterns), 3)

	names := make([]string, 0, len(c.Patterns))
	for _, e := range c.Patterns {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "Repository Pattern")
	assert.Contains(t, names, "Factory Pattern")
}

func TestLoadAndImport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	c, err := catalog.Load(path)
	require.NoError(t, err)

	backend := apitypestest.New()
	stored, err := catalog.Import(context.Background(), backend, c)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Contains(t, backend.Patterns, stored[0].ID)

	_, err = catalog.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestImport_StopsOnError(t *testing.T) {
	c, err := catalog.Default()
	require.NoError(t, err)

	backend := apitypestest.New()
	backend.Err = errors.New("store down")
	stored, err := catalog.Import(context.Background(), backend, c)
	assert.ErrorIs(t, err, backend.Err)
	assert.Empty(t, stored)
}
