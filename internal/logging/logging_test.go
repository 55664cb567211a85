package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MereWhiplash/decision-cogitator/internal/logging"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New("debug", logging.FormatJSON, &buf)
	log.Debug().Str("decision_point", "integration_strategy").Msg("scored")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "integration_strategy", line["decision_point"])
	assert.Contains(t, line, "time")
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New("warn", logging.FormatConsole, &buf)
	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_UnknownLevel(t *testing.T) {
	log := logging.New("chatty", logging.FormatJSON, &bytes.Buffer{})
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())

	log = logging.New("", logging.FormatJSON, &bytes.Buffer{})
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}
