package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSetsLevel(t *testing.T) {
	New(Config{Level: "warn"})
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	New(Config{Level: "debug"})
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	// Unknown levels fall back to info
	New(Config{Level: "bogus"})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestComponentTagsEvents(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	logger := Component(base, "pipeline")
	logger.Info().Msg("run started")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "pipeline", event["component"])
	assert.Equal(t, "run started", event["message"])
}

func TestComponentDoesNotMutateBase(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	Component(base, "charts")
	base.Info().Msg("plain")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	_, tagged := event["component"]
	assert.False(t, tagged)
}
