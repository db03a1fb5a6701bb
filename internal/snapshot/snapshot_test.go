package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testBundle struct {
	Ticker  string
	Horizon int
	Mean    []float64
	Created time.Time
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	runID := NewRunID()
	bundle := testBundle{
		Ticker:  "AAPL",
		Horizon: 12,
		Mean:    []float64{101.5, 102.0, 102.5},
		Created: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	}

	path, err := store.Write(runID, bundle)
	require.NoError(t, err)
	assert.Contains(t, path, runID)

	var loaded testBundle
	require.NoError(t, store.Load(runID, &loaded))
	assert.Equal(t, bundle.Ticker, loaded.Ticker)
	assert.Equal(t, bundle.Horizon, loaded.Horizon)
	assert.Equal(t, bundle.Mean, loaded.Mean)
	assert.True(t, bundle.Created.Equal(loaded.Created))
}

func TestStoreLoadMissingRun(t *testing.T) {
	store, err := NewStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	var out testBundle
	assert.Error(t, store.Load("no-such-run", &out))
}

func TestStoreList(t *testing.T) {
	store, err := NewStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	ids, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, ids)

	first := NewRunID()
	second := NewRunID()
	_, err = store.Write(first, testBundle{Ticker: "A"})
	require.NoError(t, err)
	_, err = store.Write(second, testBundle{Ticker: "B"})
	require.NoError(t, err)

	ids, err = store.List()
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Contains(t, ids, first)
	assert.Contains(t, ids, second)
}

func TestRunIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRunID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestR2ClientRequiresFullConfig(t *testing.T) {
	_, err := NewR2Client(context.Background(), R2Config{AccountID: "acc"}, zerolog.Nop())
	assert.Error(t, err)
}
