package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackChain_PicksFirstApplicable(t *testing.T) {
	snap := buildFixtureSnapshot(t)
	chain := NewFallbackChain(PopularityBayesian)

	tests := []struct {
		name     string
		songID   int64
		strategy string
		degraded bool
	}{
		{"song with interactions", 1787, StrategyCollaborative, false},
		{"cold song with genre", 55, StrategyContent, true},
		{"cold song without genre", 77, "popularity_bayesian", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := chain.Evaluate(snap, SimilarRequest{SongID: tt.songID, K: 3, Metric: MetricCosine})
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, res.Strategy)
			assert.Equal(t, tt.degraded, res.Degraded)
			assert.NotContains(t, ids(res.Songs), tt.songID)
			assert.LessOrEqual(t, len(res.Songs), 3)
			if tt.degraded {
				assert.NotEmpty(t, res.Reason)
			}
		})
	}
}

func TestFallbackChain_ColdSongGetsSameGenreFirst(t *testing.T) {
	snap := buildFixtureSnapshot(t)

	res, err := NewFallbackChain(PopularityBayesian).Evaluate(snap, SimilarRequest{SongID: 55, K: 2})
	require.NoError(t, err)
	// 1787 and 973 share song 55's genre; 973 is the more popular one.
	assert.Equal(t, []int64{973, 1787}, ids(res.Songs))
}

func TestFallbackChain_ErrorFallsThrough(t *testing.T) {
	snap := buildFixtureSnapshot(t)
	boom := errors.New("boom")
	always := func(*Snapshot, SimilarRequest) (bool, string) { return true, "" }

	chain := FallbackChain{
		{Name: "broken", Applies: always, Run: func(*Snapshot, SimilarRequest) ([]ScoredSong, error) { return nil, boom }},
		{Name: "fixed", Applies: always, Run: func(*Snapshot, SimilarRequest) ([]ScoredSong, error) {
			return []ScoredSong{{SongID: 1, Score: 1}}, nil
		}},
	}
	res, err := chain.Evaluate(snap, SimilarRequest{SongID: 1787, K: 1})
	require.NoError(t, err)
	assert.Equal(t, "fixed", res.Strategy)
	assert.True(t, res.Degraded)
	assert.Contains(t, res.Reason, "broken: boom")

	_, err = chain[:1].Evaluate(snap, SimilarRequest{SongID: 1787, K: 1})
	assert.ErrorIs(t, err, boom)

	_, err = FallbackChain{}.Evaluate(snap, SimilarRequest{SongID: 1787, K: 1})
	assert.ErrorIs(t, err, ErrSongNotFound)
}

func TestFallbackChain_NoInteractionsInGeneration(t *testing.T) {
	ds := fixtureDataset()
	ds.Interactions = nil
	snap, err := buildSnapshot(context.Background(), ds, testOptions().withDefaults(), 1, "test")
	require.NoError(t, err)
	require.False(t, snap.Collaborative())

	res, err := NewFallbackChain(PopularityFrequency).Evaluate(snap, SimilarRequest{SongID: 1787, K: 5})
	require.NoError(t, err)
	assert.Equal(t, StrategyContent, res.Strategy)
	assert.Contains(t, res.Reason, "no interaction data")
}
