package recommend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickhamzaokello/ColabFavourites/model"
)

func TestBuildSnapshot_ExcludesUnplayableSongs(t *testing.T) {
	snap := buildFixtureSnapshot(t)

	assert.Equal(t, []int64{42, 55, 77, 973, 1787}, snap.songIDs)
	_, ok := snap.song(99)
	assert.False(t, ok)
	assert.True(t, snap.Collaborative())
}

func TestBuildSnapshot_DuplicateSongsKeepFirst(t *testing.T) {
	ds := fixtureDataset()
	dup := fixtureSong(42, "Second Copy", nil)
	ds.Songs = append(ds.Songs, dup)

	snap, err := buildSnapshot(context.Background(), ds, testOptions().withDefaults(), 3, "dup")
	require.NoError(t, err)
	s, _ := snap.song(42)
	assert.Equal(t, "Sunday Praise", s.Title)
	assert.Equal(t, uint64(3), snap.Generation)
}

func TestBuildSnapshot_NoPlayableSongs(t *testing.T) {
	ds := Dataset{Songs: []*model.Song{{ID: 1, Title: "No Path", Available: true}}}
	_, err := buildSnapshot(context.Background(), ds, testOptions().withDefaults(), 1, "x")
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestSnapshot_Summary(t *testing.T) {
	snap := buildFixtureSnapshot(t)

	sum := snap.Summary(2)
	assert.True(t, sum.Stats.Ready)
	assert.Equal(t, uint64(1), sum.Stats.Generation)
	require.Len(t, sum.TopFrequency, 2)
	assert.Equal(t, int64(973), sum.TopFrequency[0].SongID)
	assert.Equal(t, "Karamoja Blues", sum.TopFrequency[0].Title)
	require.Len(t, sum.TopBayesian, 2)
	assert.False(t, sum.ExportedAt.IsZero())
}

func TestSnapshot_Stats(t *testing.T) {
	st := buildFixtureSnapshot(t).stats()

	assert.Equal(t, 7, st.MatrixRows)
	assert.Equal(t, 3, st.MatrixCols)
	assert.InDelta(t, 57.1429, st.Sparsity, 1e-9)
	assert.InDelta(t, 7.29, st.AvgPlaysPerUser, 1e-9)
	assert.InDelta(t, 17.0, st.AvgPlaysPerSong, 1e-9)
}
