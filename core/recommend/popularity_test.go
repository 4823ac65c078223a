package recommend

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickhamzaokello/ColabFavourites/model"
)

// Song 1 has 2 plays from a single listener; song 2 has 50 plays spread
// over 20 listeners; song 3 was never played.
func popularityFixture(t *testing.T) *PopularityRanker {
	t.Helper()
	rows := []model.Interaction{{UserID: "solo", SongID: 1, Plays: 2}}
	for i := 0; i < 20; i++ {
		plays := 2
		if i < 10 {
			plays = 3
		}
		rows = append(rows, model.Interaction{UserID: fmt.Sprintf("fan-%02d", i), SongID: 2, Plays: plays})
	}
	m, err := BuildMatrix(rows, nil)
	require.NoError(t, err)
	return BuildPopularityRanker([]int64{1, 2, 3}, m, 10.0)
}

func TestPopularity_BayesianSuppressesLowSample(t *testing.T) {
	p := popularityFixture(t)

	top, err := p.Top(10, PopularityBayesian)
	require.NoError(t, err)
	require.Len(t, top, 3)

	rank := make(map[int64]int)
	for i, s := range top {
		rank[s.SongID] = i
	}
	assert.Less(t, rank[2], rank[1], "broadly played song must outrank the single heavy listener")

	// C = mean(2/1, 50/20) = 2.25
	assert.InDelta(t, 2.25, p.Mean(), 1e-12)
	s1, err := p.Popularity(1, PopularityBayesian)
	require.NoError(t, err)
	assert.InDelta(t, (2.0/12)*2+(10.0/12)*2.25, s1, 1e-12)
}

func TestPopularity_ZeroPlays(t *testing.T) {
	p := popularityFixture(t)

	b, err := p.Popularity(3, PopularityBayesian)
	require.NoError(t, err)
	assert.Equal(t, p.Mean(), b, "an unplayed song scores exactly C")

	f, err := p.Popularity(3, PopularityFrequency)
	require.NoError(t, err)
	assert.Zero(t, f)
}

func TestPopularity_Frequency(t *testing.T) {
	p := popularityFixture(t)

	top, err := p.Top(2, PopularityFrequency)
	require.NoError(t, err)
	assert.Equal(t, []ScoredSong{{SongID: 2, Score: 50}, {SongID: 1, Score: 2}}, top)
}

func TestPopularity_Errors(t *testing.T) {
	p := popularityFixture(t)

	_, err := p.Top(0, PopularityBayesian)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = p.Top(5, PopularityAlgorithm(7))
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = p.Popularity(404, PopularityFrequency)
	assert.ErrorIs(t, err, ErrSongNotFound)
}

func TestPopularity_NoInteractions(t *testing.T) {
	p := BuildPopularityRanker([]int64{5, 3, 9}, nil, 10)

	top, err := p.Top(3, PopularityBayesian)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5, 9}, ids(top), "all scores equal C, ties by song id")
}

func TestBayesianScore_MonotonicWhenAboveMean(t *testing.T) {
	const m, c = 10.0, 2.0
	prev := bayesianScore(playStats{}, m, c)
	assert.Equal(t, c, prev)

	// R = 3 >= C for every step
	for listeners := 1; listeners <= 50; listeners++ {
		s := bayesianScore(playStats{plays: float64(3 * listeners), listeners: listeners}, m, c)
		assert.GreaterOrEqual(t, s, prev)
		assert.LessOrEqual(t, s, 3.0)
		prev = s
	}
}
