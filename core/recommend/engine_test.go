package recommend

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickhamzaokello/ColabFavourites/model"
)

func readyEngine(t *testing.T, src Source, cache ResultCache, opts Options) *Engine {
	t.Helper()
	e := newTestEngine(t, src, opts, cache)
	_, err := e.Rebuild(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateReady, e.State())
	return e
}

func TestEngine_NotReadyBeforeFirstBuild(t *testing.T) {
	e := newTestEngine(t, newFakeSource(fixtureDataset()), testOptions(), nil)
	ctx := context.Background()

	assert.Equal(t, StateUninitialized, e.State())

	_, err := e.RecommendSimilar(ctx, 1787, 5, MetricCosine)
	assert.ErrorIs(t, err, ErrEngineNotReady)
	_, err = e.RecommendPopular(ctx, 5, PopularityBayesian)
	assert.ErrorIs(t, err, ErrEngineNotReady)
	_, err = e.SearchSongs(ctx, "karamoja", 5)
	assert.ErrorIs(t, err, ErrEngineNotReady)

	st := e.Stats()
	assert.False(t, st.Ready)
	assert.Equal(t, "uninitialized", st.State)
}

func TestEngine_ValidatesBeforeReadiness(t *testing.T) {
	e := newTestEngine(t, newFakeSource(fixtureDataset()), testOptions(), nil)
	ctx := context.Background()

	_, err := e.RecommendSimilar(ctx, 1787, 51, MetricCosine)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = e.RecommendSimilar(ctx, -3, 5, MetricCosine)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = e.RecommendPopular(ctx, 101, PopularityFrequency)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = e.SearchSongs(ctx, strings.Repeat("x", 500), 5)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = e.RecommendContent(ctx, "  ", 5)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestEngine_RecommendSimilarEndToEnd(t *testing.T) {
	e := readyEngine(t, newFakeSource(fixtureDataset()), nil, testOptions())

	res, err := e.RecommendSimilar(context.Background(), 1787, 5, MetricCosine)
	require.NoError(t, err)
	assert.Equal(t, StrategyCollaborative, res.Algorithm)
	assert.False(t, res.Degraded)
	assert.Equal(t, uint64(1), res.Generation)
	require.NotEmpty(t, res.SimilarSongs)
	assert.Equal(t, int64(973), res.SimilarSongs[0].SongID)
	assert.Equal(t, "Karamoja Blues", res.SimilarSongs[0].Title)
	assert.Equal(t, "Afrobeat", res.SimilarSongs[0].Genre)
	for _, s := range res.SimilarSongs {
		assert.NotEqual(t, int64(1787), s.SongID)
	}
}

func TestEngine_RecommendSimilarColdStart(t *testing.T) {
	e := readyEngine(t, newFakeSource(fixtureDataset()), nil, testOptions())
	ctx := context.Background()

	res, err := e.RecommendSimilar(ctx, 55, 0, MetricCosine)
	require.NoError(t, err)
	assert.Equal(t, StrategyContent, res.Algorithm)
	assert.True(t, res.Degraded)
	assert.NotEmpty(t, res.FallbackReason)

	_, err = e.RecommendSimilar(ctx, 99, 5, MetricCosine)
	assert.ErrorIs(t, err, ErrSongNotFound, "unavailable songs are not served")
	_, err = e.RecommendSimilar(ctx, 123456, 5, MetricCosine)
	assert.ErrorIs(t, err, ErrSongNotFound)
}

func TestEngine_RecommendContent(t *testing.T) {
	e := readyEngine(t, newFakeSource(fixtureDataset()), nil, testOptions())
	ctx := context.Background()

	byTitle, err := e.RecommendContent(ctx, "karamoja nights", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1787), byTitle.MatchedSongID)
	assert.Equal(t, "Karamoja Nights", byTitle.MatchedTitle)
	assert.Len(t, byTitle.Recommendations, 3)
	assert.Equal(t, int64(973), byTitle.Recommendations[0].SongID)

	byID, err := e.RecommendContent(ctx, "1787", 3)
	require.NoError(t, err)
	assert.Equal(t, byTitle.Recommendations, byID.Recommendations)

	noGenre, err := e.RecommendContent(ctx, "77", 3)
	require.NoError(t, err)
	assert.True(t, noGenre.Degraded)

	_, err = e.RecommendContent(ctx, "zzzz qqqq", 3)
	assert.ErrorIs(t, err, ErrSongNotFound)
}

func TestEngine_RecommendPopularAndSearch(t *testing.T) {
	e := readyEngine(t, newFakeSource(fixtureDataset()), nil, testOptions())
	ctx := context.Background()

	pop, err := e.RecommendPopular(ctx, 0, PopularityFrequency)
	require.NoError(t, err)
	assert.Equal(t, 10, pop.Limit)
	assert.Len(t, pop.PopularSongs, 5, "five playable songs")
	assert.Equal(t, int64(973), pop.PopularSongs[0].SongID)

	found, err := e.SearchSongs(ctx, "KARAMOJA", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, found.TotalFound)
	for _, s := range found.Results {
		assert.Contains(t, strings.ToLower(s.Title), "karamoja")
	}

	empty, err := e.SearchSongs(ctx, "", 5)
	require.NoError(t, err)
	assert.Empty(t, empty.Results)
}

func TestEngine_GetSong(t *testing.T) {
	src := newFakeSource(fixtureDataset())
	e := readyEngine(t, src, nil, testOptions())
	ctx := context.Background()

	song, err := e.GetSong(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Sunday Praise", song.Title)
	assert.Equal(t, "Gospel", song.Genre)

	_, err = e.GetSong(ctx, 99)
	assert.ErrorIs(t, err, ErrSongNotFound)
	_, err = e.GetSong(ctx, 5000)
	assert.ErrorIs(t, err, ErrSongNotFound)

	src.setFail(errStorageDown)
	_, err = e.GetSong(ctx, 42)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestEngine_UserHistory(t *testing.T) {
	e := readyEngine(t, newFakeSource(fixtureDataset()), nil, testOptions())
	ctx := context.Background()

	h, err := e.UserHistory(ctx, "u4", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(12), h.TotalPlays)
	require.Len(t, h.History, 2)
	assert.Equal(t, model.PlayHistoryEntry{SongID: 973, Title: "Karamoja Blues", Genre: "Afrobeat", Plays: 8}, h.History[0])

	h, err = e.UserHistory(ctx, "u6", 10)
	require.NoError(t, err)
	assert.Len(t, h.History, 1, "plays of unavailable songs are not history")

	_, err = e.UserHistory(ctx, "ghost", 10)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestEngine_StatsAndHealth(t *testing.T) {
	src := newFakeSource(fixtureDataset())
	e := readyEngine(t, src, nil, testOptions())

	st := e.Stats()
	assert.True(t, st.Ready)
	assert.Equal(t, "ready", st.State)
	assert.Equal(t, uint64(1), st.Generation)
	assert.Equal(t, 5, st.SongCount)
	assert.Equal(t, 12, st.InteractionCount)
	assert.Equal(t, 7, st.UserCount)
	assert.Equal(t, int64(51), st.TotalPlays)
	assert.Equal(t, 2, st.GenreCount)
	assert.True(t, st.CollaborativeAvailable)
	assert.False(t, st.BuiltAt.IsZero())

	h := e.Health(context.Background())
	assert.Equal(t, "healthy", h.Status)

	src.setFail(errStorageDown)
	h = e.Health(context.Background())
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, "unavailable", h.Database)
}

func TestEngine_RebuildFailureKeepsSnapshot(t *testing.T) {
	src := newFakeSource(fixtureDataset())
	e := readyEngine(t, src, nil, testOptions())
	ctx := context.Background()

	src.setFail(errStorageDown)
	_, err := e.Rebuild(ctx)
	require.ErrorIs(t, err, ErrUpstreamUnavailable)

	assert.Equal(t, StateReady, e.State())
	st := e.Stats()
	assert.Equal(t, uint64(1), st.Generation)
	assert.Contains(t, st.LastRebuildError, "connection refused")

	res, err := e.RecommendSimilar(ctx, 1787, 5, MetricCosine)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Generation)

	src.setFail(nil)
	out, err := e.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), out.Generation)
	assert.Empty(t, e.Stats().LastRebuildError)
}

func TestEngine_FirstBuildFailureStaysUninitialized(t *testing.T) {
	src := newFakeSource(fixtureDataset())
	src.setFail(errStorageDown)
	e := newTestEngine(t, src, testOptions(), nil)

	_, err := e.Rebuild(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateUninitialized, e.State())
}

func TestEngine_EmptyCatalogFailsBuild(t *testing.T) {
	e := newTestEngine(t, newFakeSource(Dataset{}), testOptions(), nil)

	_, err := e.Rebuild(context.Background())
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestEngine_ConcurrentRebuildsCoalesce(t *testing.T) {
	src := newFakeSource(fixtureDataset())
	src.gate = make(chan struct{})
	e := newTestEngine(t, src, testOptions(), nil)

	const callers = 4
	results := make([]model.RebuildResult, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.Rebuild(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return e.State() == StateBuilding }, time.Second, time.Millisecond)
	// let every caller join the in-flight run before releasing it
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].RunID, results[i].RunID)
		assert.Equal(t, uint64(1), results[i].Generation)
		assert.True(t, results[i].Coalesced)
	}
	assert.Equal(t, int32(1), src.pulls.Load())
}

func TestEngine_RebuildDetachedFromCaller(t *testing.T) {
	src := newFakeSource(fixtureDataset())
	src.gate = make(chan struct{})
	e := newTestEngine(t, src, testOptions(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.Rebuild(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(src.gate)
	require.Eventually(t, func() bool { return e.State() == StateReady }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), e.Stats().Generation)
}

// Every title of generation n carries the prefix "v<n> ", so any result
// mixing generations would be caught.
func TestEngine_QueriesSeeOneGeneration(t *testing.T) {
	base := fixtureDataset()
	src := &fakeSource{build: func(version int) Dataset {
		ds := base
		ds.Songs = make([]*model.Song, len(base.Songs))
		for i, s := range base.Songs {
			c := *s
			c.Title = fmt.Sprintf("v%d %s", version, s.Title)
			ds.Songs[i] = &c
		}
		return ds
	}}
	e := readyEngine(t, src, nil, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				res, err := e.RecommendSimilar(ctx, 1787, 5, MetricCosine)
				if err != nil {
					continue
				}
				prefix := fmt.Sprintf("v%d ", res.Generation)
				for _, s := range res.SimilarSongs {
					assert.True(t, strings.HasPrefix(s.Title, prefix), "%q in generation %d", s.Title, res.Generation)
				}
			}
		}()
	}

	for i := 0; i < 5; i++ {
		_, err := e.Rebuild(context.Background())
		require.NoError(t, err)
	}
	cancel()
	wg.Wait()
	assert.Equal(t, uint64(6), e.Stats().Generation)
}

func TestEngine_CacheScopedByGeneration(t *testing.T) {
	cache := newMapCache()
	opts := testOptions()
	opts.CacheTTL = time.Minute
	e := readyEngine(t, newFakeSource(fixtureDataset()), cache, opts)
	ctx := context.Background()

	first, err := e.RecommendPopular(ctx, 3, PopularityBayesian)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.len())

	again, err := e.RecommendPopular(ctx, 3, PopularityBayesian)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, cache.len())

	_, err = e.Rebuild(ctx)
	require.NoError(t, err)
	fresh, err := e.RecommendPopular(ctx, 3, PopularityBayesian)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), fresh.Generation)
	assert.Equal(t, 2, cache.len())
}

func TestEngine_PublishHook(t *testing.T) {
	e := newTestEngine(t, newFakeSource(fixtureDataset()), testOptions(), nil)
	var got []uint64
	e.OnPublish(func(s *Snapshot) { got = append(got, s.Generation) })

	for i := 0; i < 2; i++ {
		_, err := e.Rebuild(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, []uint64{1, 2}, got)
}

func TestEngine_StartAndStop(t *testing.T) {
	opts := testOptions()
	opts.RebuildInterval = 20 * time.Millisecond
	src := newFakeSource(fixtureDataset())
	e := newTestEngine(t, src, opts, nil)

	e.Start()
	require.Eventually(t, func() bool { return e.Stats().Generation >= 2 }, 2*time.Second, 5*time.Millisecond)

	e.Stop()
	assert.Equal(t, StateStopped, e.State())
	_, err := e.RecommendSimilar(context.Background(), 1787, 5, MetricCosine)
	assert.ErrorIs(t, err, ErrStopped)
	_, err = e.Rebuild(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
	assert.False(t, e.Stats().Ready)

	e.Stop()
}

func TestEngine_QueryHonorsCancelledContext(t *testing.T) {
	e := readyEngine(t, newFakeSource(fixtureDataset()), nil, testOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.RecommendPopular(ctx, 5, PopularityBayesian)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_WatchDatasetTriggersRebuild(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/dataset.json"
	require.NoError(t, writeFile(path, "v1"))

	e := readyEngine(t, newFakeSource(fixtureDataset()), nil, testOptions())
	require.NoError(t, e.WatchDataset(path, 50*time.Millisecond))

	require.NoError(t, writeFile(path, "v2"))
	require.Eventually(t, func() bool { return e.Stats().Generation >= 2 }, 5*time.Second, 10*time.Millisecond)
}
