package recommend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/patrickhamzaokello/ColabFavourites/logger"
	"github.com/patrickhamzaokello/ColabFavourites/model"
)

// State is the coordinator lifecycle.
type State int32

const (
	StateUninitialized State = iota
	StateBuilding
	StateReady
	StateRebuilding
	StateStopped
)

var stateNames = [...]string{"uninitialized", "building", "ready", "rebuilding", "stopped"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// PublishHook observes every newly published snapshot.
type PublishHook func(snap *Snapshot)

// Engine owns the current snapshot, rebuilds it from the storage collaborator
// and answers every recommendation query against it.
//
// Queries load the snapshot pointer once and never take a lock. Rebuilds are
// coalesced so at most one is in flight; the publishing swap and Stop are
// serialized by publishMu.
type Engine struct {
	opts   Options
	source *guardedSource
	cache  ResultCache
	chain  FallbackChain

	current    atomic.Pointer[Snapshot]
	state      atomic.Int32
	generation atomic.Uint64
	lastErr    atomic.Value // string

	rebuilds  singleflight.Group
	publishMu sync.Mutex
	hooks     []PublishHook

	baseCtx  context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewEngine creates an engine in the Uninitialized state. cache may be nil
// to disable result caching.
func NewEngine(src Source, opts Options, cache ResultCache) (*Engine, error) {
	if src == nil {
		return nil, errors.New("recommend: nil source")
	}
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		opts:     opts,
		source:   newGuardedSource(src, opts.BreakerFailures, opts.BreakerOpenTimeout),
		cache:    cache,
		chain:    NewFallbackChain(opts.DefaultPopularity),
		baseCtx:  ctx,
		cancel:   cancel,
		stopChan: make(chan struct{}),
	}
	e.lastErr.Store("")
	return e, nil
}

// OnPublish registers a hook run on the rebuild goroutine after each
// successful publication. Register hooks before Start.
func (e *Engine) OnPublish(hook PublishHook) {
	e.hooks = append(e.hooks, hook)
}

func (e *Engine) Options() Options { return e.opts }

func (e *Engine) State() State { return State(e.state.Load()) }

// Snapshot returns the currently published snapshot, or nil.
func (e *Engine) Snapshot() *Snapshot { return e.current.Load() }

// Start builds the first snapshot in the background and, when a rebuild
// interval is configured, rebuilds on that timer until Stop.
func (e *Engine) Start() {
	logger.Info("Recommendation engine starting",
		logger.Duration("rebuild_interval", e.opts.RebuildInterval))

	e.wg.Add(1)
	go e.loop()
}

func (e *Engine) loop() {
	defer e.wg.Done()

	e.trigger("startup")
	if e.opts.RebuildInterval <= 0 {
		<-e.stopChan
		return
	}

	ticker := time.NewTicker(e.opts.RebuildInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.trigger("timer")
		}
	}
}

// trigger runs a rebuild for a background reason and only logs the outcome.
func (e *Engine) trigger(reason string) {
	res, err := e.Rebuild(e.baseCtx)
	if err != nil {
		if !errors.Is(err, ErrStopped) && !errors.Is(err, context.Canceled) {
			logger.Error("Background rebuild failed",
				logger.String("trigger", reason), logger.ErrorField(err))
		}
		return
	}
	logger.Debug("Background rebuild finished",
		logger.String("trigger", reason),
		logger.Uint64("generation", res.Generation),
		logger.Bool("coalesced", res.Coalesced))
}

// TriggerRebuild requests a rebuild without waiting for it.
func (e *Engine) TriggerRebuild(reason string) {
	e.publishMu.Lock()
	if e.State() == StateStopped {
		e.publishMu.Unlock()
		return
	}
	e.wg.Add(1)
	e.publishMu.Unlock()
	go func() {
		defer e.wg.Done()
		e.trigger(reason)
	}()
}

// Rebuild pulls a fresh dataset, builds a new snapshot and publishes it.
// Concurrent calls share one run. The run itself is detached from ctx and
// bounded by the rebuild timeout, so a caller giving up does not abort it.
// On failure the previous snapshot stays in force.
func (e *Engine) Rebuild(ctx context.Context) (model.RebuildResult, error) {
	if e.State() == StateStopped {
		return model.RebuildResult{}, ErrStopped
	}
	ch := e.rebuilds.DoChan("rebuild", func() (any, error) {
		return e.rebuild()
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return model.RebuildResult{}, res.Err
		}
		out := res.Val.(model.RebuildResult)
		out.Coalesced = res.Shared
		if res.Shared {
			rebuildsTotal.WithLabelValues("coalesced").Inc()
		}
		return out, nil
	case <-ctx.Done():
		return model.RebuildResult{}, ctx.Err()
	}
}

func (e *Engine) rebuild() (model.RebuildResult, error) {
	ctx, cancel := context.WithTimeout(e.baseCtx, e.opts.RebuildTimeout)
	defer cancel()

	runID := uuid.NewString()
	generation := e.generation.Load() + 1
	start := time.Now()

	if !e.enterBuilding() {
		return model.RebuildResult{}, ErrStopped
	}
	logger.Info("Snapshot rebuild started",
		logger.String("run_id", runID),
		logger.Uint64("generation", generation))

	snap, err := e.pullAndBuild(ctx, generation, runID)
	if err != nil {
		e.leaveBuilding(err)
		rebuildsTotal.WithLabelValues("failed").Inc()
		rebuildDuration.Observe(time.Since(start).Seconds())
		logger.Error("Snapshot rebuild failed, previous snapshot stays in force",
			logger.String("run_id", runID),
			logger.Uint64("generation", generation),
			logger.Duration("took", time.Since(start)),
			logger.ErrorField(err))
		return model.RebuildResult{}, err
	}

	if err := e.publish(snap); err != nil {
		return model.RebuildResult{}, err
	}
	took := time.Since(start)
	rebuildsTotal.WithLabelValues("published").Inc()
	rebuildDuration.Observe(took.Seconds())
	snapshotGeneration.Set(float64(generation))
	logger.Info("Snapshot published",
		logger.String("run_id", runID),
		logger.Uint64("generation", generation),
		logger.Int("songs", len(snap.songIDs)),
		logger.Bool("collaborative", snap.Collaborative()),
		logger.Duration("took", took))

	for _, hook := range e.hooks {
		hook(snap)
	}
	return model.RebuildResult{RunID: runID, Generation: generation, Duration: took}, nil
}

func (e *Engine) pullAndBuild(ctx context.Context, generation uint64, runID string) (*Snapshot, error) {
	pullStart := time.Now()
	ds, err := e.source.fetchDataset(ctx)
	if err != nil {
		return nil, fmt.Errorf("pull dataset: %w", err)
	}
	logger.Info("Dataset pulled",
		logger.String("run_id", runID),
		logger.Int("songs", len(ds.Songs)),
		logger.Int("genres", len(ds.Genres)),
		logger.Int("interactions", len(ds.Interactions)),
		logger.Duration("took", time.Since(pullStart)))
	return buildSnapshot(ctx, ds, e.opts, generation, runID)
}

func (e *Engine) enterBuilding() bool {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()
	switch e.State() {
	case StateStopped:
		return false
	case StateUninitialized:
		e.state.Store(int32(StateBuilding))
	default:
		e.state.Store(int32(StateRebuilding))
	}
	return true
}

func (e *Engine) leaveBuilding(err error) {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()
	e.lastErr.Store(err.Error())
	switch {
	case e.State() == StateStopped:
	case e.current.Load() != nil:
		e.state.Store(int32(StateReady))
	default:
		e.state.Store(int32(StateUninitialized))
	}
}

// publish swaps in snap. It is the only writer of current besides Stop.
func (e *Engine) publish(snap *Snapshot) error {
	e.publishMu.Lock()
	defer e.publishMu.Unlock()
	if e.State() == StateStopped {
		return ErrStopped
	}
	e.current.Store(snap)
	e.generation.Store(snap.Generation)
	e.lastErr.Store("")
	e.state.Store(int32(StateReady))
	return nil
}

// Stop is terminal: it cancels any rebuild, waits for background work and
// releases the snapshot. Later queries fail with ErrStopped.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		logger.Info("Recommendation engine stopping")
		e.publishMu.Lock()
		e.state.Store(int32(StateStopped))
		e.current.Store(nil)
		e.publishMu.Unlock()

		e.cancel()
		close(e.stopChan)
		e.wg.Wait()
		logger.Info("Recommendation engine stopped")
	})
}

// acquire returns the snapshot a query will use for its whole duration.
func (e *Engine) acquire(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.State() == StateStopped {
		return nil, ErrStopped
	}
	snap := e.current.Load()
	if snap == nil {
		return nil, ErrEngineNotReady
	}
	return snap, nil
}

func observe(op string, start time.Time, err error) {
	queriesTotal.WithLabelValues(op, queryOutcome(err)).Inc()
	queryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ResolveMetric parses a wire metric name, using the configured default for "".
func (e *Engine) ResolveMetric(s string) (Metric, error) {
	if strings.TrimSpace(s) == "" {
		return e.opts.DefaultMetric, nil
	}
	return ParseMetric(s)
}

// ResolvePopularity parses a wire algorithm name, using the configured default for "".
func (e *Engine) ResolvePopularity(s string) (PopularityAlgorithm, error) {
	if strings.TrimSpace(s) == "" {
		return e.opts.DefaultPopularity, nil
	}
	return ParsePopularity(s)
}

// RecommendSimilar answers k-NN collaborative filtering for songID. A song
// without interactions or a generation without any falls back to content
// similarity and then popularity; the result names the strategy used.
// k == 0 means the configured default.
func (e *Engine) RecommendSimilar(ctx context.Context, songID int64, k int, metric Metric) (res *model.SimilarSongsResult, err error) {
	start := time.Now()
	defer func() { observe("similar", start, err) }()

	if songID <= 0 {
		return nil, invalidParam("song id must be positive, got %d", songID)
	}
	if k, err = checkBound("k", k, e.opts.DefaultK, e.opts.MaxK); err != nil {
		return nil, err
	}
	if _, ok := metricNames[metric]; !ok {
		return nil, invalidParam("unsupported metric %d", int(metric))
	}
	snap, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("similar:%d:%d:%s", songID, k, metric)
	return cached(ctx, e, snap.Generation, key, func() (*model.SimilarSongsResult, error) {
		if _, ok := snap.song(songID); !ok {
			return nil, songNotFound(songID)
		}
		cr, err := e.chain.Evaluate(snap, SimilarRequest{SongID: songID, K: k, Metric: metric})
		if err != nil {
			return nil, err
		}
		if cr.Degraded {
			fallbacksTotal.WithLabelValues(cr.Strategy).Inc()
			logger.Warn("Similar songs served by fallback strategy",
				logger.Int64("song_id", songID),
				logger.String("strategy", cr.Strategy),
				logger.String("reason", cr.Reason))
		}
		return &model.SimilarSongsResult{
			SongID:         songID,
			SimilarSongs:   snap.songInfos(cr.Songs),
			Algorithm:      cr.Strategy,
			Metric:         metric.String(),
			Degraded:       cr.Degraded,
			FallbackReason: cr.Reason,
			Generation:     snap.Generation,
		}, nil
	})
}

// RecommendContent ranks songs by genre similarity to the song named by
// query, which is either a numeric song id or free-text title resolved to
// the best search match.
func (e *Engine) RecommendContent(ctx context.Context, query string, n int) (res *model.ContentBasedResult, err error) {
	start := time.Now()
	defer func() { observe("content", start, err) }()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalidParam("song title or id is required")
	}
	if len([]rune(query)) > e.opts.MaxQueryLength {
		return nil, invalidParam("query longer than %d characters", e.opts.MaxQueryLength)
	}
	if n, err = checkBound("n", n, e.opts.DefaultN, e.opts.MaxN); err != nil {
		return nil, err
	}
	snap, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("content:%d:%s", n, foldText(query))
	return cached(ctx, e, snap.Generation, key, func() (*model.ContentBasedResult, error) {
		songID, err := snap.resolveSong(query)
		if err != nil {
			return nil, err
		}
		ranked, degraded, err := snap.content.Similar(songID, n, snap.popularity.scoreOf(PopularityBayesian))
		if err != nil {
			return nil, err
		}
		if degraded {
			logger.Warn("Content recommendation without genre, ranked by popularity",
				logger.Int64("song_id", songID))
		}
		seed, _ := snap.song(songID)
		return &model.ContentBasedResult{
			QueryTitle:      query,
			MatchedSongID:   songID,
			MatchedTitle:    seed.Title,
			Recommendations: snap.songInfos(ranked),
			Algorithm:       StrategyContent,
			Degraded:        degraded,
			Generation:      snap.Generation,
		}, nil
	})
}

// resolveSong maps a numeric id or a title to a catalog song.
func (s *Snapshot) resolveSong(query string) (int64, error) {
	if id, err := strconv.ParseInt(query, 10, 64); err == nil {
		if _, ok := s.song(id); ok {
			return id, nil
		}
		return 0, songNotFound(id)
	}
	hit, ok := s.search.BestMatch(query)
	if !ok {
		return 0, &Error{Kind: KindSongNotFound, Message: fmt.Sprintf("no song matches %q", query)}
	}
	return hit.SongID, nil
}

// RecommendPopular returns the top songs under alg. limit == 0 means the
// configured default.
func (e *Engine) RecommendPopular(ctx context.Context, limit int, alg PopularityAlgorithm) (res *model.PopularSongsResult, err error) {
	start := time.Now()
	defer func() { observe("popular", start, err) }()

	if limit, err = checkBound("limit", limit, e.opts.DefaultN, e.opts.MaxN); err != nil {
		return nil, err
	}
	if _, ok := popularityNames[alg]; !ok {
		return nil, invalidParam("unsupported popularity algorithm %d", int(alg))
	}
	snap, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("popular:%d:%s", limit, alg)
	return cached(ctx, e, snap.Generation, key, func() (*model.PopularSongsResult, error) {
		top, err := snap.popularity.Top(limit, alg)
		if err != nil {
			return nil, err
		}
		return &model.PopularSongsResult{
			PopularSongs: snap.songInfos(top),
			Algorithm:    alg.String(),
			Limit:        limit,
			Generation:   snap.Generation,
		}, nil
	})
}

// SearchSongs finds songs by title. A blank query yields no results.
func (e *Engine) SearchSongs(ctx context.Context, query string, limit int) (res *model.SearchResult, err error) {
	start := time.Now()
	defer func() { observe("search", start, err) }()

	if len([]rune(query)) > e.opts.MaxQueryLength {
		return nil, invalidParam("query longer than %d characters", e.opts.MaxQueryLength)
	}
	if limit, err = checkBound("limit", limit, e.opts.DefaultN, e.opts.MaxN); err != nil {
		return nil, err
	}
	snap, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("search:%d:%s", limit, foldText(query))
	return cached(ctx, e, snap.Generation, key, func() (*model.SearchResult, error) {
		hits, err := snap.search.Search(query, limit)
		if err != nil {
			return nil, err
		}
		return &model.SearchResult{
			Query:      query,
			Results:    snap.songInfos(hits),
			TotalFound: len(hits),
			Generation: snap.Generation,
		}, nil
	})
}

// GetSong looks a song up in storage. Unavailable or pathless songs are
// reported as not found.
func (e *Engine) GetSong(ctx context.Context, songID int64) (res *model.SongDetails, err error) {
	start := time.Now()
	defer func() { observe("get_song", start, err) }()

	if songID <= 0 {
		return nil, invalidParam("song id must be positive, got %d", songID)
	}
	if e.State() == StateStopped {
		return nil, ErrStopped
	}
	song, err := e.source.FetchSong(ctx, songID)
	if err != nil {
		return nil, err
	}
	if song == nil || !song.Playable() {
		return nil, songNotFound(songID)
	}
	details := &model.SongDetails{
		SongID:    song.ID,
		Title:     song.Title,
		Artist:    song.Artist,
		Duration:  song.Duration,
		CreatedAt: song.CreatedAt,
	}
	if snap := e.current.Load(); snap != nil {
		details.Genre = snap.genreName(song)
	}
	return details, nil
}

// UserHistory lists a user's songs by plays desc from the current snapshot.
func (e *Engine) UserHistory(ctx context.Context, userID string, limit int) (res *model.UserHistoryResult, err error) {
	start := time.Now()
	defer func() { observe("user_history", start, err) }()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, invalidParam("user id is required")
	}
	if limit, err = checkBound("limit", limit, e.opts.DefaultN, e.opts.MaxN); err != nil {
		return nil, err
	}
	snap, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}

	var row []SongPlays
	ok := false
	if snap.matrix != nil {
		row, ok = snap.matrix.UserRow(userID)
	}
	if !ok {
		return nil, &Error{Kind: KindUserNotFound, Message: fmt.Sprintf("user %q has no play history", userID)}
	}

	out := &model.UserHistoryResult{UserID: userID, Generation: snap.Generation}
	for _, sp := range row {
		out.TotalPlays += int64(sp.Plays)
	}
	if len(row) > limit {
		row = row[:limit]
	}
	out.History = make([]model.PlayHistoryEntry, len(row))
	for i, sp := range row {
		entry := model.PlayHistoryEntry{SongID: sp.SongID, Plays: sp.Plays}
		if song, ok := snap.song(sp.SongID); ok {
			entry.Title = song.Title
			entry.Genre = snap.genreName(song)
		}
		out.History[i] = entry
	}
	return out, nil
}

// Stats never fails: without a snapshot it reports Ready=false.
func (e *Engine) Stats() model.SystemStats {
	state := e.State()
	var st model.SystemStats
	if snap := e.current.Load(); snap != nil {
		st = snap.stats()
		st.Ready = true
	}
	st.State = state.String()
	st.LastRebuildError, _ = e.lastErr.Load().(string)
	return st
}

// Health pings storage and reports the engine state.
func (e *Engine) Health(ctx context.Context) model.Health {
	h := model.Health{Status: "healthy", Database: "connected", Engine: e.State().String()}
	if err := e.source.Ping(ctx); err != nil {
		logger.Warn("Storage health check failed", logger.ErrorField(err))
		h.Database = "unavailable"
		h.Status = "degraded"
	}
	if e.current.Load() == nil {
		h.Status = "degraded"
	}
	return h
}
