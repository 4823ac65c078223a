package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/patrickhamzaokello/ColabFavourites/logger"
	"github.com/patrickhamzaokello/ColabFavourites/model"
)

// Dataset is one full pull from the storage collaborator.
type Dataset struct {
	Songs        []*model.Song
	Genres       []*model.Genre
	Interactions []model.Interaction
}

// Snapshot is one immutable generation of every derived index. It is never
// modified after buildSnapshot returns, so queries may share it freely.
type Snapshot struct {
	Generation uint64
	RunID      string
	BuiltAt    time.Time

	songs   map[int64]*model.Song
	songIDs []int64 // ascending
	genres  map[int64]*model.Genre

	matrix     *InteractionMatrix // nil when no interactions qualified
	similarity *SimilarityIndex   // nil when matrix is nil
	content    *ContentIndex
	popularity *PopularityRanker
	search     *SearchIndex
}

// buildSnapshot derives every index from ds. Zero playable songs fail the
// build with ErrEmptyDataset; zero qualifying interactions only disable
// collaborative filtering for this generation.
func buildSnapshot(ctx context.Context, ds Dataset, opts Options, generation uint64, runID string) (*Snapshot, error) {
	snap := &Snapshot{
		Generation: generation,
		RunID:      runID,
		songs:      make(map[int64]*model.Song, len(ds.Songs)),
		genres:     make(map[int64]*model.Genre, len(ds.Genres)),
	}

	for _, s := range ds.Songs {
		if s == nil || !s.Playable() {
			continue
		}
		if _, dup := snap.songs[s.ID]; dup {
			continue
		}
		snap.songs[s.ID] = s
		snap.songIDs = append(snap.songIDs, s.ID)
	}
	if len(snap.songIDs) == 0 {
		return nil, emptyDataset("songs")
	}
	slices.Sort(snap.songIDs)
	for _, g := range ds.Genres {
		if g != nil {
			snap.genres[g.ID] = g
		}
	}
	ordered := make([]*model.Song, len(snap.songIDs))
	for i, id := range snap.songIDs {
		ordered[i] = snap.songs[id]
	}

	phase := time.Now()
	matrix, err := BuildMatrix(ds.Interactions, snap.songs)
	switch {
	case errors.Is(err, ErrEmptyDataset):
		logger.Warn("No qualifying interactions, collaborative filtering disabled for this generation",
			logger.Uint64("generation", generation))
	case err != nil:
		return nil, fmt.Errorf("build interaction matrix: %w", err)
	default:
		snap.matrix = matrix
		users, cols := matrix.Shape()
		logger.Info("Interaction matrix built",
			logger.Int("users", users),
			logger.Int("songs", cols),
			logger.Int("nnz", matrix.NNZ()),
			logger.Duration("took", time.Since(phase)))

		phase = time.Now()
		snap.similarity, err = BuildSimilarityIndex(ctx, matrix, opts.MaxK, opts.SimilarityWorkers)
		if err != nil {
			return nil, fmt.Errorf("build similarity index: %w", err)
		}
		logger.Info("Similarity index built", logger.Duration("took", time.Since(phase)))
	}

	phase = time.Now()
	snap.content = BuildContentIndex(ordered, snap.genres)
	snap.popularity = BuildPopularityRanker(snap.songIDs, snap.matrix, opts.ConfidenceWeight)
	snap.search = BuildSearchIndex(ordered, opts.FuzzyThreshold, opts.MaxQueryLength)
	logger.Info("Content, popularity and search indices built", logger.Duration("took", time.Since(phase)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap.BuiltAt = time.Now().UTC()
	return snap, nil
}

// Collaborative reports whether this generation can answer k-NN queries.
func (s *Snapshot) Collaborative() bool { return s.similarity != nil }

func (s *Snapshot) song(id int64) (*model.Song, bool) {
	song, ok := s.songs[id]
	return song, ok
}

func (s *Snapshot) genreName(song *model.Song) string {
	if song == nil || song.GenreID == nil {
		return ""
	}
	if g, ok := s.genres[*song.GenreID]; ok {
		return g.Name
	}
	return ""
}

func (s *Snapshot) songInfo(r ScoredSong) model.SongInfo {
	info := model.SongInfo{SongID: r.SongID, Score: round(r.Score, 4)}
	if song, ok := s.songs[r.SongID]; ok {
		info.Title = song.Title
		info.Artist = song.Artist
		info.Genre = s.genreName(song)
	}
	return info
}

func (s *Snapshot) songInfos(ranked []ScoredSong) []model.SongInfo {
	out := make([]model.SongInfo, len(ranked))
	for i, r := range ranked {
		out[i] = s.songInfo(r)
	}
	return out
}

// stats describes the snapshot alone; engine state is filled in by the caller.
func (s *Snapshot) stats() model.SystemStats {
	st := model.SystemStats{
		Generation:             s.Generation,
		BuiltAt:                s.BuiltAt,
		SongCount:              len(s.songIDs),
		GenreCount:             len(s.genres),
		CollaborativeAvailable: s.Collaborative(),
	}
	if s.matrix == nil {
		return st
	}
	users, cols := s.matrix.Shape()
	total := s.matrix.TotalPlays()
	st.InteractionCount = s.matrix.NNZ()
	st.UserCount = users
	st.TotalPlays = total
	st.MatrixRows = users
	st.MatrixCols = cols
	st.Sparsity = round(s.matrix.Density(), 4)
	st.AvgPlaysPerUser = round(float64(total)/float64(users), 2)
	st.AvgPlaysPerSong = round(float64(total)/float64(cols), 2)
	return st
}

// Summary is the exportable digest of this generation.
func (s *Snapshot) Summary(n int) model.SnapshotSummary {
	sum := model.SnapshotSummary{Stats: s.stats(), ExportedAt: time.Now().UTC()}
	sum.Stats.Ready = true
	if top, err := s.popularity.Top(n, PopularityBayesian); err == nil {
		sum.TopBayesian = s.songInfos(top)
	}
	if top, err := s.popularity.Top(n, PopularityFrequency); err == nil {
		sum.TopFrequency = s.songInfos(top)
	}
	return sum
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
