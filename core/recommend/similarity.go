package recommend

import (
	"context"
	"math"
	"sync"
)

// similarityFunc scores two columns from their dot product and squared norms.
type similarityFunc func(dot, sqNormA, sqNormB float64) float64

var similarityFuncs = map[Metric]similarityFunc{
	MetricCosine:    cosineSimilarity,
	MetricEuclidean: euclideanSimilarity,
}

// cosineSimilarity is 0 when either vector is all zeros. Play counts are
// non-negative so the result is clamped into [0,1] against rounding drift.
func cosineSimilarity(dot, sqNormA, sqNormB float64) float64 {
	if sqNormA == 0 || sqNormB == 0 {
		return 0
	}
	return min(max(dot/math.Sqrt(sqNormA*sqNormB), 0), 1)
}

// euclideanSimilarity maps distance d to 1/(1+d).
func euclideanSimilarity(dot, sqNormA, sqNormB float64) float64 {
	d2 := sqNormA + sqNormB - 2*dot
	if d2 < 0 {
		d2 = 0
	}
	return 1 / (1 + math.Sqrt(d2))
}

// SimilarityIndex holds the precomputed k-nearest neighbours of every song
// column, for every metric, truncated to maxK.
type SimilarityIndex struct {
	maxK      int
	songIdx   map[int64]int
	neighbors map[Metric][][]ScoredSong
}

// BuildSimilarityIndex runs a batch k-NN over all columns of m. Columns are
// distributed over a pool of workers; each worker accumulates the dot
// products of its column against every co-listened column through the user
// rows, then scores all other columns under each metric.
func BuildSimilarityIndex(ctx context.Context, m *InteractionMatrix, maxK, workers int) (*SimilarityIndex, error) {
	n := len(m.songs)
	idx := &SimilarityIndex{
		maxK:      maxK,
		songIdx:   m.songIdx,
		neighbors: make(map[Metric][][]ScoredSong, len(similarityFuncs)),
	}
	for metric := range similarityFuncs {
		idx.neighbors[metric] = make([][]ScoredSong, n)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dots := make([]float64, n)
			for col := range jobs {
				idx.scoreColumn(m, col, dots)
			}
		}()
	}

feed:
	for col := 0; col < n; col++ {
		select {
		case jobs <- col:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return idx, nil
}

// scoreColumn fills the neighbour lists of column a. dots is worker-local
// scratch of length len(m.songs) and is left zeroed on return.
func (idx *SimilarityIndex) scoreColumn(m *InteractionMatrix, a int, dots []float64) {
	for _, u := range m.cols[a] {
		for _, s := range m.rows[u.idx] {
			dots[s.idx] += u.plays * s.plays
		}
	}

	for metric, score := range similarityFuncs {
		best := newTopK(idx.maxK, compareScored)
		for b := range m.songs {
			if b == a {
				continue
			}
			best.offer(ScoredSong{
				SongID: m.songs[b],
				Score:  score(dots[b], m.colSqNorm[a], m.colSqNorm[b]),
			})
		}
		idx.neighbors[metric][a] = best.sorted()
	}

	for _, u := range m.cols[a] {
		for _, s := range m.rows[u.idx] {
			dots[s.idx] = 0
		}
	}
}

// Neighbors returns up to k songs most similar to songID, best first, never
// including songID itself. Songs without interactions fail with
// ErrSongNotFound so the caller can fall back to content similarity.
func (idx *SimilarityIndex) Neighbors(songID int64, k int, metric Metric) ([]ScoredSong, error) {
	if k < 1 || k > idx.maxK {
		return nil, invalidParam("k must be between 1 and %d, got %d", idx.maxK, k)
	}
	lists, ok := idx.neighbors[metric]
	if !ok {
		return nil, invalidParam("unsupported metric %d", int(metric))
	}
	col, ok := idx.songIdx[songID]
	if !ok {
		return nil, songNotFound(songID)
	}
	list := lists[col]
	if len(list) > k {
		list = list[:k]
	}
	out := make([]ScoredSong, len(list))
	copy(out, list)
	return out, nil
}

// Has reports whether songID has a column in the index.
func (idx *SimilarityIndex) Has(songID int64) bool {
	_, ok := idx.songIdx[songID]
	return ok
}
