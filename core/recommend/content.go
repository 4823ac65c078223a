package recommend

import (
	"cmp"
	"math"
	"slices"

	"github.com/patrickhamzaokello/ColabFavourites/model"
)

// ContentIndex compares songs by their genre encoding. Vectors are stored as
// the sorted list of hot feature positions so a song with several genres is
// multi-hot without changing the similarity.
type ContentIndex struct {
	songs    []int64         // every catalog song, ascending
	features map[int64][]int // only songs with a known genre
}

// BuildContentIndex encodes each song's genre as a one-hot vector over the
// known genres. Songs whose genre is unset or unknown get no vector.
func BuildContentIndex(songs []*model.Song, genres map[int64]*model.Genre) *ContentIndex {
	genreIDs := make([]int64, 0, len(genres))
	for id := range genres {
		genreIDs = append(genreIDs, id)
	}
	slices.Sort(genreIDs)
	position := make(map[int64]int, len(genreIDs))
	for i, id := range genreIDs {
		position[id] = i
	}

	c := &ContentIndex{
		songs:    make([]int64, 0, len(songs)),
		features: make(map[int64][]int),
	}
	for _, s := range songs {
		c.songs = append(c.songs, s.ID)
		if s.GenreID == nil {
			continue
		}
		if p, ok := position[*s.GenreID]; ok {
			c.features[s.ID] = []int{p}
		}
	}
	slices.Sort(c.songs)
	return c
}

func (c *ContentIndex) has(songID int64) bool {
	_, ok := slices.BinarySearch(c.songs, songID)
	return ok
}

// HasGenre reports whether songID has a content vector.
func (c *ContentIndex) HasGenre(songID int64) bool {
	_, ok := c.features[songID]
	return ok
}

// contentCosine is the cosine of two binary vectors given as sorted hot positions.
func contentCosine(a, b []int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared, i, j := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			shared++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return float64(shared) / math.Sqrt(float64(len(a)*len(b)))
}

type contentCandidate struct {
	ScoredSong
	popularity float64
}

func compareContent(a, b contentCandidate) int {
	if a.Score != b.Score {
		return cmp.Compare(b.Score, a.Score)
	}
	if a.popularity != b.popularity {
		return cmp.Compare(b.popularity, a.popularity)
	}
	return cmp.Compare(a.SongID, b.SongID)
}

// Similar ranks up to n other songs by genre similarity to songID, breaking
// ties by popularity then song id. A song without a known genre is answered
// with a popularity-only ranking and degraded=true.
func (c *ContentIndex) Similar(songID int64, n int, popularity func(int64) float64) ([]ScoredSong, bool, error) {
	if n < 1 {
		return nil, false, invalidParam("n must be positive, got %d", n)
	}
	if !c.has(songID) {
		return nil, false, songNotFound(songID)
	}

	seed, hasGenre := c.features[songID]
	best := newTopK(n, compareContent)
	for _, other := range c.songs {
		if other == songID {
			continue
		}
		pop := popularity(other)
		cand := contentCandidate{ScoredSong: ScoredSong{SongID: other}, popularity: pop}
		if hasGenre {
			cand.Score = contentCosine(seed, c.features[other])
		} else {
			cand.Score = pop
		}
		best.offer(cand)
	}

	ranked := best.sorted()
	out := make([]ScoredSong, len(ranked))
	for i, r := range ranked {
		out[i] = r.ScoredSong
	}
	return out, !hasGenre, nil
}
