package recommend

import (
	"cmp"
	"slices"
	"strings"

	"github.com/patrickhamzaokello/ColabFavourites/model"
)

// entry is one non-zero cell seen from a row (idx = column) or a column (idx = row).
type entry struct {
	idx   int
	plays float64
}

// SongPlays is a (song, plays) pair from one user's row.
type SongPlays struct {
	SongID int64
	Plays  int
}

// InteractionMatrix is the sparse user x song play-count matrix of one snapshot.
// Users are indexed in lexical order and songs in ascending id order, so the
// index assignment is deterministic for a given input but only meaningful
// within the snapshot that built it.
type InteractionMatrix struct {
	users   []string
	songs   []int64
	userIdx map[string]int
	songIdx map[int64]int

	rows [][]entry // per user, sorted by column
	cols [][]entry // per song, sorted by row

	colSqNorm  []float64
	colPlays   []int64
	nnz        int
	totalPlays int64
}

type cellKey struct {
	user string
	song int64
}

// BuildMatrix turns interaction rows into an InteractionMatrix. Rows with
// plays < 1, a blank user or a song outside playable are skipped; a nil
// playable set accepts every song. Duplicate (user, song) rows are summed.
// It fails with ErrEmptyDataset when nothing qualifies.
func BuildMatrix(interactions []model.Interaction, playable map[int64]*model.Song) (*InteractionMatrix, error) {
	cells := make(map[cellKey]int, len(interactions))
	for _, in := range interactions {
		user := strings.TrimSpace(in.UserID)
		if in.Plays < 1 || user == "" {
			continue
		}
		if playable != nil {
			if _, ok := playable[in.SongID]; !ok {
				continue
			}
		}
		cells[cellKey{user: user, song: in.SongID}] += in.Plays
	}
	if len(cells) == 0 {
		return nil, emptyDataset("interactions")
	}

	keys := make([]cellKey, 0, len(cells))
	userSet := make(map[string]struct{})
	songSet := make(map[int64]struct{})
	for k := range cells {
		keys = append(keys, k)
		userSet[k.user] = struct{}{}
		songSet[k.song] = struct{}{}
	}

	m := &InteractionMatrix{
		users:   make([]string, 0, len(userSet)),
		songs:   make([]int64, 0, len(songSet)),
		userIdx: make(map[string]int, len(userSet)),
		songIdx: make(map[int64]int, len(songSet)),
	}
	for u := range userSet {
		m.users = append(m.users, u)
	}
	for s := range songSet {
		m.songs = append(m.songs, s)
	}
	slices.Sort(m.users)
	slices.Sort(m.songs)
	for i, u := range m.users {
		m.userIdx[u] = i
	}
	for i, s := range m.songs {
		m.songIdx[s] = i
	}

	slices.SortFunc(keys, func(a, b cellKey) int {
		if c := strings.Compare(a.user, b.user); c != 0 {
			return c
		}
		return cmp.Compare(a.song, b.song)
	})

	m.rows = make([][]entry, len(m.users))
	m.cols = make([][]entry, len(m.songs))
	m.colSqNorm = make([]float64, len(m.songs))
	m.colPlays = make([]int64, len(m.songs))
	for _, k := range keys {
		plays := cells[k]
		r, c := m.userIdx[k.user], m.songIdx[k.song]
		v := float64(plays)
		m.rows[r] = append(m.rows[r], entry{idx: c, plays: v})
		m.cols[c] = append(m.cols[c], entry{idx: r, plays: v})
		m.colSqNorm[c] += v * v
		m.colPlays[c] += int64(plays)
		m.totalPlays += int64(plays)
	}
	m.nnz = len(keys)
	return m, nil
}

// Shape returns (users, songs).
func (m *InteractionMatrix) Shape() (int, int) { return len(m.users), len(m.songs) }

// NNZ is the number of non-zero cells, i.e. distinct (user, song) pairs.
func (m *InteractionMatrix) NNZ() int { return m.nnz }

func (m *InteractionMatrix) TotalPlays() int64 { return m.totalPlays }

func (m *InteractionMatrix) HasSong(songID int64) bool {
	_, ok := m.songIdx[songID]
	return ok
}

// Density is the percentage of filled cells.
func (m *InteractionMatrix) Density() float64 {
	total := len(m.users) * len(m.songs)
	if total == 0 {
		return 0
	}
	return float64(m.nnz) / float64(total) * 100
}

// SongStats returns total plays and distinct listeners of a song; zeros when
// the song has no column.
func (m *InteractionMatrix) SongStats(songID int64) (plays int64, listeners int) {
	c, ok := m.songIdx[songID]
	if !ok {
		return 0, 0
	}
	return m.colPlays[c], len(m.cols[c])
}

// UserRow returns a user's songs ordered by plays desc, then song id.
func (m *InteractionMatrix) UserRow(userID string) ([]SongPlays, bool) {
	r, ok := m.userIdx[strings.TrimSpace(userID)]
	if !ok {
		return nil, false
	}
	out := make([]SongPlays, 0, len(m.rows[r]))
	for _, e := range m.rows[r] {
		out = append(out, SongPlays{SongID: m.songs[e.idx], Plays: int(e.plays)})
	}
	slices.SortFunc(out, func(a, b SongPlays) int {
		if a.Plays != b.Plays {
			return b.Plays - a.Plays
		}
		return cmp.Compare(a.SongID, b.SongID)
	})
	return out, true
}
