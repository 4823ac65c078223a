package recommend

import (
	"cmp"
	"container/heap"
	"slices"
)

// ScoredSong is a ranked result: a song and the score that placed it.
type ScoredSong struct {
	SongID int64   `json:"song_id"`
	Score  float64 `json:"score"`
}

// compareScored orders by score descending, then song id ascending.
func compareScored(a, b ScoredSong) int {
	if a.Score != b.Score {
		if a.Score > b.Score {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.SongID, b.SongID)
}

// worstFirst is a heap whose root is the lowest ranked item.
type worstFirst[T any] struct {
	items   []T
	compare func(a, b T) int
}

func (h *worstFirst[T]) Len() int           { return len(h.items) }
func (h *worstFirst[T]) Less(i, j int) bool { return h.compare(h.items[i], h.items[j]) > 0 }
func (h *worstFirst[T]) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *worstFirst[T]) Push(x any)         { h.items = append(h.items, x.(T)) }
func (h *worstFirst[T]) Pop() any {
	n := len(h.items)
	x := h.items[n-1]
	h.items = h.items[:n-1]
	return x
}

// topK keeps the k best items offered under compare (negative = ranks first).
type topK[T any] struct {
	k int
	h *worstFirst[T]
}

func newTopK[T any](k int, compare func(a, b T) int) *topK[T] {
	return &topK[T]{k: k, h: &worstFirst[T]{items: make([]T, 0, k), compare: compare}}
}

func (t *topK[T]) offer(x T) {
	if t.k <= 0 {
		return
	}
	if t.h.Len() < t.k {
		heap.Push(t.h, x)
		return
	}
	if t.h.compare(x, t.h.items[0]) < 0 {
		t.h.items[0] = x
		heap.Fix(t.h, 0)
	}
}

// sorted returns the retained items best first.
func (t *topK[T]) sorted() []T {
	out := slices.Clone(t.h.items)
	slices.SortFunc(out, t.h.compare)
	return out
}
