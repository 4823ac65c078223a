package recommend

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/patrickhamzaokello/ColabFavourites/model"
)

// Scores are tiered so that ordering is monotonic in match quality:
// an exact substring match scores in [2,3], a fuzzy token match in
// [threshold,1], and anything weaker is not returned.
const exactMatchBase = 2.0

type searchEntry struct {
	songID int64
	folded string
	tokens []string
}

// SearchIndex answers case- and accent-insensitive title lookups.
type SearchIndex struct {
	entries        []searchEntry // ascending song id
	threshold      float64
	maxQueryLength int
}

// BuildSearchIndex folds every title once. songs must be sorted by id.
func BuildSearchIndex(songs []*model.Song, threshold float64, maxQueryLength int) *SearchIndex {
	idx := &SearchIndex{
		entries:        make([]searchEntry, 0, len(songs)),
		threshold:      threshold,
		maxQueryLength: maxQueryLength,
	}
	for _, s := range songs {
		folded := foldText(s.Title)
		if folded == "" {
			continue
		}
		idx.entries = append(idx.entries, searchEntry{
			songID: s.ID,
			folded: folded,
			tokens: strings.Fields(folded),
		})
	}
	return idx
}

// foldText decomposes, strips combining marks, lowercases and collapses every
// run of non letter/digit characters into a single space.
func foldText(s string) string {
	s = norm.NFKD.String(s)
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(unicode.ToLower(r))
		default:
			pendingSpace = true
		}
	}
	return b.String()
}

// Search returns up to limit songs whose title matches query, best first,
// ties by ascending song id. A blank query yields an empty result.
func (idx *SearchIndex) Search(query string, limit int) ([]ScoredSong, error) {
	if limit < 1 {
		return nil, invalidParam("limit must be positive, got %d", limit)
	}
	if utf8.RuneCountInString(query) > idx.maxQueryLength {
		return nil, invalidParam("query longer than %d characters", idx.maxQueryLength)
	}
	q := foldText(query)
	if q == "" {
		return []ScoredSong{}, nil
	}
	qTokens := strings.Fields(q)

	best := newTopK(limit, compareScored)
	for i := range idx.entries {
		if score := idx.score(&idx.entries[i], q, qTokens); score > 0 {
			best.offer(ScoredSong{SongID: idx.entries[i].songID, Score: score})
		}
	}
	return best.sorted(), nil
}

// BestMatch resolves free text to the single best matching song.
func (idx *SearchIndex) BestMatch(query string) (ScoredSong, bool) {
	hits, err := idx.Search(query, 1)
	if err != nil || len(hits) == 0 {
		return ScoredSong{}, false
	}
	return hits[0], true
}

func (idx *SearchIndex) score(e *searchEntry, q string, qTokens []string) float64 {
	if strings.Contains(e.folded, q) {
		return exactMatchBase + float64(len(q))/float64(len(e.folded))
	}

	var total float64
	for _, qt := range qTokens {
		var bestToken float64
		for _, tt := range e.tokens {
			if s := tokenSimilarity(qt, tt); s > bestToken {
				bestToken = s
			}
		}
		total += bestToken
	}
	avg := total / float64(len(qTokens))
	if avg < idx.threshold {
		return 0
	}
	return avg
}

// tokenSimilarity is 1 - levenshtein(a,b)/max(len(a),len(b)) over runes.
func tokenSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
