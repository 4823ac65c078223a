package recommend

import "slices"

// playStats are the aggregates a popularity scorer may use.
type playStats struct {
	plays     float64 // v: total plays of the song
	listeners int
}

// popularityScorer computes a song's score given the confidence weight m and
// the catalog mean C of per-listener averages.
type popularityScorer func(s playStats, m, c float64) float64

var popularityScorers = map[PopularityAlgorithm]popularityScorer{
	PopularityFrequency: frequencyScore,
	PopularityBayesian:  bayesianScore,
}

func frequencyScore(s playStats, _, _ float64) float64 {
	return s.plays
}

// bayesianScore is (v/(v+m))*R + (m/(v+m))*C where R is the song's own
// average plays per listener. A song nobody played scores exactly C.
func bayesianScore(s playStats, m, c float64) float64 {
	if s.plays <= 0 || s.listeners == 0 {
		return c
	}
	v := s.plays
	r := v / float64(s.listeners)
	return (v/(v+m))*r + (m/(v+m))*c
}

// PopularityRanker scores every catalog song under every algorithm once per
// snapshot and keeps the full ranking of each.
type PopularityRanker struct {
	m, c   float64
	scores map[PopularityAlgorithm]map[int64]float64
	ranked map[PopularityAlgorithm][]ScoredSong
}

// BuildPopularityRanker ranks songIDs using play statistics from matrix,
// which may be nil when no interactions exist.
func BuildPopularityRanker(songIDs []int64, matrix *InteractionMatrix, m float64) *PopularityRanker {
	stats := make(map[int64]playStats, len(songIDs))
	var sumR float64
	var played int
	for _, id := range songIDs {
		var st playStats
		if matrix != nil {
			plays, listeners := matrix.SongStats(id)
			st = playStats{plays: float64(plays), listeners: listeners}
		}
		stats[id] = st
		if st.listeners > 0 {
			sumR += st.plays / float64(st.listeners)
			played++
		}
	}

	p := &PopularityRanker{
		m:      m,
		scores: make(map[PopularityAlgorithm]map[int64]float64, len(popularityScorers)),
		ranked: make(map[PopularityAlgorithm][]ScoredSong, len(popularityScorers)),
	}
	if played > 0 {
		p.c = sumR / float64(played)
	}

	for alg, score := range popularityScorers {
		byID := make(map[int64]float64, len(songIDs))
		list := make([]ScoredSong, 0, len(songIDs))
		for _, id := range songIDs {
			s := score(stats[id], p.m, p.c)
			byID[id] = s
			list = append(list, ScoredSong{SongID: id, Score: s})
		}
		slices.SortFunc(list, compareScored)
		p.scores[alg] = byID
		p.ranked[alg] = list
	}
	return p
}

// Mean is C, the catalog mean of per-listener averages.
func (p *PopularityRanker) Mean() float64 { return p.c }

// Popularity returns the score of songID under alg.
func (p *PopularityRanker) Popularity(songID int64, alg PopularityAlgorithm) (float64, error) {
	byID, ok := p.scores[alg]
	if !ok {
		return 0, invalidParam("unsupported popularity algorithm %d", int(alg))
	}
	s, ok := byID[songID]
	if !ok {
		return 0, songNotFound(songID)
	}
	return s, nil
}

// scoreOf is Popularity without the error, zero for unknown songs.
func (p *PopularityRanker) scoreOf(alg PopularityAlgorithm) func(int64) float64 {
	byID := p.scores[alg]
	return func(id int64) float64 { return byID[id] }
}

// Top returns the n highest ranked songs under alg.
func (p *PopularityRanker) Top(n int, alg PopularityAlgorithm) ([]ScoredSong, error) {
	list, ok := p.ranked[alg]
	if !ok {
		return nil, invalidParam("unsupported popularity algorithm %d", int(alg))
	}
	if n < 1 {
		return nil, invalidParam("n must be positive, got %d", n)
	}
	if n > len(list) {
		n = len(list)
	}
	return slices.Clone(list[:n]), nil
}
