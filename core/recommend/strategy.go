package recommend

import "fmt"

// Strategy names as reported in results.
const (
	StrategyCollaborative = "collaborative_filtering_knn"
	StrategyContent       = "content_based_filtering"
	strategyPopularity    = "popularity_"
)

// SimilarRequest is a validated similar-songs query.
type SimilarRequest struct {
	SongID int64
	K      int
	Metric Metric
}

// Strategy is one way of answering a similar-songs query. Applies reports
// whether the strategy can serve the request against snap and, when it
// cannot, why.
type Strategy struct {
	Name    string
	Applies func(snap *Snapshot, req SimilarRequest) (ok bool, reason string)
	Run     func(snap *Snapshot, req SimilarRequest) ([]ScoredSong, error)
}

// ChainResult is the answer of the first strategy that succeeded.
type ChainResult struct {
	Strategy string
	Songs    []ScoredSong
	Degraded bool   // a strategy other than the first answered
	Reason   string // why earlier strategies were skipped
}

// FallbackChain evaluates strategies in order until one succeeds.
type FallbackChain []Strategy

// NewFallbackChain is collaborative, then content, then popularity under alg.
func NewFallbackChain(alg PopularityAlgorithm) FallbackChain {
	return FallbackChain{collaborativeStrategy(), contentStrategy(), popularityStrategy(alg)}
}

// Evaluate runs the chain. It fails only when no strategy applies or every
// applicable one returned an error, in which case the last error is returned.
func (c FallbackChain) Evaluate(snap *Snapshot, req SimilarRequest) (ChainResult, error) {
	var reason string
	var lastErr error
	for i, s := range c {
		ok, why := s.Applies(snap, req)
		if !ok {
			reason = appendReason(reason, s.Name, why)
			continue
		}
		songs, err := s.Run(snap, req)
		if err != nil {
			lastErr = err
			reason = appendReason(reason, s.Name, err.Error())
			continue
		}
		return ChainResult{Strategy: s.Name, Songs: songs, Degraded: i > 0, Reason: reason}, nil
	}
	if lastErr != nil {
		return ChainResult{}, lastErr
	}
	return ChainResult{}, songNotFound(req.SongID)
}

func appendReason(acc, name, why string) string {
	r := fmt.Sprintf("%s: %s", name, why)
	if acc == "" {
		return r
	}
	return acc + "; " + r
}

func collaborativeStrategy() Strategy {
	return Strategy{
		Name: StrategyCollaborative,
		Applies: func(snap *Snapshot, req SimilarRequest) (bool, string) {
			if snap.similarity == nil {
				return false, "no interaction data in this generation"
			}
			if !snap.similarity.Has(req.SongID) {
				return false, "song has no interactions"
			}
			return true, ""
		},
		Run: func(snap *Snapshot, req SimilarRequest) ([]ScoredSong, error) {
			return snap.similarity.Neighbors(req.SongID, req.K, req.Metric)
		},
	}
}

func contentStrategy() Strategy {
	return Strategy{
		Name: StrategyContent,
		Applies: func(snap *Snapshot, req SimilarRequest) (bool, string) {
			if !snap.content.HasGenre(req.SongID) {
				return false, "song has no known genre"
			}
			return true, ""
		},
		Run: func(snap *Snapshot, req SimilarRequest) ([]ScoredSong, error) {
			songs, _, err := snap.content.Similar(req.SongID, req.K, snap.popularity.scoreOf(PopularityBayesian))
			return songs, err
		},
	}
}

func popularityStrategy(alg PopularityAlgorithm) Strategy {
	return Strategy{
		Name: strategyPopularity + alg.String(),
		Applies: func(*Snapshot, SimilarRequest) (bool, string) {
			return true, ""
		},
		Run: func(snap *Snapshot, req SimilarRequest) ([]ScoredSong, error) {
			top, err := snap.popularity.Top(req.K+1, alg)
			if err != nil {
				return nil, err
			}
			out := make([]ScoredSong, 0, req.K)
			for _, s := range top {
				if s.SongID != req.SongID && len(out) < req.K {
					out = append(out, s)
				}
			}
			return out, nil
		},
	}
}
