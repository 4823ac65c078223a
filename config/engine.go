package config

import (
	"fmt"

	"github.com/patrickhamzaokello/ColabFavourites/core/recommend"
)

// Engine projects the recommendation settings into engine options.
func (c *Config) Engine() (recommend.Options, error) {
	metric, err := recommend.ParseMetric(c.DefaultMetric)
	if err != nil {
		return recommend.Options{}, fmt.Errorf("DEFAULT_METRIC: %w", err)
	}
	popularity, err := recommend.ParsePopularity(c.DefaultPopularity)
	if err != nil {
		return recommend.Options{}, fmt.Errorf("DEFAULT_POPULARITY: %w", err)
	}

	opts := recommend.DefaultOptions()
	opts.DefaultK = c.DefaultKNeighbors
	opts.MaxK = c.MaxKNeighbors
	opts.DefaultN = c.DefaultRecommendations
	opts.MaxN = c.MaxRecommendations
	opts.DefaultMetric = metric
	opts.DefaultPopularity = popularity
	opts.ConfidenceWeight = c.BayesianConfidenceWeight
	opts.FuzzyThreshold = c.SearchFuzzyThreshold
	opts.MaxQueryLength = c.MaxQueryLength
	opts.RebuildInterval = c.RebuildInterval
	opts.RebuildTimeout = c.RebuildTimeout
	opts.BreakerFailures = c.BreakerFailures
	opts.BreakerOpenTimeout = c.BreakerTimeout
	opts.CacheTTL = 0
	if c.EnableCaching {
		opts.CacheTTL = c.CacheTTL
	}

	if err := opts.Validate(); err != nil {
		return recommend.Options{}, err
	}
	return opts, nil
}
