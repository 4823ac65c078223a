package recommend

import (
	"runtime"
	"strings"
	"time"
)

// Metric selects how two song columns are compared.
type Metric int

const (
	MetricCosine Metric = iota
	MetricEuclidean
)

var metricNames = map[Metric]string{
	MetricCosine:    "cosine",
	MetricEuclidean: "euclidean",
}

func (m Metric) String() string { return metricNames[m] }

// ParseMetric accepts the metric names used on the wire. Empty means cosine.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cosine":
		return MetricCosine, nil
	case "euclidean":
		return MetricEuclidean, nil
	}
	return 0, invalidParam("unsupported metric %q", s)
}

// PopularityAlgorithm selects how songs are ranked by popularity.
type PopularityAlgorithm int

const (
	PopularityBayesian PopularityAlgorithm = iota
	PopularityFrequency
)

var popularityNames = map[PopularityAlgorithm]string{
	PopularityBayesian:  "bayesian",
	PopularityFrequency: "frequency",
}

func (a PopularityAlgorithm) String() string { return popularityNames[a] }

// ParsePopularity accepts "bayesian" or "frequency". Empty means bayesian.
func ParsePopularity(s string) (PopularityAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bayesian":
		return PopularityBayesian, nil
	case "frequency":
		return PopularityFrequency, nil
	}
	return 0, invalidParam("unsupported popularity algorithm %q", s)
}

// Options configures the engine. Zero values are replaced by DefaultOptions.
type Options struct {
	DefaultK           int
	MaxK               int
	DefaultN           int
	MaxN               int
	DefaultMetric      Metric
	DefaultPopularity  PopularityAlgorithm
	ConfidenceWeight   float64 // m in the bayesian average
	FuzzyThreshold     float64 // minimum fuzzy title score in (0,1]
	MaxQueryLength     int
	CacheTTL           time.Duration
	RebuildInterval    time.Duration
	RebuildTimeout     time.Duration
	SimilarityWorkers  int
	BreakerFailures    uint32
	BreakerOpenTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		DefaultK:           10,
		MaxK:               50,
		DefaultN:           10,
		MaxN:               100,
		DefaultMetric:      MetricCosine,
		DefaultPopularity:  PopularityBayesian,
		ConfidenceWeight:   10.0,
		FuzzyThreshold:     0.7,
		MaxQueryLength:     200,
		CacheTTL:           time.Hour,
		RebuildInterval:    time.Hour,
		RebuildTimeout:     2 * time.Minute,
		SimilarityWorkers:  runtime.NumCPU(),
		BreakerFailures:    3,
		BreakerOpenTimeout: 30 * time.Second,
	}
}

// withDefaults fills unset numeric fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DefaultK == 0 {
		o.DefaultK = d.DefaultK
	}
	if o.MaxK == 0 {
		o.MaxK = d.MaxK
	}
	if o.DefaultN == 0 {
		o.DefaultN = d.DefaultN
	}
	if o.MaxN == 0 {
		o.MaxN = d.MaxN
	}
	if o.ConfidenceWeight == 0 {
		o.ConfidenceWeight = d.ConfidenceWeight
	}
	if o.FuzzyThreshold == 0 {
		o.FuzzyThreshold = d.FuzzyThreshold
	}
	if o.MaxQueryLength == 0 {
		o.MaxQueryLength = d.MaxQueryLength
	}
	if o.RebuildTimeout == 0 {
		o.RebuildTimeout = d.RebuildTimeout
	}
	if o.SimilarityWorkers <= 0 {
		o.SimilarityWorkers = d.SimilarityWorkers
	}
	if o.BreakerFailures == 0 {
		o.BreakerFailures = d.BreakerFailures
	}
	if o.BreakerOpenTimeout == 0 {
		o.BreakerOpenTimeout = d.BreakerOpenTimeout
	}
	return o
}

// Validate rejects inconsistent bounds.
func (o Options) Validate() error {
	switch {
	case o.DefaultK < 1 || o.MaxK < o.DefaultK:
		return invalidParam("neighbor bounds: default %d, max %d", o.DefaultK, o.MaxK)
	case o.DefaultN < 1 || o.MaxN < o.DefaultN:
		return invalidParam("recommendation bounds: default %d, max %d", o.DefaultN, o.MaxN)
	case o.ConfidenceWeight <= 0:
		return invalidParam("confidence weight must be positive, got %v", o.ConfidenceWeight)
	case o.FuzzyThreshold <= 0 || o.FuzzyThreshold > 1:
		return invalidParam("fuzzy threshold must be in (0,1], got %v", o.FuzzyThreshold)
	case o.CacheTTL < 0 || o.RebuildInterval < 0:
		return invalidParam("durations must not be negative")
	}
	return nil
}

// checkBound validates a caller supplied count, substituting def for zero.
func checkBound(name string, v, def, upper int) (int, error) {
	if v == 0 {
		return def, nil
	}
	if v < 1 || v > upper {
		return 0, invalidParam("%s must be between 1 and %d, got %d", name, upper, v)
	}
	return v, nil
}
