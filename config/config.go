package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	HTTPHost string
	HTTPPort string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// DatasetPath points at a JSON dataset file. When set it replaces MySQL
	// as the source of songs, genres and play counts.
	DatasetPath string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	LogLevel   string
	LogFile    string
	LogMaxSize int

	// Recommendation engine
	DefaultKNeighbors        int
	MaxKNeighbors            int
	DefaultRecommendations   int
	MaxRecommendations       int
	DefaultMetric            string // cosine | euclidean
	DefaultPopularity        string // bayesian | frequency
	BayesianConfidenceWeight float64
	SearchFuzzyThreshold     float64
	MaxQueryLength           int
	QueryTimeout             time.Duration
	RebuildInterval          time.Duration // 0 disables the timer
	RebuildTimeout           time.Duration

	// Result cache
	EnableCaching bool
	CacheBackend  string // memory | redis
	CacheTTL      time.Duration

	// Storage circuit breaker
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	// Snapshot export, disabled while MinioEndpoint is empty
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intVal
		}
		log.Printf("Ignoring invalid integer for %s: %q", key, value)
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
		log.Printf("Ignoring invalid number for %s: %q", key, value)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
		log.Printf("Ignoring invalid boolean for %s: %q", key, value)
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s", "1h") and bare integers,
// which are read as seconds to stay compatible with CACHE_TTL=3600.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value = strings.TrimSpace(value)
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	log.Printf("Ignoring invalid duration for %s: %q", key, value)
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() does not override variables that are already set.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env.
func FromEnv() *Config {
	return &Config{
		HTTPHost: getEnv("HTTP_HOST", "0.0.0.0"),
		HTTPPort: getEnv("HTTP_PORT", "8000"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "mwonya"),

		DatasetPath: getEnv("DATASET_PATH", ""),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFile:    getEnv("LOG_FILE", ""),
		LogMaxSize: getEnvInt("LOG_MAX_SIZE_MB", 100),

		DefaultKNeighbors:        getEnvInt("DEFAULT_K_NEIGHBORS", 10),
		MaxKNeighbors:            getEnvInt("MAX_K_NEIGHBORS", 50),
		DefaultRecommendations:   getEnvInt("DEFAULT_RECOMMENDATIONS", 10),
		MaxRecommendations:       getEnvInt("MAX_RECOMMENDATIONS", 100),
		DefaultMetric:            getEnv("DEFAULT_METRIC", "cosine"),
		DefaultPopularity:        getEnv("DEFAULT_POPULARITY", "bayesian"),
		BayesianConfidenceWeight: getEnvFloat("BAYESIAN_CONFIDENCE_WEIGHT", 10.0),
		SearchFuzzyThreshold:     getEnvFloat("SEARCH_FUZZY_THRESHOLD", 0.7),
		MaxQueryLength:           getEnvInt("MAX_QUERY_LENGTH", 200),
		QueryTimeout:             getEnvDuration("QUERY_TIMEOUT", 5*time.Second),
		RebuildInterval:          getEnvDuration("REBUILD_INTERVAL", time.Hour),
		RebuildTimeout:           getEnvDuration("REBUILD_TIMEOUT", 2*time.Minute),

		EnableCaching: getEnvBool("ENABLE_CACHING", true),
		CacheBackend:  strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
		CacheTTL:      getEnvDuration("CACHE_TTL", time.Hour),

		BreakerFailures: uint32(getEnvInt("BREAKER_FAILURES", 3)),
		BreakerTimeout:  getEnvDuration("BREAKER_TIMEOUT", 30*time.Second),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "recommender"),
		MinioRegion:    getEnv("MINIO_REGION", ""),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
	}
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return c.HTTPHost + ":" + c.HTTPPort
}
