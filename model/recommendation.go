package model

import "time"

// SongInfo is a song as it appears in any ranked result.
type SongInfo struct {
	SongID int64   `json:"song_id"`
	Title  string  `json:"title"`
	Genre  string  `json:"genre,omitempty"`
	Artist string  `json:"artist,omitempty"`
	Score  float64 `json:"similarity_score"`
}

// SongDetails is the full view of a single song.
type SongDetails struct {
	SongID    int64     `json:"song_id"`
	Title     string    `json:"title"`
	Genre     string    `json:"genre,omitempty"`
	Artist    string    `json:"artist,omitempty"`
	Duration  float64   `json:"duration"`
	CreatedAt time.Time `json:"created_at"`
}

// SimilarSongsResult answers a collaborative filtering request. When the seed
// song cannot be served collaboratively, Algorithm names the fallback that
// produced the list and Degraded is set.
type SimilarSongsResult struct {
	SongID         int64      `json:"song_id"`
	SimilarSongs   []SongInfo `json:"similar_songs"`
	Algorithm      string     `json:"algorithm"`
	Metric         string     `json:"metric"`
	Degraded       bool       `json:"degraded"`
	FallbackReason string     `json:"fallback_reason,omitempty"`
	Generation     uint64     `json:"generation"`
}

type ContentBasedResult struct {
	QueryTitle      string     `json:"query_title"`
	MatchedSongID   int64      `json:"matched_song_id"`
	MatchedTitle    string     `json:"matched_title"`
	Recommendations []SongInfo `json:"recommendations"`
	Algorithm       string     `json:"algorithm"`
	Degraded        bool       `json:"degraded"`
	Generation      uint64     `json:"generation"`
}

type PopularSongsResult struct {
	PopularSongs []SongInfo `json:"popular_songs"`
	Algorithm    string     `json:"algorithm"`
	Limit        int        `json:"limit"`
	Generation   uint64     `json:"generation"`
}

type SearchResult struct {
	Query      string     `json:"query"`
	Results    []SongInfo `json:"results"`
	TotalFound int        `json:"total_found"`
	Generation uint64     `json:"generation"`
}

// PlayHistoryEntry is one song of a user's listening history.
type PlayHistoryEntry struct {
	SongID int64  `json:"song_id"`
	Title  string `json:"title"`
	Genre  string `json:"genre,omitempty"`
	Plays  int    `json:"plays"`
}

type UserHistoryResult struct {
	UserID     string             `json:"user_id"`
	History    []PlayHistoryEntry `json:"history"`
	TotalPlays int64              `json:"total_plays"`
	Generation uint64             `json:"generation"`
}

// SystemStats describes the currently published snapshot.
type SystemStats struct {
	Ready                  bool      `json:"ready"`
	State                  string    `json:"state"`
	Generation             uint64    `json:"generation"`
	BuiltAt                time.Time `json:"built_at"`
	SongCount              int       `json:"song_count"`
	InteractionCount       int       `json:"interaction_count"`
	UserCount              int       `json:"total_users"`
	TotalPlays             int64     `json:"total_plays"`
	GenreCount             int       `json:"total_genres"`
	Sparsity               float64   `json:"sparsity"`
	AvgPlaysPerUser        float64   `json:"avg_plays_per_user"`
	AvgPlaysPerSong        float64   `json:"avg_plays_per_song"`
	MatrixRows             int       `json:"matrix_rows"`
	MatrixCols             int       `json:"matrix_cols"`
	CollaborativeAvailable bool      `json:"collaborative_available"`
	LastRebuildError       string    `json:"last_rebuild_error,omitempty"`
}

// RebuildResult reports the outcome of an administrative rebuild.
type RebuildResult struct {
	RunID      string        `json:"run_id"`
	Generation uint64        `json:"generation"`
	Duration   time.Duration `json:"duration"`
	Coalesced  bool          `json:"coalesced"`
}

// SnapshotSummary is the exported digest of a published snapshot.
type SnapshotSummary struct {
	Stats        SystemStats `json:"stats"`
	TopBayesian  []SongInfo  `json:"top_bayesian"`
	TopFrequency []SongInfo  `json:"top_frequency"`
	ExportedAt   time.Time   `json:"exported_at"`
}

type Health struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Engine   string `json:"recommendation_engine"`
}
