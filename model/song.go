package model

import (
	"strings"
	"time"
)

// Song is a row of the songs table.
type Song struct {
	ID        int64     `gorm:"column:id;primaryKey" json:"id"`
	Title     string    `gorm:"column:title" json:"title"`
	Artist    string    `gorm:"column:artist" json:"artist,omitempty"`
	GenreID   *int64    `gorm:"column:genre" json:"genreId,omitempty"`
	Duration  float64   `gorm:"column:duration" json:"duration"` // seconds
	Available bool      `gorm:"column:available" json:"available"`
	Path      string    `gorm:"column:path" json:"path"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
}

func (Song) TableName() string { return "songs" }

// Playable reports whether the song may take part in recommendations:
// it must be available and have a non-empty storage path.
func (s *Song) Playable() bool {
	return s.Available && strings.TrimSpace(s.Path) != ""
}

// Genre is a row of the genres table. Only the name is used for similarity.
type Genre struct {
	ID          int64  `gorm:"column:id;primaryKey" json:"id"`
	Name        string `gorm:"column:name;uniqueIndex;size:191" json:"name"`
	Description string `gorm:"column:description" json:"description,omitempty"`
}

func (Genre) TableName() string { return "genres" }

// Interaction is the aggregated play count of one user for one song
// (the frequency table). Unique per (UserID, SongID).
type Interaction struct {
	UserID     string    `gorm:"column:userid;primaryKey;size:64" json:"userId"`
	SongID     int64     `gorm:"column:songid;primaryKey" json:"songId"`
	Plays      int       `gorm:"column:plays" json:"plays"`
	LastPlayed time.Time `gorm:"column:last_played" json:"lastPlayed"`
}

func (Interaction) TableName() string { return "frequency" }
