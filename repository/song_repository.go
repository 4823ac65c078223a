package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/patrickhamzaokello/ColabFavourites/model"
)

// SongRepository is the read side of the catalog the recommendation engine
// pulls its snapshots from. Only playable songs (available, non-empty path)
// and their interactions are returned.
type SongRepository interface {
	FetchInteractions(ctx context.Context) ([]model.Interaction, error)
	FetchSongs(ctx context.Context) ([]*model.Song, error)
	FetchGenres(ctx context.Context) ([]*model.Genre, error)
	// FetchSong returns nil, nil when the song does not exist.
	FetchSong(ctx context.Context, songID int64) (*model.Song, error)
	Ping(ctx context.Context) error
}

const playableSongs = "s.available = ? AND s.path <> ''"

// gormSongRepository reads the songs, genres and frequency tables.
type gormSongRepository struct {
	db *gorm.DB
}

// NewGormSongRepository creates a SongRepository over db.
func NewGormSongRepository(db *gorm.DB) SongRepository {
	return &gormSongRepository{db: db}
}

func (r *gormSongRepository) FetchInteractions(ctx context.Context) ([]model.Interaction, error) {
	var rows []model.Interaction
	err := r.db.WithContext(ctx).
		Table("frequency AS f").
		Select("f.userid, f.songid, f.plays, f.last_played").
		Joins("JOIN songs s ON s.id = f.songid").
		Where(playableSongs+" AND f.plays >= 1", true).
		Order("f.userid, f.songid").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch interactions: %w", err)
	}
	return rows, nil
}

func (r *gormSongRepository) FetchSongs(ctx context.Context) ([]*model.Song, error) {
	var songs []*model.Song
	err := r.db.WithContext(ctx).
		Table("songs AS s").
		Where(playableSongs, true).
		Order("s.id").
		Find(&songs).Error
	if err != nil {
		return nil, fmt.Errorf("fetch songs: %w", err)
	}
	return songs, nil
}

func (r *gormSongRepository) FetchGenres(ctx context.Context) ([]*model.Genre, error) {
	var genres []*model.Genre
	if err := r.db.WithContext(ctx).Order("id").Find(&genres).Error; err != nil {
		return nil, fmt.Errorf("fetch genres: %w", err)
	}
	return genres, nil
}

func (r *gormSongRepository) FetchSong(ctx context.Context, songID int64) (*model.Song, error) {
	var song model.Song
	err := r.db.WithContext(ctx).Where("id = ?", songID).First(&song).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch song %d: %w", songID, err)
	}
	return &song, nil
}

func (r *gormSongRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
