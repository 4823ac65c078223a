package recommend

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/patrickhamzaokello/ColabFavourites/logger"
	"github.com/patrickhamzaokello/ColabFavourites/model"
)

// Source is the storage collaborator the engine pulls snapshots from.
// Implementations restrict songs and interactions to playable songs.
type Source interface {
	FetchInteractions(ctx context.Context) ([]model.Interaction, error)
	FetchSongs(ctx context.Context) ([]*model.Song, error)
	FetchGenres(ctx context.Context) ([]*model.Genre, error)
	// FetchSong returns nil and no error when the song does not exist.
	FetchSong(ctx context.Context, songID int64) (*model.Song, error)
	Ping(ctx context.Context) error
}

const breakerName = "storage"

// guardedSource routes every Source call through one circuit breaker. Any
// transport failure or an open breaker surfaces as ErrUpstreamUnavailable.
type guardedSource struct {
	src Source
	cb  *gobreaker.CircuitBreaker[any]
}

func newGuardedSource(src Source, failures uint32, openTimeout time.Duration) *guardedSource {
	breakerState.Set(0)
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Caller cancellation says nothing about the health of storage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Storage circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
			breakerState.Set(float64(to))
		},
	})
	return &guardedSource{src: src, cb: cb}
}

// guard executes fn under the breaker and restores its static type.
func guard[T any](g *guardedSource, fn func() (T, error)) (T, error) {
	var zero T
	res, err := g.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		return zero, upstream(err)
	}
	if res == nil {
		return zero, nil
	}
	return res.(T), nil
}

func (g *guardedSource) FetchInteractions(ctx context.Context) ([]model.Interaction, error) {
	return guard(g, func() ([]model.Interaction, error) { return g.src.FetchInteractions(ctx) })
}

func (g *guardedSource) FetchSongs(ctx context.Context) ([]*model.Song, error) {
	return guard(g, func() ([]*model.Song, error) { return g.src.FetchSongs(ctx) })
}

func (g *guardedSource) FetchGenres(ctx context.Context) ([]*model.Genre, error) {
	return guard(g, func() ([]*model.Genre, error) { return g.src.FetchGenres(ctx) })
}

func (g *guardedSource) FetchSong(ctx context.Context, songID int64) (*model.Song, error) {
	return guard(g, func() (*model.Song, error) { return g.src.FetchSong(ctx, songID) })
}

func (g *guardedSource) Ping(ctx context.Context) error {
	_, err := guard(g, func() (struct{}, error) { return struct{}{}, g.src.Ping(ctx) })
	return err
}

// fetchDataset pulls songs, genres and interactions in that order.
func (g *guardedSource) fetchDataset(ctx context.Context) (Dataset, error) {
	var ds Dataset
	var err error
	if ds.Songs, err = g.FetchSongs(ctx); err != nil {
		return Dataset{}, err
	}
	if ds.Genres, err = g.FetchGenres(ctx); err != nil {
		return Dataset{}, err
	}
	if ds.Interactions, err = g.FetchInteractions(ctx); err != nil {
		return Dataset{}, err
	}
	return ds, nil
}
