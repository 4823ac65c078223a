package recommend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/patrickhamzaokello/ColabFavourites/model"
)

func genreRef(id int64) *int64 { return &id }

func fixtureSong(id int64, title string, genre *int64) *model.Song {
	return &model.Song{
		ID:        id,
		Title:     title,
		Artist:    "Artist " + title,
		GenreID:   genre,
		Duration:  200,
		Available: true,
		Path:      fmt.Sprintf("/music/%d.mp3", id),
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// fixtureDataset: 1787 and 973 share the same five listeners with 973
// always played twice as often; 42 is only played by two other users;
// 55 and 77 are cold; 99 is unavailable.
func fixtureDataset() Dataset {
	hidden := fixtureSong(99, "Hidden Track", genreRef(1))
	hidden.Available = false

	ds := Dataset{
		Genres: []*model.Genre{
			{ID: 1, Name: "Afrobeat"},
			{ID: 2, Name: "Gospel"},
		},
		Songs: []*model.Song{
			fixtureSong(1787, "Karamoja Nights", genreRef(1)),
			fixtureSong(973, "Karamoja Blues", genreRef(1)),
			fixtureSong(42, "Sunday Praise", genreRef(2)),
			fixtureSong(55, "Kampala Rain", genreRef(1)),
			fixtureSong(77, "Untitled Demo", nil),
			hidden,
		},
	}
	for i := 1; i <= 5; i++ {
		user := fmt.Sprintf("u%d", i)
		ds.Interactions = append(ds.Interactions,
			model.Interaction{UserID: user, SongID: 1787, Plays: i},
			model.Interaction{UserID: user, SongID: 973, Plays: 2 * i},
		)
	}
	ds.Interactions = append(ds.Interactions,
		model.Interaction{UserID: "u6", SongID: 42, Plays: 3},
		model.Interaction{UserID: "u7", SongID: 42, Plays: 3},
		model.Interaction{UserID: "u6", SongID: 99, Plays: 40},
	)
	return ds
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.SimilarityWorkers = 2
	opts.RebuildInterval = 0
	opts.CacheTTL = 0
	opts.RebuildTimeout = 10 * time.Second
	return opts
}

func buildFixtureSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	snap, err := buildSnapshot(context.Background(), fixtureDataset(), testOptions().withDefaults(), 1, "test")
	require.NoError(t, err)
	return snap
}

// fakeSource serves a dataset produced by build, counting pulls. Setting
// fail makes every call return an error; gate, when non-nil, blocks
// FetchSongs until closed.
type fakeSource struct {
	mu    sync.Mutex
	build func(version int) Dataset
	fail  error
	gate  chan struct{}

	pulls atomic.Int32
}

func newFakeSource(ds Dataset) *fakeSource {
	return &fakeSource{build: func(int) Dataset { return ds }}
}

func (f *fakeSource) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func (f *fakeSource) current() (Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return Dataset{}, f.fail
	}
	return f.build(int(f.pulls.Load())), nil
}

func (f *fakeSource) FetchSongs(ctx context.Context) ([]*model.Song, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.pulls.Add(1)
	ds, err := f.current()
	return ds.Songs, err
}

func (f *fakeSource) FetchGenres(context.Context) ([]*model.Genre, error) {
	ds, err := f.current()
	return ds.Genres, err
}

func (f *fakeSource) FetchInteractions(context.Context) ([]model.Interaction, error) {
	ds, err := f.current()
	return ds.Interactions, err
}

func (f *fakeSource) FetchSong(_ context.Context, songID int64) (*model.Song, error) {
	ds, err := f.current()
	if err != nil {
		return nil, err
	}
	for _, s := range ds.Songs {
		if s.ID == songID {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSource) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail
}

var errStorageDown = errors.New("dial tcp 127.0.0.1:3306: connection refused")

// mapCache is an in-process ResultCache for engine tests.
type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{entries: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *mapCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func newTestEngine(t *testing.T, src Source, opts Options, cache ResultCache) *Engine {
	t.Helper()
	e, err := NewEngine(src, opts, cache)
	require.NoError(t, err)
	t.Cleanup(e.Stop)
	return e
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
