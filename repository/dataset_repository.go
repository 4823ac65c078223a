package repository

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/patrickhamzaokello/ColabFavourites/model"
)

// DatasetFile is the on-disk form of a full catalog export.
type DatasetFile struct {
	Genres       []*model.Genre      `json:"genres"`
	Songs        []*model.Song       `json:"songs"`
	Interactions []model.Interaction `json:"interactions"`
}

// datasetRepository serves a JSON dataset file. The parsed document is
// reused until the file's size or modification time changes.
type datasetRepository struct {
	path string

	mu      sync.Mutex
	doc     *DatasetFile
	modTime time.Time
	size    int64
}

// NewDatasetRepository creates a SongRepository backed by the file at path.
func NewDatasetRepository(path string) SongRepository {
	return &datasetRepository{path: path}
}

func (r *datasetRepository) load() (*DatasetFile, error) {
	info, err := os.Stat(r.path)
	if err != nil {
		return nil, fmt.Errorf("stat dataset: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc != nil && info.ModTime().Equal(r.modTime) && info.Size() == r.size {
		return r.doc, nil
	}

	raw, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var doc DatasetFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", r.path, err)
	}
	r.doc, r.modTime, r.size = &doc, info.ModTime(), info.Size()
	return r.doc, nil
}

func (r *datasetRepository) playable(doc *DatasetFile) map[int64]*model.Song {
	out := make(map[int64]*model.Song, len(doc.Songs))
	for _, s := range doc.Songs {
		if s != nil && s.Playable() {
			out[s.ID] = s
		}
	}
	return out
}

func (r *datasetRepository) FetchInteractions(ctx context.Context) ([]model.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	songs := r.playable(doc)
	out := make([]model.Interaction, 0, len(doc.Interactions))
	for _, in := range doc.Interactions {
		if _, ok := songs[in.SongID]; ok && in.Plays >= 1 {
			out = append(out, in)
		}
	}
	return out, nil
}

func (r *datasetRepository) FetchSongs(ctx context.Context) ([]*model.Song, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make([]*model.Song, 0, len(doc.Songs))
	for _, s := range r.playable(doc) {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *model.Song) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *datasetRepository) FetchGenres(ctx context.Context) ([]*model.Genre, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	return slices.Clone(doc.Genres), nil
}

func (r *datasetRepository) FetchSong(ctx context.Context, songID int64) (*model.Song, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, s := range doc.Songs {
		if s != nil && s.ID == songID {
			return s, nil
		}
	}
	return nil, nil
}

func (r *datasetRepository) Ping(context.Context) error {
	_, err := r.load()
	return err
}
