package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/patrickhamzaokello/ColabFavourites/config"
	"github.com/patrickhamzaokello/ColabFavourites/logger"
	"github.com/patrickhamzaokello/ColabFavourites/model"
)

const snapshotPrefix = "snapshots/"

// ObjectKey is where the summary of a generation is stored.
func ObjectKey(generation uint64) string {
	return fmt.Sprintf("%s%010d.json", snapshotPrefix, generation)
}

// LatestKey always holds the most recent summary.
const LatestKey = snapshotPrefix + "latest.json"

// ExportInfo describes one stored summary.
type ExportInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// SnapshotExporter uploads snapshot summaries to a MinIO bucket.
type SnapshotExporter struct {
	client *minio.Client
	bucket string
}

// NewSnapshotExporter connects to MinIO and creates the bucket if needed.
func NewSnapshotExporter(ctx context.Context, cfg *config.Config) (*SnapshotExporter, error) {
	if cfg.MinioEndpoint == "" {
		return nil, fmt.Errorf("MINIO_ENDPOINT is not set")
	}
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("Created snapshot bucket", logger.String("bucket", cfg.MinioBucket))
	}
	return &SnapshotExporter{client: client, bucket: cfg.MinioBucket}, nil
}

// EncodeSummary renders a summary the way it is stored.
func EncodeSummary(summary model.SnapshotSummary) ([]byte, error) {
	return json.MarshalIndent(summary, "", "  ")
}

// Export stores summary under its generation key and as the latest summary.
func (x *SnapshotExporter) Export(ctx context.Context, summary model.SnapshotSummary) (string, error) {
	body, err := EncodeSummary(summary)
	if err != nil {
		return "", fmt.Errorf("encode snapshot summary: %w", err)
	}
	key := ObjectKey(summary.Stats.Generation)
	for _, k := range []string{key, LatestKey} {
		_, err := x.client.PutObject(ctx, x.bucket, k, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
			ContentType: "application/json",
		})
		if err != nil {
			return "", fmt.Errorf("upload %s: %w", k, err)
		}
	}
	logger.Info("Snapshot summary exported",
		logger.String("bucket", x.bucket),
		logger.String("key", key),
		logger.Int("bytes", len(body)))
	return key, nil
}

// List returns stored generation summaries, newest first.
func (x *SnapshotExporter) List(ctx context.Context) ([]ExportInfo, error) {
	var out []ExportInfo
	for obj := range x.client.ListObjects(ctx, x.bucket, minio.ListObjectsOptions{Prefix: snapshotPrefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", snapshotPrefix, obj.Err)
		}
		if obj.Key == LatestKey || path.Ext(obj.Key) != ".json" {
			continue
		}
		out = append(out, ExportInfo{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	// zero padded keys sort by generation
	slices.SortFunc(out, func(a, b ExportInfo) int { return strings.Compare(b.Key, a.Key) })
	return out, nil
}
