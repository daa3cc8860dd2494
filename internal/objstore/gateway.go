// Package objstore is a thin gateway over an S3-compatible store (MinIO).
// The gateway is stateless; it only builds presigned URLs and moves bytes.
package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/romariotrain/scene-index/internal/video/models"
)

const (
	BucketUploads  = "uploads"
	BucketSidecars = "sidecars"
	BucketTmp      = "tmp"

	PresignPutTTL = 15 * time.Minute
	PresignGetTTL = 10 * time.Minute
)

type Config struct {
	Endpoint string
	// ExternalEndpoint подставляется в presigned URL вместо внутреннего:
	// браузер клиента не видит внутрикластерный хост.
	ExternalEndpoint string
	AccessKey        string
	SecretKey        string
	Secure           bool
	Logger           zerolog.Logger
}

type Gateway struct {
	client   *minio.Client
	external string
	internal string
	logger   zerolog.Logger
}

func New(cfg Config) (*Gateway, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("objstore endpoint is empty")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	external := cfg.ExternalEndpoint
	if external == "" {
		external = cfg.Endpoint
	}

	return &Gateway{
		client:   client,
		external: external,
		internal: cfg.Endpoint,
		logger:   cfg.Logger.With().Str("component", "objstore").Logger(),
	}, nil
}

// EnsureBuckets создаёт uploads/sidecars/tmp на старте, если их нет.
func (g *Gateway) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{BucketUploads, BucketSidecars, BucketTmp} {
		exists, err := g.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("bucket exists %s: %w", bucket, err)
		}
		if exists {
			continue
		}
		if err := g.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("make bucket %s: %w", bucket, err)
		}
		g.logger.Info().Str("bucket", bucket).Msg("created storage bucket")
	}
	return nil
}

// PresignPut возвращает URL для единственного PUT с привязкой к ключу.
func (g *Gateway) PresignPut(ctx context.Context, bucket, key string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = PresignPutTTL
	}
	expiresAt := time.Now().Add(ttl)

	u, err := g.client.PresignedPutObject(ctx, bucket, key, ttl)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign put %s/%s: %w", bucket, key, err)
	}
	return g.rewriteExternal(u), expiresAt, nil
}

func (g *Gateway) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = PresignGetTTL
	}
	u, err := g.client.PresignedGetObject(ctx, bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign get %s/%s: %w", bucket, key, err)
	}
	return g.rewriteExternal(u), nil
}

// Exists проверяет наличие объекта (complete_upload до PUT -> NOT_READY).
func (g *Gateway) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := g.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("stat %s/%s: %w", bucket, key, models.ErrDependencyUnavailable)
}

// Get — серверное чтение для воркера. Закрыть reader — на вызывающем.
func (g *Gateway) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := g.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	return obj, nil
}

// Download скачивает объект в локальный файл (воркеру нужен файл для ffmpeg).
func (g *Gateway) Download(ctx context.Context, bucket, key, path string) error {
	if err := g.client.FGetObject(ctx, bucket, key, path, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (g *Gateway) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := g.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return nil
}

// rewriteExternal меняет внутренний хост на внешний в presigned URL.
// MinIO подписывает Host, поэтому endpoints обязаны резолвиться в один
// и тот же инстанс.
func (g *Gateway) rewriteExternal(u *url.URL) string {
	s := u.String()
	if g.internal != g.external && strings.Contains(s, g.internal) {
		s = strings.Replace(s, "://"+g.internal+"/", "://"+g.external+"/", 1)
	}
	return s
}
