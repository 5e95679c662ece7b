package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dstack-labs/bronzeload/pkg/bronze"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Source supplies the dataset archive to extract from.
type Source interface {
	// Fetch materializes the archive under destDir and returns its path.
	Fetch(ctx context.Context, destDir string) (string, error)

	// Version identifies the current upstream archive revision (ETag or
	// mtime). Used to skip re-extraction when the source is unchanged.
	Version(ctx context.Context) (string, error)
}

// Environment variables for the object-store source.
const (
	EnvS3Endpoint  = "S3_ENDPOINT"
	EnvS3AccessKey = "S3_ACCESS_KEY"
	EnvS3SecretKey = "S3_SECRET_KEY"
	EnvS3UseSSL    = "S3_USE_SSL"
)

// ParseSourceURI returns the Source for a dataset URI: "s3://bucket/key"
// for an object store, anything else for a local archive path.
func ParseSourceURI(uri string) (Source, error) {
	if strings.HasPrefix(uri, "s3://") {
		rest := strings.TrimPrefix(uri, "s3://")
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || key == "" {
			return nil, fmt.Errorf("object store URI %q must be s3://bucket/key: %w", uri, bronze.ErrInvalidConfig)
		}
		return newObjectStoreSource(bucket, key)
	}
	return &localSource{path: uri}, nil
}

// localSource reads the archive from the local filesystem.
type localSource struct {
	path string
}

func (s *localSource) Fetch(_ context.Context, _ string) (string, error) {
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("archive %q: %w", s.path, bronze.ErrNotFound)
		}
		return "", err
	}
	return s.path, nil
}

func (s *localSource) Version(_ context.Context) (string, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(info.ModTime().UnixNano(), 10), nil
}

// objectStoreSource downloads the archive from an S3-compatible object store.
type objectStoreSource struct {
	client *minio.Client
	bucket string
	key    string
}

func newObjectStoreSource(bucket, key string) (*objectStoreSource, error) {
	endpoint := os.Getenv(EnvS3Endpoint)
	accessKey := os.Getenv(EnvS3AccessKey)
	secretKey := os.Getenv(EnvS3SecretKey)
	if endpoint == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("object store source requires %s, %s and %s: %w",
			EnvS3Endpoint, EnvS3AccessKey, EnvS3SecretKey, bronze.ErrInvalidConfig)
	}

	useSSL := true
	if v := os.Getenv(EnvS3UseSSL); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s must be a boolean, got %q: %w", EnvS3UseSSL, v, bronze.ErrInvalidConfig)
		}
		useSSL = parsed
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	return &objectStoreSource{client: client, bucket: bucket, key: key}, nil
}

func (s *objectStoreSource) Fetch(ctx context.Context, destDir string) (string, error) {
	dest := filepath.Join(destDir, filepath.Base(s.key))
	if err := s.client.FGetObject(ctx, s.bucket, s.key, dest, minio.GetObjectOptions{}); err != nil {
		return "", fmt.Errorf("download s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return dest, nil
}

func (s *objectStoreSource) Version(ctx context.Context) (string, error) {
	info, err := s.client.StatObject(ctx, s.bucket, s.key, minio.StatObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("stat s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return info.ETag, nil
}
