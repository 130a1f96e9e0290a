package adapter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	m "github.com/opaquebits/modelinspect/internal/model"
)

// Environment variables configuring the object store connection.
const (
	EnvObjectEndpoint  = "MODELINSPECT_S3_ENDPOINT"
	EnvObjectAccessKey = "MODELINSPECT_S3_ACCESS_KEY"
	EnvObjectSecretKey = "MODELINSPECT_S3_SECRET_KEY"
	EnvObjectUseSSL    = "MODELINSPECT_S3_USE_SSL"
)

// ObjectStore fetches remote artifacts into local scratch files so the
// scan pipeline only ever reads local bytes.
type ObjectStore interface {
	// Fetch downloads the object behind an s3:// URL and returns the path
	// of the local copy. The caller owns the file and removes it after
	// the scan.
	Fetch(ctx context.Context, rawURL string) (m.Path, error)
}

// IsObjectURL reports whether an artifact argument names an object-store
// location rather than a local file.
func IsObjectURL(raw string) bool {
	return strings.HasPrefix(raw, "s3://")
}

// MinioObjectStore is the S3-compatible ObjectStore implementation.
type MinioObjectStore struct {
	client *minio.Client
}

// NewMinioObjectStore builds a client from the MODELINSPECT_S3_*
// environment variables.
func NewMinioObjectStore() (*MinioObjectStore, error) {
	endpoint := os.Getenv(EnvObjectEndpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%s not set; remote artifacts need an object store endpoint", EnvObjectEndpoint)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(os.Getenv(EnvObjectAccessKey), os.Getenv(EnvObjectSecretKey), ""),
		Secure: os.Getenv(EnvObjectUseSSL) == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	return &MinioObjectStore{client: client}, nil
}

// Fetch streams s3://bucket/key into a temp file, preserving the key's
// extension so format detection by extension still works.
func (s *MinioObjectStore) Fetch(ctx context.Context, rawURL string) (m.Path, error) {
	bucket, key, err := splitObjectURL(rawURL)
	if err != nil {
		return "", err
	}

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	defer func() {
		_ = obj.Close()
	}()

	tmp, err := os.CreateTemp("", "modelinspect-*"+filepath.Ext(key))
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}

	if _, err := io.Copy(tmp, obj); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}

	if err := tmp.Close(); err != nil {
		return "", err
	}

	return m.Path(tmp.Name()), nil
}

func splitObjectURL(rawURL string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(rawURL, "s3://")

	bucket, key, ok := strings.Cut(trimmed, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed object URL %q, want s3://bucket/key", rawURL)
	}

	return bucket, key, nil
}
