package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// ErrUpload wraps failures of the storage backend.
var ErrUpload = errors.New("image upload failed")

// Storage puts an object under key and returns its public URL.
type Storage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL replaces the endpoint in returned URLs, e.g. a CDN origin.
	PublicURL string
}

type MinioStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioStorage connects to an S3-compatible store and creates the bucket if needed.
func NewMinioStorage(ctx context.Context, opts MinioOptions) (*MinioStorage, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		log.Info().Str("bucket", opts.Bucket).Msg("storage bucket created")
	}

	public := strings.TrimRight(opts.PublicURL, "/")
	if public == "" {
		public = strings.TrimRight(client.EndpointURL().String(), "/") + "/" + opts.Bucket
	}
	return &MinioStorage{client: client, bucket: opts.Bucket, publicURL: public}, nil
}

func (s *MinioStorage) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	return s.publicURL + "/" + key, nil
}

// DiskStorage keeps images under a local directory served at URLPrefix.
type DiskStorage struct {
	Dir       string
	URLPrefix string
}

func NewDiskStorage(dir, urlPrefix string) (*DiskStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskStorage{Dir: dir, URLPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

func (s *DiskStorage) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	target := filepath.Join(s.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	return s.URLPrefix + "/" + key, nil
}

// Uploader turns a raw upload into a stored, resized image.
type Uploader struct {
	Processor Processor
	Storage   Storage
}

func NewUploader(p Processor, storage Storage) *Uploader {
	return &Uploader{Processor: p, Storage: storage}
}

// Upload returns the public URL of the stored image. Validation errors are
// returned as-is; storage failures wrap ErrUpload.
func (u *Uploader) Upload(ctx context.Context, data []byte) (string, error) {
	img, err := u.Processor.Process(data)
	if err != nil {
		return "", err
	}
	key := path.Join("images", uuid.NewString()+img.Ext)
	url, err := u.Storage.Put(ctx, key, img.Data, img.ContentType)
	if err != nil {
		if !errors.Is(err, ErrUpload) {
			err = fmt.Errorf("%w: %v", ErrUpload, err)
		}
		return "", err
	}
	log.Info().Str("key", key).Int("bytes", len(img.Data)).Msg("image stored")
	return url, nil
}
