package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store reads trained artifacts by name. Open returns an error wrapping
// fs.ErrNotExist when the artifact is absent.
type Store interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	String() string
}

// DirStore reads artifacts from a local directory.
type DirStore struct {
	Dir string
}

func (d DirStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(d.Dir, name))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

func (d DirStore) String() string { return d.Dir }

// S3Options configures an S3Store.
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3Store reads artifacts from an S3-compatible bucket under a key prefix.
type S3Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewS3Store parses location (s3://bucket/prefix) and builds a client.
func NewS3Store(location string, opts S3Options) (*S3Store, error) {
	bucket, prefix, err := ParseS3Location(location)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("model: create s3 client: %w", err)
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix}, nil
}

// ParseS3Location splits s3://bucket/prefix into its parts.
func ParseS3Location(location string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return "", "", fmt.Errorf("model: %q is not an s3:// location", location)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("model: %q has no bucket", location)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

func (s *S3Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *S3Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	// GetObject is lazy; Stat surfaces a missing key before anyone reads.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		switch minio.ToErrorResponse(err).Code {
		case "NoSuchKey", "NoSuchBucket":
			return nil, fmt.Errorf("s3 object %s: %w", s.key(name), fs.ErrNotExist)
		}
		return nil, fmt.Errorf("s3 stat object: %w", err)
	}
	return obj, nil
}

func (s *S3Store) String() string {
	return "s3://" + path.Join(s.bucket, s.prefix)
}

// isMissing reports whether err means the artifact does not exist.
func isMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
