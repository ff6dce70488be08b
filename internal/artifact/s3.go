package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PresignTTL bounds the lifetime of URLs returned by S3Store.GetURL.
const PresignTTL = time.Hour

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func (c S3Config) validate() error {
	var missing []string
	for _, f := range []struct{ name, v string }{
		{"endpoint", c.Endpoint},
		{"access key", c.AccessKey},
		{"secret key", c.SecretKey},
		{"bucket", c.Bucket},
	} {
		if strings.TrimSpace(f.v) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("artifact: s3 %s required", strings.Join(missing, ", "))
	}
	return nil
}

// S3Store keeps artifacts in an S3 compatible bucket as <runID>/<path>
// objects. The bucket is created on first use.
type S3Store struct {
	client *minio.Client
	bucket string
	region string

	bucketOnce sync.Once
	bucketErr  error
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(strings.TrimSpace(cfg.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: s3 client: %w", err)
	}
	return &S3Store{client: client, bucket: strings.TrimSpace(cfg.Bucket), region: region}, nil
}

func (s *S3Store) ready(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("store is nil")
	}
	s.bucketOnce.Do(func() {
		ok, err := s.client.BucketExists(ctx, s.bucket)
		switch {
		case err != nil:
			s.bucketErr = err
		case !ok:
			s.bucketErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
		}
	})
	if s.bucketErr != nil {
		return fmt.Errorf("artifact: bucket %s: %w", s.bucket, s.bucketErr)
	}
	return nil
}

func (s *S3Store) Put(ctx context.Context, runID, path string, content []byte) error {
	runID, path, err := normalize(runID, path)
	if err != nil {
		return err
	}
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, objectKey(runID, path), bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType:  contentType(path),
		UserMetadata: map[string]string{"run-id": runID},
	})
	return err
}

func (s *S3Store) Get(ctx context.Context, runID, path string) ([]byte, error) {
	runID, path, err := normalize(runID, path)
	if err != nil {
		return nil, err
	}
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(runID, path), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	// GetObject is lazy; Stat surfaces a missing key before the read.
	if _, err := obj.Stat(); err != nil {
		return nil, translate(err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translate(err)
	}
	return data, nil
}

func (s *S3Store) List(ctx context.Context, runID string) ([]string, error) {
	runID, err := normalizeRun(runID)
	if err != nil {
		return nil, err
	}
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	prefix := runID + "/"
	var paths []string
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, info.Err
		}
		if rel, ok := strings.CutPrefix(info.Key, prefix); ok && rel != "" {
			paths = append(paths, rel)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// GetURL presigns a download link valid for PresignTTL.
func (s *S3Store) GetURL(ctx context.Context, runID, path string) (string, error) {
	runID, path, err := normalize(runID, path)
	if err != nil {
		return "", err
	}
	if s == nil || s.client == nil {
		return "", fmt.Errorf("store is nil")
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey(runID, path), PresignTTL, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func translate(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return errors.Join(ErrNotFound, err)
	}
	return err
}

func contentType(path string) string {
	ext := path[strings.LastIndexByte(path, '.')+1:]
	switch ext {
	case "v", "sv", "vh", "txt", "log":
		return "text/plain; charset=utf-8"
	case "md":
		return "text/markdown; charset=utf-8"
	case "json":
		return "application/json"
	}
	return "application/octet-stream"
}
