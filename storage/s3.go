package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

const defaultPutAttempts = 3

// S3Config carries the connection settings for an S3-compatible object store.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3Backend replicates artifacts to an S3-compatible object store. It is a
// best-effort target: callers treat its failures as warnings, never as a
// failure of the primary backup.
type S3Backend struct {
	client  *minio.Client
	bucket  string
	prefix  string
	logger  zerolog.Logger
	retries uint64
}

func NewS3Backend(cfg S3Config, logger zerolog.Logger) (*S3Backend, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: could not create client: %w", err)
	}

	return &S3Backend{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		logger:  logger,
		retries: defaultPutAttempts - 1,
	}, nil
}

func (s *S3Backend) Name() string { return "s3" }

func (s *S3Backend) key(name string) string {
	return s.prefix + name
}

// Put uploads the artifact and confirms the upload before returning.
// Transient failures are retried with exponential backoff when the reader is
// seekable; credential failures are surfaced immediately as AuthError.
func (s *S3Backend) Put(ctx context.Context, name string, r io.Reader, size int64) error {
	attempt := func() error {
		_, err := s.client.PutObject(ctx, s.bucket, s.key(name), r, size, minio.PutObjectOptions{
			ContentType: "application/gzip",
		})
		if err != nil {
			return s.classify(err)
		}
		return nil
	}

	seeker, seekable := r.(io.Seeker)
	if !seekable {
		return attempt()
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.retries), ctx)
	tries := 0
	return backoff.Retry(func() error {
		if tries > 0 {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return backoff.Permanent(fmt.Errorf("s3: could not rewind artifact: %w", err))
			}
			s.logger.Warn().Str("name", name).Int("attempt", tries+1).Msg("retrying remote upload")
		}
		tries++

		err := attempt()
		if err == nil {
			return nil
		}
		if IsAuthError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func (s *S3Backend) List(ctx context.Context) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: s.prefix}) {
		if object.Err != nil {
			return nil, s.classify(object.Err)
		}
		name := strings.TrimPrefix(object.Key, s.prefix)
		if !IsArtifactName(name) {
			continue
		}
		createdAt, err := ParseArtifactName(name)
		if err != nil {
			continue
		}
		objects = append(objects, ObjectInfo{
			Name:      name,
			Size:      object.Size,
			CreatedAt: createdAt,
		})
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

func (s *S3Backend) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	object, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.classify(err)
	}
	// GetObject is lazy: probe so a missing key surfaces here, not mid-copy.
	if _, err := object.Stat(); err != nil {
		object.Close()
		return nil, s.classify(err)
	}
	return object, nil
}

func (s *S3Backend) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{})
	if err != nil {
		return s.classify(err)
	}
	return nil
}

func (s *S3Backend) classify(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey":
		return fmt.Errorf("s3: %w", ErrNotFound)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AllAccessDisabled":
		return &AuthError{Backend: s.Name(), Err: err}
	}
	return &TransientError{Backend: s.Name(), Err: err}
}

// Ping verifies bucket access once at startup so credential problems show up
// before the first scheduled run.
func (s *S3Backend) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	exists, err := s.client.BucketExists(pingCtx, s.bucket)
	if err != nil {
		return s.classify(err)
	}
	if !exists {
		return fmt.Errorf("s3: bucket %q does not exist", s.bucket)
	}
	return nil
}
