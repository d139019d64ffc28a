package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/fiambond/attachments/internal/config"
)

// MinioGateway implements Gateway using a MinIO (or any S3-compatible) backend.
type MinioGateway struct {
	client     *minio.Client
	publicBase string
	presign    bool
	presignTTL time.Duration
}

// NewMinioGateway creates the MinIO client. It does not touch the network;
// bucket creation is an explicit EnsureBucket call.
func NewMinioGateway(cfg config.Storage) (*MinioGateway, error) {
	host, secure := splitEndpoint(cfg.Endpoint, cfg.UseSSL)

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	client.SetAppInfo("fiambond-attachments", "1.0")

	return &MinioGateway{
		client:     client,
		publicBase: cfg.PublicBase,
		presign:    cfg.URLMode == config.URLModePresigned,
		presignTTL: cfg.PresignTTL,
	}, nil
}

// EnsureBucket creates bucket in region. Region "us-east-1" is sent without a
// location constraint. In public URL mode the bucket gets a public-read policy.
func (g *MinioGateway) EnsureBucket(ctx context.Context, bucket, region string) (EnsureResult, error) {
	res := Created
	if err := g.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		if minio.ToErrorResponse(err).Code != bucketOwnedCode {
			return 0, storeErr(fmt.Sprintf("create bucket %q", bucket), err)
		}
		res = AlreadyOwned
	}

	if !g.presign {
		if err := g.client.SetBucketPolicy(ctx, bucket, publicReadPolicy(bucket)); err != nil {
			return 0, storeErr(fmt.Sprintf("set policy on bucket %q", bucket), err)
		}
	}
	return res, nil
}

// PutObject uploads data under key with the given content type.
func (g *MinioGateway) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := g.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return storeErr(fmt.Sprintf("put object %q", key), err)
	}
	return nil
}

// UploadFile uploads the file at path under objectName. The content type is
// sniffed from the file contents.
func (g *MinioGateway) UploadFile(ctx context.Context, bucket, path, objectName string) error {
	contentType, err := detectFileType(path)
	if err != nil {
		return err
	}

	_, err = g.client.FPutObject(ctx, bucket, objectName, path, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return storeErr(fmt.Sprintf("upload %q", path), err)
	}
	return nil
}

// ListObjects lists every object in bucket recursively.
func (g *MinioGateway) ListObjects(ctx context.Context, bucket string) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		// Cancelling stops minio's producer goroutine if the caller breaks early.
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		for obj := range g.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
			if obj.Err != nil {
				yield(ObjectInfo{}, storeErr(fmt.Sprintf("list bucket %q", bucket), obj.Err))
				return
			}
			if !yield(ObjectInfo{Key: obj.Key, Size: obj.Size}, nil) {
				return
			}
		}
	}
}

// ListBuckets lists all buckets visible to the credentials.
func (g *MinioGateway) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	buckets, err := g.client.ListBuckets(ctx)
	if err != nil {
		return nil, storeErr("list buckets", err)
	}
	out := make([]BucketInfo, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, BucketInfo{Name: b.Name, CreatedAt: b.CreationDate})
	}
	return out, nil
}

// ObjectURL returns a presigned GET URL in presigned mode, otherwise the
// public URL under the configured base.
func (g *MinioGateway) ObjectURL(ctx context.Context, bucket, key string) (string, error) {
	if !g.presign {
		return publicURL(g.publicBase, key), nil
	}
	u, err := g.client.PresignedGetObject(ctx, bucket, key, g.presignTTL, nil)
	if err != nil {
		return "", storeErr(fmt.Sprintf("presign %q", key), err)
	}
	return u.String(), nil
}

// detectFileType stats path and sniffs its MIME type.
func detectFileType(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return "", fmt.Errorf("stat %q: %w", path, err)
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect content type of %q: %w", path, err)
	}
	return mt.String(), nil
}
