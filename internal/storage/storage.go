// Package storage defines the gateway to an S3-compatible object store.
// Two drivers are provided: MinIO's client and the AWS SDK v2. Both speak to
// any S3-compatible provider (LocalStack, MinIO, AWS S3), so the driver is a
// deployment choice rather than a code change.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"
	"time"

	"github.com/fiambond/attachments/internal/config"
)

// ErrStoreFailure wraps any provider-side error.
var ErrStoreFailure = errors.New("object store failure")

// ErrFileNotFound is returned by UploadFile when the source path does not exist.
var ErrFileNotFound = errors.New("source file not found")

// bucketOwnedCode is the S3 error code for "bucket already exists and you own it".
const bucketOwnedCode = "BucketAlreadyOwnedByYou"

// EnsureResult reports how EnsureBucket succeeded.
type EnsureResult int

const (
	// Created means the bucket did not exist and was created by this call.
	Created EnsureResult = iota + 1
	// AlreadyOwned means the bucket already existed under the caller's account.
	AlreadyOwned
)

func (r EnsureResult) String() string {
	switch r {
	case Created:
		return "created"
	case AlreadyOwned:
		return "already owned"
	default:
		return "unknown"
	}
}

// ObjectInfo is one entry of a bucket listing.
type ObjectInfo struct {
	Key  string
	Size int64
}

// BucketInfo is one entry of an account's bucket listing.
type BucketInfo struct {
	Name      string
	CreatedAt time.Time
}

// Gateway is the set of object-store operations the service and the
// maintenance tool depend on.
type Gateway interface {
	// EnsureBucket creates the bucket, treating "already owned by you" as success.
	// In public URL mode it also grants anonymous read on the bucket's objects.
	EnsureBucket(ctx context.Context, bucket, region string) (EnsureResult, error)
	// PutObject stores data under the exact key.
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
	// UploadFile stores the local file at path under objectName.
	UploadFile(ctx context.Context, bucket, path, objectName string) error
	// ListObjects lazily lists the bucket. Each iteration starts a fresh listing.
	ListObjects(ctx context.Context, bucket string) iter.Seq2[ObjectInfo, error]
	// ListBuckets lists every bucket visible to the credentials.
	ListBuckets(ctx context.Context) ([]BucketInfo, error)
	// ObjectURL returns a URL for the object: public or presigned depending on configuration.
	ObjectURL(ctx context.Context, bucket, key string) (string, error)
}

// New builds the Gateway selected by cfg.Driver.
func New(cfg config.Storage) (Gateway, error) {
	switch cfg.Driver {
	case config.DriverMinio, "":
		return NewMinioGateway(cfg)
	case config.DriverS3:
		return NewS3Gateway(context.Background(), cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// storeErr wraps err as a store failure with an operation label.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreFailure, op, err)
}

// splitEndpoint accepts "host:port" or a full URL and returns the host and
// whether TLS should be used. An explicit https scheme forces TLS.
func splitEndpoint(endpoint string, useSSL bool) (host string, secure bool) {
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return u.Host, useSSL || u.Scheme == "https"
	}
	return strings.TrimRight(endpoint, "/"), useSSL
}

// endpointURL is the inverse of splitEndpoint: it always carries a scheme.
func endpointURL(endpoint string, useSSL bool) string {
	host, secure := splitEndpoint(endpoint, useSSL)
	if secure {
		return "https://" + host
	}
	return "http://" + host
}

// publicURL joins the public base and key.
func publicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

// publicReadPolicy returns an S3 bucket policy allowing anonymous GET on every
// object in bucket, so public object URLs resolve without signing.
func publicReadPolicy(bucket string) string {
	policy := map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{
			{
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}
