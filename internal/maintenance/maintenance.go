// Package maintenance implements the offline bucket chores: ensure the bucket,
// push a seed file and print what the bucket holds. Every step reports to an
// io.Writer and returns false instead of exiting, so a caller can halt a
// sequence by branching.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/fiambond/attachments/internal/storage"
)

// Runner runs maintenance steps against one bucket.
type Runner struct {
	gw     storage.Gateway
	bucket string
	region string
	out    io.Writer
	log    zerolog.Logger
}

// NewRunner creates a Runner printing to out.
func NewRunner(gw storage.Gateway, bucket, region string, out io.Writer, log zerolog.Logger) *Runner {
	return &Runner{gw: gw, bucket: bucket, region: region, out: out, log: log}
}

// EnsureBucket creates the bucket; an existing bucket we own counts as success.
func (r *Runner) EnsureBucket(ctx context.Context) bool {
	r.printf("Attempting to create S3 bucket: '%s'...\n", r.bucket)
	res, err := r.gw.EnsureBucket(ctx, r.bucket, r.region)
	if err != nil {
		r.log.Error().Err(err).Str("bucket", r.bucket).Msg("ensure bucket failed")
		r.printf("Error: could not create bucket '%s': %v\n", r.bucket, err)
		return false
	}
	if res == storage.AlreadyOwned {
		r.printf("Bucket '%s' already exists. Continuing.\n", r.bucket)
	} else {
		r.printf("Success! Bucket '%s' created.\n", r.bucket)
	}
	return true
}

// UploadFile pushes the local file at path to objectName.
func (r *Runner) UploadFile(ctx context.Context, path, objectName string) bool {
	r.printf("Attempting to upload file '%s' to bucket '%s' as '%s'...\n", path, r.bucket, objectName)
	err := r.gw.UploadFile(ctx, r.bucket, path, objectName)
	switch {
	case errors.Is(err, storage.ErrFileNotFound):
		r.printf("Error: the file '%s' was not found.\n", path)
		return false
	case err != nil:
		r.log.Error().Err(err).Str("path", path).Str("key", objectName).Msg("upload failed")
		r.printf("Error: could not upload file: %v\n", err)
		return false
	}
	r.printf("Success! File uploaded.\n")
	return true
}

// ListFiles prints every object in the bucket.
func (r *Runner) ListFiles(ctx context.Context) bool {
	r.printf("\n--- Files in bucket '%s' ---\n", r.bucket)
	defer r.printf("---------------------------------\n")

	var n int
	for obj, err := range r.gw.ListObjects(ctx, r.bucket) {
		if err != nil {
			r.log.Error().Err(err).Str("bucket", r.bucket).Msg("list objects failed")
			r.printf("Could not list files: %v\n", err)
			return false
		}
		r.printf("- %s (Size: %d bytes)\n", obj.Key, obj.Size)
		n++
	}
	if n == 0 {
		r.printf("Bucket is empty.\n")
	}
	return true
}

// ListBuckets prints every bucket visible to the credentials.
func (r *Runner) ListBuckets(ctx context.Context) bool {
	buckets, err := r.gw.ListBuckets(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("list buckets failed")
		r.printf("Could not list buckets: %v\n", err)
		return false
	}
	r.printf("Buckets found:\n")
	for _, b := range buckets {
		r.printf("  - %s\n", b.Name)
	}
	return true
}

// Run is the full sequence: ensure, upload, list. Each step runs only when the
// previous one succeeded. The return value reports whether all three ran.
func (r *Runner) Run(ctx context.Context, path, objectName string) bool {
	ok := r.EnsureBucket(ctx) &&
		r.UploadFile(ctx, path, objectName) &&
		r.ListFiles(ctx)
	r.printf("\n--- Script finished ---\n")
	return ok
}

func (r *Runner) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}
