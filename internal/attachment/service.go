package attachment

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fiambond/attachments/internal/metrics"
	"github.com/fiambond/attachments/internal/storage"
)

// ObjectStore is the part of storage.Gateway the upload pipeline needs.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
	ObjectURL(ctx context.Context, bucket, key string) (string, error)
}

// Result is what a successful upload hands back to the caller.
type Result struct {
	URL string `json:"url"`
	Key string `json:"-"`
}

// Service runs decode → key → put → URL for one payload per call. It keeps no
// per-request state, so one instance serves concurrent requests.
type Service struct {
	store   ObjectStore
	bucket  string
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewService creates a Service writing into bucket. m may be nil.
func NewService(store ObjectStore, bucket string, log zerolog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		bucket:  bucket,
		log:     log.With().Str("component", "attachment").Logger(),
		metrics: m,
	}
}

// Upload decodes encoded, stores it under a fresh key and returns its URL.
// Malformed input fails with ErrMalformedPayload before any network call;
// store errors come back wrapped in storage.ErrStoreFailure.
func (s *Service) Upload(ctx context.Context, encoded string) (Result, error) {
	payload, err := DecodePayload(encoded)
	if err != nil {
		s.metrics.ObserveUpload(metrics.OutcomeInvalidArgument, 0)
		return Result{}, err
	}

	key := GenerateKey(payload.ContentType).String()
	log := s.log.With().Str("bucket", s.bucket).Str("key", key).Logger()
	log.Info().Str("content_type", payload.ContentType).Int("size", len(payload.Data)).Msg("uploading attachment")

	if err := s.store.PutObject(ctx, s.bucket, key, payload.Data, payload.ContentType); err != nil {
		s.metrics.ObserveUpload(metrics.OutcomeInternal, 0)
		return Result{}, asStoreFailure(err)
	}

	url, err := s.store.ObjectURL(ctx, s.bucket, key)
	if err != nil {
		s.metrics.ObserveUpload(metrics.OutcomeInternal, 0)
		return Result{}, asStoreFailure(err)
	}

	s.metrics.ObserveUpload(metrics.OutcomeOK, len(payload.Data))
	log.Info().Msg("attachment stored")
	return Result{URL: url, Key: key}, nil
}

// asStoreFailure makes sure every store error matches storage.ErrStoreFailure,
// including ones from ObjectStore implementations outside this module.
func asStoreFailure(err error) error {
	if errors.Is(err, storage.ErrStoreFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", storage.ErrStoreFailure, err)
}
