// Package storage uploads profile documents to object storage and hands back
// the URLs that are persisted in place of the files.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/gigs-profile-service/app/observability/metrics"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/schema"
	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

const maxParallelUploads = 4

// Uploader validates files against bucket and size rules before storing them.
type Uploader struct {
	store    ObjectStorage
	quota    Quota
	buckets  map[string]struct{}
	maxBytes int64
	logger   *slog.Logger
}

func NewUploader(store ObjectStorage, quota Quota, buckets []string, maxBytes int64, logger *slog.Logger) *Uploader {
	if quota == nil {
		quota = NoQuota{}
	}
	allowed := make(map[string]struct{}, len(buckets))
	for _, b := range buckets {
		allowed[b] = struct{}{}
	}
	return &Uploader{
		store:    store,
		quota:    quota,
		buckets:  allowed,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Upload stores one file in bucket and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, userID uuid.UUID, bucket string, fh *multipart.FileHeader) (string, error) {
	ctx, span := otel.Tracer("Uploader").Start(ctx, "Upload", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("storage.bucket", bucket),
		attribute.Int64("file.size", fh.Size),
	))
	defer span.End()

	if _, ok := u.buckets[bucket]; !ok {
		span.SetStatus(codes.Error, "Unknown bucket")
		return "", &types.ValidationError{Fields: []types.FieldError{{Field: "bucketName", Reason: "unknown bucket"}}}
	}
	if err := u.check(ctx, userID, "file", fh); err != nil {
		span.SetStatus(codes.Error, "Upload rejected")
		return "", err
	}

	url, err := u.put(ctx, userID, bucket, fh)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Upload failed")
		return "", err
	}
	span.SetStatus(codes.Ok, "File uploaded")
	return url, nil
}

// UploadDocuments stores every file of a multipart form under the bucket its
// document field maps to, in parallel. The result maps canonical document
// fields to URLs. Any failure fails the whole batch.
func (u *Uploader) UploadDocuments(ctx context.Context, userID uuid.UUID, files map[string][]*multipart.FileHeader) (map[string]string, error) {
	ctx, span := otel.Tracer("Uploader").Start(ctx, "UploadDocuments", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Int("files.count", len(files)),
	))
	defer span.End()

	type job struct {
		field, bucket string
		fh            *multipart.FileHeader
	}
	var (
		jobs    []job
		invalid []types.FieldError
	)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if len(files[name]) == 0 {
			continue
		}
		field, bucket, ok := schema.DocumentBucket(name)
		if !ok {
			invalid = append(invalid, types.FieldError{Field: name, Reason: "not a document field"})
			continue
		}
		fh := files[name][0]
		if fh.Size > u.maxBytes && u.maxBytes > 0 {
			invalid = append(invalid, types.FieldError{Field: field, Reason: fmt.Sprintf("file larger than %d bytes", u.maxBytes)})
			continue
		}
		jobs = append(jobs, job{field: field, bucket: bucket, fh: fh})
	}
	if len(invalid) > 0 {
		span.SetStatus(codes.Error, "Upload rejected")
		return nil, &types.ValidationError{Fields: invalid}
	}

	for _, j := range jobs {
		if err := u.allow(ctx, userID, j.field); err != nil {
			span.SetStatus(codes.Error, "Quota exceeded")
			return nil, err
		}
	}

	var mu sync.Mutex
	urls := make(map[string]string, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelUploads)
	for _, j := range jobs {
		g.Go(func() error {
			url, err := u.put(gctx, userID, j.bucket, j.fh)
			if err != nil {
				return err
			}
			mu.Lock()
			urls[j.field] = url
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Upload failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "Documents uploaded")
	return urls, nil
}

func (u *Uploader) check(ctx context.Context, userID uuid.UUID, field string, fh *multipart.FileHeader) error {
	if u.maxBytes > 0 && fh.Size > u.maxBytes {
		return &types.ValidationError{Fields: []types.FieldError{{Field: field, Reason: fmt.Sprintf("file larger than %d bytes", u.maxBytes)}}}
	}
	return u.allow(ctx, userID, field)
}

func (u *Uploader) allow(ctx context.Context, userID uuid.UUID, field string) error {
	ok, err := u.quota.Allow(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: checking quota: %v", types.ErrUpload, err)
	}
	if !ok {
		u.logger.InfoContext(ctx, "Upload quota exhausted", slog.String("userID", userID.String()))
		return &types.ValidationError{Fields: []types.FieldError{{Field: field, Reason: "daily upload limit reached"}}}
	}
	return nil
}

func (u *Uploader) put(ctx context.Context, userID uuid.UUID, bucket string, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("%w: opening %s: %v", types.ErrUpload, fh.Filename, err)
	}
	defer f.Close()

	key := objectKey(userID, fh.Filename)
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	url, err := u.store.Put(ctx, bucket, key, f, fh.Size, contentType)
	if err != nil {
		u.logger.ErrorContext(ctx, "Failed to store file",
			slog.String("bucket", bucket), slog.String("key", key), slog.Any("error", err))
		return "", fmt.Errorf("%w: %v", types.ErrUpload, err)
	}

	metrics.Get().UploadBytesTotal.Add(ctx, fh.Size, metric.WithAttributes(attribute.String("bucket", bucket)))
	u.logger.InfoContext(ctx, "File stored", slog.String("bucket", bucket), slog.String("key", key), slog.Int64("size", fh.Size))
	return url, nil
}

// objectKey namespaces files by user and gives each a sortable unique name.
func objectKey(userID uuid.UUID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return userID.String() + "/" + ulid.Make().String() + ext
}
