// Package services – ImageService
//
// This file implements ImageService, the application-level component that owns
// the image intake pipeline: validate the raw upload, normalize it into the
// size/dimension envelope, store the bytes in the object store, and persist
// the Image row. It also serves paginated history views, presigned URLs, and
// deletes with the referential rules enforced by the repository layer.
//
// Observability: the intake path is OpenTelemetry-instrumented; spans carry
// the owner id and classification tag.
package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"gorm.io/gorm"

	"github.com/vestyhq/go-vesty-backend/internal/domain"
	"github.com/vestyhq/go-vesty-backend/internal/repo"
	"github.com/vestyhq/go-vesty-backend/internal/storage"
	"github.com/vestyhq/go-vesty-backend/internal/upload"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ObjectStore is the slice of the object-store gateway the services need.
// The production implementation is storage.GCSStore.
type ObjectStore interface {
	// Put writes data under key and returns the object's public URL.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)

	// Delete removes the object under key; missing objects are not an error.
	Delete(ctx context.Context, key string) error

	// SignedViewURL returns a short-lived GET URL for inline display.
	SignedViewURL(key string) (string, time.Time, error)

	// SignedDownloadURL returns a GET URL forcing an attachment download.
	SignedDownloadURL(key, filename string) (string, time.Time, error)
}

// UploadInput carries one raw multipart file through the intake pipeline.
type UploadInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Presigned describes a minted signed URL for an image.
type Presigned struct {
	URL       string
	ExpiresIn int // seconds
	Action    string
	Filename  string
}

// ImageService coordinates upload validation, normalization, object storage,
// and Image row persistence.
type ImageService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Store persists and signs image bytes.
	Store ObjectStore
	// Validator rejects uploads outside the size/type policy.
	Validator *upload.Validator
	// Normalizer decodes, bounds, and re-encodes accepted uploads.
	Normalizer *upload.Normalizer

	// MaxPageSize caps the limit parameter on history views.
	MaxPageSize int
}

// NewImageService constructs an ImageService with the default page cap.
func NewImageService(db *gorm.DB, store ObjectStore, v *upload.Validator, n *upload.Normalizer) *ImageService {
	return &ImageService{DB: db, Store: store, Validator: v, Normalizer: n, MaxPageSize: 100}
}

// Upload runs the full intake pipeline for one file and returns the persisted
// Image row together with the normalization report. Validation and decode
// failures abort before any side effect; a storage or persistence failure
// after that point is returned as-is with no compensation, since object keys
// are never reused and orphaned objects are harmless.
func (s *ImageService) Upload(ctx context.Context, userID string, kind domain.ImageKind, in UploadInput) (*domain.Image, *upload.Result, error) {
	tr := otel.Tracer("services/ImageService")
	ctx, span := tr.Start(ctx, "Upload",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("image.kind", string(kind)),
		),
	)
	defer span.End()

	if !kind.Valid() {
		return nil, nil, ErrInvalidKind
	}
	if err := s.Validator.Validate(in.ContentType, in.Filename, int64(len(in.Data))); err != nil {
		return nil, nil, err
	}

	res, err := s.Normalizer.Normalize(in.Data)
	if err != nil {
		return nil, nil, err
	}

	key := storage.NewObjectKey(userID, res.Ext)
	url, err := s.Store.Put(ctx, key, res.ContentType, res.Data)
	if err != nil {
		return nil, nil, err
	}

	img := &domain.Image{
		UserID:      userID,
		Kind:        kind,
		URL:         url,
		StorageKey:  key,
		Filename:    in.Filename,
		SizeBytes:   res.Size,
		ContentType: res.ContentType,
		Width:       res.Width,
		Height:      res.Height,
	}
	if err := repo.CreateImage(ctx, s.DB, img); err != nil {
		return nil, nil, err
	}
	return img, res, nil
}

// SaveResult stores a generated artifact under classification result and
// persists its Image row. Generated bytes skip the upload validator and
// normalizer; the model already controls their size and format. Dimensions
// are probed best effort.
func (s *ImageService) SaveResult(ctx context.Context, userID string, data []byte, contentType string) (*domain.Image, error) {
	tr := otel.Tracer("services/ImageService")
	ctx, span := tr.Start(ctx, "SaveResult",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	ext := extForContentType(contentType)
	key := storage.NewObjectKey(userID, ext)
	url, err := s.Store.Put(ctx, key, contentType, data)
	if err != nil {
		return nil, err
	}

	width, height := probeDimensions(data)

	img := &domain.Image{
		UserID:      userID,
		Kind:        domain.ImageKindResult,
		URL:         url,
		StorageKey:  key,
		SizeBytes:   int64(len(data)),
		ContentType: contentType,
		Width:       width,
		Height:      height,
	}
	if err := repo.CreateImage(ctx, s.DB, img); err != nil {
		return nil, err
	}
	return img, nil
}

// Get fetches a single image owned by userID.
func (s *ImageService) Get(ctx context.Context, userID, id string) (*domain.Image, error) {
	img, err := repo.GetImage(ctx, s.DB, id, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrImageNotFound
	}
	return img, err
}

// ListPage returns a page of the user's images, newest first, optionally
// filtered to one classification. Page and limit are clamped to sane values.
func (s *ImageService) ListPage(ctx context.Context, userID string, kind domain.ImageKind, page, limit int) ([]domain.Image, int64, error) {
	if kind != "" && !kind.Valid() {
		return nil, 0, ErrInvalidKind
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if s.MaxPageSize > 0 && limit > s.MaxPageSize {
		limit = s.MaxPageSize
	}
	offset := (page - 1) * limit

	total, err := repo.CountImages(ctx, s.DB, userID, kind)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Image{}, 0, nil
	}

	items, err := repo.ListImagesPage(ctx, s.DB, userID, kind, offset, limit)
	return items, total, err
}

// Stats returns the row count and newest update time for the user's images,
// used by handlers to build validators for conditional requests.
func (s *ImageService) Stats(ctx context.Context, userID string, kind domain.ImageKind) (int64, *time.Time, error) {
	return repo.ImagesStats(ctx, s.DB, userID, kind)
}

// Delete removes an image row and then its stored bytes. Source images still
// referenced by a swap are rejected with ErrImageInUse; deleting a result
// image nulls the owning swap's reference instead. The object-store delete is
// best effort, the row is authoritative.
func (s *ImageService) Delete(ctx context.Context, userID, id string) error {
	tr := otel.Tracer("services/ImageService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("image.id", id),
		),
	)
	defer span.End()

	img, err := repo.GetImage(ctx, s.DB, id, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrImageNotFound
	}
	if err != nil {
		return err
	}

	if err := repo.DeleteImage(ctx, s.DB, id, userID); err != nil {
		switch {
		case errors.Is(err, repo.ErrImageInUse):
			return ErrImageInUse
		case errors.Is(err, gorm.ErrRecordNotFound):
			return ErrImageNotFound
		}
		return err
	}

	_ = s.Store.Delete(ctx, img.StorageKey)
	return nil
}

// PresignURL mints a signed URL for the image. Action "view" uses the longer
// inline-display lifetime; "download" uses the shorter one and forces an
// attachment disposition named after the original upload.
func (s *ImageService) PresignURL(ctx context.Context, userID, id, action string) (*Presigned, error) {
	if action != "view" && action != "download" {
		return nil, ErrInvalidAction
	}

	img, err := repo.GetImage(ctx, s.DB, id, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, err
	}

	filename := img.Filename
	if filename == "" {
		filename = img.ID + extForContentType(img.ContentType)
	}

	var (
		signed  string
		expires time.Time
	)
	if action == "download" {
		signed, expires, err = s.Store.SignedDownloadURL(img.StorageKey, filename)
	} else {
		signed, expires, err = s.Store.SignedViewURL(img.StorageKey)
	}
	if err != nil {
		return nil, err
	}

	return &Presigned{
		URL:       signed,
		ExpiresIn: int(time.Until(expires).Seconds()),
		Action:    action,
		Filename:  filename,
	}, nil
}

func extForContentType(ct string) string {
	switch ct {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// probeDimensions decodes only the image header; zeroes on failure.
func probeDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
