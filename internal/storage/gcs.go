// Package storage provides the object store gateway backing image
// persistence. The production implementation targets Google Cloud
// Storage; services depend on the narrow interface they declare, so
// tests substitute fakes without touching this package.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/vestyhq/go-vesty-backend/internal/config"
)

// ErrObjectNotFound is returned when a key has no backing object.
var ErrObjectNotFound = errors.New("storage: object not found")

// ObjectInfo describes a stored object without fetching its payload.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	Updated     time.Time
}

// GCSStore stores image bytes in a Google Cloud Storage bucket.
type GCSStore struct {
	client      *gcs.Client
	bucket      string
	publicBase  string
	viewTTL     time.Duration
	downloadTTL time.Duration
}

// NewGCSStore dials GCS using ambient application credentials.
func NewGCSStore(ctx context.Context, cfg config.StorageConfig) (*GCSStore, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &GCSStore{
		client:      client,
		bucket:      cfg.Bucket,
		publicBase:  strings.TrimRight(cfg.PublicBaseURL, "/"),
		viewTTL:     cfg.ViewTTL,
		downloadTTL: cfg.DownloadTTL,
	}, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// Put writes data under key and returns the object's public URL.
// An existing object under the same key is overwritten.
func (s *GCSStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	wc := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := io.Copy(wc, bytes.NewReader(data)); err != nil {
		wc.Close()
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("close object %s: %w", key, err)
	}
	return s.PublicURL(key), nil
}

// Delete removes the object under key. Deleting a missing object is
// not an error so callers can retry cleanup safely.
func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// Exists reports whether an object is stored under key.
func (s *GCSStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat object %s: %w", key, err)
	}
	return true, nil
}

// Head returns object metadata without downloading the payload.
func (s *GCSStore) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	attrs, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stat object %s: %w", key, err)
	}
	return &ObjectInfo{
		Key:         key,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		Updated:     attrs.Updated,
	}, nil
}

// SignedViewURL returns a short-lived GET URL for inline display.
func (s *GCSStore) SignedViewURL(key string) (string, time.Time, error) {
	return s.signedURL(key, s.viewTTL, nil)
}

// SignedDownloadURL returns a GET URL that forces an attachment
// download under filename. Its TTL is tighter than the view TTL.
func (s *GCSStore) SignedDownloadURL(key, filename string) (string, time.Time, error) {
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", filename))
	return s.signedURL(key, s.downloadTTL, params)
}

func (s *GCSStore) signedURL(key string, ttl time.Duration, params url.Values) (string, time.Time, error) {
	expires := time.Now().Add(ttl)
	opts := &gcs.SignedURLOptions{
		Scheme:          gcs.SigningSchemeV4,
		Method:          "GET",
		Expires:         expires,
		QueryParameters: params,
	}
	signed, err := s.client.Bucket(s.bucket).SignedURL(key, opts)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign url for %s: %w", key, err)
	}
	return signed, expires, nil
}

// PublicURL returns the canonical unsigned URL recorded on the image
// row. It prefers the configured CDN base when one is set.
func (s *GCSStore) PublicURL(key string) string {
	if s.publicBase != "" {
		return s.publicBase + "/" + key
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key)
}

// NewObjectKey builds a collision-resistant object key. Keys are
// partitioned by owner so per-user cleanup stays a prefix listing;
// uploads without an authenticated owner land under "anonymous".
func NewObjectKey(ownerID, ext string) string {
	owner := ownerID
	if owner == "" {
		owner = "anonymous"
	}
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return "images/" + owner + "/" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + suffix + ext
}
