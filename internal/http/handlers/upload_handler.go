// Image upload HTTP handlers.
//
// This file exposes the intake and history endpoints:
//   - POST   /upload            (validate, normalize, store one image)
//   - GET    /upload            (list, paginated, ETag support; aliased as /images)
//   - DELETE /upload?id=...     (delete with referential rules)
//
// Handlers are transport-thin: they decode multipart input, call application
// services, and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vestyhq/go-vesty-backend/internal/domain"
	"github.com/vestyhq/go-vesty-backend/internal/repo"
	"github.com/vestyhq/go-vesty-backend/internal/services"
	"github.com/vestyhq/go-vesty-backend/internal/upload"
	"github.com/vestyhq/go-vesty-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ImageService defines the image intake and history operations consumed by
// HTTP handlers. Implementations must honor the provided context.
type ImageService interface {
	// Upload runs the intake pipeline for one file.
	Upload(ctx context.Context, userID string, kind domain.ImageKind, in services.UploadInput) (*domain.Image, *upload.Result, error)
	// ListPage returns a page of the user's images and the total count.
	ListPage(ctx context.Context, userID string, kind domain.ImageKind, page, limit int) ([]domain.Image, int64, error)
	// Stats returns row count and newest update time for ETag construction.
	Stats(ctx context.Context, userID string, kind domain.ImageKind) (int64, *time.Time, error)
	// Delete removes an image, honoring swap references.
	Delete(ctx context.Context, userID, id string) error
	// PresignURL mints a signed view or download URL.
	PresignURL(ctx context.Context, userID, id, action string) (*services.Presigned, error)
}

// SwapService defines the outfit-transfer operations consumed by handlers.
type SwapService interface {
	// Create runs one swap pipeline end to end.
	Create(ctx context.Context, userID string, person, outfit services.UploadInput) (*services.SwapResult, error)
	// ListPage returns a page of the user's swap history and the total count.
	ListPage(ctx context.Context, userID string, status domain.SwapStatus, limit, offset int) ([]services.SwapView, int64, error)
	// Get fetches a single swap owned by the user.
	Get(ctx context.Context, userID, id string) (*domain.Swap, error)
}

// UserService defines the account operations consumed by handlers and the
// identity-provider webhook.
type UserService interface {
	// Ensure upserts the account row for a subject id.
	Ensure(ctx context.Context, id, email, displayName string) (*domain.User, error)
	// Delete removes an account and cascades to its images and swaps.
	Delete(ctx context.Context, id string) error
}

//
// Handler wiring
//

// IdempotencyRecorder persists a (user, key) → swap association after a swap
// attempt, so retried requests can be served from the stored row.
type IdempotencyRecorder interface {
	Record(ctx context.Context, userID, key, swapID string) error
}

// Handlers groups the HTTP endpoints for uploads, swaps, and account events.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	imgSvc  ImageService
	swapSvc SwapService
	userSvc UserService
	idem    IdempotencyRecorder // optional; nil disables replay bookkeeping
}

// New constructs and returns a Handlers instance bound to the given services.
// idem may be nil when idempotent replay is not wired.
func New(imgSvc ImageService, swapSvc SwapService, userSvc UserService, idem IdempotencyRecorder) *Handlers {
	return &Handlers{imgSvc: imgSvc, swapSvc: swapSvc, userSvc: userSvc, idem: idem}
}

// userID extracts the authenticated user id from Gin context (set by the
// auth middleware). If absent, it falls back to "X-User-ID" header (tests
// use it). Empty means unauthenticated.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		return strings.TrimSpace(c.GetHeader("X-User-ID"))
	}
	return ""
}

// ensureUser mirrors the authenticated account into the users table before
// the first write. Claims are placed in context by the auth middleware.
func (h *Handlers) ensureUser(c *gin.Context, uid string) error {
	_, err := h.userSvc.Ensure(c.Request.Context(), uid, c.GetString("userEmail"), c.GetString("userName"))
	return err
}

//
// DTOs
//

// UploadMetadata reports what normalization did to an accepted upload.
type UploadMetadata struct {
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	Format           string  `json:"format"`
	OriginalSize     int64   `json:"originalSize"`
	OptimizedSize    int64   `json:"optimizedSize"`
	CompressionRatio float64 `json:"compressionRatio"`
}

// UploadData is the payload of a successful upload response.
type UploadData struct {
	ID       string         `json:"id"`
	Filename string         `json:"filename"`
	URL      string         `json:"url"`
	Metadata UploadMetadata `json:"metadata"`
}

// UploadResponse wraps one accepted upload.
type UploadResponse struct {
	Success bool       `json:"success"`
	Data    UploadData `json:"data"`
}

// Pagination carries pagination metadata for image list responses.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// ListImagesResponse wraps a page of images and pagination information.
type ListImagesResponse struct {
	Images     []domain.Image `json:"images"`
	Pagination Pagination     `json:"pagination"`
}

// DeleteResponse acknowledges a successful delete.
type DeleteResponse struct {
	Success bool `json:"success"`
}

//
// Helpers
//

// readFormImage pulls one multipart file into memory. Intake works on byte
// slices because normalization needs the whole payload anyway and the body
// size is already capped by middleware.
func readFormImage(c *gin.Context, field string) (services.UploadInput, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return services.UploadInput{}, err
	}
	return formFileInput(fh)
}

func formFileInput(fh *multipart.FileHeader) (services.UploadInput, error) {
	f, err := fh.Open()
	if err != nil {
		return services.UploadInput{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return services.UploadInput{}, err
	}
	return services.UploadInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// failUpload maps intake pipeline errors onto HTTP results.
func failUpload(c *gin.Context, err error) {
	switch {
	case errors.Is(err, upload.ErrFileTooLarge):
		fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, err.Error())
	case errors.Is(err, upload.ErrFileTooSmall),
		errors.Is(err, upload.ErrUnsupportedType),
		errors.Is(err, upload.ErrUnsupportedSuffix),
		errors.Is(err, upload.ErrUnreadable),
		errors.Is(err, upload.ErrDimensionsTooSmall),
		errors.Is(err, upload.ErrDimensionsTooLarge):
		fail(c, http.StatusBadRequest, ErrCodeInvalidFile, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeUploadFailed, err.Error())
	}
}

//
// Handlers
//

// UploadImage godoc
// @ID          uploadImage
// @Summary     Upload an image
// @Description Validates, normalizes, and stores one image for the current user.
// @Tags        Images
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       image  formData  file    true   "Image file (JPEG, PNG, or WebP)"
// @Param       type   formData  string  false  "Classification"  Enums(source_person, source_outfit)  default(source_person)
//
// @Success     201  {object}  handlers.UploadResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid file"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     413  {object}  handlers.ErrorResponse  "File too large"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /upload [post]
func (h *Handlers) UploadImage(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	in, err := readFormImage(c, "image")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "image file required")
		return
	}

	kind := domain.ImageKind(c.DefaultPostForm("type", string(domain.ImageKindPerson)))
	if kind == domain.ImageKindResult || !kind.Valid() {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "type must be source_person or source_outfit")
		return
	}

	if err := h.ensureUser(c, uid); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeUploadFailed, err.Error())
		return
	}

	img, res, err := h.imgSvc.Upload(c.Request.Context(), uid, kind, in)
	if err != nil {
		failUpload(c, err)
		return
	}

	ok(c, http.StatusCreated, UploadResponse{
		Success: true,
		Data: UploadData{
			ID:       img.ID,
			Filename: img.Filename,
			URL:      img.URL,
			Metadata: UploadMetadata{
				Width:            res.Width,
				Height:           res.Height,
				Format:           res.Format,
				OriginalSize:     res.OriginalSize,
				OptimizedSize:    res.Size,
				CompressionRatio: res.CompressionRatio,
			},
		},
	})
}

// ListImages godoc
// @ID          listImages
// @Summary     List images (paginated)
// @Description Returns a page of the user's images, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Images
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       type           query   string  false "Filter by classification"  Enums(source_person, source_outfit, result)
// @Param       page           query   int     false "Page number"      minimum(1) default(1)
// @Param       limit          query   int     false "Items per page"   minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListImagesResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /upload [get]
func (h *Handlers) ListImages(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	kind := domain.ImageKind(c.Query("type"))
	if kind != "" && !kind.Valid() {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "type must be source_person, source_outfit, or result")
		return
	}

	page := utils.AtoiDefault(c.Query("page"), 1)
	limit := utils.AtoiDefault(c.Query("limit"), 20)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.imgSvc.Stats(ctx, uid, kind); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"images:%s:%s:%d:%d"`, uid, kind, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.imgSvc.ListPage(ctx, uid, kind, page, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	if limit < 1 {
		limit = 20
	}
	ok(c, http.StatusOK, ListImagesResponse{
		Images: items,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: utils.PageCount(total, limit),
		},
	})
}

// DeleteImage godoc
// @ID          deleteImage
// @Summary     Delete an image
// @Description Deletes an image owned by the current user. Source images still referenced by a swap are rejected; deleting a result image detaches it from its swap.
// @Tags        Images
// @Produce     json
//
// @Param       id  query  string  true  "Image ID (UUID)"  format(uuid)
//
// @Success     200  {object} handlers.DeleteResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Image not found"
// @Failure     409  {object} handlers.ErrorResponse "Image referenced by a swap"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /upload [delete]
func (h *Handlers) DeleteImage(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	id := strings.TrimSpace(c.Query("id"))
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a UUID")
		return
	}

	err := h.imgSvc.Delete(c.Request.Context(), uid, id)
	switch {
	case err == nil:
		ok(c, http.StatusOK, DeleteResponse{Success: true})
	case errors.Is(err, services.ErrImageNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "image not found")
	case errors.Is(err, services.ErrImageInUse), errors.Is(err, repo.ErrImageInUse):
		fail(c, http.StatusConflict, ErrCodeConflict, "image is referenced by a swap")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, err.Error())
	}
}
