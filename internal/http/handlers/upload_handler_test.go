package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vestyhq/go-vesty-backend/internal/domain"
	"github.com/vestyhq/go-vesty-backend/internal/services"
	"github.com/vestyhq/go-vesty-backend/internal/upload"
)

// ---------- flexible service stubs ----------

type stubImgSvc struct {
	upload   func(context.Context, string, domain.ImageKind, services.UploadInput) (*domain.Image, *upload.Result, error)
	listPage func(context.Context, string, domain.ImageKind, int, int) ([]domain.Image, int64, error)
	stats    func(context.Context, string, domain.ImageKind) (int64, *time.Time, error)
	del      func(context.Context, string, string) error
	presign  func(context.Context, string, string, string) (*services.Presigned, error)
}

func (s stubImgSvc) Upload(ctx context.Context, uid string, kind domain.ImageKind, in services.UploadInput) (*domain.Image, *upload.Result, error) {
	if s.upload != nil {
		return s.upload(ctx, uid, kind, in)
	}
	return &domain.Image{ID: uuid.NewString(), UserID: uid, Kind: kind, Filename: in.Filename},
		&upload.Result{Width: 800, Height: 600, Format: "jpeg", OriginalSize: int64(len(in.Data)), Size: 1024, CompressionRatio: 0.5},
		nil
}

func (s stubImgSvc) ListPage(ctx context.Context, uid string, kind domain.ImageKind, page, limit int) ([]domain.Image, int64, error) {
	if s.listPage != nil {
		return s.listPage(ctx, uid, kind, page, limit)
	}
	return nil, 0, nil
}

func (s stubImgSvc) Stats(ctx context.Context, uid string, kind domain.ImageKind) (int64, *time.Time, error) {
	if s.stats != nil {
		return s.stats(ctx, uid, kind)
	}
	return 0, nil, nil
}

func (s stubImgSvc) Delete(ctx context.Context, uid, id string) error {
	if s.del != nil {
		return s.del(ctx, uid, id)
	}
	return nil
}

func (s stubImgSvc) PresignURL(ctx context.Context, uid, id, action string) (*services.Presigned, error) {
	if s.presign != nil {
		return s.presign(ctx, uid, id, action)
	}
	return &services.Presigned{URL: "https://signed.example/" + id, ExpiresIn: 900, Action: action, Filename: "photo.jpg"}, nil
}

type stubSwapSvc struct {
	create   func(context.Context, string, services.UploadInput, services.UploadInput) (*services.SwapResult, error)
	listPage func(context.Context, string, domain.SwapStatus, int, int) ([]services.SwapView, int64, error)
	get      func(context.Context, string, string) (*domain.Swap, error)
}

func (s stubSwapSvc) Create(ctx context.Context, uid string, person, outfit services.UploadInput) (*services.SwapResult, error) {
	if s.create != nil {
		return s.create(ctx, uid, person, outfit)
	}
	return &services.SwapResult{Swap: &domain.Swap{ID: "swap-default", UserID: uid, Status: domain.SwapStatusCompleted}}, nil
}

func (s stubSwapSvc) ListPage(ctx context.Context, uid string, status domain.SwapStatus, limit, offset int) ([]services.SwapView, int64, error) {
	if s.listPage != nil {
		return s.listPage(ctx, uid, status, limit, offset)
	}
	return nil, 0, nil
}

func (s stubSwapSvc) Get(ctx context.Context, uid, id string) (*domain.Swap, error) {
	if s.get != nil {
		return s.get(ctx, uid, id)
	}
	return nil, services.ErrSwapNotFound
}

type stubUserSvc struct {
	ensure func(context.Context, string, string, string) (*domain.User, error)
	del    func(context.Context, string) error
}

func (s stubUserSvc) Ensure(ctx context.Context, id, email, name string) (*domain.User, error) {
	if s.ensure != nil {
		return s.ensure(ctx, id, email, name)
	}
	return &domain.User{ID: id, Email: &email, DisplayName: name}, nil
}

func (s stubUserSvc) Delete(ctx context.Context, id string) error {
	if s.del != nil {
		return s.del(ctx, id)
	}
	return nil
}

// ---------- multipart helper ----------

func multipartFile(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename)}
	hdr["Content-Type"] = []string{contentType}
	pw, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := pw.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// ---------- helpers-only tests ----------

func Test_userID_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// context value wins
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set("userID", "u1")
	if got := userID(c); got != "u1" {
		t.Fatalf("ctx userID = %q", got)
	}

	// wrong type falls through to header
	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "u-123")
	c.Request = req
	c.Set("userID", 123)
	if got := userID(c); got != "u-123" {
		t.Fatalf("wrong-type fallback userID = %q", got)
	}

	// nothing set means unauthenticated
	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if got := userID(c); got != "" {
		t.Fatalf("empty userID = %q", got)
	}
}

// ---------- UploadImage ----------

func TestUploadImage_MissingFile_BadType_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// No file -> 400
	{
		h := New(stubImgSvc{}, stubSwapSvc{}, stubUserSvc{}, nil)
		r := gin.New()
		r.POST("/upload", h.UploadImage)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		req.Header.Set("X-User-ID", "u1")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("missing file -> %d", w.Code)
		}
	}

	// type=result is not uploadable -> 400
	{
		h := New(stubImgSvc{}, stubSwapSvc{}, stubUserSvc{}, nil)
		r := gin.New()
		r.POST("/upload", h.UploadImage)

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, _ := mw.CreateFormFile("image", "photo.jpg")
		fw.Write([]byte("jpegbytes"))
		mw.WriteField("type", "result")
		mw.Close()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("X-User-ID", "u1")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("type=result -> %d body=%s", w.Code, w.Body.String())
		}
	}

	// Success -> 201 with metadata
	{
		h := New(stubImgSvc{}, stubSwapSvc{}, stubUserSvc{}, nil)
		r := gin.New()
		r.POST("/upload", h.UploadImage)

		body, ct := multipartFile(t, "image", "me.jpg", "image/jpeg", []byte("jpegbytes"))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("X-User-ID", "u1")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("upload -> %d body=%s", w.Code, w.Body.String())
		}
		var out UploadResponse
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if !out.Success || out.Data.ID == "" || out.Data.Filename != "me.jpg" {
			t.Fatalf("unexpected body: %#v", out)
		}
		if out.Data.Metadata.Width != 800 || out.Data.Metadata.Format != "jpeg" {
			t.Fatalf("unexpected metadata: %#v", out.Data.Metadata)
		}
	}
}

func TestUploadImage_PipelineErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"too large", upload.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{"too small", upload.ErrFileTooSmall, http.StatusBadRequest},
		{"bad type", upload.ErrUnsupportedType, http.StatusBadRequest},
		{"undecodable", upload.ErrUnreadable, http.StatusBadRequest},
		{"tiny dimensions", upload.ErrDimensionsTooSmall, http.StatusBadRequest},
		{"storage down", gorm.ErrInvalidDB, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := stubImgSvc{
				upload: func(context.Context, string, domain.ImageKind, services.UploadInput) (*domain.Image, *upload.Result, error) {
					return nil, nil, tc.err
				},
			}
			h := New(svc, stubSwapSvc{}, stubUserSvc{}, nil)
			r := gin.New()
			r.POST("/upload", h.UploadImage)

			body, ct := multipartFile(t, "image", "me.jpg", "image/jpeg", []byte("jpegbytes"))
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/upload", body)
			req.Header.Set("Content-Type", ct)
			req.Header.Set("X-User-ID", "u1")
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("%s -> %d, want %d", tc.name, w.Code, tc.want)
			}
		})
	}
}

func TestUploadImage_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(stubImgSvc{}, stubSwapSvc{}, stubUserSvc{}, nil)
	r := gin.New()
	r.POST("/upload", h.UploadImage)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no identity -> %d", w.Code)
	}
	var out ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Code != ErrCodeUnauthorized {
		t.Fatalf("error code = %q", out.Code)
	}
}

// ---------- ListImages ----------

func TestListImages_ETag304_and_SuccessPage(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Now().UTC()
	imgs := []domain.Image{
		{ID: uuid.NewString(), UserID: "u1", Kind: domain.ImageKindPerson, Filename: "a.jpg"},
		{ID: uuid.NewString(), UserID: "u1", Kind: domain.ImageKindPerson, Filename: "b.jpg"},
	}
	svc := stubImgSvc{
		stats: func(context.Context, string, domain.ImageKind) (int64, *time.Time, error) {
			return 21, &now, nil
		},
		listPage: func(_ context.Context, _ string, _ domain.ImageKind, page, limit int) ([]domain.Image, int64, error) {
			if page != 1 || limit != 20 {
				t.Fatalf("page/limit passed through wrong: %d/%d", page, limit)
			}
			return imgs, 21, nil
		},
	}
	h := New(svc, stubSwapSvc{}, stubUserSvc{}, nil)
	r := gin.New()
	r.GET("/upload", h.ListImages)

	// 200 with pagination
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/upload", nil)
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list -> %d body=%s", w.Code, w.Body.String())
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag header")
	}
	var out ListImagesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(out.Images) != 2 || out.Pagination.Total != 21 || out.Pagination.Pages != 2 {
		t.Fatalf("unexpected page: %#v", out.Pagination)
	}

	// replay with If-None-Match -> 304
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/upload", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("If-None-Match", etag)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Fatalf("etag replay -> %d", w.Code)
	}
}

func TestListImages_BadKind(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(stubImgSvc{}, stubSwapSvc{}, stubUserSvc{}, nil)
	r := gin.New()
	r.GET("/upload", h.ListImages)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/upload?type=selfie", nil)
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad kind -> %d", w.Code)
	}
}

// ---------- DeleteImage ----------

func TestDeleteImage_Validation_Success_NotFound_Conflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	imgID := uuid.NewString()

	// bad id -> 400
	{
		h := New(stubImgSvc{}, stubSwapSvc{}, stubUserSvc{}, nil)
		r := gin.New()
		r.DELETE("/upload", h.DeleteImage)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/upload?id=not-a-uuid", nil)
		req.Header.Set("X-User-ID", "u1")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("bad id -> %d", w.Code)
		}
	}

	// success -> 200
	{
		h := New(stubImgSvc{}, stubSwapSvc{}, stubUserSvc{}, nil)
		r := gin.New()
		r.DELETE("/upload", h.DeleteImage)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/upload?id="+imgID, nil)
		req.Header.Set("X-User-ID", "u1")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("delete -> %d body=%s", w.Code, w.Body.String())
		}
		var out DeleteResponse
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if !out.Success {
			t.Fatalf("expected success=true")
		}
	}

	// not found -> 404
	{
		svc := stubImgSvc{del: func(context.Context, string, string) error { return services.ErrImageNotFound }}
		h := New(svc, stubSwapSvc{}, stubUserSvc{}, nil)
		r := gin.New()
		r.DELETE("/upload", h.DeleteImage)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/upload?id="+imgID, nil)
		req.Header.Set("X-User-ID", "u1")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("not found -> %d", w.Code)
		}
	}

	// referenced by a swap -> 409
	{
		svc := stubImgSvc{del: func(context.Context, string, string) error { return services.ErrImageInUse }}
		h := New(svc, stubSwapSvc{}, stubUserSvc{}, nil)
		r := gin.New()
		r.DELETE("/upload", h.DeleteImage)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/upload?id="+imgID, nil)
		req.Header.Set("X-User-ID", "u1")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusConflict {
			t.Fatalf("in use -> %d", w.Code)
		}
	}
}
