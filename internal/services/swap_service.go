// Package services – SwapService
//
// This file implements SwapService, the orchestrator for one outfit-transfer
// attempt. A swap runs a strictly sequential pipeline within the request
// lifetime: validate both uploads, normalize and store them (the two source
// intakes run concurrently since they share no state), create the Swap row,
// describe the outfit with the vision model, generate the composite with the
// image model, store the artifact, and complete the row. Any failure after
// the row exists patches it to failed with a captured error string; there is
// no durable resumption of an interrupted pipeline.
//
// Observability: the pipeline is OpenTelemetry-instrumented per stage and
// outcome counts are exported to Prometheus.
package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/vestyhq/go-vesty-backend/internal/domain"
	"github.com/vestyhq/go-vesty-backend/internal/repo"
	"github.com/vestyhq/go-vesty-backend/internal/tryon"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	// swapsTotal counts finished swap pipelines by outcome.
	swapsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vesty_swaps_total",
			Help: "Total number of finished swap pipelines by outcome.",
		},
		[]string{"outcome"},
	)

	// swapDuration records end-to-end pipeline latency. Buckets lean long
	// because the generation call dominates.
	swapDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vesty_swap_duration_seconds",
			Help:    "End-to-end duration of swap pipelines in seconds.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 45, 60, 90, 120},
		},
	)
)

func init() {
	prometheus.MustRegister(swapsTotal, swapDuration)
}

// TryOnClient is the slice of the generative gateway the orchestrator needs.
// The production implementation is tryon.Client.
type TryOnClient interface {
	// DescribeOutfit inventories the garments visible in the outfit photo.
	DescribeOutfit(ctx context.Context, image []byte, mimeType string) (string, error)

	// GenerateTryOn renders the person wearing the described garments and
	// returns the artifact bytes with their MIME type.
	GenerateTryOn(ctx context.Context, person []byte, personMIME, description string) ([]byte, string, error)
}

// SwapResult is the outcome of one pipeline run. Swap is always set once the
// row exists, including on failure, so callers can report the attempt id.
type SwapResult struct {
	Swap         *domain.Swap
	ResultImage  *domain.Image
	GeneratedURL string
	Message      string
}

// SwapView is the shape history listings return: one row per attempt with
// the generated artifact URL resolved when present.
type SwapView struct {
	ID                string            `json:"id"`
	Status            domain.SwapStatus `json:"status"`
	GeneratedImageURL string            `json:"generatedImageUrl,omitempty"`
	Error             string            `json:"error,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
}

// SwapService coordinates the outfit-transfer pipeline across the image
// intake service, the generative gateway, and the swap repository.
type SwapService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Images runs intake for the two sources and storage for the result.
	Images *ImageService
	// AI is the two-call generative gateway.
	AI TryOnClient

	// MaxPageSize caps the limit parameter on history views.
	MaxPageSize int
}

// NewSwapService constructs a SwapService with the default page cap.
func NewSwapService(db *gorm.DB, images *ImageService, ai TryOnClient) *SwapService {
	return &SwapService{DB: db, Images: images, AI: ai, MaxPageSize: 100}
}

// Create runs one swap attempt end to end. Validation failures on either
// upload abort before any side effect. Once both source images are stored
// the Swap row exists, and every later failure is recorded on it; the
// returned SwapResult then carries the failed row alongside the error.
func (s *SwapService) Create(ctx context.Context, userID string, person, outfit UploadInput) (*SwapResult, error) {
	tr := otel.Tracer("services/SwapService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	start := time.Now()

	// Both files must pass validation before anything is stored.
	if err := s.Images.Validator.Validate(person.ContentType, person.Filename, int64(len(person.Data))); err != nil {
		return nil, err
	}
	if err := s.Images.Validator.Validate(outfit.ContentType, outfit.Filename, int64(len(outfit.Data))); err != nil {
		return nil, err
	}

	// The two source intakes are independent and may run concurrently.
	var (
		wg                   sync.WaitGroup
		personImg, outfitImg *domain.Image
		personRes, outfitRes *normResult
		personErr, outfitErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		personImg, personRes, personErr = s.storeSource(ctx, userID, domain.ImageKindPerson, person)
	}()
	go func() {
		defer wg.Done()
		outfitImg, outfitRes, outfitErr = s.storeSource(ctx, userID, domain.ImageKindOutfit, outfit)
	}()
	wg.Wait()

	if personErr != nil {
		swapsTotal.WithLabelValues("rejected").Inc()
		return nil, personErr
	}
	if outfitErr != nil {
		swapsTotal.WithLabelValues("rejected").Inc()
		return nil, outfitErr
	}

	swap := &domain.Swap{
		UserID:        userID,
		PersonImageID: personImg.ID,
		OutfitImageID: outfitImg.ID,
		Status:        domain.SwapStatusPending,
	}
	if err := repo.CreateSwap(ctx, s.DB, swap); err != nil {
		swapsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	startedAt := time.Now().UTC()
	if err := repo.UpdateSwapStatus(ctx, s.DB, swap.ID, userID, repo.SwapPatch{
		Status:              domain.SwapStatusProcessing,
		ProcessingStartedAt: &startedAt,
	}); err != nil {
		return s.fail(ctx, swap, start, err)
	}
	swap.Status = domain.SwapStatusProcessing
	swap.ProcessingStartedAt = &startedAt

	description, err := s.describe(ctx, outfitRes)
	if err != nil {
		return s.fail(ctx, swap, start, err)
	}

	artifact, mime, err := s.generate(ctx, personRes, description)
	if err != nil {
		return s.fail(ctx, swap, start, err)
	}

	resultImg, err := s.Images.SaveResult(ctx, userID, artifact, mime)
	if err != nil {
		return s.fail(ctx, swap, start, err)
	}

	completedAt := time.Now().UTC()
	if err := repo.UpdateSwapStatus(ctx, s.DB, swap.ID, userID, repo.SwapPatch{
		Status:                domain.SwapStatusCompleted,
		ResultImageID:         &resultImg.ID,
		ProcessingCompletedAt: &completedAt,
	}); err != nil {
		return s.fail(ctx, swap, start, err)
	}
	swap.Status = domain.SwapStatusCompleted
	swap.ResultImageID = &resultImg.ID
	swap.ProcessingCompletedAt = &completedAt

	swapsTotal.WithLabelValues("completed").Inc()
	swapDuration.Observe(time.Since(start).Seconds())

	return &SwapResult{
		Swap:         swap,
		ResultImage:  resultImg,
		GeneratedURL: resultImg.URL,
		Message:      "Outfit swap completed",
	}, nil
}

// normResult keeps the normalized bytes the AI calls need alongside their
// content type, without re-reading the object store.
type normResult struct {
	data        []byte
	contentType string
}

func (s *SwapService) storeSource(ctx context.Context, userID string, kind domain.ImageKind, in UploadInput) (*domain.Image, *normResult, error) {
	img, res, err := s.Images.Upload(ctx, userID, kind, in)
	if err != nil {
		return nil, nil, err
	}
	return img, &normResult{data: res.Data, contentType: res.ContentType}, nil
}

func (s *SwapService) describe(ctx context.Context, outfit *normResult) (string, error) {
	tr := otel.Tracer("services/SwapService")
	ctx, span := tr.Start(ctx, "describe")
	defer span.End()

	return s.AI.DescribeOutfit(ctx, outfit.data, outfit.contentType)
}

func (s *SwapService) generate(ctx context.Context, person *normResult, description string) ([]byte, string, error) {
	tr := otel.Tracer("services/SwapService")
	ctx, span := tr.Start(ctx, "generate")
	defer span.End()

	return s.AI.GenerateTryOn(ctx, person.data, person.contentType, description)
}

// fail patches the swap to failed with the captured error string and returns
// the row alongside the original error so handlers can report the attempt id
// with a human-readable message.
func (s *SwapService) fail(ctx context.Context, swap *domain.Swap, start time.Time, cause error) (*SwapResult, error) {
	msg := failureMessage(cause)
	completedAt := time.Now().UTC()
	if perr := repo.UpdateSwapStatus(ctx, s.DB, swap.ID, swap.UserID, repo.SwapPatch{
		Status:                domain.SwapStatusFailed,
		Error:                 &msg,
		ProcessingCompletedAt: &completedAt,
	}); perr == nil {
		swap.Status = domain.SwapStatusFailed
		swap.Error = &msg
		swap.ProcessingCompletedAt = &completedAt
	}

	swapsTotal.WithLabelValues("failed").Inc()
	swapDuration.Observe(time.Since(start).Seconds())

	return &SwapResult{Swap: swap, Message: msg}, cause
}

// failureMessage maps pipeline errors to the strings stored on the row and
// shown to the user. Timeouts are surfaced distinctly because generation is
// the longest-latency step.
func failureMessage(err error) string {
	var noImg *tryon.NoImageError
	switch {
	case errors.Is(err, tryon.ErrCallTimeout):
		return "The AI model did not respond in time"
	case errors.Is(err, tryon.ErrEmptyDescription):
		return "The outfit could not be described from the photo"
	case errors.As(err, &noImg):
		if noImg.Explanation != "" {
			return "No image was generated: " + noImg.Explanation
		}
		return "No image was generated"
	}
	return strings.TrimSpace(err.Error())
}

// Get fetches a single swap owned by userID.
func (s *SwapService) Get(ctx context.Context, userID, id string) (*domain.Swap, error) {
	sw, err := repo.GetSwap(ctx, s.DB, id, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSwapNotFound
	}
	return sw, err
}

// ListPage returns a page of the user's swap history, newest first,
// optionally filtered by status, with generated artifact URLs resolved.
func (s *SwapService) ListPage(ctx context.Context, userID string, status domain.SwapStatus, limit, offset int) ([]SwapView, int64, error) {
	tr := otel.Tracer("services/SwapService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("limit", limit),
			attribute.Int("offset", offset),
		),
	)
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	if s.MaxPageSize > 0 && limit > s.MaxPageSize {
		limit = s.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	total, err := repo.CountSwaps(ctx, s.DB, userID, status)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []SwapView{}, 0, nil
	}

	swaps, err := repo.ListSwapsPage(ctx, s.DB, userID, status, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	urls, err := s.resultURLs(ctx, swaps)
	if err != nil {
		return nil, 0, err
	}

	views := make([]SwapView, 0, len(swaps))
	for _, sw := range swaps {
		v := SwapView{
			ID:        sw.ID,
			Status:    sw.Status,
			CreatedAt: sw.CreatedAt,
		}
		if sw.Error != nil {
			v.Error = *sw.Error
		}
		if sw.ResultImageID != nil {
			v.GeneratedImageURL = urls[*sw.ResultImageID]
		}
		views = append(views, v)
	}
	return views, total, nil
}

// resultURLs resolves the URLs of the result images referenced by the page
// in one query.
func (s *SwapService) resultURLs(ctx context.Context, swaps []domain.Swap) (map[string]string, error) {
	ids := make([]string, 0, len(swaps))
	for _, sw := range swaps {
		if sw.ResultImageID != nil {
			ids = append(ids, *sw.ResultImageID)
		}
	}
	urls := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return urls, nil
	}

	var imgs []domain.Image
	if err := s.DB.WithContext(ctx).
		Select("id", "url").
		Where("id IN ?", ids).
		Find(&imgs).Error; err != nil {
		return nil, err
	}
	for _, img := range imgs {
		urls[img.ID] = img.URL
	}
	return urls, nil
}
