// Outfit-swap HTTP handlers.
//
// This file exposes the try-on endpoints:
//   - POST /swap   (run one outfit-transfer pipeline within the request)
//   - GET  /swap   (swap history, newest first)
//
// A swap request carries two multipart files and runs the whole pipeline
// before responding, so the route sits behind the long server write timeout.
// The response always carries a success flag; once the swap row exists its id
// is reported even when the pipeline fails.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vestyhq/go-vesty-backend/internal/domain"
	"github.com/vestyhq/go-vesty-backend/internal/http/middleware"
	"github.com/vestyhq/go-vesty-backend/internal/services"
	"github.com/vestyhq/go-vesty-backend/internal/utils"
)

// SwapResponse is the outcome of one swap request.
type SwapResponse struct {
	Success           bool   `json:"success"`
	SwapID            string `json:"swapId,omitempty"`
	ResultImageID     string `json:"resultImageId,omitempty"`
	GeneratedImageURL string `json:"generatedImageUrl,omitempty"`
	Message           string `json:"message"`
}

// ListSwapsResponse wraps a page of swap history.
type ListSwapsResponse struct {
	Success bool                `json:"success"`
	Swaps   []services.SwapView `json:"swaps"`
	Total   int64               `json:"total"`
}

// CreateSwap godoc
// @ID          createSwap
// @Summary     Run an outfit swap
// @Description Uploads a person photo and an outfit photo, then generates a composite of the person wearing the outfit. The pipeline runs within the request; expect latencies dominated by the generation call.
// @Tags        Swaps
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       personImage  formData  file  true  "Photo of the person"
// @Param       outfitImage  formData  file  true  "Photo of the outfit"
// @Param       Idempotency-Key  header  string  false  "Replay-safe retry key"
//
// @Success     200  {object}  handlers.SwapResponse "Pipeline finished (success flag reports the outcome)"
// @Failure     400  {object}  handlers.ErrorResponse "Invalid file"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     413  {object}  handlers.ErrorResponse "File too large"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /swap [post]
func (h *Handlers) CreateSwap(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	// A stored attempt for this (user, Idempotency-Key) pair is served as-is
	// instead of running the pipeline again.
	if sid, replay := middleware.ReplaySwapID(c); replay {
		if h.serveSwapReplay(c, uid, sid) {
			return
		}
	}

	person, err := readFormImage(c, "personImage")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "personImage file required")
		return
	}
	outfit, err := readFormImage(c, "outfitImage")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "outfitImage file required")
		return
	}

	if err := h.ensureUser(c, uid); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSwapFailed, err.Error())
		return
	}

	res, err := h.swapSvc.Create(c.Request.Context(), uid, person, outfit)
	if err != nil {
		if res == nil || res.Swap == nil {
			// Pre-pipeline failure: nothing was recorded.
			failUpload(c, err)
			return
		}
		// The attempt exists in failed state; report it with the captured
		// message instead of an opaque 500.
		c.Set("swapID", res.Swap.ID)
		h.recordIdempotency(c, uid, res.Swap.ID)
		ok(c, http.StatusOK, SwapResponse{
			Success: false,
			SwapID:  res.Swap.ID,
			Message: res.Message,
		})
		return
	}

	c.Set("swapID", res.Swap.ID)
	h.recordIdempotency(c, uid, res.Swap.ID)
	resp := SwapResponse{
		Success:           true,
		SwapID:            res.Swap.ID,
		GeneratedImageURL: res.GeneratedURL,
		Message:           res.Message,
	}
	if res.Swap.ResultImageID != nil {
		resp.ResultImageID = *res.Swap.ResultImageID
	}
	ok(c, http.StatusOK, resp)
}

// serveSwapReplay responds with the stored swap attempt. It reports false when
// the row is gone, in which case the caller runs the pipeline normally.
func (h *Handlers) serveSwapReplay(c *gin.Context, uid, swapID string) bool {
	sw, err := h.swapSvc.Get(c.Request.Context(), uid, swapID)
	if err != nil {
		return false
	}

	c.Set("swapID", sw.ID)
	resp := SwapResponse{
		SwapID:  sw.ID,
		Success: sw.Status == domain.SwapStatusCompleted,
	}
	if sw.Error != nil {
		resp.Message = *sw.Error
	}
	if resp.Success {
		resp.Message = "Outfit swap completed"
		if sw.ResultImageID != nil {
			resp.ResultImageID = *sw.ResultImageID
			if p, err := h.imgSvc.PresignURL(c.Request.Context(), uid, *sw.ResultImageID, "view"); err == nil {
				resp.GeneratedImageURL = p.URL
			}
		}
	}
	ok(c, http.StatusOK, resp)
	return true
}

// recordIdempotency stores the (user, key) → swap association when the client
// supplied an Idempotency-Key. Failures are logged, never surfaced.
func (h *Handlers) recordIdempotency(c *gin.Context, uid, swapID string) {
	if h.idem == nil {
		return
	}
	key, okKey := middleware.GetIdempotencyKey(c)
	if !okKey {
		return
	}
	if err := h.idem.Record(c.Request.Context(), uid, key, swapID); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Str("swap_id", swapID).Msg("idempotency record failed")
	}
}

// ListSwaps godoc
// @ID          listSwaps
// @Summary     List swap history
// @Description Returns the user's swap attempts, newest first, with generated image URLs resolved where present.
// @Tags        Swaps
// @Produce     json
//
// @Param       status  query  string  false "Filter by status"  Enums(pending, processing, completed, failed)
// @Param       limit   query  int     false "Items per page"    minimum(1) maximum(100) default(20)
// @Param       offset  query  int     false "Items to skip"     minimum(0) default(0)
//
// @Success     200  {object} handlers.ListSwapsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /swap [get]
func (h *Handlers) ListSwaps(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	status := domain.SwapStatus(strings.TrimSpace(c.Query("status")))
	switch status {
	case "", domain.SwapStatusPending, domain.SwapStatusProcessing, domain.SwapStatusCompleted, domain.SwapStatusFailed:
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status must be pending, processing, completed, or failed")
		return
	}

	limit := utils.AtoiDefault(c.Query("limit"), 20)
	offset := utils.AtoiDefault(c.Query("offset"), 0)

	views, total, err := h.swapSvc.ListPage(c.Request.Context(), uid, status, limit, offset)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, ListSwapsResponse{Success: true, Swaps: views, Total: total})
}
