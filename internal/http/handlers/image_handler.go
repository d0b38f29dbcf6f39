// Presigned-URL HTTP handler.
//
// This file exposes GET /images/presigned, which mints short-lived signed
// URLs against the object store. "view" URLs are meant for inline display
// and live longer; "download" URLs force an attachment disposition and
// expire quickly.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vestyhq/go-vesty-backend/internal/services"
)

// PresignedResponse carries one minted signed URL.
type PresignedResponse struct {
	Success   bool   `json:"success"`
	URL       string `json:"url"`
	ExpiresIn int    `json:"expiresIn"`
	Action    string `json:"action"`
	Filename  string `json:"filename"`
}

// PresignImage godoc
// @ID          presignImage
// @Summary     Mint a presigned URL
// @Description Returns a short-lived signed URL for an image owned by the current user. Action "view" serves inline display; "download" forces an attachment named after the original upload.
// @Tags        Images
// @Produce     json
//
// @Param       imageId  query  string  true  "Image ID (UUID)"  format(uuid)
// @Param       action   query  string  true  "URL purpose"      Enums(view, download)
//
// @Success     200  {object} handlers.PresignedResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Image not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /images/presigned [get]
func (h *Handlers) PresignImage(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	id := strings.TrimSpace(c.Query("imageId"))
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "imageId must be a UUID")
		return
	}
	action := strings.TrimSpace(c.Query("action"))

	p, err := h.imgSvc.PresignURL(c.Request.Context(), uid, id, action)
	switch {
	case err == nil:
		ok(c, http.StatusOK, PresignedResponse{
			Success:   true,
			URL:       p.URL,
			ExpiresIn: p.ExpiresIn,
			Action:    p.Action,
			Filename:  p.Filename,
		})
	case errors.Is(err, services.ErrInvalidAction):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "action must be view or download")
	case errors.Is(err, services.ErrImageNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "image not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodePresignFailed, err.Error())
	}
}
