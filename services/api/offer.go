package api

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"taskora/pkg/db/pagination"
	"taskora/pkg/errutil"
	"taskora/pkg/logger"
	"taskora/pkg/middleware"
	"taskora/services/click"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

type clickResponse struct {
	OfferID string `json:"offer_id"`
	URL     string `json:"url"`
}

type uploadRequest struct {
	Filename string `json:"filename" binding:"required"`
}

type uploadResponse struct {
	StorageKey string    `json:"storage_key"`
	UploadURL  string    `json:"upload_url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (h *Handler) ListOffers(c *gin.Context) error {
	var q pagination.Pagination
	if err := c.ShouldBindQuery(&q); err != nil {
		return errutil.ValidationFailed("invalid query", err)
	}

	offers, err := h.catalog.ListActive(c.Request.Context(), q.Size())
	if err != nil {
		return err
	}

	c.JSON(http.StatusOK, newList(offers))
	return nil
}

// ClickOffer logs the visit in the background and hands back the offer url.
func (h *Handler) ClickOffer(c *gin.Context) error {
	caller := middleware.Identity(c)
	ctx := c.Request.Context()

	o, err := h.catalog.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if !o.IsActive {
		return errutil.NotFound("offer not found", nil)
	}

	if err := h.clicks.Log(ctx, click.ClickParams{
		UserID:    caller.UserID,
		OfferID:   o.ID,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}); err != nil {
		logger.FromContext(ctx).Warn("click not logged", zap.String("offer_id", o.ID), zap.Error(err))
	}

	c.JSON(http.StatusAccepted, clickResponse{OfferID: o.ID, URL: o.URL})
	return nil
}

func (h *Handler) CreateUpload(c *gin.Context) error {
	caller := middleware.Identity(c)

	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return errutil.ValidationFailed("invalid request body", err)
	}

	name := SafeName(req.Filename)
	if name == "" {
		return errutil.ValidationFailed("filename is required", nil)
	}

	now := time.Now()
	key := StorageKey(caller.UserID, now, name)

	url, err := h.signer.SignUploadURL(c.Request.Context(), key, h.uploadURLTTL)
	if err != nil {
		return errutil.Internal("failed to sign upload url", err)
	}

	c.JSON(http.StatusCreated, uploadResponse{
		StorageKey: key,
		UploadURL:  url,
		ExpiresAt:  now.Add(h.uploadURLTTL).UTC(),
	})
	return nil
}

// SafeName replaces every character outside [a-zA-Z0-9._-] with an underscore.
func SafeName(filename string) string {
	return unsafeNameChars.ReplaceAllString(strings.TrimSpace(filename), "_")
}

// StorageKey builds <user_id>/<unix_ms>_<name>.
func StorageKey(userID string, at time.Time, name string) string {
	return fmt.Sprintf("%s/%d_%s", userID, at.UnixMilli(), name)
}
