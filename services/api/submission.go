package api

import (
	"net/http"
	"strings"

	"taskora/pkg/db/pagination"
	"taskora/pkg/errutil"
	"taskora/pkg/featureflags"
	"taskora/pkg/logger"
	"taskora/pkg/middleware"
	"taskora/services/review"
	"taskora/services/submission"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createSubmissionRequest struct {
	OfferID    string  `json:"offer_id" binding:"required"`
	StorageKey string  `json:"storage_key"`
	Note       *string `json:"note"`
}

type reviewRequest struct {
	Decision  string  `json:"decision" binding:"required"`
	AdminNote *string `json:"admin_note"`
}

type listSubmissionsQuery struct {
	pagination.Pagination
	Mine   *bool  `form:"mine"`
	Status string `form:"status"`
}

type submissionResponse struct {
	*submission.Submission
	ProofURL string `json:"proof_url,omitempty"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Count: len(items)}
}

func (h *Handler) CreateSubmission(c *gin.Context) error {
	caller := middleware.Identity(c)
	ctx := c.Request.Context()

	var req createSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return errutil.ValidationFailed("invalid request body", err)
	}

	if !h.flags.Enabled(ctx, caller.UserID, featureflags.ProofSubmissionsEnabled) {
		return errutil.Forbidden("proof submissions are disabled", nil)
	}

	// keys minted by CreateUpload are scoped to the uploader
	if !strings.HasPrefix(req.StorageKey, caller.UserID+"/") {
		return errutil.ValidationFailed("storage key does not belong to caller", nil,
			errutil.WithDetails(errutil.Detail{Field: "storage_key", Message: "must start with " + caller.UserID + "/"}))
	}

	sub, err := h.store.Create(ctx, submission.CreateParams{
		UserID:     caller.UserID,
		OfferID:    req.OfferID,
		StorageKey: req.StorageKey,
		Note:       req.Note,
	})
	if err != nil {
		return err
	}

	c.JSON(http.StatusCreated, sub)
	return nil
}

func (h *Handler) ListSubmissions(c *gin.Context) error {
	caller := middleware.Identity(c)
	ctx := c.Request.Context()

	var q listSubmissionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return errutil.ValidationFailed("invalid query", err)
	}

	var (
		subs []*submission.Submission
		err  error
	)
	mine := q.Mine == nil || *q.Mine
	if q.Status != "" && q.Mine != nil && *q.Mine {
		return errutil.ValidationFailed("mine and status cannot be combined", nil,
			errutil.WithDetails(errutil.Detail{Field: "mine", Message: "omit mine when filtering by status"}))
	}

	switch q.Status {
	case "":
		if !mine {
			return errutil.ValidationFailed("mine=false requires a status filter", nil,
				errutil.WithDetails(errutil.Detail{Field: "status", Message: "required when mine=false"}))
		}
		subs, err = h.store.ListForUser(ctx, caller.UserID, q.Size())
	case string(submission.StatusPending):
		ok, gateErr := h.gate.CanListPending(ctx, caller)
		if gateErr != nil {
			return errutil.Internal("authorization check failed", gateErr)
		}
		if !ok {
			return errutil.Forbidden("reviewer role required", nil)
		}
		subs, err = h.store.ListPending(ctx, q.Size())
	default:
		return errutil.ValidationFailed("unsupported status filter", nil,
			errutil.WithDetails(errutil.Detail{Field: "status", Message: "only pending is supported"}))
	}
	if err != nil {
		return err
	}

	c.JSON(http.StatusOK, newList(subs))
	return nil
}

func (h *Handler) GetSubmission(c *gin.Context) error {
	caller := middleware.Identity(c)
	ctx := c.Request.Context()

	sub, err := h.store.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	canReadProof, err := h.gate.CanReadProof(ctx, caller)
	if err != nil {
		return errutil.Internal("authorization check failed", err)
	}
	if sub.UserID != caller.UserID && !canReadProof {
		// do not reveal other users' submissions
		return errutil.NotFound("submission not found", nil)
	}

	resp := submissionResponse{Submission: sub}
	if canReadProof {
		url, err := h.signer.SignReadURL(ctx, sub.StorageKey, h.readURLTTL)
		if err != nil {
			logger.FromContext(ctx).Warn("failed to sign proof url",
				zap.String("submission_id", sub.ID),
				zap.Error(err),
			)
		} else {
			resp.ProofURL = url
		}
	}

	c.JSON(http.StatusOK, resp)
	return nil
}

func (h *Handler) ReviewSubmission(c *gin.Context) error {
	caller := middleware.Identity(c)

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return errutil.ValidationFailed("invalid request body", err)
	}

	decision, err := review.ParseDecision(req.Decision)
	if err != nil {
		return errutil.ValidationFailed("invalid decision", err,
			errutil.WithDetails(errutil.Detail{Field: "decision", Message: "must be approve or reject"}))
	}

	sub, err := h.engine.Review(c.Request.Context(), review.ReviewParams{
		Caller:       caller,
		SubmissionID: c.Param("id"),
		Decision:     decision,
		AdminNote:    req.AdminNote,
	})
	if err != nil {
		return err
	}

	c.JSON(http.StatusOK, sub)
	return nil
}
