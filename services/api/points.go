package api

import (
	"net/http"

	"taskora/pkg/db/pagination"
	"taskora/pkg/errutil"
	"taskora/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type balanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

func (h *Handler) Balance(c *gin.Context) error {
	caller := middleware.Identity(c)

	balance, err := h.ledger.BalanceOf(c.Request.Context(), caller.UserID)
	if err != nil {
		return err
	}

	c.JSON(http.StatusOK, balanceResponse{UserID: caller.UserID, Balance: balance})
	return nil
}

func (h *Handler) ListLedgerEntries(c *gin.Context) error {
	caller := middleware.Identity(c)

	var q pagination.Pagination
	if err := c.ShouldBindQuery(&q); err != nil {
		return errutil.ValidationFailed("invalid query", err)
	}

	entries, err := h.ledger.ListEntries(c.Request.Context(), caller.UserID, q.Size())
	if err != nil {
		return err
	}

	c.JSON(http.StatusOK, newList(entries))
	return nil
}

func (h *Handler) Reconcile(c *gin.Context) error {
	caller := middleware.Identity(c)

	rec, err := h.ledger.Reconcile(c.Request.Context(), caller.UserID)
	if err != nil {
		return err
	}

	c.JSON(http.StatusOK, rec)
	return nil
}
