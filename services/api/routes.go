package api

import (
	"taskora/pkg/middleware"

	"github.com/gin-gonic/gin"
)

func (h *Handler) RegisterRouter(r gin.IRouter) {
	v1 := r.Group("/v1", middleware.Auth(h.secret))

	submissions := v1.Group("/submissions")
	submissions.POST("", wrap(h.CreateSubmission))
	submissions.GET("", wrap(h.ListSubmissions))
	submissions.GET("/:id", wrap(h.GetSubmission))
	submissions.POST("/:id/review", wrap(h.ReviewSubmission))

	v1.GET("/balance", wrap(h.Balance))
	v1.GET("/offers", wrap(h.ListOffers))
	v1.POST("/offers/:id/click", wrap(h.ClickOffer))
	v1.POST("/uploads", wrap(h.CreateUpload))

	v1.GET("/ledger/entries", wrap(h.ListLedgerEntries))
	v1.GET("/ledger/reconcile", wrap(h.Reconcile))
}
