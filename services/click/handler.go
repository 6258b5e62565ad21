package click

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"taskora/pkg/gen"
	"taskora/pkg/repository"
	"taskora/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Handler struct {
	ids    gen.IDGenerator
	clicks repository.Repository[Click]
}

type HandlerParams struct {
	fx.In
	DB  *gorm.DB
	IDs gen.IDGenerator
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		ids:    p.IDs,
		clicks: repository.ProvideStore[Click](p.DB),
	}
}

// HandleClickLog persists one click. A malformed payload is dropped without retry.
func (h *Handler) HandleClickLog(ctx context.Context, t *asynq.Task) error {
	var payload ClickLogPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.UserID == "" || payload.OfferID == "" {
		return fmt.Errorf("click without user or offer: %w", asynq.SkipRetry)
	}

	zapLog := zap.L().With(
		zap.String("task_type", t.Type()),
		zap.String("user_id", payload.UserID),
		zap.String("offer_id", payload.OfferID),
	)

	if payload.ClickedAt.IsZero() {
		payload.ClickedAt = time.Now().UTC()
	}

	c := &Click{
		ID:        h.ids.NextID(),
		UserID:    payload.UserID,
		OfferID:   payload.OfferID,
		IP:        payload.IP,
		UserAgent: payload.UserAgent,
		CreatedAt: payload.ClickedAt,
	}
	if err := h.clicks.Create(ctx, c); err != nil {
		zapLog.Error("failed to write click", zap.Error(err))
		return err
	}

	zapLog.Info("click logged", zap.String("click_id", c.ID))
	return nil
}

func RegisterHandlers(mux *asynq.ServeMux, h *Handler) {
	mux.HandleFunc(taskname.ClickLog, h.HandleClickLog)
}
