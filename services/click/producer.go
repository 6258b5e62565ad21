package click

import (
	"context"
	"time"

	"taskora/pkg/logger"
	"taskora/pkg/task"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Producer enqueues click audits for the worker. It never blocks the caller on the write.
type Producer struct {
	enqueuer task.Enqueuer
}

type ProducerParams struct {
	fx.In
	Enqueuer task.Enqueuer
}

func NewProducer(p ProducerParams) *Producer {
	return &Producer{enqueuer: p.Enqueuer}
}

func (p *Producer) Log(ctx context.Context, params ClickParams) error {
	t, err := NewClickLogTask(ClickLogPayload{
		UserID:    params.UserID,
		OfferID:   params.OfferID,
		IP:        params.IP,
		UserAgent: params.UserAgent,
		ClickedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	info, err := p.enqueuer.Enqueue(ctx, t)
	if err != nil {
		logger.FromContext(ctx).Warn("failed to enqueue click log",
			zap.String("user_id", params.UserID),
			zap.String("offer_id", params.OfferID),
			zap.Error(err),
		)
		return err
	}

	logger.FromContext(ctx).Debug("click log enqueued",
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)
	return nil
}
