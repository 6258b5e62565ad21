package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskora/pkg/config"
	"taskora/pkg/errutil"
	"taskora/pkg/logger"
	"taskora/services/authz"
	"taskora/services/ledger"
	"taskora/services/offer"
	"taskora/services/submission"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 50 * time.Millisecond
)

type Engine struct {
	db      *gorm.DB
	gate    authz.Gate
	store   *submission.Store
	ledger  *ledger.Service
	catalog offer.Catalog

	maxAttempts    int
	initialBackoff time.Duration
}

type EngineParams struct {
	fx.In
	DB      *gorm.DB
	Config  *config.Config `optional:"true"`
	Gate    authz.Gate
	Store   *submission.Store
	Ledger  *ledger.Service
	Catalog offer.Catalog
}

func NewEngine(p EngineParams) *Engine {
	e := &Engine{
		db:             p.DB,
		gate:           p.Gate,
		store:          p.Store,
		ledger:         p.Ledger,
		catalog:        p.Catalog,
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
	}

	if p.Config != nil {
		if p.Config.Review.MaxAttempts > 0 {
			e.maxAttempts = p.Config.Review.MaxAttempts
		}
		if p.Config.Review.InitialBackoff > 0 {
			e.initialBackoff = p.Config.Review.InitialBackoff
		}
	}
	return e
}

// Review applies a reviewer's decision to a pending submission. Approval transitions the
// submission and credits the offer payout in one transaction; rejection only transitions.
func (e *Engine) Review(ctx context.Context, p ReviewParams) (*submission.Submission, error) {
	log := logger.FromContext(ctx).With(
		zap.String("submission_id", p.SubmissionID),
		zap.String("decision", string(p.Decision)),
		zap.String("reviewer_id", p.Caller.UserID),
	)

	sub, err := e.review(ctx, p)
	outcome := outcomeOf(p.Decision, err)
	reviewTotal.WithLabelValues(decisionLabel(p.Decision), outcome).Inc()

	switch outcome {
	case outcomeApproved, outcomeRejected:
		log.Info("submission reviewed", zap.String("outcome", outcome), zap.String("user_id", sub.UserID))
	case outcomeError:
		log.Error("review failed", zap.Error(err))
	default:
		log.Info("review refused", zap.String("outcome", outcome), zap.Error(err))
	}

	return sub, err
}

func (e *Engine) review(ctx context.Context, p ReviewParams) (*submission.Submission, error) {
	allowed, err := e.gate.CanReview(ctx, p.Caller)
	if err != nil {
		return nil, errutil.Internal("authorization check failed", err)
	}
	if !allowed {
		return nil, errutil.Forbidden("reviewer privilege required", nil)
	}

	target := p.Decision.Target()
	if target == "" {
		return nil, errutil.ValidationFailed(fmt.Sprintf("unknown decision %q", p.Decision), nil,
			errutil.WithDetails(errutil.Detail{Field: "decision", Message: "must be approve or reject"}))
	}

	current, err := e.store.Get(ctx, p.SubmissionID)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, errutil.Conflict(fmt.Sprintf("submission already %s", current.Status), nil)
	}

	var result *submission.Submission
	err = e.retry(ctx, func() error {
		var err error
		switch p.Decision {
		case DecisionReject:
			result, err = e.reject(ctx, p)
		case DecisionApprove:
			result, err = e.approve(ctx, current, p)
		}
		return err
	})
	return result, err
}

func (e *Engine) reject(ctx context.Context, p ReviewParams) (*submission.Submission, error) {
	return e.store.Transition(ctx, submission.TransitionParams{
		ID:         p.SubmissionID,
		From:       submission.StatusPending,
		To:         submission.StatusRejected,
		AdminNote:  p.AdminNote,
		ReviewedBy: p.Caller.UserID,
	})
}

func (e *Engine) approve(ctx context.Context, current *submission.Submission, p ReviewParams) (*submission.Submission, error) {
	var approved *submission.Submission

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated, err := e.store.WithTrx(tx).Transition(ctx, submission.TransitionParams{
			ID:         p.SubmissionID,
			From:       submission.StatusPending,
			To:         submission.StatusApproved,
			AdminNote:  p.AdminNote,
			ReviewedBy: p.Caller.UserID,
		})
		if err != nil {
			return err
		}

		o, err := e.catalog.WithTrx(tx).Get(ctx, current.OfferID)
		if err != nil {
			if errutil.Is(err, errutil.StatusNotFound) {
				return errutil.UnprocessableEntity("offer for submission no longer exists", err)
			}
			return err
		}

		_, err = e.ledger.WithTrx(tx).Credit(ctx, ledger.CreditParams{
			UserID:       updated.UserID,
			SubmissionID: updated.ID,
			Amount:       o.PayoutPoints,
			Description:  fmt.Sprintf("Approved: %s", o.Title),
			Metadata: map[string]any{
				"offer_id":    o.ID,
				"offer_title": o.Title,
				"reviewed_by": p.Caller.UserID,
			},
		})
		if err != nil && !errors.Is(err, ledger.ErrAlreadyCredited) {
			return err
		}

		approved = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

// retry re-runs op while it fails with a transient storage error, up to maxAttempts in total.
func (e *Engine) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.initialBackoff
	b.MaxElapsedTime = 0

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return backoff.Permanent(err)
		}
		logger.FromContext(ctx).Warn("transient review failure", zap.Int("attempt", attempt), zap.Error(err))
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.maxAttempts-1)), ctx))
}

func outcomeOf(d Decision, err error) string {
	if err == nil {
		if d == DecisionApprove {
			return outcomeApproved
		}
		return outcomeRejected
	}

	switch errutil.StatusOf(err) {
	case errutil.StatusForbidden:
		return outcomeForbidden
	case errutil.StatusNotFound:
		return outcomeNotFound
	case errutil.StatusConflict:
		return outcomeConflict
	case errutil.StatusValidationFailed:
		return outcomeInvalid
	default:
		return outcomeError
	}
}

func decisionLabel(d Decision) string {
	if d.Target() == "" {
		return "unknown"
	}
	return string(d)
}
