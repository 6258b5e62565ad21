package submission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskora/pkg/db/option"
	"taskora/pkg/db/pagination"
	"taskora/pkg/errutil"
	"taskora/pkg/gen"
	"taskora/pkg/logger"
	"taskora/pkg/repository"
	"taskora/services/offer"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Store struct {
	db          *gorm.DB
	ids         gen.IDGenerator
	catalog     offer.Catalog
	submissions repository.Repository[Submission]
}

type StoreParams struct {
	fx.In
	DB      *gorm.DB
	IDs     gen.IDGenerator
	Catalog offer.Catalog
}

func NewStore(p StoreParams) *Store {
	return &Store{
		db:          p.DB,
		ids:         p.IDs,
		catalog:     p.Catalog,
		submissions: repository.ProvideStore[Submission](p.DB),
	}
}

// WithTrx returns a copy of the store whose reads and writes go through tx.
func (s *Store) WithTrx(tx *gorm.DB) *Store {
	if tx == nil {
		return s
	}
	return &Store{
		db:          tx,
		ids:         s.ids,
		catalog:     s.catalog.WithTrx(tx),
		submissions: s.submissions.WithTrx(tx),
	}
}

func (s *Store) Create(ctx context.Context, p CreateParams) (*Submission, error) {
	log := logger.FromContext(ctx).With(zap.String("user_id", p.UserID), zap.String("offer_id", p.OfferID))

	if strings.TrimSpace(p.StorageKey) == "" {
		return nil, errutil.ValidationFailed("storage_key is required", nil,
			errutil.WithDetails(errutil.Detail{Field: "storage_key", Message: "must not be empty"}))
	}

	o, err := s.catalog.Get(ctx, p.OfferID)
	if err != nil {
		if errutil.Is(err, errutil.StatusNotFound) {
			return nil, errutil.ValidationFailed("offer does not exist", nil,
				errutil.WithDetails(errutil.Detail{Field: "offer_id", Message: "unknown offer"}))
		}
		return nil, err
	}
	if !o.IsActive {
		return nil, errutil.ValidationFailed("offer is not active", nil,
			errutil.WithDetails(errutil.Detail{Field: "offer_id", Message: "inactive offer"}))
	}

	sub := &Submission{
		ID:         s.ids.NextID(),
		UserID:     p.UserID,
		OfferID:    p.OfferID,
		StorageKey: p.StorageKey,
		Note:       normalizeNote(p.Note),
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.submissions.Create(ctx, sub); err != nil {
		log.Error("failed to create submission", zap.Error(err))
		return nil, fmt.Errorf("create submission: %w", err)
	}

	log.Info("submission created", zap.String("submission_id", sub.ID))
	return sub, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Submission, error) {
	if id == "" {
		return nil, errutil.NotFound("submission not found", nil)
	}

	sub, err := s.submissions.FindOne(ctx, &Submission{ID: id})
	if err != nil {
		logger.FromContext(ctx).Error("failed to query submission", zap.String("submission_id", id), zap.Error(err))
		return nil, fmt.Errorf("get submission: %w", err)
	}
	if sub == nil {
		return nil, errutil.NotFound("submission not found", nil)
	}
	return sub, nil
}

// ListForUser returns the user's submissions, newest first.
func (s *Store) ListForUser(ctx context.Context, userID string, limit int) ([]*Submission, error) {
	if userID == "" {
		return []*Submission{}, nil
	}
	return s.list(ctx, &Submission{UserID: userID}, limit)
}

// ListPending returns submissions awaiting review, newest first.
func (s *Store) ListPending(ctx context.Context, limit int) ([]*Submission, error) {
	return s.list(ctx, &Submission{Status: StatusPending}, limit)
}

func (s *Store) list(ctx context.Context, query *Submission, limit int) ([]*Submission, error) {
	subs, err := s.submissions.Find(ctx, query,
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}),
		option.WithTiebreak(true),
		option.WithLimit(pagination.Clamp(limit)),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list submissions", zap.Error(err))
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	if subs == nil {
		subs = []*Submission{}
	}
	return subs, nil
}

// Transition moves a submission from p.From to p.To only if it is still in p.From.
// A lost race surfaces as Conflict.
func (s *Store) Transition(ctx context.Context, p TransitionParams) (*Submission, error) {
	if p.From != StatusPending {
		return nil, errutil.ValidationFailed(fmt.Sprintf("cannot transition from %q", p.From), nil)
	}
	if !p.To.IsTerminal() {
		return nil, errutil.ValidationFailed(fmt.Sprintf("cannot transition to %q", p.To), nil)
	}

	log := logger.FromContext(ctx).With(
		zap.String("submission_id", p.ID),
		zap.String("from", string(p.From)),
		zap.String("to", string(p.To)),
	)

	updates := map[string]any{
		"status":      p.To,
		"admin_note":  normalizeNote(p.AdminNote),
		"reviewed_by": p.ReviewedBy,
		"reviewed_at": time.Now().UTC(),
	}

	res := s.db.WithContext(ctx).
		Model(&Submission{}).
		Where("id = ? AND status = ?", p.ID, p.From).
		Updates(updates)
	if res.Error != nil {
		log.Error("failed to transition submission", zap.Error(res.Error))
		return nil, fmt.Errorf("transition submission: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		current, err := s.Get(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		log.Info("submission transition lost", zap.String("current", string(current.Status)))
		return nil, errutil.Conflict(fmt.Sprintf("submission already %s", current.Status), nil)
	}

	return s.Get(ctx, p.ID)
}

func normalizeNote(note *string) *string {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
