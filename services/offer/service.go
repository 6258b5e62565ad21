package offer

import (
	"context"

	"taskora/pkg/db/option"
	"taskora/pkg/db/pagination"
	"taskora/pkg/errutil"
	"taskora/pkg/logger"
	"taskora/pkg/repository"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Catalog is the read side of the offer table used by submissions and reviews.
type Catalog interface {
	Get(ctx context.Context, offerID string) (*Offer, error)
	ListActive(ctx context.Context, limit int) ([]*Offer, error)
	WithTrx(tx *gorm.DB) Catalog
}

type Service struct {
	db     *gorm.DB
	offers repository.Repository[Offer]
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		offers: repository.ProvideStore[Offer](p.DB),
	}
}

func (s *Service) WithTrx(tx *gorm.DB) Catalog {
	if tx == nil {
		return s
	}
	return &Service{
		db:     tx,
		offers: s.offers.WithTrx(tx),
	}
}

func (s *Service) Get(ctx context.Context, offerID string) (*Offer, error) {
	if offerID == "" {
		return nil, errutil.NotFound("offer not found", nil)
	}

	o, err := s.offers.FindOne(ctx, &Offer{ID: offerID})
	if err != nil {
		logger.FromContext(ctx).Error("failed to query offer", zap.String("offer_id", offerID), zap.Error(err))
		return nil, err
	}
	if o == nil {
		return nil, errutil.NotFound("offer not found", nil)
	}
	return o, nil
}

// ListActive returns active offers in ascending id order.
func (s *Service) ListActive(ctx context.Context, limit int) ([]*Offer, error) {
	offers, err := s.offers.Find(ctx, &Offer{},
		option.ApplyOperator(option.Condition{Field: "is_active", Operator: option.EQ, Value: true}),
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "id",
			OrderBy: "asc",
			Allow:   map[string]bool{"id": true},
		}),
		option.WithLimit(pagination.Clamp(limit)),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list offers", zap.Error(err))
		return nil, err
	}
	return offers, nil
}

// Upsert inserts offers or refreshes every mutable column of existing ones.
func (s *Service) Upsert(ctx context.Context, offers []*Offer) error {
	if len(offers) == 0 {
		return nil
	}

	for _, o := range offers {
		if o.PayoutPoints <= 0 {
			return errutil.ValidationFailed("payout_points must be > 0", nil,
				errutil.WithDetails(errutil.Detail{Field: "payout_points", Message: o.ID}))
		}
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "description", "url", "payout_points", "is_active", "updated_at"}),
	}).Create(offers).Error
}
