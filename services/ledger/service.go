package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taskora/pkg/db/option"
	"taskora/pkg/db/pagination"
	"taskora/pkg/errutil"
	"taskora/pkg/gen"
	"taskora/pkg/logger"
	"taskora/pkg/repository"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db    *gorm.DB
	ids   gen.IDGenerator
	inTrx bool

	ledger  repository.Repository[LedgerEntry]
	balance repository.Repository[Balance]
}

type ServiceParams struct {
	fx.In
	DB  *gorm.DB
	IDs gen.IDGenerator
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:  p.DB,
		ids: p.IDs,

		ledger:  repository.ProvideStore[LedgerEntry](p.DB),
		balance: repository.ProvideStore[Balance](p.DB),
	}
}

// WithTrx binds the ledger to an open transaction; Credit then joins it instead of opening its own.
func (s *Service) WithTrx(tx *gorm.DB) *Service {
	if tx == nil {
		return s
	}
	return &Service{
		db:      tx,
		ids:     s.ids,
		inTrx:   true,
		ledger:  s.ledger.WithTrx(tx),
		balance: s.balance.WithTrx(tx),
	}
}

func (s *Service) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.inTrx {
		return fn(s.db.WithContext(ctx))
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// Credit appends the single ledger event for a submission and raises the cached balance by
// the same amount. A second credit for the same submission returns ErrAlreadyCredited and
// leaves every row untouched.
func (s *Service) Credit(ctx context.Context, p CreditParams) (*LedgerEntry, error) {
	log := logger.FromContext(ctx).With(
		zap.String("user_id", p.UserID),
		zap.String("submission_id", p.SubmissionID),
		zap.Int64("amount", p.Amount),
	)

	if p.Amount <= 0 {
		return nil, errutil.ValidationFailed("amount must be > 0 for credit", nil)
	}
	if p.UserID == "" || p.SubmissionID == "" {
		return nil, errutil.ValidationFailed("user_id and submission_id are required", nil)
	}

	var entry *LedgerEntry
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		ledgerTx := s.ledger.WithTrx(tx)

		exist, err := ledgerTx.FindOne(ctx, &LedgerEntry{SubmissionID: p.SubmissionID})
		if err != nil {
			return err
		}
		if exist != nil {
			return ErrAlreadyCredited
		}

		if err := s.lockBalance(ctx, tx, p.UserID); err != nil {
			return err
		}

		lastEntry, err := s.getLastEntry(ctx, tx, p.UserID)
		if err != nil {
			return err
		}

		transactionID, err := GenerateTransactionID()
		if err != nil {
			return err
		}

		var metadata datatypes.JSON
		if len(p.Metadata) > 0 {
			raw, err := json.Marshal(p.Metadata)
			if err != nil {
				return fmt.Errorf("marshal ledger metadata: %w", err)
			}
			metadata = datatypes.JSON(raw)
		}

		previousHash, sequence := GenesisHash, int64(1)
		if lastEntry != nil {
			previousHash, sequence = lastEntry.Hash, lastEntry.Sequence+1
		}

		entry = NewLedgerEntry(LedgerParams{
			LedgerID:      s.ids.NextID(),
			UserID:        p.UserID,
			Sequence:      sequence,
			SubmissionID:  p.SubmissionID,
			Amount:        p.Amount,
			TransactionID: transactionID,
			Description:   p.Description,
			PreviousHash:  previousHash,
			Metadata:      metadata,
			CreatedAt:     time.Now(),
		})
		entry.Hash = entry.GenerateHash()

		// a concurrent credit for the same submission makes this insert a no-op
		// rather than a unique violation that would poison the transaction
		res := tx.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "submission_id"}}, DoNothing: true}).
			Create(entry)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyCredited
		}

		return s.incrementBalance(ctx, tx, p.UserID, p.Amount)
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyCredited) {
			log.Info("submission already credited")
			return nil, ErrAlreadyCredited
		}
		log.Error("failed to credit ledger", zap.Error(err))
		return nil, fmt.Errorf("credit ledger: %w", err)
	}

	log.Info("ledger credited", zap.String("entry_id", entry.ID), zap.String("transaction_id", entry.TransactionID))
	return entry, nil
}

// getLastEntry reads the tail of the user's chain. Callers hold the balance row lock.
func (s *Service) getLastEntry(ctx context.Context, tx *gorm.DB, userID string) (*LedgerEntry, error) {
	return s.ledger.WithTrx(tx).FindOne(ctx, &LedgerEntry{UserID: userID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "sequence",
			OrderBy: "desc",
			Allow:   map[string]bool{"sequence": true},
		}),
	)
}

// lockBalance creates the user's balance row on first credit and holds its row lock until the
// transaction ends, so credits for one user extend the chain one at a time.
func (s *Service) lockBalance(ctx context.Context, tx *gorm.DB, userID string) error {
	now := time.Now().UTC()

	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&Balance{
			ID:        s.ids.NextID(),
			UserID:    userID,
			Balance:   0,
			CreatedAt: now,
			UpdatedAt: now,
		}).Error; err != nil {
		return err
	}

	balance, err := s.balance.WithTrx(tx).FindOne(ctx, &Balance{UserID: userID}, option.WithLockingUpdate())
	if err != nil {
		return err
	}
	if balance == nil {
		return fmt.Errorf("balance row for %s missing after upsert", userID)
	}
	return nil
}

func (s *Service) incrementBalance(ctx context.Context, tx *gorm.DB, userID string, amount int64) error {
	res := tx.WithContext(ctx).
		Model(&Balance{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("balance row for %s missing", userID)
	}
	return nil
}

// BalanceOf returns the cached balance, zero for users that were never credited.
func (s *Service) BalanceOf(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, nil
	}

	balance, err := s.balance.FindOne(ctx, &Balance{UserID: userID})
	if err != nil {
		logger.FromContext(ctx).Error("failed to query balance", zap.String("user_id", userID), zap.Error(err))
		return 0, fmt.Errorf("balance of %s: %w", userID, err)
	}
	if balance == nil {
		return 0, nil
	}
	return balance.Balance, nil
}

// Reconcile replays the user's events, compares the total with the cached balance and
// verifies the hash chain.
func (s *Service) Reconcile(ctx context.Context, userID string) (Reconciliation, error) {
	result := Reconciliation{UserID: userID}

	cached, err := s.BalanceOf(ctx, userID)
	if err != nil {
		return result, err
	}
	result.CachedBalance = cached

	var agg struct {
		Total int64
		Count int64
	}
	if err := s.db.WithContext(ctx).
		Model(&LedgerEntry{}).
		Select("COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Scan(&agg).Error; err != nil {
		logger.FromContext(ctx).Error("failed to sum ledger", zap.String("user_id", userID), zap.Error(err))
		return result, fmt.Errorf("reconcile %s: %w", userID, err)
	}

	result.LedgerTotal = agg.Total
	result.EntryCount = agg.Count
	result.Consistent = result.LedgerTotal == result.CachedBalance

	if result.ChainValid, err = s.VerifyChain(ctx, userID); err != nil {
		return result, err
	}
	if !result.Consistent {
		logger.FromContext(ctx).Warn("ledger and cached balance disagree",
			zap.String("user_id", userID),
			zap.Int64("cached", result.CachedBalance),
			zap.Int64("ledger", result.LedgerTotal),
		)
	}
	return result, nil
}

// ListEntries returns the user's points history, newest first.
func (s *Service) ListEntries(ctx context.Context, userID string, limit int) ([]*LedgerEntry, error) {
	if userID == "" {
		return []*LedgerEntry{}, nil
	}

	entries, err := s.ledger.Find(ctx, &LedgerEntry{UserID: userID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}),
		option.WithTiebreak(true),
		option.WithLimit(pagination.Clamp(limit)),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to query list entries", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if entries == nil {
		entries = []*LedgerEntry{}
	}
	return entries, nil
}

func (s *Service) GetBySubmission(ctx context.Context, submissionID string) (*LedgerEntry, error) {
	if submissionID == "" {
		return nil, errutil.NotFound("ledger entry not found", nil)
	}

	entry, err := s.ledger.FindOne(ctx, &LedgerEntry{SubmissionID: submissionID})
	if err != nil {
		logger.FromContext(ctx).Error("failed to FindOne entry", zap.String("submission_id", submissionID), zap.Error(err))
		return nil, fmt.Errorf("get entry: %w", err)
	}
	if entry == nil {
		return nil, errutil.NotFound("ledger entry not found", nil)
	}
	return entry, nil
}

// VerifyChain recomputes every hash of the user's chain in sequence order.
func (s *Service) VerifyChain(ctx context.Context, userID string) (bool, error) {
	entries, err := s.ledger.Find(ctx, &LedgerEntry{UserID: userID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "sequence",
			OrderBy: "asc",
			Allow:   map[string]bool{"sequence": true},
		}),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to query Find entries", zap.String("user_id", userID), zap.Error(err))
		return false, fmt.Errorf("verify chain: %w", err)
	}

	lastHash := GenesisHash
	for i, entry := range entries {
		if entry.Sequence != int64(i+1) || entry.PreviousHash != lastHash || entry.Hash != entry.GenerateHash() {
			logger.FromContext(ctx).Warn("ledger chain broken", zap.String("user_id", userID), zap.String("entry_id", entry.ID))
			return false, nil
		}
		lastHash = entry.Hash
	}

	return true, nil
}
