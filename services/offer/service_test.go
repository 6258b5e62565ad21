package offer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"taskora/pkg/errutil"
	"taskora/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t, &Offer{})
	return NewService(ServiceParams{DB: db}), db
}

func seed(t *testing.T, svc *Service) {
	t.Helper()
	require.NoError(t, svc.Upsert(context.Background(), []*Offer{
		{ID: "offer-3", Title: "Survey", URL: "https://example.com/3", PayoutPoints: 30, IsActive: true},
		{ID: "offer-1", Title: "Install app", URL: "https://example.com/1", PayoutPoints: 50, IsActive: true},
		{ID: "offer-2", Title: "Retired", URL: "https://example.com/2", PayoutPoints: 10, IsActive: false},
	}))
}

func TestGet(t *testing.T) {
	svc, _ := newTestService(t)
	seed(t, svc)

	o, err := svc.Get(context.Background(), "offer-1")
	require.NoError(t, err)
	require.Equal(t, int64(50), o.PayoutPoints)
	require.True(t, o.IsActive)

	_, err = svc.Get(context.Background(), "offer-404")
	require.True(t, errutil.Is(err, errutil.StatusNotFound))

	_, err = svc.Get(context.Background(), "")
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}

func TestListActiveAscendingByID(t *testing.T) {
	svc, _ := newTestService(t)
	seed(t, svc)

	offers, err := svc.ListActive(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, offers, 2)
	require.Equal(t, "offer-1", offers[0].ID)
	require.Equal(t, "offer-3", offers[1].ID)

	offers, err = svc.ListActive(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, offers, 1)
}

func TestUpsertRefreshesExistingOffer(t *testing.T) {
	svc, _ := newTestService(t)
	seed(t, svc)

	require.NoError(t, svc.Upsert(context.Background(), []*Offer{
		{ID: "offer-1", Title: "Install app v2", URL: "https://example.com/1", PayoutPoints: 100, IsActive: false},
	}))

	o, err := svc.Get(context.Background(), "offer-1")
	require.NoError(t, err)
	require.Equal(t, "Install app v2", o.Title)
	require.Equal(t, int64(100), o.PayoutPoints)
	require.False(t, o.IsActive)
}

func TestUpsertRejectsNonPositivePayout(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Upsert(context.Background(), []*Offer{{ID: "bad", Title: "Bad", URL: "https://x", PayoutPoints: 0}})
	require.True(t, errutil.Is(err, errutil.StatusValidationFailed))
}

func TestWithTrxUsesTransaction(t *testing.T) {
	svc, db := newTestService(t)
	seed(t, svc)

	err := db.Transaction(func(tx *gorm.DB) error {
		o, err := svc.WithTrx(tx).Get(context.Background(), "offer-3")
		require.NoError(t, err)
		require.Equal(t, "Survey", o.Title)
		return nil
	})
	require.NoError(t, err)
	require.Same(t, svc, svc.WithTrx(nil))
}

type countingCatalog struct {
	Catalog
	calls int
}

func (c *countingCatalog) ListActive(ctx context.Context, limit int) ([]*Offer, error) {
	c.calls++
	return c.Catalog.ListActive(ctx, limit)
}

func TestCachedCatalogServesFromMemory(t *testing.T) {
	svc, _ := newTestService(t)
	seed(t, svc)

	inner := &countingCatalog{Catalog: svc}
	cached := NewCachedCatalog(inner, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cached.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		offers, err := cached.ListActive(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, offers, 2)
	}
	require.Equal(t, 1, inner.calls)

	now = now.Add(2 * time.Minute)
	_, err := cached.ListActive(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)

	cached.Invalidate()
	_, err = cached.ListActive(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 3, inner.calls)
}

func TestCachedCatalogDisabledAndPassThrough(t *testing.T) {
	svc, _ := newTestService(t)
	seed(t, svc)

	inner := &countingCatalog{Catalog: svc}
	cached := NewCachedCatalog(inner, 0)

	_, err := cached.ListActive(context.Background(), 10)
	require.NoError(t, err)
	_, err = cached.ListActive(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)

	o, err := cached.Get(context.Background(), "offer-1")
	require.NoError(t, err)
	require.Equal(t, "offer-1", o.ID)
}
