package submission

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"taskora/pkg/db/pagination"
	"taskora/pkg/errutil"
	"taskora/services/offer"
	"taskora/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &offer.Offer{}, &Submission{})
	catalog := offer.NewService(offer.ServiceParams{DB: db})
	require.NoError(t, catalog.Upsert(context.Background(), []*offer.Offer{
		{ID: "offer-1", Title: "Install app", URL: "https://example.com/1", PayoutPoints: 50, IsActive: true},
		{ID: "offer-off", Title: "Retired", URL: "https://example.com/2", PayoutPoints: 10, IsActive: false},
	}))

	return NewStore(StoreParams{DB: db, IDs: testutil.NewIDs(t), Catalog: catalog}), db
}

func strPtr(s string) *string { return &s }

func TestCreate(t *testing.T) {
	store, _ := newTestStore(t)

	sub, err := store.Create(context.Background(), CreateParams{
		UserID:     "user-1",
		OfferID:    "offer-1",
		StorageKey: "user-1/1700000000000_proof.png",
		Note:       strPtr("  done it  "),
	})
	require.NoError(t, err)
	require.NotEmpty(t, sub.ID)
	require.Equal(t, StatusPending, sub.Status)
	require.Equal(t, "done it", *sub.Note)
	require.Nil(t, sub.AdminNote)
	require.Nil(t, sub.ReviewedBy)
	require.Nil(t, sub.ReviewedAt)

	stored, err := store.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Equal(t, sub.ID, stored.ID)
	require.Equal(t, StatusPending, stored.Status)
}

func TestCreateValidation(t *testing.T) {
	store, _ := newTestStore(t)

	cases := []struct {
		name   string
		params CreateParams
	}{
		{name: "unknown offer", params: CreateParams{UserID: "u", OfferID: "nope", StorageKey: "k"}},
		{name: "inactive offer", params: CreateParams{UserID: "u", OfferID: "offer-off", StorageKey: "k"}},
		{name: "empty storage key", params: CreateParams{UserID: "u", OfferID: "offer-1", StorageKey: ""}},
		{name: "blank storage key", params: CreateParams{UserID: "u", OfferID: "offer-1", StorageKey: "   "}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub, err := store.Create(context.Background(), tc.params)
			require.Nil(t, sub)
			require.True(t, errutil.Is(err, errutil.StatusValidationFailed), "got %v", err)
		})
	}
}

func TestEmptyNoteIsStoredAsNull(t *testing.T) {
	store, _ := newTestStore(t)

	sub, err := store.Create(context.Background(), CreateParams{UserID: "u", OfferID: "offer-1", StorageKey: "k", Note: strPtr("   ")})
	require.NoError(t, err)
	require.Nil(t, sub.Note)
}

func TestGetNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	require.True(t, errutil.Is(err, errutil.StatusNotFound))

	_, err = store.Get(context.Background(), "")
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}

func TestListForUserNewestFirst(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		sub, err := store.Create(ctx, CreateParams{UserID: "user-1", OfferID: "offer-1", StorageKey: fmt.Sprintf("k-%d", i)})
		require.NoError(t, err)
		ids = append(ids, sub.ID)
		time.Sleep(2 * time.Millisecond)
	}
	_, err := store.Create(ctx, CreateParams{UserID: "user-2", OfferID: "offer-1", StorageKey: "other"})
	require.NoError(t, err)

	subs, err := store.ListForUser(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, subs, 3)
	require.Equal(t, ids[2], subs[0].ID)
	require.Equal(t, ids[0], subs[2].ID)

	subs, err = store.ListForUser(ctx, "user-1", 2)
	require.NoError(t, err)
	require.Len(t, subs, 2)

	subs, err = store.ListForUser(ctx, "", 10)
	require.NoError(t, err)
	require.Empty(t, subs)
}

func TestListPendingOnlyPending(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, CreateParams{UserID: "user-1", OfferID: "offer-1", StorageKey: "a"})
	require.NoError(t, err)
	second, err := store.Create(ctx, CreateParams{UserID: "user-2", OfferID: "offer-1", StorageKey: "b"})
	require.NoError(t, err)

	_, err = store.Transition(ctx, TransitionParams{ID: first.ID, From: StatusPending, To: StatusRejected, ReviewedBy: "admin"})
	require.NoError(t, err)

	subs, err := store.ListPending(ctx, 50)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, second.ID, subs[0].ID)
}

func TestListClampsLimit(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	rows := make([]*Submission, 0, pagination.MaxLimit+5)
	for i := 0; i < pagination.MaxLimit+5; i++ {
		rows = append(rows, &Submission{
			ID:         fmt.Sprintf("sub-%04d", i),
			UserID:     "user-1",
			OfferID:    "offer-1",
			StorageKey: "k",
			Status:     StatusPending,
			CreatedAt:  now.Add(time.Duration(i) * time.Second),
		})
	}
	require.NoError(t, db.CreateInBatches(rows, 50).Error)

	subs, err := store.ListPending(ctx, 1000)
	require.NoError(t, err)
	require.Len(t, subs, pagination.MaxLimit)

	subs, err = store.ListPending(ctx, -1)
	require.NoError(t, err)
	require.Len(t, subs, pagination.DefaultLimit)
	require.Equal(t, fmt.Sprintf("sub-%04d", pagination.MaxLimit+4), subs[0].ID)
}

func TestTransitionCompareAndSet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sub, err := store.Create(ctx, CreateParams{UserID: "user-1", OfferID: "offer-1", StorageKey: "k"})
	require.NoError(t, err)

	updated, err := store.Transition(ctx, TransitionParams{
		ID:         sub.ID,
		From:       StatusPending,
		To:         StatusApproved,
		AdminNote:  strPtr("looks good"),
		ReviewedBy: "admin-1",
	})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, updated.Status)
	require.Equal(t, "looks good", *updated.AdminNote)
	require.Equal(t, "admin-1", *updated.ReviewedBy)
	require.NotNil(t, updated.ReviewedAt)

	_, err = store.Transition(ctx, TransitionParams{ID: sub.ID, From: StatusPending, To: StatusRejected, ReviewedBy: "admin-2"})
	require.True(t, errutil.Is(err, errutil.StatusConflict))

	current, err := store.Get(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, current.Status)
	require.Equal(t, "admin-1", *current.ReviewedBy)
}

func TestTransitionMissingSubmission(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Transition(context.Background(), TransitionParams{ID: "missing", From: StatusPending, To: StatusApproved, ReviewedBy: "a"})
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}

func TestTransitionRejectsInvalidTargets(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sub, err := store.Create(ctx, CreateParams{UserID: "user-1", OfferID: "offer-1", StorageKey: "k"})
	require.NoError(t, err)

	cases := []TransitionParams{
		{ID: sub.ID, From: StatusPending, To: StatusPending},
		{ID: sub.ID, From: StatusApproved, To: StatusRejected},
		{ID: sub.ID, From: StatusPending, To: Status("archived")},
	}
	for _, p := range cases {
		_, err := store.Transition(ctx, p)
		require.True(t, errutil.Is(err, errutil.StatusValidationFailed), "%s -> %s", p.From, p.To)
	}
}

func TestStatus(t *testing.T) {
	require.True(t, StatusApproved.IsTerminal())
	require.True(t, StatusRejected.IsTerminal())
	require.False(t, StatusPending.IsTerminal())
	require.False(t, Status("other").Valid())

	s, err := ParseStatus("pending")
	require.NoError(t, err)
	require.Equal(t, StatusPending, s)

	_, err = ParseStatus("PENDING")
	require.Error(t, err)
}
