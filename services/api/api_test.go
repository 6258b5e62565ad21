package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"taskora/pkg/config"
	"taskora/pkg/featureflags"
	"taskora/pkg/jwt"
	"taskora/pkg/middleware"
	"taskora/pkg/minio/mock"
	"taskora/services/authz"
	"taskora/services/click"
	"taskora/services/ledger"
	"taskora/services/offer"
	"taskora/services/review"
	"taskora/services/submission"
	"taskora/services/testutil"
)

const testSecret = "test-secret"

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

type clickStub struct {
	clicks []click.ClickParams
}

func (c *clickStub) Log(_ context.Context, p click.ClickParams) error {
	c.clicks = append(c.clicks, p)
	return nil
}

type apiFixture struct {
	router *gin.Engine
	signer *mock.MockSigner
	clicks *clickStub
}

func newAPIFixture(t *testing.T, flags featureflags.FeatureFlag) *apiFixture {
	t.Helper()

	db := testutil.NewTestDB(t, &offer.Offer{}, &submission.Submission{}, &ledger.LedgerEntry{}, &ledger.Balance{})
	ids := testutil.NewIDs(t)

	catalog := offer.NewService(offer.ServiceParams{DB: db})
	require.NoError(t, catalog.Upsert(context.Background(), []*offer.Offer{
		{ID: "offer-1", Title: "Install app", URL: "https://example.com/1", PayoutPoints: 50, IsActive: true},
		{ID: "offer-2", Title: "Survey", URL: "https://example.com/2", PayoutPoints: 20, IsActive: true},
		{ID: "offer-off", Title: "Retired", URL: "https://example.com/3", PayoutPoints: 10, IsActive: false},
	}))

	store := submission.NewStore(submission.StoreParams{DB: db, IDs: ids, Catalog: catalog})
	led := ledger.NewService(ledger.ServiceParams{DB: db, IDs: ids})
	gate, err := authz.NewCasbinGate("", "")
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.JWT.Secret = testSecret

	f := &apiFixture{signer: mock.NewMockSigner(gomock.NewController(t)), clicks: &clickStub{}}
	h := NewHandler(HandlerParams{
		Config:  cfg,
		Store:   store,
		Engine:  review.NewEngine(review.EngineParams{DB: db, Gate: gate, Store: store, Ledger: led, Catalog: catalog}),
		Ledger:  led,
		Catalog: catalog,
		Gate:    gate,
		Signer:  f.signer,
		Flags:   flags,
		Clicks:  f.clicks,
	})

	f.router = gin.New()
	f.router.Use(middleware.Error())
	h.RegisterRouter(f.router)
	return f
}

func token(t *testing.T, userID string, isReviewer bool) string {
	t.Helper()
	tok, err := jwt.GenerateToken([]byte(testSecret), userID, isReviewer, jwt.TokenTypeAccess, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *apiFixture) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (f *apiFixture) createSubmission(t *testing.T, tok, offerID string) submission.Submission {
	t.Helper()
	claims, err := jwt.ParseToken([]byte(testSecret), jwt.TokenTypeAccess, tok)
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/v1/submissions", tok, map[string]any{
		"offer_id":    offerID,
		"storage_key": StorageKey(claims.UserID, time.UnixMilli(1700000000000), "proof.png"),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[submission.Submission](t, w)
}

func TestRequiresBearerToken(t *testing.T) {
	f := newAPIFixture(t, featureflags.Static(nil))

	w := f.do(t, http.MethodGet, "/v1/balance", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "UNAUTHORIZED", decode[errorBody](t, w).Error.Code)

	w = f.do(t, http.MethodGet, "/v1/balance", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateSubmission(t *testing.T) {
	f := newAPIFixture(t, featureflags.Static(nil))
	user := token(t, "user-1", false)

	sub := f.createSubmission(t, user, "offer-1")
	require.Equal(t, "user-1", sub.UserID)
	require.Equal(t, submission.StatusPending, sub.Status)

	w := f.do(t, http.MethodPost, "/v1/submissions", user, map[string]any{"offer_id": "offer-off", "storage_key": "user-1/k"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, "VALIDATION_FAILED", decode[errorBody](t, w).Error.Code)

	w = f.do(t, http.MethodPost, "/v1/submissions", user, map[string]any{"offer_id": "offer-1", "storage_key": "  "})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPost, "/v1/submissions", user, map[string]any{"storage_key": "user-1/k"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCreateSubmissionRejectsForeignStorageKey(t *testing.T) {
	f := newAPIFixture(t, featureflags.Static(nil))
	user := token(t, "user-1", false)

	for _, key := range []string{
		"user-2/1700000000000_proof.png",
		"user-10/1700000000000_proof.png",
		"user-1",
		"1700000000000_proof.png",
	} {
		w := f.do(t, http.MethodPost, "/v1/submissions", user, map[string]any{"offer_id": "offer-1", "storage_key": key})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, key)
		require.Equal(t, "VALIDATION_FAILED", decode[errorBody](t, w).Error.Code)
	}

	w := f.do(t, http.MethodGet, "/v1/submissions", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Zero(t, decode[listResponse[submission.Submission]](t, w).Count)
}

func TestCreateSubmissionDisabledByFlag(t *testing.T) {
	f := newAPIFixture(t, featureflags.Static(map[string]bool{featureflags.ProofSubmissionsEnabled: false}))

	w := f.do(t, http.MethodPost, "/v1/submissions", token(t, "user-1", false), map[string]any{"offer_id": "offer-1", "storage_key": "k"})
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestListSubmissions(t *testing.T) {
	f := newAPIFixture(t, featureflags.Static(nil))
	user := token(t, "user-1", false)
	other := token(t, "user-2", false)
	admin := token(t, "admin-1", true)

	f.createSubmission(t, user, "offer-1")
	f.createSubmission(t, user, "offer-2")
	f.createSubmission(t, other, "offer-1")

	w := f.do(t, http.MethodGet, "/v1/submissions?mine=true", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	mine := decode[listResponse[submission.Submission]](t, w)
	require.Equal(t, 2, mine.Count)
	for _, s := range mine.Items {
		require.Equal(t, "user-1", s.UserID)
	}

	w = f.do(t, http.MethodGet, "/v1/submissions?status=pending", user, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/v1/submissions?status=pending&limit=2", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 2, decode[listResponse[submission.Submission]](t, w).Count)

	w = f.do(t, http.MethodGet, "/v1/submissions?status=approved", admin, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodGet, "/v1/submissions", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 2, decode[listResponse[submission.Submission]](t, w).Count)

	w = f.do(t, http.MethodGet, "/v1/submissions?mine=false&status=pending", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 3, decode[listResponse[submission.Submission]](t, w).Count)
}

func TestListSubmissionsMineFilter(t *testing.T) {
	f := newAPIFixture(t, featureflags.Static(nil))
	user := token(t, "user-1", false)
	admin := token(t, "admin-1", true)
	f.createSubmission(t, user, "offer-1")

	w := f.do(t, http.MethodGet, "/v1/submissions?mine=false", user, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, "VALIDATION_FAILED", decode[errorBody](t, w).Error.Code)

	w = f.do(t, http.MethodGet, "/v1/submissions?mine=false", admin, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodGet, "/v1/submissions?mine=true&status=pending", admin, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetSubmission(t *testing.T) {
	f := newAPIFixture(t, featureflags.Static(nil))
	user := token(t, "user-1", false)
	sub := f.createSubmission(t, user, "offer-1")

	w := f.do(t, http.MethodGet, "/v1/submissions/"+sub.ID, user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	owner := decode[submissionResponse](t, w)
	require.Equal(t, sub.ID, owner.ID)
	require.Empty(t, owner.ProofURL)

	w = f.do(t, http.MethodGet, "/v1/submissions/"+sub.ID, token(t, "user-2", false), nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	f.signer.EXPECT().
		SignReadURL(gomock.Any(), sub.StorageKey, defaultReadURLTTL).
		Return("https://storage.local/read/"+sub.StorageKey, nil)

	w = f.do(t, http.MethodGet, "/v1/submissions/"+sub.ID, token(t, "admin-1", true), nil)
	require.Equal(t, http.StatusOK, w.Code)
	asReviewer := decode[submissionResponse](t, w)
	require.Equal(t, "https://storage.local/read/"+sub.StorageKey, asReviewer.ProofURL)

	w = f.do(t, http.MethodGet, "/v1/submissions/missing", user, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestReviewFlow(t *testing.T) {
	f := newAPIFixture(t, featureflags.Static(nil))
	user := token(t, "user-1", false)
	admin := token(t, "admin-1", true)
	sub := f.createSubmission(t, user, "offer-1")

	w := f.do(t, http.MethodPost, "/v1/submissions/"+sub.ID+"/review", user, map[string]any{"decision": "approve"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/v1/submissions/"+sub.ID+"/review", admin, map[string]any{"decision": "maybe"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPost, "/v1/submissions/"+sub.ID+"/review", admin, map[string]any{"decision": "approve", "admin_note": "ok"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reviewed := decode[submission.Submission](t, w)
	require.Equal(t, submission.StatusApproved, reviewed.Status)
	require.Equal(t, "admin-1", *reviewed.ReviewedBy)

	w = f.do(t, http.MethodPost, "/v1/submissions/"+sub.ID+"/review", admin, map[string]any{"decision": "reject"})
	require.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, "/v1/submissions/missing/review", admin, map[string]any{"decision": "approve"})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/v1/balance", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	balance := decode[balanceResponse](t, w)
	require.Equal(t, "user-1", balance.UserID)
	require.Equal(t, int64(50), balance.Balance)

	w = f.do(t, http.MethodGet, "/v1/ledger/entries", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := decode[listResponse[ledger.LedgerEntry]](t, w)
	require.Equal(t, 1, entries.Count)
	require.Equal(t, sub.ID, entries.Items[0].SubmissionID)
	require.Equal(t, int64(50), entries.Items[0].Amount)

	w = f.do(t, http.MethodGet, "/v1/ledger/reconcile", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rec := decode[ledger.Reconciliation](t, w)
	require.True(t, rec.Consistent)
	require.True(t, rec.ChainValid)
	require.Equal(t, int64(50), rec.LedgerTotal)
}

func TestBalanceForNewUserIsZero(t *testing.T) {
	f := newAPIFixture(t, featureflags.Static(nil))

	w := f.do(t, http.MethodGet, "/v1/balance", token(t, "fresh", false), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Zero(t, decode[balanceResponse](t, w).Balance)
}

func TestOffersAndClicks(t *testing.T) {
	f := newAPIFixture(t, featureflags.Static(nil))
	user := token(t, "user-1", false)

	w := f.do(t, http.MethodGet, "/v1/offers", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	offers := decode[listResponse[offer.Offer]](t, w)
	require.Equal(t, 2, offers.Count)
	require.Equal(t, "offer-1", offers.Items[0].ID)
	require.Equal(t, "offer-2", offers.Items[1].ID)

	w = f.do(t, http.MethodPost, "/v1/offers/offer-2/click", user, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	clicked := decode[clickResponse](t, w)
	require.Equal(t, "https://example.com/2", clicked.URL)
	require.Len(t, f.clicks.clicks, 1)
	require.Equal(t, "user-1", f.clicks.clicks[0].UserID)
	require.Equal(t, "offer-2", f.clicks.clicks[0].OfferID)

	w = f.do(t, http.MethodPost, "/v1/offers/offer-off/click", user, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = f.do(t, http.MethodPost, "/v1/offers/nope/click", user, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Len(t, f.clicks.clicks, 1)
}

func TestGetSubmissionSignFailureOmitsURL(t *testing.T) {
	f := newAPIFixture(t, featureflags.Static(nil))
	sub := f.createSubmission(t, token(t, "user-1", false), "offer-1")

	f.signer.EXPECT().
		SignReadURL(gomock.Any(), sub.StorageKey, gomock.Any()).
		Return("", errors.New("storage offline"))

	w := f.do(t, http.MethodGet, "/v1/submissions/"+sub.ID, token(t, "admin-1", true), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, decode[submissionResponse](t, w).ProofURL)
}

func TestCreateUpload(t *testing.T) {
	f := newAPIFixture(t, featureflags.Static(nil))
	f.signer.EXPECT().
		SignUploadURL(gomock.Any(), gomock.Any(), defaultUploadURLTTL).
		DoAndReturn(func(_ context.Context, key string, _ time.Duration) (string, error) {
			return "https://storage.local/upload/" + key, nil
		})

	w := f.do(t, http.MethodPost, "/v1/uploads", token(t, "user-1", false), map[string]any{"filename": "my proof (1).png"})
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode[uploadResponse](t, w)
	require.True(t, strings.HasPrefix(resp.StorageKey, "user-1/"), resp.StorageKey)
	require.True(t, strings.HasSuffix(resp.StorageKey, "_my_proof__1_.png"), resp.StorageKey)
	require.Equal(t, "https://storage.local/upload/"+resp.StorageKey, resp.UploadURL)

	w = f.do(t, http.MethodPost, "/v1/uploads", token(t, "user-1", false), map[string]any{})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSafeName(t *testing.T) {
	cases := []struct{ in, want string }{
		{in: "proof.png", want: "proof.png"},
		{in: "my proof.png", want: "my_proof.png"},
		{in: "../../etc/passwd", want: ".._.._etc_passwd"},
		{in: "a-b_c.D9", want: "a-b_c.D9"},
		{in: "  padded name.gif ", want: "padded_name.gif"},
		{in: "screené.jpg", want: "screen_.jpg"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, SafeName(tc.in), tc.in)
	}
}

func TestStorageKey(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	require.Equal(t, "user-1/1700000000123_proof.png", StorageKey("user-1", at, "proof.png"))
}
