package api

import (
	"context"
	"time"

	"taskora/pkg/config"
	"taskora/pkg/featureflags"
	"taskora/pkg/minio"
	"taskora/services/authz"
	"taskora/services/click"
	"taskora/services/ledger"
	"taskora/services/offer"
	"taskora/services/review"
	"taskora/services/submission"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

const (
	defaultReadURLTTL   = 60 * time.Second
	defaultUploadURLTTL = 5 * time.Minute
)

// ClickLogger records outbound offer visits.
type ClickLogger interface {
	Log(ctx context.Context, p click.ClickParams) error
}

type Handler struct {
	secret  []byte
	store   *submission.Store
	engine  *review.Engine
	ledger  *ledger.Service
	catalog offer.Catalog
	gate    authz.Gate
	signer  minio.Signer
	flags   featureflags.FeatureFlag
	clicks  ClickLogger

	readURLTTL   time.Duration
	uploadURLTTL time.Duration
}

type HandlerParams struct {
	fx.In
	Config  *config.Config
	Store   *submission.Store
	Engine  *review.Engine
	Ledger  *ledger.Service
	Catalog offer.Catalog
	Gate    authz.Gate
	Signer  minio.Signer
	Flags   featureflags.FeatureFlag
	Clicks  ClickLogger
}

func NewHandler(p HandlerParams) *Handler {
	h := &Handler{
		secret:       []byte(p.Config.JWT.Secret),
		store:        p.Store,
		engine:       p.Engine,
		ledger:       p.Ledger,
		catalog:      p.Catalog,
		gate:         p.Gate,
		signer:       p.Signer,
		flags:        p.Flags,
		clicks:       p.Clicks,
		readURLTTL:   p.Config.Minio.ReadURLTTL,
		uploadURLTTL: p.Config.Minio.UploadURLTTL,
	}
	if h.readURLTTL <= 0 {
		h.readURLTTL = defaultReadURLTTL
	}
	if h.uploadURLTTL <= 0 {
		h.uploadURLTTL = defaultUploadURLTTL
	}
	return h
}

// wrap lets handlers return errors; middleware.Error renders them.
func wrap(fn func(c *gin.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(c); err != nil {
			_ = c.Error(err)
		}
	}
}
