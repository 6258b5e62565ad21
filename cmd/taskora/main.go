package main

import (
	"taskora/pkg/config"
	"taskora/pkg/db"
	"taskora/pkg/featureflags"
	"taskora/pkg/gen"
	"taskora/pkg/hashistack/secretmanager"
	"taskora/pkg/health"
	"taskora/pkg/httpapi"
	"taskora/pkg/logger"
	"taskora/pkg/minio"
	"taskora/pkg/otelcol"
	"taskora/pkg/redis"
	"taskora/pkg/server"
	"taskora/pkg/task"
	"taskora/services/api"
	"taskora/services/authz"
	"taskora/services/click"
	"taskora/services/ledger"
	"taskora/services/offer"
	"taskora/services/review"
	"taskora/services/submission"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		secretmanager.Options(),
		config.Options(),
		logger.Module,
		db.Module,
		otelcol.Module,
		redis.Module,
		task.Client,
		minio.Client,
		featureflags.Module,
		gen.Module,
		health.Module,
		httpapi.Module,

		offer.Module,
		submission.Module,
		ledger.Module,
		authz.Module,
		review.Module,
		click.Module,
		api.Module,

		fx.Invoke(migrate),
		server.ProvideHTTPServer,
		server.ProvideGRPCServer,
		fxLogger,
	)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, log *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "production" {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: log}
})

func migrate(cfg *config.Config, gdb *gorm.DB) error {
	if !cfg.Database.AutoMigrate {
		return nil
	}
	return db.Migrate(gdb,
		&offer.Offer{},
		&submission.Submission{},
		&ledger.LedgerEntry{},
		&ledger.Balance{},
	)
}
