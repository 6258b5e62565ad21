package main

import (
	"taskora/pkg/config"
	"taskora/pkg/db"
	"taskora/pkg/gen"
	"taskora/pkg/hashistack/secretmanager"
	"taskora/pkg/logger"
	"taskora/pkg/task"
	"taskora/services/click"

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
		gen.Module,
		task.Server,
		click.WorkerModule,
		fx.Invoke(migrate),
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
	return db.Migrate(gdb, &click.Click{})
}
