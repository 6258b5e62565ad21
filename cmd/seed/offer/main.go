package main

import (
	"context"
	"flag"
	"log"

	"taskora/pkg/config"
	"taskora/pkg/db"
	"taskora/pkg/hashistack/secretmanager"
	"taskora/pkg/logger"
	"taskora/services/offer"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type offerSeed struct {
	ID           string `mapstructure:"id"`
	Title        string `mapstructure:"title"`
	Description  string `mapstructure:"description"`
	URL          string `mapstructure:"url"`
	PayoutPoints int64  `mapstructure:"payout_points"`
	IsActive     bool   `mapstructure:"is_active"`
}

func main() {
	file := flag.String("file", "cmd/seed/offer/offers.yaml", "offer catalog to upsert")
	flag.Parse()

	seeds, err := readSeeds(*file)
	if err != nil {
		log.Fatalf("read %s: %v", *file, err)
	}

	opts := []fx.Option{
		secretmanager.Options(),
		config.Options(),
		logger.Module,
		db.Module,
		offer.Module,
		fx.Supply(seeds),
		fx.Invoke(run),
		fx.NopLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
	_ = app.Stop(context.Background())
}

func readSeeds(path string) ([]offerSeed, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var seeds []offerSeed
	if err := v.UnmarshalKey("offers", &seeds); err != nil {
		return nil, err
	}
	return seeds, nil
}

func run(cfg *config.Config, gdb *gorm.DB, svc *offer.Service, seeds []offerSeed) error {
	if err := db.Migrate(gdb, &offer.Offer{}); err != nil {
		return err
	}

	offers := make([]*offer.Offer, 0, len(seeds))
	for _, s := range seeds {
		offers = append(offers, &offer.Offer{
			ID:           s.ID,
			Title:        s.Title,
			Description:  s.Description,
			URL:          s.URL,
			PayoutPoints: s.PayoutPoints,
			IsActive:     s.IsActive,
		})
	}

	if err := svc.Upsert(context.Background(), offers); err != nil {
		return err
	}

	zap.L().Info("offers seeded", zap.Int("count", len(offers)), zap.String("env", cfg.AppEnv))
	return nil
}
