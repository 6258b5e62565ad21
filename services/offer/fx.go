package offer

import (
	"taskora/pkg/config"

	"go.uber.org/fx"
)

var Module = fx.Module("offer.service",
	fx.Provide(
		NewService,
		func(s *Service, cfg *config.Config) Catalog {
			return NewCachedCatalog(s, cfg.Offer.CacheTTL)
		},
	),
)
