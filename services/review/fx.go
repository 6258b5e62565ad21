package review

import "go.uber.org/fx"

var Module = fx.Module("review.engine",
	fx.Provide(NewEngine),
)
