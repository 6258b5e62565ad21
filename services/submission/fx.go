package submission

import "go.uber.org/fx"

var Module = fx.Module("submission.store",
	fx.Provide(NewStore),
)
