package click

import "go.uber.org/fx"

var Module = fx.Module("click.producer",
	fx.Provide(NewProducer),
)

var WorkerModule = fx.Module("click.worker",
	fx.Provide(NewHandler),
	fx.Invoke(RegisterHandlers),
)
