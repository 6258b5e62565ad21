package authz

import "go.uber.org/fx"

var Module = fx.Module("authz.gate",
	fx.Provide(
		NewGate,
		func(g *CasbinGate) Gate { return g },
	),
)
