package api

import (
	"taskora/services/click"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("api.http",
	fx.Provide(
		NewHandler,
		func(p *click.Producer) ClickLogger { return p },
	),
	fx.Invoke(func(r *gin.Engine, h *Handler) {
		h.RegisterRouter(r)
	}),
)
