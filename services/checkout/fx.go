package checkout

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("checkout.service",
	fx.Provide(
		NewSessionCreator,
		NewService,
	),
	fx.Invoke(registerRoutes),
)

func registerRoutes(router *gin.Engine, svc *Service) {
	router.POST("/checkout-sessions", svc.HandleCreateSession)
}
