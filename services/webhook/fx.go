package webhook

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("webhook.service",
	fx.Provide(
		NewVerifier,
		NewExtractor,
		NewService,
	),
	fx.Invoke(registerRoutes),
)

func registerRoutes(router *gin.Engine, svc *Service) {
	router.POST("/payment-events", svc.HandlePaymentEvents)
}
