package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"pointsplane/internal/catalog"
	"pointsplane/pkg/config"
	"pointsplane/pkg/db"
	"pointsplane/pkg/health"
	"pointsplane/pkg/logger"
	"pointsplane/pkg/redis"
	"pointsplane/pkg/server"
	"pointsplane/pkg/task"
	"pointsplane/services/account"
	"pointsplane/services/checkout"
	"pointsplane/services/notification"
	"pointsplane/services/webhook"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		catalog.Module,
		fx.Provide(
			provideSnowflakeNode,
		),
		health.Module,
		account.Module,
		notification.Module,
		checkout.Module,
		webhook.Module,
		server.ProvideHTTPServer,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
