package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"pointsplane/pkg/config"
	"pointsplane/pkg/logger"
	"pointsplane/pkg/task"
	"pointsplane/services/notification"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		task.Server,
		notification.TaskModule,
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
