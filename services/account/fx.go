package account

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("account.service",
	fx.Provide(NewService),
	fx.Invoke(migrate),
)

func migrate(svc *Service) error {
	if err := svc.Migrate(); err != nil {
		zap.L().Error("failed to migrate account tables", zap.Error(err))
		return err
	}
	return nil
}
