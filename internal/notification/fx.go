package notification

import (
	"github.com/smallbiznis/subtrack/internal/cache"
	"github.com/smallbiznis/subtrack/internal/notification/repository"
	"github.com/smallbiznis/subtrack/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(cache.NewRecipientCache),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
