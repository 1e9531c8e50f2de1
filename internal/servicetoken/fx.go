package servicetoken

import (
	"github.com/smallbiznis/subtrack/internal/servicetoken/repository"
	"github.com/smallbiznis/subtrack/internal/servicetoken/service"
	"go.uber.org/fx"
)

var Module = fx.Module("servicetoken.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
