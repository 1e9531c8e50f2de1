package department

import (
	"github.com/smallbiznis/subtrack/internal/department/repository"
	"github.com/smallbiznis/subtrack/internal/department/service"
	"go.uber.org/fx"
)

var Module = fx.Module("department.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
