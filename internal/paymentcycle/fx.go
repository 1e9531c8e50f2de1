package paymentcycle

import (
	"github.com/smallbiznis/subtrack/internal/paymentcycle/repository"
	"github.com/smallbiznis/subtrack/internal/paymentcycle/service"
	"go.uber.org/fx"
)

var Module = fx.Module("paymentcycle.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
