package vacation

import (
	"github.com/andeanpay/nomina/internal/vacation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("vacation.service",
	fx.Provide(service.NewService),
)
