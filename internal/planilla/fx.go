package planilla

import (
	"github.com/andeanpay/nomina/internal/planilla/service"
	"go.uber.org/fx"
)

var Module = fx.Module("planilla.service",
	fx.Provide(service.NewService),
)
