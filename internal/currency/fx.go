package currency

import (
	"github.com/andeanpay/nomina/internal/currency/service"
	"go.uber.org/fx"
)

var Module = fx.Module("currency.service",
	fx.Provide(service.NewService),
)
