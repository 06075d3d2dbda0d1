package adelanto

import (
	"github.com/andeanpay/nomina/internal/adelanto/service"
	"go.uber.org/fx"
)

var Module = fx.Module("adelanto.service",
	fx.Provide(service.NewService),
)
