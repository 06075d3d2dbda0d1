package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/andeanpay/nomina/internal/adelanto"
	"github.com/andeanpay/nomina/internal/audit"
	"github.com/andeanpay/nomina/internal/clock"
	"github.com/andeanpay/nomina/internal/config"
	"github.com/andeanpay/nomina/internal/currency"
	"github.com/andeanpay/nomina/internal/logger"
	"github.com/andeanpay/nomina/internal/metrics"
	"github.com/andeanpay/nomina/internal/migration"
	"github.com/andeanpay/nomina/internal/nomina"
	"github.com/andeanpay/nomina/internal/planilla"
	"github.com/andeanpay/nomina/internal/queue"
	"github.com/andeanpay/nomina/internal/seed"
	"github.com/andeanpay/nomina/internal/vacation"
	"github.com/andeanpay/nomina/internal/voucher"
	"github.com/andeanpay/nomina/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		metrics.Module,
		migration.Module,
		seed.Module,

		// Functional domains
		audit.Module,
		currency.Module,
		planilla.Module,
		adelanto.Module,
		vacation.Module,
		queue.Module,
		nomina.Module,
		voucher.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
