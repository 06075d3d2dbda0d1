package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// SummaryLine is one row of the condensed posting view: the net movement
// per account and cost center. Groups whose debits and credits cancel out
// exactly are dropped.
type SummaryLine struct {
	Account    string          `json:"account"`
	CostCenter string          `json:"cost_center"`
	Debit      decimal.Decimal `json:"debit"`
	Credit     decimal.Decimal `json:"credit"`
}

// ConfigurationIssue names one missing account mapping found by validation.
type ConfigurationIssue struct {
	Scope  string `json:"scope"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

type Service interface {
	// Generate builds the voucher for a run, replacing any prior voucher
	// for the same run in one transaction.
	Generate(ctx context.Context, nominaID snowflake.ID, user string) (*ComprobanteContable, error)
	Get(ctx context.Context, nominaID snowflake.ID) (*ComprobanteContable, error)
	Lines(ctx context.Context, comprobanteID snowflake.ID) ([]ComprobanteDetalle, error)
	// Summarize nets each account/cost-center group, dropping groups that
	// cancel to zero, ordered by account then cost center.
	Summarize(ctx context.Context, comprobanteID snowflake.ID) ([]SummaryLine, error)
	DetailByEmployee(ctx context.Context, comprobanteID, employeeID snowflake.ID) ([]ComprobanteDetalle, error)
	// ValidateConfiguration reports every account mapping a planilla's runs
	// would need but do not have. An empty result means vouchers will
	// balance.
	ValidateConfiguration(ctx context.Context, planillaID snowflake.ID) ([]ConfigurationIssue, error)
}

var (
	ErrVoucherNotFound = errors.New("voucher_not_found")
	ErrRunNotReady     = errors.New("run_not_ready_for_voucher")
)
