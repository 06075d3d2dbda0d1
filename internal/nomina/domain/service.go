package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// JobCalculate is the queue task that finishes a background run.
const JobCalculate = "nomina.calculate"

// ExecuteRequest starts one payroll run.
type ExecuteRequest struct {
	PlanillaID      snowflake.ID
	PeriodStart     time.Time
	PeriodEnd       time.Time
	CalculationDate time.Time
	User            string
}

type Service interface {
	// Execute computes a run synchronously, or persists it in calculating
	// state and defers to the background worker when the roster exceeds the
	// async threshold.
	Execute(ctx context.Context, req ExecuteRequest) (*Nomina, error)
	// CompleteBackground finishes a deferred run. Re-delivery of an
	// already-finished run is a no-op.
	CompleteBackground(ctx context.Context, nominaID snowflake.ID) error
	Approve(ctx context.Context, nominaID snowflake.ID, user string) (*Nomina, error)
	// ApplyRun transitions an approved run to applied and posts the deferred
	// vacation accrual snapshots to the ledger.
	ApplyRun(ctx context.Context, nominaID snowflake.ID, user string) (*Nomina, error)
	MarkPaid(ctx context.Context, nominaID snowflake.ID, user string) (*Nomina, error)
	// Recalculate supersedes an existing run: recomputes with the original
	// calculation date and period, re-links novedades, and removes the
	// original and its voucher in one atomic unit.
	Recalculate(ctx context.Context, nominaID snowflake.ID, user string) (*Nomina, error)
	Get(ctx context.Context, nominaID snowflake.ID) (*Nomina, error)
	Employees(ctx context.Context, nominaID snowflake.ID) ([]NominaEmpleado, error)
	// RecoverStuck flips runs left in calculating beyond the threshold to
	// error with a diagnostic.
	RecoverStuck(ctx context.Context, olderThan time.Duration) (int, error)
}

var (
	ErrNominaNotFound    = errors.New("nomina_not_found")
	ErrInvalidPeriod     = errors.New("invalid_period")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrRecalcConflict    = errors.New("recalculation_conflict")
	ErrRunImmutable      = errors.New("run_immutable")
	ErrRunBlocked        = errors.New("run_blocked_by_error")
)
