package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ApplyRequest posts one run employee's deferred accrual snapshot to the
// ledger. ReferenceID is the run employee record; re-applying the same
// reference is rejected as a duplicate, never double-counted.
type ApplyRequest struct {
	PolicyID    snowflake.ID
	EmployeeID  snowflake.ID
	ReferenceID snowflake.ID
	Units       decimal.Decimal
	Liability   decimal.Decimal
	User        string
}

type Service interface {
	// Apply writes through the caller's transaction so the ledger entry
	// commits or rolls back together with the run's status change.
	Apply(ctx context.Context, tx *gorm.DB, req ApplyRequest) error
	// Balance returns the account's running balance, zero when no account
	// exists yet.
	Balance(ctx context.Context, policyID, employeeID snowflake.ID) (decimal.Decimal, error)
}

var (
	ErrDuplicateAccrual = errors.New("duplicate_accrual")
	ErrPolicyNotFound   = errors.New("vacation_policy_not_found")
)
