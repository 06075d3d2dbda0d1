package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	conceptdomain "github.com/andeanpay/nomina/internal/concept/domain"
	employeedomain "github.com/andeanpay/nomina/internal/employee/domain"
)

// RunInputs is everything the engine needs from configuration, loaded once
// per run before snapshotting. Concepts are ordered by link position and
// filtered to active links; unapproved concepts surface as warnings and are
// excluded. Employees are ordered by code for deterministic processing.
type RunInputs struct {
	Planilla  Planilla
	Concepts  []conceptdomain.Snapshot
	Employees []employeedomain.Employee
	Warnings  []string
}

type Service interface {
	LoadForRun(ctx context.Context, planillaID snowflake.ID) (*RunInputs, error)
}

var (
	ErrPlanillaNotFound = errors.New("planilla_not_found")
)
