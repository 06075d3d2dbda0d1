package domain

import (
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	conceptdomain "github.com/andeanpay/nomina/internal/concept/domain"
	planilladomain "github.com/andeanpay/nomina/internal/planilla/domain"
	"gorm.io/datatypes"
)

// PlanillaSnapshot is the frozen copy of the planilla fields a run needs.
type PlanillaSnapshot struct {
	PlanillaID       snowflake.ID  `json:"planilla_id"`
	Name             string        `json:"name"`
	Currency         string        `json:"currency"`
	PeriodDays       int           `json:"period_days"`
	BaseDays         int           `json:"base_days"`
	SalaryDebit      string        `json:"salary_debit"`
	SalaryCredit     string        `json:"salary_credit"`
	VacationPolicyID *snowflake.ID `json:"vacation_policy_id,omitempty"`
}

// RunSnapshot is the full configuration copy taken at calculation time:
// planilla accounts and the ordered, approved concept list. Reads of a
// finalized run go through this, never the live configuration tables.
type RunSnapshot struct {
	Planilla PlanillaSnapshot         `json:"planilla"`
	Concepts []conceptdomain.Snapshot `json:"concepts"`
}

func SnapshotOf(pl planilladomain.Planilla, concepts []conceptdomain.Snapshot) RunSnapshot {
	return RunSnapshot{
		Planilla: PlanillaSnapshot{
			PlanillaID:       pl.ID,
			Name:             pl.Name,
			Currency:         pl.Currency,
			PeriodDays:       pl.PeriodDays,
			BaseDays:         pl.BaseDays,
			SalaryDebit:      pl.SalaryDebit,
			SalaryCredit:     pl.SalaryCredit,
			VacationPolicyID: pl.VacationPolicyID,
		},
		Concepts: concepts,
	}
}

func (s RunSnapshot) Encode() (datatypes.JSON, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func DecodeSnapshot(raw datatypes.JSON) (*RunSnapshot, error) {
	var s RunSnapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
