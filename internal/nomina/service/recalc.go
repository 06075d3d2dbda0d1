package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	nominadomain "github.com/andeanpay/nomina/internal/nomina/domain"
	"gorm.io/gorm"
)

// recalculable lists the states a run may be superseded from. Applied and
// paid runs have ledger effects and are immutable; calculating runs are
// owned by a worker.
var recalculable = map[nominadomain.Status]bool{
	nominadomain.StatusGenerated: true,
	nominadomain.StatusApproved:  true,
	nominadomain.StatusError:     true,
}

func (s *Service) Recalculate(ctx context.Context, nominaID snowflake.ID, user string) (*nominadomain.Nomina, error) {
	original, err := s.Get(ctx, nominaID)
	if err != nil {
		return nil, err
	}
	switch {
	case original.Status == nominadomain.StatusCalculating:
		return nil, nominadomain.ErrRecalcConflict
	case !recalculable[original.Status]:
		return nil, nominadomain.ErrRunImmutable
	}

	inputs, err := s.planillaSvc.LoadForRun(ctx, original.PlanillaID)
	if err != nil {
		return nil, err
	}
	snapshot := nominadomain.SnapshotOf(inputs.Planilla, inputs.Concepts)
	raw, err := snapshot.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode run snapshot: %w", err)
	}

	originalID := original.ID
	replacement := &nominadomain.Nomina{
		ID:               s.genID.Generate(),
		PlanillaID:       original.PlanillaID,
		PeriodStart:      original.PeriodStart,
		PeriodEnd:        original.PeriodEnd,
		CalculationDate:  original.CalculationDate,
		Status:           nominadomain.StatusCalculating,
		Snapshot:         raw,
		Warnings:         inputs.Warnings,
		IsRecalculation:  true,
		OriginalNominaID: &originalID,
		CreatedBy:        user,
		CreatedAt:        s.clock.Now(),
		UpdatedAt:        s.clock.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Claim the original. Losing this guarded UPDATE means a concurrent
		// mutation got there first.
		res := tx.WithContext(ctx).Exec(
			`UPDATE nominas SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			nominadomain.StatusCalculating,
			s.clock.Now(),
			original.ID,
			original.Status,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nominadomain.ErrRecalcConflict
		}

		// Loan balances must reflect the world before the superseded run
		// withheld anything, or capped installments recompute wrong.
		if err := s.adelantoSvc.DeleteRunInstallments(ctx, tx, original.ID); err != nil {
			return err
		}

		if err := tx.WithContext(ctx).Create(replacement).Error; err != nil {
			return err
		}

		// Novedades still point at the original run here; compute reads
		// them through the original's ID.
		if err := s.compute(ctx, tx, replacement, inputs, original.ID); err != nil {
			return err
		}

		// Re-link the period's events to the surviving run. They are HR
		// master data and are moved, never recreated.
		err := tx.WithContext(ctx).Exec(
			`UPDATE nomina_novedades SET nomina_id = ? WHERE nomina_id = ?`,
			replacement.ID,
			original.ID,
		).Error
		if err != nil {
			return err
		}

		return s.deleteRun(ctx, tx, original.ID)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncRunCompleted(string(replacement.Status))
	s.audit(ctx, replacement, "nomina.recalculated", user,
		fmt.Sprintf("supersedes run %s", original.ID.String()),
		string(original.Status), string(replacement.Status))
	return replacement, nil
}

// deleteRun removes a superseded run's computed artifacts: detail lines,
// employee rows, the voucher and its lines, then the run itself. Novedades
// and abonos are handled by the caller before this runs.
func (s *Service) deleteRun(ctx context.Context, tx *gorm.DB, nominaID snowflake.ID) error {
	statements := []string{
		`DELETE FROM nomina_detalles WHERE nomina_empleado_id IN (
			SELECT id FROM nomina_empleados WHERE nomina_id = ?)`,
		`DELETE FROM nomina_empleados WHERE nomina_id = ?`,
		`DELETE FROM comprobante_detalles WHERE comprobante_id IN (
			SELECT id FROM comprobante_contables WHERE nomina_id = ?)`,
		`DELETE FROM comprobante_contables WHERE nomina_id = ?`,
		`DELETE FROM nominas WHERE id = ?`,
	}
	for _, stmt := range statements {
		if err := tx.WithContext(ctx).Exec(stmt, nominaID).Error; err != nil {
			return err
		}
	}
	return nil
}
