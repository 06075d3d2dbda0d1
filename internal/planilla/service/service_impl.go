package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	conceptdomain "github.com/andeanpay/nomina/internal/concept/domain"
	planilladomain "github.com/andeanpay/nomina/internal/planilla/domain"
	"github.com/andeanpay/nomina/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	planillarepo repository.Repository[planilladomain.Planilla]
}

func NewService(p Params) planilladomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("planilla.service"),
		planillarepo: repository.ProvideStore[planilladomain.Planilla](p.DB),
	}
}

func (s *Service) LoadForRun(ctx context.Context, planillaID snowflake.ID) (*planilladomain.RunInputs, error) {
	pl, err := s.planillarepo.FindOne(ctx, &planilladomain.Planilla{ID: planillaID})
	if err != nil {
		return nil, err
	}
	if pl == nil {
		return nil, planilladomain.ErrPlanillaNotFound
	}

	inputs := &planilladomain.RunInputs{Planilla: *pl}

	type linkedConcept struct {
		conceptdomain.Concept
		Position int
	}
	var linked []linkedConcept
	err = s.db.WithContext(ctx).Raw(
		`SELECT c.*, pc.position
		 FROM planilla_conceptos pc
		 JOIN concepts c ON c.id = pc.concept_id
		 WHERE pc.planilla_id = ? AND pc.active = ?
		 ORDER BY pc.position, c.code`,
		planillaID,
		true,
	).Scan(&linked).Error
	if err != nil {
		return nil, err
	}

	for _, lc := range linked {
		if lc.Status != conceptdomain.StatusApproved {
			inputs.Warnings = append(inputs.Warnings,
				fmt.Sprintf("concept %s is not approved and was skipped", lc.Code))
			continue
		}
		inputs.Concepts = append(inputs.Concepts, conceptdomain.SnapshotOf(lc.Concept, lc.Position))
	}

	err = s.db.WithContext(ctx).Raw(
		`SELECT e.*
		 FROM planilla_empleados pe
		 JOIN employees e ON e.id = pe.employee_id
		 WHERE pe.planilla_id = ? AND pe.active = ? AND e.active = ?
		 ORDER BY e.code`,
		planillaID,
		true,
		true,
	).Scan(&inputs.Employees).Error
	if err != nil {
		return nil, err
	}

	return inputs, nil
}
