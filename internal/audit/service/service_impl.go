package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/andeanpay/nomina/internal/audit/domain"
	"github.com/andeanpay/nomina/internal/clock"
	"github.com/andeanpay/nomina/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  repository.Repository[auditdomain.AuditLog]
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  repository.ProvideStore[auditdomain.AuditLog](p.DB),
	}
}

func (s *Service) Record(ctx context.Context, entry auditdomain.Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	targetType := strings.TrimSpace(entry.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}

	actor := strings.TrimSpace(entry.Actor)
	if actor == "" {
		actor = "system"
	}

	payload := map[string]any{}
	for key, value := range entry.Changeset {
		if key == "" {
			continue
		}
		payload[key] = value
	}

	row := auditdomain.AuditLog{
		ID:             s.genID.Generate(),
		Action:         action,
		TargetType:     targetType,
		Actor:          actor,
		Description:    entry.Description,
		PreviousStatus: entry.PreviousStatus,
		NewStatus:      entry.NewStatus,
		Metadata:       datatypes.JSONMap(payload),
		CreatedAt:      s.clock.Now(),
	}
	if id := strings.TrimSpace(entry.TargetID); id != "" {
		row.TargetID = &id
	}

	if err := s.repo.Create(ctx, &row); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}
