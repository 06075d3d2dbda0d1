package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog records one engine action for traceability. Changesets and
// run identifiers travel in Metadata as primitive values.
type AuditLog struct {
	ID             snowflake.ID      `gorm:"primaryKey"`
	Action         string            `gorm:"type:text;not null;index"`
	TargetType     string            `gorm:"type:text;not null"`
	TargetID       *string           `gorm:"type:text;index"`
	Actor          string            `gorm:"type:text;not null"`
	Description    string            `gorm:"type:text"`
	PreviousStatus string            `gorm:"type:text"`
	NewStatus      string            `gorm:"type:text"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }
