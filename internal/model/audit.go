package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditAction is the kind of mutation an audit record describes.
type AuditAction string

const (
	ActionCreate  AuditAction = "CREATE"
	ActionUpdate  AuditAction = "UPDATE"
	ActionApprove AuditAction = "APPROVE"
	ActionReject  AuditAction = "REJECT"
	ActionReopen  AuditAction = "REOPEN"
)

// AuditLog tracks Who, What, and When for every log entry mutation.
// Records are append-only: written once inside the mutating transaction,
// never updated or removed.
type AuditLog struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	LogEntryID     uuid.UUID   `gorm:"type:uuid;not null;index" json:"log_entry_id"`
	Action         AuditAction `gorm:"type:varchar(20);not null;index" json:"action"`
	PerformedBy    string      `gorm:"type:varchar(255);not null" json:"performed_by"` // acting user's display name
	PerformedByID  *uuid.UUID  `gorm:"type:uuid;index" json:"performed_by_id"`
	PerformedAt    time.Time   `gorm:"not null;index" json:"performed_at"`
	Details        string      `gorm:"type:text" json:"details"` // human readable summary of changed fields
	PreviousStatus Status      `gorm:"type:varchar(30)" json:"previous_status"`
	NewStatus      Status      `gorm:"type:varchar(30)" json:"new_status"`
	CreatedAt      time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
