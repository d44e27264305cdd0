package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Status is the closed set of workflow states of a rejection log entry.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusProductionPending Status = "production_pending"
	StatusStoresPending     Status = "stores_pending"
	StatusQAPending         Status = "qa_pending"
	StatusApproved          Status = "approved"
	StatusRejected          Status = "rejected"
	StatusReopened          Status = "reopened"
)

// Valid reports whether s belongs to the status domain.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusProductionPending, StatusStoresPending,
		StatusQAPending, StatusApproved, StatusRejected, StatusReopened:
		return true
	}
	return false
}

// Pending reports whether s is waiting on one of the three stages.
func (s Status) Pending() bool {
	return s == StatusProductionPending || s == StatusStoresPending || s == StatusQAPending
}

// Terminal reports whether s ended the QA stage. Terminal entries can only
// be touched again through an HOD reopen.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// QA approval outcomes stamped by the sign-off decision.
const (
	QAOutcomeApproved = "approved"
	QAOutcomeRejected = "rejected"
)

// LogEntry is one product rejection event moving through the
// Production -> Stores -> QA pipeline. Product identity fields are
// denormalized copies captured at creation. Stage fields stay empty until
// the owning stage confirms; entries are never deleted.
type LogEntry struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Date          string    `gorm:"type:varchar(10);not null;index" json:"date"` // YYYY-MM-DD
	ProductID     uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	ProductName   string    `gorm:"type:varchar(255);not null" json:"product_name"`
	BatchNo       string    `gorm:"type:varchar(100);not null;index" json:"batch_no"`
	LineNo        string    `gorm:"type:varchar(50);not null" json:"line_no"`
	CreatedBy     uuid.UUID `gorm:"type:uuid;not null;index" json:"created_by"`
	CreatedByRole Role      `gorm:"type:varchar(20);not null" json:"created_by_role"`
	Status        Status    `gorm:"type:varchar(30);not null;index" json:"status"`

	AssignedProductionUser *uuid.UUID `gorm:"type:uuid;index" json:"assigned_production_user"`
	AssignedStoresUser     *uuid.UUID `gorm:"type:uuid;index" json:"assigned_stores_user"`

	// Production stage
	PolyBagNo           string           `gorm:"type:varchar(100)" json:"poly_bag_no,omitempty"`
	GrossWeight         *decimal.Decimal `gorm:"type:decimal(10,3)" json:"gross_weight,omitempty"`
	ProductionConfirmed bool             `gorm:"default:false" json:"production_confirmed"`
	ProductionTimestamp *time.Time       `json:"production_timestamp,omitempty"`
	ProductionRemarks   string           `gorm:"type:text" json:"production_remarks,omitempty"`
	ProductionUser      *uuid.UUID       `gorm:"type:uuid" json:"production_user,omitempty"`

	// Stores stage
	GrossWeightObserved   *decimal.Decimal `gorm:"type:decimal(10,3)" json:"gross_weight_observed,omitempty"`
	DestructionDoneBy     string           `gorm:"type:varchar(255)" json:"destruction_done_by,omitempty"`
	DestructionVerifiedBy string           `gorm:"type:varchar(255)" json:"destruction_verified_by,omitempty"`
	StoresConfirmed       bool             `gorm:"default:false" json:"stores_confirmed"`
	StoresRemarks         string           `gorm:"type:text" json:"stores_remarks,omitempty"`
	HasVariations         bool             `gorm:"default:false;index" json:"has_variations"`
	VariationDetails      string           `gorm:"type:text" json:"variation_details,omitempty"`
	RecordedBy            string           `gorm:"type:varchar(255)" json:"recorded_by,omitempty"`
	RecordedTimestamp     *time.Time       `json:"recorded_timestamp,omitempty"`

	// QA stage
	QASignedOff      bool       `gorm:"default:false" json:"qa_signed_off"`
	QAApprovalStatus string     `gorm:"type:varchar(20)" json:"qa_approval_status,omitempty"`
	QARemarks        string     `gorm:"type:text" json:"qa_remarks,omitempty"`
	QATimestamp      *time.Time `json:"qa_timestamp,omitempty"`
	QAUser           *uuid.UUID `gorm:"type:uuid" json:"qa_user,omitempty"`

	// HOD reopen
	ReopenedBy *uuid.UUID `gorm:"type:uuid" json:"reopened_by,omitempty"`
	ReopenedAt *time.Time `json:"reopened_at,omitempty"`

	LastModifiedBy string     `gorm:"type:varchar(255)" json:"last_modified_by,omitempty"`
	LastModifiedAt *time.Time `json:"last_modified_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *LogEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
