package workflow

import (
	"fmt"
	"strings"
	"time"

	"rejectionlog/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Engine owns the log entry state machine: permission predicates, stage
// completion transitions and the audit record built for each transition.
// It is a pure function of (user, entry, input) — it keeps no state besides
// an injectable clock and never touches storage itself.
type Engine struct {
	now func() time.Time
}

// NewEngine returns an Engine using the wall clock.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// NewEngineWithClock returns an Engine with a fixed clock source for tests.
func NewEngineWithClock(now func() time.Time) *Engine {
	return &Engine{now: now}
}

// --- Permission predicates ---

// CanCreate reports whether the user may raise a new rejection entry.
func (e *Engine) CanCreate(user model.User) bool {
	return user.Role == model.RoleProduction || user.Role == model.RoleHOD
}

// CanEdit reports whether the user may edit the entry in its current state.
// HOD and admin always can; stage roles only their own assigned pending work.
func (e *Engine) CanEdit(user model.User, entry model.LogEntry) bool {
	switch user.Role {
	case model.RoleHOD, model.RoleAdmin:
		return true
	case model.RoleProduction:
		return entry.AssignedProductionUser != nil &&
			*entry.AssignedProductionUser == user.ID &&
			entry.Status == model.StatusProductionPending
	case model.RoleStores:
		return entry.AssignedStoresUser != nil &&
			*entry.AssignedStoresUser == user.ID &&
			entry.Status == model.StatusStoresPending
	case model.RoleQA:
		return entry.Status == model.StatusQAPending
	}
	return false
}

// CanApprove reports whether the user may sign the entry off (approve or reject).
func (e *Engine) CanApprove(user model.User, entry model.LogEntry) bool {
	return user.Role == model.RoleQA && entry.Status == model.StatusQAPending
}

// CanReopen reports whether the user may pull a terminal entry back for editing.
func (e *Engine) CanReopen(user model.User, entry model.LogEntry) bool {
	return user.Role == model.RoleHOD && entry.Status.Terminal()
}

// --- Inputs ---

// CreateInput carries the creation form. Product identity is resolved by
// the caller so the engine can denormalize name/batch/line onto the entry.
type CreateInput struct {
	Date                   string
	Product                model.Product
	AssignedProductionUser *uuid.UUID
	AssignedStoresUser     *uuid.UUID

	PolyBagNo           string
	GrossWeight         *decimal.Decimal
	ProductionConfirmed bool
	ProductionRemarks   string
}

// SaveInput carries the stage-completion form. Which fields matter depends
// on the branch ApplySave dispatches into.
type SaveInput struct {
	// Production stage
	PolyBagNo           string
	GrossWeight         *decimal.Decimal
	ProductionConfirmed bool
	ProductionRemarks   string

	// Stores stage
	GrossWeightObserved   *decimal.Decimal
	DestructionDoneBy     string
	DestructionVerifiedBy string
	StoresConfirmed       bool
	StoresRemarks         string
	HasVariations         bool
	VariationDetails      string

	// QA remarks-only save
	QARemarks string
}

// --- Operations ---

// NewEntry builds a fresh log entry from the creation form. Production
// creators who supply and confirm their stage data at creation skip straight
// to stores_pending; everything else starts at production_pending.
func (e *Engine) NewEntry(user model.User, in CreateInput) (model.LogEntry, model.AuditLog, error) {
	if !e.CanCreate(user) {
		return model.LogEntry{}, model.AuditLog{}, ErrPermissionDenied
	}

	var missing []string
	if in.Product.ID == uuid.Nil {
		missing = append(missing, "product_id")
	}
	if in.AssignedStoresUser == nil {
		missing = append(missing, "assigned_stores_user")
	}
	if user.Role == model.RoleHOD && in.AssignedProductionUser == nil {
		missing = append(missing, "assigned_production_user")
	}
	if user.Role == model.RoleProduction {
		// Production creators fill their own stage up front.
		if in.PolyBagNo == "" {
			missing = append(missing, "poly_bag_no")
		}
		if in.GrossWeight == nil {
			missing = append(missing, "gross_weight")
		}
		if !in.ProductionConfirmed {
			missing = append(missing, "production_confirmed")
		}
	}
	if len(missing) > 0 {
		return model.LogEntry{}, model.AuditLog{}, &ValidationError{Fields: missing}
	}

	now := e.now()
	date := in.Date
	if date == "" {
		date = now.Format("2006-01-02")
	}

	entry := model.LogEntry{
		ID:                     uuid.New(),
		Date:                   date,
		ProductID:              in.Product.ID,
		ProductName:            in.Product.Name,
		BatchNo:                in.Product.BatchNo,
		LineNo:                 in.Product.LineNo,
		CreatedBy:              user.ID,
		CreatedByRole:          user.Role,
		Status:                 model.StatusProductionPending,
		AssignedProductionUser: in.AssignedProductionUser,
		AssignedStoresUser:     in.AssignedStoresUser,
	}
	if user.Role == model.RoleProduction && entry.AssignedProductionUser == nil {
		id := user.ID
		entry.AssignedProductionUser = &id
	}

	if user.Role == model.RoleProduction && in.ProductionConfirmed {
		stampProduction(&entry, user, in.PolyBagNo, in.GrossWeight, in.ProductionRemarks, now)
		entry.Status = model.StatusStoresPending
	} else {
		// HOD may pre-fill production fields without confirming; they stay
		// editable until the assigned production user signs off.
		entry.PolyBagNo = in.PolyBagNo
		entry.GrossWeight = in.GrossWeight
		entry.ProductionRemarks = in.ProductionRemarks
	}

	stampModified(&entry, user, now)
	audit := e.buildAudit(entry.ID, model.ActionCreate, user,
		fmt.Sprintf("created entry for %s (batch %s, line %s)", entry.ProductName, entry.BatchNo, entry.LineNo),
		"", entry.Status)
	return entry, audit, nil
}

// ApplySave completes the stage owned by the acting role, or the stage
// matching the entry's status when HOD (or admin) stands in. The entry is
// returned unchanged on any error.
func (e *Engine) ApplySave(user model.User, entry model.LogEntry, in SaveInput) (model.LogEntry, model.AuditLog, error) {
	if !e.CanEdit(user, entry) {
		return entry, model.AuditLog{}, ErrPermissionDenied
	}

	overseer := user.Role == model.RoleHOD || user.Role == model.RoleAdmin

	switch {
	case user.Role == model.RoleProduction || (overseer && entry.Status == model.StatusProductionPending):
		return e.saveProduction(user, entry, in)
	case user.Role == model.RoleStores || (overseer && entry.Status == model.StatusStoresPending):
		return e.saveStores(user, entry, in)
	case user.Role == model.RoleQA || (overseer && entry.Status == model.StatusQAPending):
		return e.saveQARemarks(user, entry, in)
	}
	return entry, model.AuditLog{}, ErrNoEditableStage
}

func (e *Engine) saveProduction(user model.User, entry model.LogEntry, in SaveInput) (model.LogEntry, model.AuditLog, error) {
	var missing []string
	if in.PolyBagNo == "" {
		missing = append(missing, "poly_bag_no")
	}
	if in.GrossWeight == nil {
		missing = append(missing, "gross_weight")
	}
	if !in.ProductionConfirmed {
		missing = append(missing, "production_confirmed")
	}
	if len(missing) > 0 {
		return entry, model.AuditLog{}, &ValidationError{Fields: missing}
	}

	now := e.now()
	prev := entry.Status
	stampProduction(&entry, user, in.PolyBagNo, in.GrossWeight, in.ProductionRemarks, now)
	entry.Status = model.StatusStoresPending
	stampModified(&entry, user, now)

	details := fmt.Sprintf("production sign-off: poly bag %s, gross weight %s kg", in.PolyBagNo, in.GrossWeight.String())
	if in.ProductionRemarks != "" {
		details += "; remarks: " + in.ProductionRemarks
	}
	return entry, e.buildAudit(entry.ID, model.ActionUpdate, user, details, prev, entry.Status), nil
}

func (e *Engine) saveStores(user model.User, entry model.LogEntry, in SaveInput) (model.LogEntry, model.AuditLog, error) {
	var missing []string
	if in.GrossWeightObserved == nil {
		missing = append(missing, "gross_weight_observed")
	}
	if in.DestructionDoneBy == "" {
		missing = append(missing, "destruction_done_by")
	}
	if in.DestructionVerifiedBy == "" {
		missing = append(missing, "destruction_verified_by")
	}
	if !in.StoresConfirmed {
		missing = append(missing, "stores_confirmed")
	}
	if in.HasVariations && strings.TrimSpace(in.VariationDetails) == "" {
		missing = append(missing, "variation_details")
	}
	if len(missing) > 0 {
		return entry, model.AuditLog{}, &ValidationError{Fields: missing}
	}

	now := e.now()
	prev := entry.Status
	entry.GrossWeightObserved = in.GrossWeightObserved
	entry.DestructionDoneBy = in.DestructionDoneBy
	entry.DestructionVerifiedBy = in.DestructionVerifiedBy
	entry.StoresConfirmed = true
	entry.StoresRemarks = in.StoresRemarks
	entry.HasVariations = in.HasVariations
	entry.VariationDetails = in.VariationDetails
	entry.RecordedBy = user.Name
	entry.RecordedTimestamp = &now
	entry.Status = model.StatusQAPending
	stampModified(&entry, user, now)

	details := fmt.Sprintf("stores sign-off: observed weight %s kg, destruction by %s, verified by %s",
		in.GrossWeightObserved.String(), in.DestructionDoneBy, in.DestructionVerifiedBy)
	if in.HasVariations {
		details += "; variations: " + in.VariationDetails
	}
	return entry, e.buildAudit(entry.ID, model.ActionUpdate, user, details, prev, entry.Status), nil
}

// saveQARemarks stores working remarks without deciding the sign-off.
// Status is unchanged; the decision happens through Approve or Reject.
func (e *Engine) saveQARemarks(user model.User, entry model.LogEntry, in SaveInput) (model.LogEntry, model.AuditLog, error) {
	now := e.now()
	entry.QARemarks = in.QARemarks
	stampModified(&entry, user, now)

	return entry, e.buildAudit(entry.ID, model.ActionUpdate, user,
		"qa remarks updated", entry.Status, entry.Status), nil
}

// Approve closes the QA stage with an approved outcome.
func (e *Engine) Approve(user model.User, entry model.LogEntry, qaRemarks string) (model.LogEntry, model.AuditLog, error) {
	if !e.CanApprove(user, entry) {
		return entry, model.AuditLog{}, ErrPermissionDenied
	}
	remarks := strings.TrimSpace(qaRemarks)
	if remarks == "" {
		return entry, model.AuditLog{}, &ValidationError{Fields: []string{"qa_remarks"}}
	}

	now := e.now()
	prev := entry.Status
	entry.Status = model.StatusApproved
	entry.QASignedOff = true
	entry.QAApprovalStatus = model.QAOutcomeApproved
	entry.QARemarks = remarks
	entry.QATimestamp = &now
	id := user.ID
	entry.QAUser = &id
	stampModified(&entry, user, now)

	return entry, e.buildAudit(entry.ID, model.ActionApprove, user,
		"qa approved: "+remarks, prev, entry.Status), nil
}

// Reject closes the QA stage with a rejected outcome.
func (e *Engine) Reject(user model.User, entry model.LogEntry, qaRemarks string) (model.LogEntry, model.AuditLog, error) {
	if !e.CanApprove(user, entry) {
		return entry, model.AuditLog{}, ErrPermissionDenied
	}
	remarks := strings.TrimSpace(qaRemarks)
	if remarks == "" {
		return entry, model.AuditLog{}, &ValidationError{Fields: []string{"qa_remarks"}}
	}

	now := e.now()
	prev := entry.Status
	entry.Status = model.StatusRejected
	entry.QASignedOff = false
	entry.QAApprovalStatus = model.QAOutcomeRejected
	entry.QARemarks = remarks
	entry.QATimestamp = &now
	id := user.ID
	entry.QAUser = &id
	stampModified(&entry, user, now)

	return entry, e.buildAudit(entry.ID, model.ActionReject, user,
		"qa rejected: "+remarks, prev, entry.Status), nil
}

// Reopen pulls a terminal entry back for editing. Status becomes reopened
// rather than re-entering the pipeline; further edits go through the
// HOD/admin clause of CanEdit.
func (e *Engine) Reopen(user model.User, entry model.LogEntry) (model.LogEntry, model.AuditLog, error) {
	if !e.CanReopen(user, entry) {
		return entry, model.AuditLog{}, ErrPermissionDenied
	}

	now := e.now()
	prev := entry.Status
	entry.Status = model.StatusReopened
	id := user.ID
	entry.ReopenedBy = &id
	entry.ReopenedAt = &now
	stampModified(&entry, user, now)

	return entry, e.buildAudit(entry.ID, model.ActionReopen, user,
		fmt.Sprintf("reopened from %s", prev), prev, entry.Status), nil
}

// --- Helpers ---

func stampProduction(entry *model.LogEntry, user model.User, polyBagNo string, grossWeight *decimal.Decimal, remarks string, now time.Time) {
	entry.PolyBagNo = polyBagNo
	entry.GrossWeight = grossWeight
	entry.ProductionConfirmed = true
	entry.ProductionTimestamp = &now
	entry.ProductionRemarks = remarks
	id := user.ID
	entry.ProductionUser = &id
}

func stampModified(entry *model.LogEntry, user model.User, now time.Time) {
	entry.LastModifiedBy = user.Name
	entry.LastModifiedAt = &now
}

func (e *Engine) buildAudit(entryID uuid.UUID, action model.AuditAction, user model.User, details string, prev, next model.Status) model.AuditLog {
	id := user.ID
	return model.AuditLog{
		ID:             uuid.New(),
		LogEntryID:     entryID,
		Action:         action,
		PerformedBy:    user.Name,
		PerformedByID:  &id,
		PerformedAt:    e.now(),
		Details:        details,
		PreviousStatus: prev,
		NewStatus:      next,
	}
}
