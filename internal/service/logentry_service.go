package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"rejectionlog/internal/model"
	"rejectionlog/internal/repository"
	ws "rejectionlog/internal/websocket"
	"rejectionlog/internal/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrEntryNotFound is returned when the requested log entry does not exist
// or is outside the caller's visibility scope.
var ErrEntryNotFound = errors.New("log entry not found")

// --- DTOs ---

type CreateLogEntryRequest struct {
	Date                   string           `json:"date"`
	ProductID              string           `json:"product_id" binding:"required"`
	AssignedProductionUser string           `json:"assigned_production_user"`
	AssignedStoresUser     string           `json:"assigned_stores_user"`
	PolyBagNo              string           `json:"poly_bag_no"`
	GrossWeight            *decimal.Decimal `json:"gross_weight"`
	ProductionConfirmed    bool             `json:"production_confirmed"`
	ProductionRemarks      string           `json:"production_remarks"`
}

type SaveStageRequest struct {
	PolyBagNo           string           `json:"poly_bag_no"`
	GrossWeight         *decimal.Decimal `json:"gross_weight"`
	ProductionConfirmed bool             `json:"production_confirmed"`
	ProductionRemarks   string           `json:"production_remarks"`

	GrossWeightObserved   *decimal.Decimal `json:"gross_weight_observed"`
	DestructionDoneBy     string           `json:"destruction_done_by"`
	DestructionVerifiedBy string           `json:"destruction_verified_by"`
	StoresConfirmed       bool             `json:"stores_confirmed"`
	StoresRemarks         string           `json:"stores_remarks"`
	HasVariations         bool             `json:"has_variations"`
	VariationDetails      string           `json:"variation_details"`

	QARemarks string `json:"qa_remarks"`
}

type SignOffRequest struct {
	QARemarks string `json:"qa_remarks"`
}

type ListLogEntriesRequest struct {
	Tab      string // all | my-tasks | pending | approved | rejected | variations
	Status   string
	Search   string
	DateFrom string
	DateTo   string
	Page     int
	Limit    int
}

// LogEntryDetail pairs an entry with the actions the requesting user may
// take on it, so the frontend renders only what the engine would permit.
type LogEntryDetail struct {
	Entry      model.LogEntry `json:"entry"`
	CanEdit    bool           `json:"can_edit"`
	CanApprove bool           `json:"can_approve"`
	CanReopen  bool           `json:"can_reopen"`
}

// --- Interface ---

type LogEntryService interface {
	Create(ctx context.Context, actorID uuid.UUID, req CreateLogEntryRequest) (*model.LogEntry, error)
	GetByID(ctx context.Context, actorID, entryID uuid.UUID) (*LogEntryDetail, error)
	List(ctx context.Context, actorID uuid.UUID, req ListLogEntriesRequest) ([]model.LogEntry, int64, error)
	SaveStage(ctx context.Context, actorID, entryID uuid.UUID, req SaveStageRequest) (*model.LogEntry, error)
	Approve(ctx context.Context, actorID, entryID uuid.UUID, qaRemarks string) (*model.LogEntry, error)
	Reject(ctx context.Context, actorID, entryID uuid.UUID, qaRemarks string) (*model.LogEntry, error)
	Reopen(ctx context.Context, actorID, entryID uuid.UUID) (*model.LogEntry, error)
}

type logEntryService struct {
	entries  repository.LogEntryRepository
	audits   repository.AuditRepository
	products repository.ProductRepository
	users    repository.UserRepository
	tx       repository.TransactionManager
	engine   *workflow.Engine
	hub      *ws.Hub
}

func NewLogEntryService(
	entries repository.LogEntryRepository,
	audits repository.AuditRepository,
	products repository.ProductRepository,
	users repository.UserRepository,
	tx repository.TransactionManager,
	engine *workflow.Engine,
	hub *ws.Hub,
) LogEntryService {
	return &logEntryService{
		entries:  entries,
		audits:   audits,
		products: products,
		users:    users,
		tx:       tx,
		engine:   engine,
		hub:      hub,
	}
}

// --- Implementation ---

func (s *logEntryService) Create(ctx context.Context, actorID uuid.UUID, req CreateLogEntryRequest) (*model.LogEntry, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("acting user not found: %w", err)
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, &workflow.ValidationError{Fields: []string{"product_id"}}
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &workflow.ValidationError{Fields: []string{"product_id"}}
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	input := workflow.CreateInput{
		Date:                req.Date,
		Product:             *product,
		PolyBagNo:           req.PolyBagNo,
		GrossWeight:         req.GrossWeight,
		ProductionConfirmed: req.ProductionConfirmed,
		ProductionRemarks:   req.ProductionRemarks,
	}
	if input.AssignedProductionUser, err = s.resolveAssignee(ctx, req.AssignedProductionUser, model.RoleProduction); err != nil {
		return nil, err
	}
	if input.AssignedStoresUser, err = s.resolveAssignee(ctx, req.AssignedStoresUser, model.RoleStores); err != nil {
		return nil, err
	}

	entry, audit, err := s.engine.NewEntry(*actor, input)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.entries.Create(txCtx, &entry); createErr != nil {
			return fmt.Errorf("failed to create log entry: %w", createErr)
		}
		if auditErr := s.audits.Append(txCtx, &audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish("log_entry_created", entry)
	return &entry, nil
}

func (s *logEntryService) GetByID(ctx context.Context, actorID, entryID uuid.UUID) (*LogEntryDetail, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("acting user not found: %w", err)
	}
	entry, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	return &LogEntryDetail{
		Entry:      *entry,
		CanEdit:    s.engine.CanEdit(*actor, *entry),
		CanApprove: s.engine.CanApprove(*actor, *entry),
		CanReopen:  s.engine.CanReopen(*actor, *entry),
	}, nil
}

func (s *logEntryService) List(ctx context.Context, actorID uuid.UUID, req ListLogEntriesRequest) ([]model.LogEntry, int64, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, 0, fmt.Errorf("acting user not found: %w", err)
	}

	filter := repository.LogEntryFilter{
		Viewer:   *actor,
		Search:   req.Search,
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
		Page:     req.Page,
		Limit:    req.Limit,
	}
	switch req.Tab {
	case "my-tasks":
		filter.MyTasksOnly = true
	case "pending":
		filter.PendingOnly = true
	case "approved":
		filter.Status = model.StatusApproved
	case "rejected":
		filter.Status = model.StatusRejected
	case "variations":
		filter.VariationsOnly = true
	}
	if req.Status != "" {
		filter.Status = model.Status(req.Status)
	}

	return s.entries.List(ctx, filter)
}

func (s *logEntryService) SaveStage(ctx context.Context, actorID, entryID uuid.UUID, req SaveStageRequest) (*model.LogEntry, error) {
	input := workflow.SaveInput{
		PolyBagNo:             req.PolyBagNo,
		GrossWeight:           req.GrossWeight,
		ProductionConfirmed:   req.ProductionConfirmed,
		ProductionRemarks:     req.ProductionRemarks,
		GrossWeightObserved:   req.GrossWeightObserved,
		DestructionDoneBy:     req.DestructionDoneBy,
		DestructionVerifiedBy: req.DestructionVerifiedBy,
		StoresConfirmed:       req.StoresConfirmed,
		StoresRemarks:         req.StoresRemarks,
		HasVariations:         req.HasVariations,
		VariationDetails:      req.VariationDetails,
		QARemarks:             req.QARemarks,
	}
	return s.mutate(ctx, actorID, entryID, "log_entry_updated",
		func(actor model.User, entry model.LogEntry) (model.LogEntry, model.AuditLog, error) {
			return s.engine.ApplySave(actor, entry, input)
		})
}

func (s *logEntryService) Approve(ctx context.Context, actorID, entryID uuid.UUID, qaRemarks string) (*model.LogEntry, error) {
	return s.mutate(ctx, actorID, entryID, "log_entry_approved",
		func(actor model.User, entry model.LogEntry) (model.LogEntry, model.AuditLog, error) {
			return s.engine.Approve(actor, entry, qaRemarks)
		})
}

func (s *logEntryService) Reject(ctx context.Context, actorID, entryID uuid.UUID, qaRemarks string) (*model.LogEntry, error) {
	return s.mutate(ctx, actorID, entryID, "log_entry_rejected",
		func(actor model.User, entry model.LogEntry) (model.LogEntry, model.AuditLog, error) {
			return s.engine.Reject(actor, entry, qaRemarks)
		})
}

func (s *logEntryService) Reopen(ctx context.Context, actorID, entryID uuid.UUID) (*model.LogEntry, error) {
	return s.mutate(ctx, actorID, entryID, "log_entry_reopened",
		func(actor model.User, entry model.LogEntry) (model.LogEntry, model.AuditLog, error) {
			return s.engine.Reopen(actor, entry)
		})
}

// mutate runs one workflow transition: lock the entry row, apply the engine
// operation, persist entry and audit record atomically, then notify.
func (s *logEntryService) mutate(
	ctx context.Context,
	actorID, entryID uuid.UUID,
	event string,
	op func(actor model.User, entry model.LogEntry) (model.LogEntry, model.AuditLog, error),
) (*model.LogEntry, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("acting user not found: %w", err)
	}

	var updated model.LogEntry
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		entry, findErr := s.entries.FindByIDForUpdate(txCtx, entryID)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return ErrEntryNotFound
			}
			return findErr
		}

		next, audit, opErr := op(*actor, *entry)
		if opErr != nil {
			return opErr
		}

		if saveErr := s.entries.Save(txCtx, &next); saveErr != nil {
			return fmt.Errorf("failed to save log entry: %w", saveErr)
		}
		if auditErr := s.audits.Append(txCtx, &audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(event, updated)
	return &updated, nil
}

// resolveAssignee parses an optional assignment and verifies the target user
// actually holds the stage's role.
func (s *logEntryService) resolveAssignee(ctx context.Context, raw string, role model.Role) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, &workflow.ValidationError{Fields: []string{"assigned_" + string(role) + "_user"}}
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &workflow.ValidationError{Fields: []string{"assigned_" + string(role) + "_user"}}
		}
		return nil, err
	}
	if user.Role != role {
		return nil, &workflow.ValidationError{Fields: []string{"assigned_" + string(role) + "_user"}}
	}
	return &id, nil
}

func (s *logEntryService) publish(event string, entry model.LogEntry) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"type":         event,
		"entry_id":     entry.ID.String(),
		"status":       entry.Status,
		"product_name": entry.ProductName,
		"batch_no":     entry.BatchNo,
	})
	if err != nil {
		return
	}
	// Non-blocking: a slow or absent websocket reader must never stall a save.
	select {
	case s.hub.Broadcast <- payload:
	default:
	}
}
