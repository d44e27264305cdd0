package repository

import (
	"context"

	"rejectionlog/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LogEntryFilter narrows List results. Viewer drives the role-based
// visibility scoping; the rest mirror the list/search screens.
type LogEntryFilter struct {
	Viewer         model.User
	Status         model.Status
	PendingOnly    bool
	VariationsOnly bool
	MyTasksOnly    bool
	Search         string // matches product name, batch no or poly bag no
	DateFrom       string // inclusive, YYYY-MM-DD
	DateTo         string
	Page           int
	Limit          int // <= 0 disables paging (export path)
}

type LogEntryRepository interface {
	Create(ctx context.Context, entry *model.LogEntry) error
	Save(ctx context.Context, entry *model.LogEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.LogEntry, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.LogEntry, error)
	List(ctx context.Context, filter LogEntryFilter) ([]model.LogEntry, int64, error)
}

type logEntryRepository struct {
	db *gorm.DB
}

func NewLogEntryRepository(db *gorm.DB) LogEntryRepository {
	return &logEntryRepository{db: db}
}

func (r *logEntryRepository) Create(ctx context.Context, entry *model.LogEntry) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *logEntryRepository) Save(ctx context.Context, entry *model.LogEntry) error {
	return GetDB(ctx, r.db).Save(entry).Error
}

func (r *logEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.LogEntry, error) {
	var entry model.LogEntry
	if err := GetDB(ctx, r.db).First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindByIDForUpdate locks the entry row for the duration of the surrounding
// transaction so two sessions cannot race the same transition.
func (r *logEntryRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.LogEntry, error) {
	var entry model.LogEntry
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *logEntryRepository) List(ctx context.Context, filter LogEntryFilter) ([]model.LogEntry, int64, error) {
	base := r.applyFilter(GetDB(ctx, r.db).Model(&model.LogEntry{}), filter)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.applyFilter(GetDB(ctx, r.db), filter).Order("created_at DESC")
	if filter.Limit > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.Limit).Limit(filter.Limit)
	}

	var entries []model.LogEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *logEntryRepository) applyFilter(db *gorm.DB, f LogEntryFilter) *gorm.DB {
	// Role scoping: stage roles only see entries that concern them,
	// oversight roles see everything.
	switch f.Viewer.Role {
	case model.RoleProduction:
		db = db.Where("created_by = ? OR assigned_production_user = ?", f.Viewer.ID, f.Viewer.ID)
	case model.RoleStores:
		db = db.Where("assigned_stores_user = ? OR status = ?", f.Viewer.ID, model.StatusStoresPending)
	case model.RoleQA:
		db = db.Where("status IN ?", []model.Status{model.StatusQAPending, model.StatusApproved, model.StatusRejected})
	}

	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.PendingOnly {
		db = db.Where("status IN ?", []model.Status{
			model.StatusProductionPending, model.StatusStoresPending, model.StatusQAPending,
		})
	}
	if f.VariationsOnly {
		db = db.Where("has_variations = ?", true)
	}
	if f.MyTasksOnly {
		switch f.Viewer.Role {
		case model.RoleProduction:
			db = db.Where("assigned_production_user = ? AND status = ?", f.Viewer.ID, model.StatusProductionPending)
		case model.RoleStores:
			db = db.Where("assigned_stores_user = ? AND status = ?", f.Viewer.ID, model.StatusStoresPending)
		case model.RoleQA:
			db = db.Where("status = ?", model.StatusQAPending)
		}
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		db = db.Where("LOWER(product_name) LIKE LOWER(?) OR LOWER(batch_no) LIKE LOWER(?) OR LOWER(poly_bag_no) LIKE LOWER(?)", like, like, like)
	}
	if f.DateFrom != "" {
		db = db.Where("date >= ?", f.DateFrom)
	}
	if f.DateTo != "" {
		db = db.Where("date <= ?", f.DateTo)
	}
	return db
}
