package repository

import (
	"context"

	"rejectionlog/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditFilter narrows the audit trail listing. LogEntryID scopes the trail
// to one entry; Search matches action, performer or details text.
type AuditFilter struct {
	LogEntryID *uuid.UUID
	Search     string
	Page       int
	Limit      int
}

type AuditRepository interface {
	Append(ctx context.Context, record *model.AuditLog) error
	List(ctx context.Context, filter AuditFilter) ([]model.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Append inserts one immutable record. There is deliberately no update or
// delete counterpart.
func (r *auditRepository) Append(ctx context.Context, record *model.AuditLog) error {
	return GetDB(ctx, r.db).Create(record).Error
}

func (r *auditRepository) List(ctx context.Context, filter AuditFilter) ([]model.AuditLog, int64, error) {
	apply := func(db *gorm.DB) *gorm.DB {
		if filter.LogEntryID != nil {
			db = db.Where("log_entry_id = ?", *filter.LogEntryID)
		}
		if filter.Search != "" {
			like := "%" + filter.Search + "%"
			db = db.Where("LOWER(action) LIKE LOWER(?) OR LOWER(performed_by) LIKE LOWER(?) OR LOWER(details) LIKE LOWER(?)", like, like, like)
		}
		return db
	}

	var total int64
	if err := apply(GetDB(ctx, r.db).Model(&model.AuditLog{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := filter.Page, filter.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	var logs []model.AuditLog
	if err := apply(GetDB(ctx, r.db)).
		Order("performed_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
