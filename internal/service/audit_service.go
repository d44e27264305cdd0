package service

import (
	"context"

	"rejectionlog/internal/model"
	"rejectionlog/internal/repository"

	"github.com/google/uuid"
)

// AuditService exposes the append-only audit trail for the UI. Writing
// records is not part of this surface: audit rows are created inside the
// log entry mutation transactions only.
type AuditService interface {
	List(ctx context.Context, logEntryID *uuid.UUID, search string, page, limit int) ([]model.AuditLog, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

func (s *auditService) List(ctx context.Context, logEntryID *uuid.UUID, search string, page, limit int) ([]model.AuditLog, int64, error) {
	return s.repo.List(ctx, repository.AuditFilter{
		LogEntryID: logEntryID,
		Search:     search,
		Page:       page,
		Limit:      limit,
	})
}
