package service

import (
	"context"
	"time"

	"rejectionlog/internal/model"

	"gorm.io/gorm"
)

// DashboardStats mirrors the dashboard tiles: counts over the entries the
// viewing user can see, plus day-level insight figures.
type DashboardStats struct {
	Total          int64   `json:"total"`
	Pending        int64   `json:"pending"`
	Approved       int64   `json:"approved"`
	Rejected       int64   `json:"rejected"`
	Variations     int64   `json:"variations"`
	MyTasks        int64   `json:"my_tasks"`
	TodayEntries   int64   `json:"today_entries"`
	CompletionRate float64 `json:"completion_rate"` // approved / total, in percent
}

type StatisticsService interface {
	GetDashboardStats(ctx context.Context, viewer model.User) (DashboardStats, error)
}

type statisticsService struct {
	db *gorm.DB
}

func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

// scoped applies the same role visibility rules as the entry listing.
func (s *statisticsService) scoped(ctx context.Context, viewer model.User) *gorm.DB {
	db := s.db.WithContext(ctx).Model(&model.LogEntry{})
	switch viewer.Role {
	case model.RoleProduction:
		db = db.Where("created_by = ? OR assigned_production_user = ?", viewer.ID, viewer.ID)
	case model.RoleStores:
		db = db.Where("assigned_stores_user = ? OR status = ?", viewer.ID, model.StatusStoresPending)
	case model.RoleQA:
		db = db.Where("status IN ?", []model.Status{model.StatusQAPending, model.StatusApproved, model.StatusRejected})
	}
	return db
}

func (s *statisticsService) GetDashboardStats(ctx context.Context, viewer model.User) (DashboardStats, error) {
	var stats DashboardStats

	if err := s.scoped(ctx, viewer).Count(&stats.Total).Error; err != nil {
		return stats, err
	}
	pending := []model.Status{model.StatusProductionPending, model.StatusStoresPending, model.StatusQAPending}
	if err := s.scoped(ctx, viewer).Where("status IN ?", pending).Count(&stats.Pending).Error; err != nil {
		return stats, err
	}
	if err := s.scoped(ctx, viewer).Where("status = ?", model.StatusApproved).Count(&stats.Approved).Error; err != nil {
		return stats, err
	}
	if err := s.scoped(ctx, viewer).Where("status = ?", model.StatusRejected).Count(&stats.Rejected).Error; err != nil {
		return stats, err
	}
	if err := s.scoped(ctx, viewer).Where("has_variations = ?", true).Count(&stats.Variations).Error; err != nil {
		return stats, err
	}

	myTasks := s.scoped(ctx, viewer)
	switch viewer.Role {
	case model.RoleProduction:
		myTasks = myTasks.Where("assigned_production_user = ? AND status = ?", viewer.ID, model.StatusProductionPending)
	case model.RoleStores:
		myTasks = myTasks.Where("assigned_stores_user = ? AND status = ?", viewer.ID, model.StatusStoresPending)
	case model.RoleQA:
		myTasks = myTasks.Where("status = ?", model.StatusQAPending)
	default:
		myTasks = myTasks.Where("status IN ?", pending)
	}
	if err := myTasks.Count(&stats.MyTasks).Error; err != nil {
		return stats, err
	}

	today := time.Now().Format("2006-01-02")
	if err := s.scoped(ctx, viewer).Where("date = ?", today).Count(&stats.TodayEntries).Error; err != nil {
		return stats, err
	}

	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Approved) / float64(stats.Total) * 100
	}
	return stats, nil
}
