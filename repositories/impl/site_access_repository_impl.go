package impl

import (
	"GuardianAI/models"
	"GuardianAI/repositories"
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const siteAccessBatchSize = 100

type SiteAccessRepositoryImpl struct {
	DB *gorm.DB
}

func NewSiteAccessRepository(db *gorm.DB) repositories.SiteAccessRepository {
	return &SiteAccessRepositoryImpl{DB: db}
}

func (r *SiteAccessRepositoryImpl) CreateBatch(ctx context.Context, events []models.SiteAccessEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Omit(clause.Associations).CreateInBatches(&events, siteAccessBatchSize).Error
}

func (r *SiteAccessRepositoryImpl) PruneBefore(ctx context.Context, childID uint, cutoff time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("child_id = ? AND timestamp < ?", childID, cutoff).
		Delete(&models.SiteAccessEvent{})
	return res.RowsAffected, res.Error
}

func (r *SiteAccessRepositoryImpl) CountInRange(ctx context.Context, childID uint, start, end time.Time) (repositories.SiteAccessCounts, error) {
	var counts repositories.SiteAccessCounts
	base := r.DB.WithContext(ctx).Model(&models.SiteAccessEvent{}).
		Where("child_id = ? AND timestamp >= ? AND timestamp <= ?", childID, start, end)

	if err := base.Session(&gorm.Session{}).Count(&counts.Total).Error; err != nil {
		return counts, err
	}
	if err := base.Session(&gorm.Session{}).Where("accessed = ?", false).Count(&counts.Blocked).Error; err != nil {
		return counts, err
	}
	counts.Accessed = counts.Total - counts.Blocked
	return counts, nil
}

func (r *SiteAccessRepositoryImpl) FindRecent(ctx context.Context, childID uint, start, end time.Time, limit int) ([]models.SiteAccessEvent, error) {
	var events []models.SiteAccessEvent
	query := r.DB.WithContext(ctx).
		Where("child_id = ? AND timestamp >= ? AND timestamp <= ?", childID, start, end).
		Order("timestamp DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&events).Error
	return events, err
}

func (r *SiteAccessRepositoryImpl) CountByChild(ctx context.Context, childID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.SiteAccessEvent{}).
		Where("child_id = ?", childID).
		Count(&count).Error
	return count, err
}
