package impl

import (
	"GuardianAI/models"
	"GuardianAI/repositories"
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LocationRepositoryImpl struct {
	DB *gorm.DB
}

func NewLocationRepository(db *gorm.DB) repositories.LocationRepository {
	return &LocationRepositoryImpl{DB: db}
}

func (r *LocationRepositoryImpl) Create(ctx context.Context, sample *models.LocationSample) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Create(sample).Error
}

func (r *LocationRepositoryImpl) PruneBefore(ctx context.Context, childID uint, cutoff time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("child_id = ? AND timestamp < ?", childID, cutoff).
		Delete(&models.LocationSample{})
	return res.RowsAffected, res.Error
}

// FindRecent returns samples in [start, end], newest first.
func (r *LocationRepositoryImpl) FindRecent(ctx context.Context, childID uint, start, end time.Time, limit int) ([]models.LocationSample, error) {
	var samples []models.LocationSample
	query := r.DB.WithContext(ctx).
		Where("child_id = ? AND timestamp >= ? AND timestamp <= ?", childID, start, end).
		Order("timestamp DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&samples).Error
	return samples, err
}

func (r *LocationRepositoryImpl) CountByChild(ctx context.Context, childID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.LocationSample{}).
		Where("child_id = ?", childID).
		Count(&count).Error
	return count, err
}
