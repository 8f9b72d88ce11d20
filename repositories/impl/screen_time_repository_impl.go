package impl

import (
	"GuardianAI/models"
	"GuardianAI/repositories"
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ScreenTimeRepositoryImpl struct {
	DB *gorm.DB
}

func NewScreenTimeRepository(db *gorm.DB) repositories.ScreenTimeRepository {
	return &ScreenTimeRepositoryImpl{DB: db}
}

// Upsert relies on the (child_id, date) unique index: the insert either lands
// or hits the conflict, and that outcome is the created flag.
func (r *ScreenTimeRepositoryImpl) Upsert(ctx context.Context, childID uint, date time.Time, totalSeconds int64) (models.ScreenTimeRecord, bool, error) {
	var record models.ScreenTimeRecord
	var created bool

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidate := models.ScreenTimeRecord{
			ChildID:         childID,
			Date:            date,
			TotalScreenTime: totalSeconds,
		}
		res := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "child_id"}, {Name: "date"}},
			DoNothing: true,
		}).Create(&candidate)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected == 1

		if !created {
			err := tx.Model(&models.ScreenTimeRecord{}).
				Where("child_id = ? AND date = ?", childID, date).
				Updates(map[string]interface{}{
					"total_screen_time": totalSeconds,
					"updated_at":        time.Now().UTC(),
				}).Error
			if err != nil {
				return err
			}
		}

		return tx.Where("child_id = ? AND date = ?", childID, date).First(&record).Error
	})
	if err != nil {
		return models.ScreenTimeRecord{}, false, err
	}
	return record, created, nil
}

func (r *ScreenTimeRepositoryImpl) UpsertHourBucket(ctx context.Context, recordID, appID uint, hour int, seconds int64) error {
	bucket := models.AppScreenTime{
		ScreenTimeID: recordID,
		AppID:        appID,
		Hour:         hour,
		Seconds:      seconds,
	}
	return r.DB.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "screen_time_id"}, {Name: "app_id"}, {Name: "hour"}},
		DoUpdates: clause.AssignmentColumns([]string{"seconds", "updated_at"}),
	}).Create(&bucket).Error
}

// PruneBefore removes records dated strictly before cutoff together with their buckets.
func (r *ScreenTimeRepositoryImpl) PruneBefore(ctx context.Context, childID uint, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Model(&models.ScreenTimeRecord{}).
			Select("id").
			Where("child_id = ? AND date < ?", childID, cutoff)
		if err := tx.Where("screen_time_id IN (?)", stale).Delete(&models.AppScreenTime{}).Error; err != nil {
			return err
		}
		res := tx.Where("child_id = ? AND date < ?", childID, cutoff).Delete(&models.ScreenTimeRecord{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}

// FindInRange returns records with start <= date <= end, oldest first, with buckets and apps loaded.
func (r *ScreenTimeRepositoryImpl) FindInRange(ctx context.Context, childID uint, start, end time.Time) ([]models.ScreenTimeRecord, error) {
	var records []models.ScreenTimeRecord
	err := r.DB.WithContext(ctx).
		Preload("AppScreenTimes", func(db *gorm.DB) *gorm.DB {
			return db.Order("id")
		}).
		Preload("AppScreenTimes.App").
		Where("child_id = ? AND date >= ? AND date <= ?", childID, start, end).
		Order("date ASC").
		Find(&records).Error
	return records, err
}

func (r *ScreenTimeRepositoryImpl) FindByDate(ctx context.Context, childID uint, date time.Time) (models.ScreenTimeRecord, error) {
	var record models.ScreenTimeRecord
	err := r.DB.WithContext(ctx).
		Preload("AppScreenTimes", func(db *gorm.DB) *gorm.DB {
			return db.Order("id")
		}).
		Preload("AppScreenTimes.App").
		Where("child_id = ? AND date = ?", childID, date).
		First(&record).Error
	return record, err
}

// Create stores a record as-is, including the legacy map. Used by imports of
// pre-normalisation data; ingestion goes through Upsert.
func (r *ScreenTimeRepositoryImpl) Create(ctx context.Context, record *models.ScreenTimeRecord) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Create(record).Error
}
