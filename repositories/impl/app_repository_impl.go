package impl

import (
	"GuardianAI/models"
	"GuardianAI/repositories"
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AppRepositoryImpl struct {
	DB *gorm.DB
}

func NewAppRepository(db *gorm.DB) repositories.AppRepository {
	return &AppRepositoryImpl{DB: db}
}

func (r *AppRepositoryImpl) FindByDomain(ctx context.Context, domain string) (models.App, error) {
	var app models.App
	if err := r.DB.WithContext(ctx).Where("domain = ?", domain).First(&app).Error; err != nil {
		return models.App{}, err
	}
	return app, nil
}

func (r *AppRepositoryImpl) FindByDomains(ctx context.Context, domains []string) ([]models.App, error) {
	var apps []models.App
	if len(domains) == 0 {
		return apps, nil
	}
	err := r.DB.WithContext(ctx).Where("domain IN ?", domains).Find(&apps).Error
	return apps, err
}

// CreateIfAbsent keeps the first writer's row when two ingests race on a new domain.
func (r *AppRepositoryImpl) CreateIfAbsent(ctx context.Context, app models.App) (models.App, error) {
	db := r.DB.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "domain"}},
		DoNothing: true,
	}).Create(&app).Error
	if err != nil {
		return models.App{}, err
	}

	var stored models.App
	if err := db.Where("domain = ?", app.Domain).First(&stored).Error; err != nil {
		return models.App{}, err
	}
	return stored, nil
}

// IncrementBlockedCount adds delta without letting the counter go negative.
// It reports whether an app with that domain exists.
func (r *AppRepositoryImpl) IncrementBlockedCount(ctx context.Context, domain string, delta int64) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.App{}).
		Where("domain = ? AND blocked_count + ? >= 0", domain, delta).
		UpdateColumn("blocked_count", gorm.Expr("blocked_count + ?", delta))
	return res.RowsAffected > 0, res.Error
}
