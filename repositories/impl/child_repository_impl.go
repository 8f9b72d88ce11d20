package impl

import (
	"GuardianAI/models"
	"GuardianAI/repositories"
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChildRepositoryImpl struct {
	DB *gorm.DB
}

func NewChildRepository(db *gorm.DB) repositories.ChildRepository {
	return &ChildRepositoryImpl{DB: db}
}

func (r *ChildRepositoryImpl) FindByChildHash(ctx context.Context, childHash string) (models.Child, error) {
	var child models.Child
	if err := r.DB.WithContext(ctx).Where("child_hash = ?", childHash).First(&child).Error; err != nil {
		return models.Child{}, err
	}
	return child, nil
}

func (r *ChildRepositoryImpl) Save(ctx context.Context, child *models.Child) error {
	return r.DB.WithContext(ctx).Save(child).Error
}

func (r *ChildRepositoryImpl) FindAll(ctx context.Context) ([]models.Child, error) {
	var children []models.Child
	err := r.DB.WithContext(ctx).Order("id").Find(&children).Error
	return children, err
}

type GuardianRepositoryImpl struct {
	DB *gorm.DB
}

func NewGuardianRepository(db *gorm.DB) repositories.GuardianRepository {
	return &GuardianRepositoryImpl{DB: db}
}

func (r *GuardianRepositoryImpl) FindByID(ctx context.Context, id uint) (models.Guardian, error) {
	var guardian models.Guardian
	if err := r.DB.WithContext(ctx).First(&guardian, id).Error; err != nil {
		return models.Guardian{}, err
	}
	return guardian, nil
}

func (r *GuardianRepositoryImpl) Save(ctx context.Context, guardian *models.Guardian) error {
	return r.DB.WithContext(ctx).Omit("Children").Save(guardian).Error
}

// LinkChild is a no-op when the pair is already linked.
func (r *GuardianRepositoryImpl) LinkChild(ctx context.Context, guardianID, childID uint) error {
	return r.DB.WithContext(ctx).Table("guardian_children").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(map[string]interface{}{"guardian_id": guardianID, "child_id": childID}).Error
}

func (r *GuardianRepositoryImpl) IsLinked(ctx context.Context, guardianID, childID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Table("guardian_children").
		Where("guardian_id = ? AND child_id = ?", guardianID, childID).
		Count(&count).Error
	return count > 0, err
}

func (r *GuardianRepositoryImpl) FindByChildID(ctx context.Context, childID uint) ([]models.Guardian, error) {
	var guardians []models.Guardian
	err := r.DB.WithContext(ctx).
		Joins("JOIN guardian_children ON guardian_children.guardian_id = guardians.id").
		Where("guardian_children.child_id = ?", childID).
		Order("guardians.id").
		Find(&guardians).Error
	return guardians, err
}
