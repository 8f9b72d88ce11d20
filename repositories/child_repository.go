package repositories

import (
	"GuardianAI/models"
	"context"
)

type ChildRepository interface {
	FindByChildHash(ctx context.Context, childHash string) (models.Child, error)
	Save(ctx context.Context, child *models.Child) error
	FindAll(ctx context.Context) ([]models.Child, error)
}

type GuardianRepository interface {
	FindByID(ctx context.Context, id uint) (models.Guardian, error)
	Save(ctx context.Context, guardian *models.Guardian) error
	LinkChild(ctx context.Context, guardianID, childID uint) error
	IsLinked(ctx context.Context, guardianID, childID uint) (bool, error)
	FindByChildID(ctx context.Context, childID uint) ([]models.Guardian, error)
}
