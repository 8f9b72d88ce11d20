package services

import (
	"GuardianAI/models"
	"GuardianAI/repositories"
	"context"
	"errors"

	"gorm.io/gorm"
)

// IdentityService maps a child token to the child record. It never writes.
type IdentityService struct {
	ChildRepo repositories.ChildRepository
}

func NewIdentityService(childRepo repositories.ChildRepository) *IdentityService {
	return &IdentityService{ChildRepo: childRepo}
}

// Resolve returns ErrUnknownChild for empty or unregistered tokens.
func (s *IdentityService) Resolve(ctx context.Context, childHash string) (models.Child, error) {
	if childHash == "" {
		return models.Child{}, ErrUnknownChild
	}
	child, err := s.ChildRepo.FindByChildHash(ctx, childHash)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Child{}, ErrUnknownChild
	}
	if err != nil {
		return models.Child{}, storageError("resolve child", err)
	}
	return child, nil
}
