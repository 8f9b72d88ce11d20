package services

import (
	"GuardianAI/models"
	"GuardianAI/repositories"
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	ErrGuardianNotFound = errors.New("guardian not found")
	ErrNotLinked        = errors.New("child is not linked to this guardian")
)

// GuardianService manages which children a guardian may watch.
type GuardianService struct {
	Identity     *IdentityService
	GuardianRepo repositories.GuardianRepository
}

func NewGuardianService(identity *IdentityService, guardianRepo repositories.GuardianRepository) *GuardianService {
	return &GuardianService{
		Identity:     identity,
		GuardianRepo: guardianRepo,
	}
}

// LinkChild attaches the child to the guardian. Linking twice is a no-op.
func (s *GuardianService) LinkChild(ctx context.Context, guardianID uint, childHash string) (models.Child, error) {
	if _, err := s.guardian(ctx, guardianID); err != nil {
		return models.Child{}, err
	}
	child, err := s.Identity.Resolve(ctx, childHash)
	if err != nil {
		return models.Child{}, err
	}
	if err := s.GuardianRepo.LinkChild(ctx, guardianID, child.ID); err != nil {
		return models.Child{}, storageError("link child", err)
	}
	return child, nil
}

// CanView returns the child when the guardian is linked to it, ErrNotLinked otherwise.
func (s *GuardianService) CanView(ctx context.Context, guardianID uint, childHash string) (models.Child, error) {
	child, err := s.Identity.Resolve(ctx, childHash)
	if err != nil {
		return models.Child{}, err
	}
	linked, err := s.GuardianRepo.IsLinked(ctx, guardianID, child.ID)
	if err != nil {
		return models.Child{}, storageError("check link", err)
	}
	if !linked {
		return models.Child{}, ErrNotLinked
	}
	return child, nil
}

func (s *GuardianService) guardian(ctx context.Context, guardianID uint) (models.Guardian, error) {
	guardian, err := s.GuardianRepo.FindByID(ctx, guardianID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Guardian{}, ErrGuardianNotFound
	}
	if err != nil {
		return models.Guardian{}, storageError("find guardian", err)
	}
	return guardian, nil
}

// Get loads a guardian by id.
func (s *GuardianService) Get(ctx context.Context, guardianID uint) (models.Guardian, error) {
	return s.guardian(ctx, guardianID)
}
