package mocks

import (
	"GuardianAI/models"
	"context"

	"github.com/stretchr/testify/mock"
)

// ChildRepository is a testify mock of repositories.ChildRepository.
type ChildRepository struct {
	mock.Mock
}

func (m *ChildRepository) FindByChildHash(ctx context.Context, childHash string) (models.Child, error) {
	args := m.Called(childHash)
	return args.Get(0).(models.Child), args.Error(1)
}

func (m *ChildRepository) Save(ctx context.Context, child *models.Child) error {
	args := m.Called(child)
	return args.Error(0)
}

func (m *ChildRepository) FindAll(ctx context.Context) ([]models.Child, error) {
	args := m.Called()
	return args.Get(0).([]models.Child), args.Error(1)
}

// GuardianRepository is a testify mock of repositories.GuardianRepository.
type GuardianRepository struct {
	mock.Mock
}

func (m *GuardianRepository) FindByID(ctx context.Context, id uint) (models.Guardian, error) {
	args := m.Called(id)
	return args.Get(0).(models.Guardian), args.Error(1)
}

func (m *GuardianRepository) Save(ctx context.Context, guardian *models.Guardian) error {
	args := m.Called(guardian)
	return args.Error(0)
}

func (m *GuardianRepository) LinkChild(ctx context.Context, guardianID, childID uint) error {
	args := m.Called(guardianID, childID)
	return args.Error(0)
}

func (m *GuardianRepository) IsLinked(ctx context.Context, guardianID, childID uint) (bool, error) {
	args := m.Called(guardianID, childID)
	return args.Bool(0), args.Error(1)
}

func (m *GuardianRepository) FindByChildID(ctx context.Context, childID uint) ([]models.Guardian, error) {
	args := m.Called(childID)
	return args.Get(0).([]models.Guardian), args.Error(1)
}
