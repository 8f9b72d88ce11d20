package services

import (
	"GuardianAI/models"
	"GuardianAI/repositories/mocks"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newGuardianService() (*GuardianService, *mocks.ChildRepository, *mocks.GuardianRepository) {
	childRepo := new(mocks.ChildRepository)
	guardianRepo := new(mocks.GuardianRepository)
	return NewGuardianService(NewIdentityService(childRepo), guardianRepo), childRepo, guardianRepo
}

func TestIdentityResolve(t *testing.T) {
	childRepo := new(mocks.ChildRepository)
	identity := NewIdentityService(childRepo)
	childRepo.On("FindByChildHash", "known").Return(models.Child{ID: 1, ChildHash: "known"}, nil)
	childRepo.On("FindByChildHash", "ghost").Return(models.Child{}, gorm.ErrRecordNotFound)
	childRepo.On("FindByChildHash", "broken").Return(models.Child{}, errors.New("db down"))

	child, err := identity.Resolve(context.Background(), "known")
	require.NoError(t, err)
	assert.Equal(t, uint(1), child.ID)

	_, err = identity.Resolve(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUnknownChild)

	_, err = identity.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnknownChild)

	_, err = identity.Resolve(context.Background(), "broken")
	assert.ErrorIs(t, err, ErrStorage)
	assert.NotErrorIs(t, err, ErrUnknownChild)
}

func TestGuardianLinkChild(t *testing.T) {
	service, childRepo, guardianRepo := newGuardianService()
	guardianRepo.On("FindByID", uint(10)).Return(models.Guardian{ID: 10}, nil)
	childRepo.On("FindByChildHash", "child-1").Return(models.Child{ID: 2, ChildHash: "child-1"}, nil)
	guardianRepo.On("LinkChild", uint(10), uint(2)).Return(nil)

	child, err := service.LinkChild(context.Background(), 10, "child-1")
	require.NoError(t, err)
	assert.Equal(t, uint(2), child.ID)
	guardianRepo.AssertExpectations(t)
}

func TestGuardianLinkChildErrors(t *testing.T) {
	service, childRepo, guardianRepo := newGuardianService()
	guardianRepo.On("FindByID", uint(99)).Return(models.Guardian{}, gorm.ErrRecordNotFound)
	guardianRepo.On("FindByID", uint(10)).Return(models.Guardian{ID: 10}, nil)
	childRepo.On("FindByChildHash", "ghost").Return(models.Child{}, gorm.ErrRecordNotFound)

	_, err := service.LinkChild(context.Background(), 99, "child-1")
	assert.ErrorIs(t, err, ErrGuardianNotFound)

	_, err = service.LinkChild(context.Background(), 10, "ghost")
	assert.ErrorIs(t, err, ErrUnknownChild)
	guardianRepo.AssertNotCalled(t, "LinkChild", uint(10), uint(0))
}

func TestGuardianCanView(t *testing.T) {
	service, childRepo, guardianRepo := newGuardianService()
	childRepo.On("FindByChildHash", "child-1").Return(models.Child{ID: 2, ChildHash: "child-1"}, nil)
	guardianRepo.On("IsLinked", uint(10), uint(2)).Return(true, nil)
	guardianRepo.On("IsLinked", uint(11), uint(2)).Return(false, nil)

	child, err := service.CanView(context.Background(), 10, "child-1")
	require.NoError(t, err)
	assert.Equal(t, "child-1", child.ChildHash)

	_, err = service.CanView(context.Background(), 11, "child-1")
	assert.ErrorIs(t, err, ErrNotLinked)
}
