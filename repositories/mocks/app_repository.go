package mocks

import (
	"GuardianAI/models"
	"context"

	"github.com/stretchr/testify/mock"
)

// AppRepository is a testify mock of repositories.AppRepository.
type AppRepository struct {
	mock.Mock
}

func (m *AppRepository) FindByDomain(ctx context.Context, domain string) (models.App, error) {
	args := m.Called(domain)
	return args.Get(0).(models.App), args.Error(1)
}

func (m *AppRepository) FindByDomains(ctx context.Context, domains []string) ([]models.App, error) {
	args := m.Called(domains)
	return args.Get(0).([]models.App), args.Error(1)
}

func (m *AppRepository) CreateIfAbsent(ctx context.Context, app models.App) (models.App, error) {
	args := m.Called(app)
	return args.Get(0).(models.App), args.Error(1)
}

func (m *AppRepository) IncrementBlockedCount(ctx context.Context, domain string, delta int64) (bool, error) {
	args := m.Called(domain, delta)
	return args.Bool(0), args.Error(1)
}
