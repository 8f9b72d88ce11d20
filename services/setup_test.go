package services

import (
	"GuardianAI/config"
	"GuardianAI/models"
	"GuardianAI/repositories"
	"GuardianAI/repositories/impl"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNow = time.Date(2025, 12, 10, 15, 30, 0, 0, time.UTC)

// failingFetcher forces the catalog fallback.
type failingFetcher struct{}

func (failingFetcher) Fetch(ctx context.Context, domain string) (AppMetadata, error) {
	return AppMetadata{}, errors.New("network unreachable")
}

type staticFetcher map[string]AppMetadata

func (f staticFetcher) Fetch(ctx context.Context, domain string) (AppMetadata, error) {
	if meta, ok := f[domain]; ok {
		return meta, nil
	}
	return AppMetadata{}, ErrCatalogLookup
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishTelemetry(childHash, messageType string, result map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, childHash+":"+messageType)
}

func (p *recordingPublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type testEnv struct {
	DB             *gorm.DB
	ChildRepo      repositories.ChildRepository
	GuardianRepo   repositories.GuardianRepository
	AppRepo        repositories.AppRepository
	ScreenTimeRepo repositories.ScreenTimeRepository
	LocationRepo   repositories.LocationRepository
	SiteAccessRepo repositories.SiteAccessRepository

	Identity    *IdentityService
	Catalog     *CatalogService
	Telemetry   *TelemetryService
	Aggregation *AggregationService
	Ingest      *IngestService
	Publisher   *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := config.OpenDatabase(config.InMemory())
	require.NoError(t, err)

	env := &testEnv{
		DB:             db,
		ChildRepo:      impl.NewChildRepository(db),
		GuardianRepo:   impl.NewGuardianRepository(db),
		AppRepo:        impl.NewAppRepository(db),
		ScreenTimeRepo: impl.NewScreenTimeRepository(db),
		LocationRepo:   impl.NewLocationRepository(db),
		SiteAccessRepo: impl.NewSiteAccessRepository(db),
		Publisher:      &recordingPublisher{},
	}
	env.Identity = NewIdentityService(env.ChildRepo)
	env.Catalog = NewCatalogService(env.AppRepo, failingFetcher{})
	env.Telemetry = NewTelemetryService(env.Identity, env.Catalog, env.ScreenTimeRepo, env.LocationRepo, env.SiteAccessRepo, env.AppRepo)
	env.Telemetry.Now = func() time.Time { return testNow }
	env.Aggregation = NewAggregationService(env.Identity, env.ScreenTimeRepo, env.LocationRepo, env.SiteAccessRepo, env.AppRepo, nil)
	env.Aggregation.Now = func() time.Time { return testNow }
	env.Ingest = NewIngestService(env.Telemetry, env.Publisher)
	return env
}

func (e *testEnv) child(t *testing.T, hash string) models.Child {
	t.Helper()
	child := models.Child{ChildHash: hash, FirstName: "Anna", LastName: "K", IsActive: true}
	require.NoError(t, e.ChildRepo.Save(context.Background(), &child))
	return child
}

func strPtr(s string) *string       { return &s }
func int64Ptr(n int64) *int64       { return &n }
func float64Ptr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool          { return &b }
