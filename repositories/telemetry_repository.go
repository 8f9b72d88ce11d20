package repositories

import (
	"GuardianAI/models"
	"context"
	"time"
)

// ScreenTimeRepository persists daily records and their hour buckets.
type ScreenTimeRepository interface {
	// Upsert inserts or updates the (child, date) record; created reports
	// whether this call inserted the row.
	Upsert(ctx context.Context, childID uint, date time.Time, totalSeconds int64) (record models.ScreenTimeRecord, created bool, err error)
	UpsertHourBucket(ctx context.Context, recordID, appID uint, hour int, seconds int64) error
	PruneBefore(ctx context.Context, childID uint, cutoff time.Time) (int64, error)
	FindInRange(ctx context.Context, childID uint, start, end time.Time) ([]models.ScreenTimeRecord, error)
	FindByDate(ctx context.Context, childID uint, date time.Time) (models.ScreenTimeRecord, error)
	Create(ctx context.Context, record *models.ScreenTimeRecord) error
}

type LocationRepository interface {
	Create(ctx context.Context, sample *models.LocationSample) error
	PruneBefore(ctx context.Context, childID uint, cutoff time.Time) (int64, error)
	FindRecent(ctx context.Context, childID uint, start, end time.Time, limit int) ([]models.LocationSample, error)
	CountByChild(ctx context.Context, childID uint) (int64, error)
}

// SiteAccessCounts summarises events in a range.
type SiteAccessCounts struct {
	Total    int64
	Blocked  int64
	Accessed int64
}

type SiteAccessRepository interface {
	CreateBatch(ctx context.Context, events []models.SiteAccessEvent) error
	PruneBefore(ctx context.Context, childID uint, cutoff time.Time) (int64, error)
	CountInRange(ctx context.Context, childID uint, start, end time.Time) (SiteAccessCounts, error)
	FindRecent(ctx context.Context, childID uint, start, end time.Time, limit int) ([]models.SiteAccessEvent, error)
	CountByChild(ctx context.Context, childID uint) (int64, error)
}

type AppRepository interface {
	FindByDomain(ctx context.Context, domain string) (models.App, error)
	FindByDomains(ctx context.Context, domains []string) ([]models.App, error)
	// CreateIfAbsent inserts the app unless the domain exists, then returns the stored row.
	CreateIfAbsent(ctx context.Context, app models.App) (models.App, error)
	IncrementBlockedCount(ctx context.Context, domain string, delta int64) (bool, error)
}
