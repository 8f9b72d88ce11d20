package impl

import (
	"GuardianAI/config"
	"GuardianAI/models"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenDatabase(config.InMemory())
	require.NoError(t, err)
	return db
}

func createChild(t *testing.T, db *gorm.DB, hash string) models.Child {
	t.Helper()
	child := models.Child{ChildHash: hash, FirstName: "Anna", IsActive: true}
	require.NoError(t, NewChildRepository(db).Save(context.Background(), &child))
	return child
}

func day(s string) time.Time {
	d, err := time.ParseInLocation(models.DateLayout, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}

func TestChildRepositoryFindByChildHash(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	child := createChild(t, db, "hash-1")

	found, err := NewChildRepository(db).FindByChildHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, child.ID, found.ID)

	_, err = NewChildRepository(db).FindByChildHash(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestScreenTimeUpsertCreatedFlag(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	child := createChild(t, db, "hash-1")
	repo := NewScreenTimeRepository(db)

	first, created, err := repo.Upsert(ctx, child.ID, day("2025-12-10"), 3600)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(3600), first.TotalScreenTime)

	second, created, err := repo.Upsert(ctx, child.ID, day("2025-12-10"), 5400)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(5400), second.TotalScreenTime)

	var count int64
	db.Model(&models.ScreenTimeRecord{}).Where("child_id = ?", child.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestUpsertHourBucketKeepsLatestValue(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	child := createChild(t, db, "hash-1")
	repo := NewScreenTimeRepository(db)
	app, err := NewAppRepository(db).CreateIfAbsent(ctx, models.App{Domain: "com.whatsapp", AppName: "WhatsApp"})
	require.NoError(t, err)

	record, _, err := repo.Upsert(ctx, child.ID, day("2025-12-10"), 100)
	require.NoError(t, err)
	require.NoError(t, repo.UpsertHourBucket(ctx, record.ID, app.ID, 9, 60))
	require.NoError(t, repo.UpsertHourBucket(ctx, record.ID, app.ID, 9, 90))
	require.NoError(t, repo.UpsertHourBucket(ctx, record.ID, app.ID, 10, 30))

	stored, err := repo.FindByDate(ctx, child.ID, day("2025-12-10"))
	require.NoError(t, err)
	require.Len(t, stored.AppScreenTimes, 2)
	assert.Equal(t, 9, stored.AppScreenTimes[0].Hour)
	assert.Equal(t, int64(90), stored.AppScreenTimes[0].Seconds)
	assert.Equal(t, "com.whatsapp", stored.AppScreenTimes[0].App.Domain)
}

func TestScreenTimePruneBefore(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	child := createChild(t, db, "hash-1")
	other := createChild(t, db, "hash-2")
	repo := NewScreenTimeRepository(db)
	app, err := NewAppRepository(db).CreateIfAbsent(ctx, models.App{Domain: "com.game"})
	require.NoError(t, err)

	old, _, err := repo.Upsert(ctx, child.ID, day("2024-01-01"), 10)
	require.NoError(t, err)
	require.NoError(t, repo.UpsertHourBucket(ctx, old.ID, app.ID, 1, 10))
	kept, _, err := repo.Upsert(ctx, child.ID, day("2024-06-01"), 20)
	require.NoError(t, err)
	require.NoError(t, repo.UpsertHourBucket(ctx, kept.ID, app.ID, 2, 20))
	otherRecord, _, err := repo.Upsert(ctx, other.ID, day("2024-01-01"), 30)
	require.NoError(t, err)
	require.NoError(t, repo.UpsertHourBucket(ctx, otherRecord.ID, app.ID, 1, 30))

	deleted, err := repo.PruneBefore(ctx, child.ID, day("2024-03-01"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	records, err := repo.FindInRange(ctx, child.ID, day("2023-01-01"), day("2025-01-01"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2024-06-01", records[0].DateString())
	require.Len(t, records[0].AppScreenTimes, 1)
	assert.Equal(t, int64(20), records[0].AppScreenTimes[0].Seconds)

	var stale int64
	db.Model(&models.AppScreenTime{}).Where("screen_time_id = ?", old.ID).Count(&stale)
	assert.Equal(t, int64(0), stale)

	// other children are untouched, buckets included
	records, err = repo.FindInRange(ctx, other.ID, day("2023-01-01"), day("2025-01-01"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, records[0].AppScreenTimes, 1)
	assert.Equal(t, 1, records[0].AppScreenTimes[0].Hour)
	assert.Equal(t, int64(30), records[0].AppScreenTimes[0].Seconds)

	var buckets int64
	db.Model(&models.AppScreenTime{}).Count(&buckets)
	assert.Equal(t, int64(2), buckets)
}

func TestScreenTimeFindInRangeIsChronological(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	child := createChild(t, db, "hash-1")
	repo := NewScreenTimeRepository(db)

	for _, d := range []string{"2025-12-12", "2025-12-10", "2025-12-11", "2025-11-01"} {
		_, _, err := repo.Upsert(ctx, child.ID, day(d), 1)
		require.NoError(t, err)
	}

	records, err := repo.FindInRange(ctx, child.ID, day("2025-12-10"), day("2025-12-12"))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "2025-12-10", records[0].DateString())
	assert.Equal(t, "2025-12-11", records[1].DateString())
	assert.Equal(t, "2025-12-12", records[2].DateString())
}

func TestScreenTimeCreateKeepsLegacyMap(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	child := createChild(t, db, "hash-1")
	repo := NewScreenTimeRepository(db)

	record := models.ScreenTimeRecord{
		ChildID:         child.ID,
		Date:            day("2025-01-05"),
		TotalScreenTime: 120,
		AppWiseData:     datatypes.JSON(`{"com.youtube":{"8":120}}`),
	}
	require.NoError(t, repo.Create(ctx, &record))

	stored, err := repo.FindByDate(ctx, child.ID, day("2025-01-05"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"com.youtube":{"8":120}}`, string(stored.AppWiseData))
	assert.Empty(t, stored.AppScreenTimes)
}

func TestLocationRepository(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	child := createChild(t, db, "hash-1")
	repo := NewLocationRepository(db)
	base := time.Date(2025, 12, 10, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		sample := models.LocationSample{ChildID: child.ID, Timestamp: base.Add(time.Duration(i) * time.Hour), Latitude: 40 + float64(i), Longitude: -74}
		require.NoError(t, repo.Create(ctx, &sample))
	}

	recent, err := repo.FindRecent(ctx, child.ID, base, base.Add(24*time.Hour), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 42.0, recent[0].Latitude)
	assert.Equal(t, 41.0, recent[1].Latitude)

	deleted, err := repo.PruneBefore(ctx, child.ID, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	count, err := repo.CountByChild(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSiteAccessRepositoryCounts(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	child := createChild(t, db, "hash-1")
	repo := NewSiteAccessRepository(db)
	base := time.Date(2025, 12, 10, 10, 0, 0, 0, time.UTC)

	events := []models.SiteAccessEvent{
		{ChildID: child.ID, Timestamp: base, URL: "https://a.com", Accessed: true},
		{ChildID: child.ID, Timestamp: base.Add(time.Minute), URL: "https://b.com", Accessed: false},
		{ChildID: child.ID, Timestamp: base.Add(2 * time.Minute), URL: "https://c.com", Accessed: false},
	}
	require.NoError(t, repo.CreateBatch(ctx, events))
	require.NoError(t, repo.CreateBatch(ctx, nil))

	counts, err := repo.CountInRange(ctx, child.ID, base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts.Total)
	assert.Equal(t, int64(2), counts.Blocked)
	assert.Equal(t, int64(1), counts.Accessed)

	recent, err := repo.FindRecent(ctx, child.ID, base, base.Add(time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "https://c.com", recent[0].URL)
}

func TestAppRepositoryCreateIfAbsentKeepsFirstRow(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := NewAppRepository(db)

	first, err := repo.CreateIfAbsent(ctx, models.App{Domain: "com.whatsapp", AppName: "WhatsApp"})
	require.NoError(t, err)
	second, err := repo.CreateIfAbsent(ctx, models.App{Domain: "com.whatsapp", AppName: "Whatsapp"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "WhatsApp", second.AppName)
}

func TestAppRepositoryIncrementBlockedCount(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := NewAppRepository(db)
	_, err := repo.CreateIfAbsent(ctx, models.App{Domain: "youtube.com"})
	require.NoError(t, err)

	found, err := repo.IncrementBlockedCount(ctx, "youtube.com", 2)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.IncrementBlockedCount(ctx, "unknown.com", 1)
	require.NoError(t, err)
	assert.False(t, found)

	app, err := repo.FindByDomain(ctx, "youtube.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), app.BlockedCount)

	apps, err := repo.FindByDomains(ctx, []string{"youtube.com", "unknown.com"})
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}

func TestGuardianRepositoryLinks(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	child := createChild(t, db, "hash-1")
	repo := NewGuardianRepository(db)

	guardian := models.Guardian{Email: "parent@example.com", DeviceToken: "token-1"}
	require.NoError(t, repo.Save(ctx, &guardian))

	linked, err := repo.IsLinked(ctx, guardian.ID, child.ID)
	require.NoError(t, err)
	assert.False(t, linked)

	require.NoError(t, repo.LinkChild(ctx, guardian.ID, child.ID))
	require.NoError(t, repo.LinkChild(ctx, guardian.ID, child.ID))

	linked, err = repo.IsLinked(ctx, guardian.ID, child.ID)
	require.NoError(t, err)
	assert.True(t, linked)

	guardians, err := repo.FindByChildID(ctx, child.ID)
	require.NoError(t, err)
	require.Len(t, guardians, 1)
	assert.Equal(t, "token-1", guardians[0].DeviceToken)
}
