package services

import (
	"GuardianAI/models"
	"GuardianAI/repositories"
	"bytes"
	"context"
	"encoding/json"
	"log"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const DefaultRetentionDays = 365

// DefaultCatalogBudget caps the catalog lookups of one screen_time envelope.
// Domains reached after it runs out get fallback entries.
const DefaultCatalogBudget = 15 * time.Second

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

// BlockedAccessNotifier is told about blocked sites after they are stored.
type BlockedAccessNotifier interface {
	NotifyBlockedAccess(ctx context.Context, child models.Child, hosts []string)
}

// ScreenTimeResult is the outcome of one screen_time envelope.
type ScreenTimeResult struct {
	Record         models.ScreenTimeRecord
	Created        bool
	BucketsWritten int
	BucketsSkipped int
}

// SiteAccessResult is the outcome of one site_access batch.
type SiteAccessResult struct {
	Count   int
	Blocked int
	Skipped int
}

// TelemetryService is the only writer of per-child time series. Every write
// prunes that child's rows older than the retention window.
type TelemetryService struct {
	Identity       *IdentityService
	Catalog        *CatalogService
	ScreenTimeRepo repositories.ScreenTimeRepository
	LocationRepo   repositories.LocationRepository
	SiteAccessRepo repositories.SiteAccessRepository
	AppRepo        repositories.AppRepository
	Alerts         BlockedAccessNotifier

	RetentionDays int
	CatalogBudget time.Duration
	Now           func() time.Time
}

func NewTelemetryService(
	identity *IdentityService,
	catalog *CatalogService,
	screenTimeRepo repositories.ScreenTimeRepository,
	locationRepo repositories.LocationRepository,
	siteAccessRepo repositories.SiteAccessRepository,
	appRepo repositories.AppRepository,
) *TelemetryService {
	return &TelemetryService{
		Identity:       identity,
		Catalog:        catalog,
		ScreenTimeRepo: screenTimeRepo,
		LocationRepo:   locationRepo,
		SiteAccessRepo: siteAccessRepo,
		AppRepo:        appRepo,
		RetentionDays:  DefaultRetentionDays,
		CatalogBudget:  DefaultCatalogBudget,
		Now:            time.Now,
	}
}

func (s *TelemetryService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *TelemetryService) retention() time.Duration {
	days := s.RetentionDays
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// dateCutoff is the oldest calendar date still inside the window.
func (s *TelemetryService) dateCutoff() time.Time {
	return TruncateDate(s.now().Add(-s.retention()))
}

func (s *TelemetryService) timestampCutoff() time.Time {
	return s.now().Add(-s.retention())
}

// StoreScreenTime upserts the daily record and its hour buckets.
func (s *TelemetryService) StoreScreenTime(ctx context.Context, childHash string, info models.ScreenTimeInfo) (ScreenTimeResult, error) {
	if childHash == "" || info.Date == nil || info.TotalScreenTime == nil || info.AppWiseData == nil {
		return ScreenTimeResult{}, requiredFields("child_hash", "date", "total_screen_time", "app_wise_data")
	}
	date, err := ParseDate(*info.Date)
	if err != nil {
		return ScreenTimeResult{}, invalidField("date must be YYYY-MM-DD, got %q", *info.Date)
	}
	if *info.TotalScreenTime < 0 {
		return ScreenTimeResult{}, invalidField("total_screen_time must be non-negative")
	}

	child, err := s.Identity.Resolve(ctx, childHash)
	if err != nil {
		return ScreenTimeResult{}, err
	}

	record, created, err := s.ScreenTimeRepo.Upsert(ctx, child.ID, date, *info.TotalScreenTime)
	if err != nil {
		return ScreenTimeResult{}, storageError("upsert screen time", err)
	}
	result := ScreenTimeResult{Record: record, Created: created}

	budget := s.CatalogBudget
	if budget <= 0 {
		budget = DefaultCatalogBudget
	}
	lookupCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	domains := make([]string, 0, len(info.AppWiseData))
	for domain := range info.AppWiseData {
		domains = append(domains, domain)
	}
	sort.Strings(domains)

	for _, domain := range domains {
		hourly, skipped, ok := hourlySeconds(info.AppWiseData[domain])
		if !ok {
			log.Printf("[Ingest] skipping %s: hourly data is not an object", domain)
			continue
		}
		if skipped > 0 {
			log.Printf("[Ingest] skipping %d invalid hour entries for %s", skipped, domain)
			result.BucketsSkipped += skipped
		}

		app, err := s.Catalog.getOrCreate(ctx, lookupCtx, domain)
		if err != nil {
			return result, err
		}

		hours := make([]int, 0, len(hourly))
		for hour := range hourly {
			hours = append(hours, hour)
		}
		sort.Ints(hours)
		for _, hour := range hours {
			if err := s.ScreenTimeRepo.UpsertHourBucket(ctx, record.ID, app.ID, hour, hourly[hour]); err != nil {
				return result, storageError("upsert hour bucket", err)
			}
			result.BucketsWritten++
		}
	}

	if pruned, err := s.ScreenTimeRepo.PruneBefore(ctx, child.ID, s.dateCutoff()); err != nil {
		return result, storageError("prune screen time", err)
	} else if pruned > 0 {
		log.Printf("[Retention] pruned %d screen time records for child %d", pruned, child.ID)
	}

	return result, nil
}

// StoreLocation appends one sample.
func (s *TelemetryService) StoreLocation(ctx context.Context, childHash string, info models.LocationInfo) (models.LocationSample, error) {
	if childHash == "" || info.Timestamp == nil || *info.Timestamp == "" || info.Latitude == nil || info.Longitude == nil {
		return models.LocationSample{}, requiredFields("child_hash", "timestamp", "latitude", "longitude")
	}
	timestamp, err := ParseTimestamp(*info.Timestamp)
	if err != nil {
		return models.LocationSample{}, invalidField("timestamp must be ISO-8601, got %q", *info.Timestamp)
	}

	child, err := s.Identity.Resolve(ctx, childHash)
	if err != nil {
		return models.LocationSample{}, err
	}

	sample := models.LocationSample{
		ChildID:   child.ID,
		Timestamp: timestamp,
		Latitude:  *info.Latitude,
		Longitude: *info.Longitude,
	}
	if err := s.LocationRepo.Create(ctx, &sample); err != nil {
		return models.LocationSample{}, storageError("create location", err)
	}

	if pruned, err := s.LocationRepo.PruneBefore(ctx, child.ID, s.timestampCutoff()); err != nil {
		return sample, storageError("prune locations", err)
	} else if pruned > 0 {
		log.Printf("[Retention] pruned %d location samples for child %d", pruned, child.ID)
	}

	return sample, nil
}

// StoreSiteAccessBatch appends every complete entry of logs and silently skips the rest.
func (s *TelemetryService) StoreSiteAccessBatch(ctx context.Context, childHash string, logs json.RawMessage) (SiteAccessResult, error) {
	var entries []json.RawMessage
	trimmed := bytes.TrimSpace(logs)
	if childHash == "" || len(trimmed) == 0 || trimmed[0] != '[' || json.Unmarshal(trimmed, &entries) != nil {
		return SiteAccessResult{}, &ValidationError{
			Fields: []string{"child_hash", "logs"},
			Reason: "child_hash and list of logs required",
		}
	}

	child, err := s.Identity.Resolve(ctx, childHash)
	if err != nil {
		return SiteAccessResult{}, err
	}

	var result SiteAccessResult
	events := make([]models.SiteAccessEvent, 0, len(entries))
	for _, raw := range entries {
		var entry models.SiteAccessEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			result.Skipped++
			continue
		}
		if entry.Timestamp == nil || *entry.Timestamp == "" || entry.URL == nil || entry.Accessed == nil {
			result.Skipped++
			continue
		}
		timestamp, err := ParseTimestamp(*entry.Timestamp)
		if err != nil {
			result.Skipped++
			continue
		}
		events = append(events, models.SiteAccessEvent{
			ChildID:   child.ID,
			Timestamp: timestamp,
			URL:       *entry.URL,
			Accessed:  *entry.Accessed,
		})
	}

	if err := s.SiteAccessRepo.CreateBatch(ctx, events); err != nil {
		return SiteAccessResult{}, storageError("create site access logs", err)
	}
	result.Count = len(events)

	var blockedHosts []string
	for _, event := range events {
		if event.Accessed {
			continue
		}
		result.Blocked++
		host := siteHost(event.URL)
		if host == "" {
			continue
		}
		blockedHosts = append(blockedHosts, host)
		s.bumpBlockedCount(ctx, host)
	}

	if pruned, err := s.SiteAccessRepo.PruneBefore(ctx, child.ID, s.timestampCutoff()); err != nil {
		return result, storageError("prune site access logs", err)
	} else if pruned > 0 {
		log.Printf("[Retention] pruned %d site access logs for child %d", pruned, child.ID)
	}

	if result.Blocked > 0 && s.Alerts != nil {
		alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		go func() {
			defer cancel()
			s.Alerts.NotifyBlockedAccess(alertCtx, child, blockedHosts)
		}()
	}

	return result, nil
}

// PruneStats counts rows removed by a retention sweep.
type PruneStats struct {
	ScreenTime int64 `json:"screen_time"`
	Locations  int64 `json:"locations"`
	SiteAccess int64 `json:"site_access"`
}

// SweepRetention prunes every series of the given children. Writes already
// prune their own child; the sweep covers children that stopped sending.
func (s *TelemetryService) SweepRetention(ctx context.Context, children []models.Child) (PruneStats, error) {
	var stats PruneStats
	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		n, err := s.ScreenTimeRepo.PruneBefore(ctx, child.ID, s.dateCutoff())
		if err != nil {
			return stats, storageError("prune screen time", err)
		}
		stats.ScreenTime += n
		if n, err = s.LocationRepo.PruneBefore(ctx, child.ID, s.timestampCutoff()); err != nil {
			return stats, storageError("prune locations", err)
		}
		stats.Locations += n
		if n, err = s.SiteAccessRepo.PruneBefore(ctx, child.ID, s.timestampCutoff()); err != nil {
			return stats, storageError("prune site access logs", err)
		}
		stats.SiteAccess += n
	}
	log.Printf("[Retention] swept %d children: %d screen time, %d locations, %d site access rows removed",
		len(children), stats.ScreenTime, stats.Locations, stats.SiteAccess)
	return stats, nil
}

// bumpBlockedCount credits a blocked visit to the App whose domain matches the host.
func (s *TelemetryService) bumpBlockedCount(ctx context.Context, host string) {
	if s.AppRepo == nil {
		return
	}
	for _, domain := range []string{host, strings.TrimPrefix(host, "www.")} {
		found, err := s.AppRepo.IncrementBlockedCount(ctx, domain, 1)
		if err != nil {
			log.Printf("[Ingest] failed to update blocked count for %s: %v", domain, err)
			return
		}
		if found {
			if s.Catalog != nil {
				s.Catalog.Forget(domain)
			}
			return
		}
		if domain == host && !strings.HasPrefix(host, "www.") {
			return
		}
	}
}

func siteHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// ParseDate parses a YYYY-MM-DD calendar date as UTC midnight.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(models.DateLayout, strings.TrimSpace(value), time.UTC)
}

// ParseTimestamp accepts RFC 3339 and zone-less ISO-8601 (treated as UTC).
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// TruncateDate drops the clock part, keeping the UTC calendar date.
func TruncateDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// hourlySeconds reads {"<hour>": seconds} in document order. Keys naming the
// same hour ("8" and "08") collapse to the last one; invalid entries are counted
// in skipped. ok is false when raw is not an object.
func hourlySeconds(raw []byte) (hourly map[int]int64, skipped int, ok bool) {
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsObject() {
		return nil, 0, false
	}
	hourly = make(map[int]int64)
	parsed.ForEach(func(key, value gjson.Result) bool {
		hour, valid := parseHour(key.String())
		if !valid {
			skipped++
			return true
		}
		seconds, valid := parseSeconds(json.RawMessage(value.Raw))
		if !valid {
			skipped++
			return true
		}
		hourly[hour] = seconds
		return true
	})
	return hourly, skipped, true
}

func parseHour(key string) (int, bool) {
	hour, err := strconv.Atoi(strings.TrimSpace(key))
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	return hour, true
}

// parseSeconds accepts integral JSON numbers and numeric strings.
func parseSeconds(raw json.RawMessage) (int64, bool) {
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
		number = json.Number(strings.TrimSpace(text))
	}
	if n, err := number.Int64(); err == nil {
		return n, n >= 0
	}
	f, err := number.Float64()
	if err != nil || f < 0 || f != math.Trunc(f) || f > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
