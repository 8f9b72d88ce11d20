package services

import (
	"GuardianAI/models"
	"GuardianAI/repositories"
	"context"
	"encoding/json"
	"sort"
	"time"
)

const (
	DefaultDashboardDays  = 30
	DefaultTopApps        = 5
	DefaultLocationLimit  = 10
	DefaultRecentSiteLogs = 20
	NoDataAppName         = "No data"
)

// DateRange is an inclusive range of calendar dates (UTC midnight).
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days reports how many calendar days the range covers.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// until is the last instant covered by the range.
func (r DateRange) until() time.Time {
	return r.End.Add(24*time.Hour - time.Nanosecond)
}

type DailyTotal struct {
	Date         string `json:"date"`
	TotalSeconds int64  `json:"total_seconds"`
}

// AppSeconds is one app's cumulative seconds in a breakdown.
type AppSeconds struct {
	Domain  string `json:"domain"`
	Seconds int64  `json:"seconds"`
}

// AppUsage is a ranked app with display metadata. Placeholder marks the
// single "no data" entry returned for an empty breakdown.
type AppUsage struct {
	Domain       string `json:"domain"`
	Name         string `json:"name"`
	IconURL      string `json:"icon_url"`
	Seconds      int64  `json:"seconds"`
	BlockedCount int64  `json:"blocked_count"`
	Placeholder  bool   `json:"placeholder,omitempty"`
}

type LocationSummary struct {
	Samples     []models.LocationSample `json:"samples"`
	LatestLabel string                  `json:"latest_label"`
}

type SiteAccessStats struct {
	Total    int64                    `json:"total"`
	Blocked  int64                    `json:"blocked"`
	Accessed int64                    `json:"accessed"`
	Recent   []models.SiteAccessEvent `json:"recent"`
}

// DashboardQuery carries the optional filters of a dashboard read.
type DashboardQuery struct {
	Start     *time.Time
	End       *time.Time
	TopN      int
	Locations int
}

type Dashboard struct {
	ChildHash    string          `json:"child_hash"`
	ChildName    string          `json:"child_name"`
	StartDate    string          `json:"start_date"`
	EndDate      string          `json:"end_date"`
	DailyTotals  []DailyTotal    `json:"daily_totals"`
	TotalSeconds int64           `json:"total_seconds"`
	TopApps      []AppUsage      `json:"top_apps"`
	AppBreakdown []AppUsage      `json:"app_breakdown"`
	Locations    LocationSummary `json:"locations"`
	SiteAccess   SiteAccessStats `json:"site_access"`
}

// AggregationService computes read-side rollups. It never writes.
type AggregationService struct {
	Identity       *IdentityService
	ScreenTimeRepo repositories.ScreenTimeRepository
	LocationRepo   repositories.LocationRepository
	SiteAccessRepo repositories.SiteAccessRepository
	AppRepo        repositories.AppRepository
	Geocoder       Geocoder

	DefaultDays int
	Now         func() time.Time
}

func NewAggregationService(
	identity *IdentityService,
	screenTimeRepo repositories.ScreenTimeRepository,
	locationRepo repositories.LocationRepository,
	siteAccessRepo repositories.SiteAccessRepository,
	appRepo repositories.AppRepository,
	geocoder Geocoder,
) *AggregationService {
	return &AggregationService{
		Identity:       identity,
		ScreenTimeRepo: screenTimeRepo,
		LocationRepo:   locationRepo,
		SiteAccessRepo: siteAccessRepo,
		AppRepo:        appRepo,
		Geocoder:       geocoder,
		DefaultDays:    DefaultDashboardDays,
		Now:            time.Now,
	}
}

// Range fills in missing bounds: end defaults to today, start to DefaultDays-1 days before end.
func (s *AggregationService) Range(start, end *time.Time) (DateRange, error) {
	days := s.DefaultDays
	if days <= 0 {
		days = DefaultDashboardDays
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	r := DateRange{End: TruncateDate(now())}
	if end != nil {
		r.End = TruncateDate(*end)
	}
	r.Start = r.End.AddDate(0, 0, -(days - 1))
	if start != nil {
		r.Start = TruncateDate(*start)
	}
	if r.Start.After(r.End) {
		return DateRange{}, invalidField("start date must not be after end date")
	}
	return r, nil
}

func (s *AggregationService) records(ctx context.Context, childID uint, r DateRange) ([]models.ScreenTimeRecord, error) {
	records, err := s.ScreenTimeRepo.FindInRange(ctx, childID, r.Start, r.End)
	if err != nil {
		return nil, storageError("load screen time", err)
	}
	return records, nil
}

func (s *AggregationService) DailyTotals(ctx context.Context, childHash string, r DateRange) ([]DailyTotal, error) {
	child, err := s.Identity.Resolve(ctx, childHash)
	if err != nil {
		return nil, err
	}
	records, err := s.records(ctx, child.ID, r)
	if err != nil {
		return nil, err
	}
	return DailyTotals(records), nil
}

func (s *AggregationService) AppBreakdown(ctx context.Context, childHash string, r DateRange) ([]AppSeconds, error) {
	child, err := s.Identity.Resolve(ctx, childHash)
	if err != nil {
		return nil, err
	}
	records, err := s.records(ctx, child.ID, r)
	if err != nil {
		return nil, err
	}
	return AppBreakdown(records), nil
}

func (s *AggregationService) TopApps(ctx context.Context, childHash string, r DateRange, n int) ([]AppUsage, error) {
	breakdown, err := s.AppBreakdown(ctx, childHash, r)
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, TopApps(breakdown, n)), nil
}

func (s *AggregationService) LocationSummary(ctx context.Context, childHash string, r DateRange, limit int) (LocationSummary, error) {
	child, err := s.Identity.Resolve(ctx, childHash)
	if err != nil {
		return LocationSummary{}, err
	}
	return s.locationSummary(ctx, child.ID, r, limit)
}

func (s *AggregationService) locationSummary(ctx context.Context, childID uint, r DateRange, limit int) (LocationSummary, error) {
	if limit <= 0 {
		limit = DefaultLocationLimit
	}
	samples, err := s.LocationRepo.FindRecent(ctx, childID, r.Start, r.until(), limit)
	if err != nil {
		return LocationSummary{}, storageError("load locations", err)
	}
	summary := LocationSummary{Samples: samples}
	if summary.Samples == nil {
		summary.Samples = []models.LocationSample{}
	}
	if len(samples) > 0 {
		latest := samples[0]
		summary.LatestLabel = LocationLabel(ctx, s.Geocoder, latest.Latitude, latest.Longitude)
	}
	return summary, nil
}

func (s *AggregationService) SiteAccessStats(ctx context.Context, childHash string, r DateRange, recent int) (SiteAccessStats, error) {
	child, err := s.Identity.Resolve(ctx, childHash)
	if err != nil {
		return SiteAccessStats{}, err
	}
	return s.siteAccessStats(ctx, child.ID, r, recent)
}

func (s *AggregationService) siteAccessStats(ctx context.Context, childID uint, r DateRange, recent int) (SiteAccessStats, error) {
	counts, err := s.SiteAccessRepo.CountInRange(ctx, childID, r.Start, r.until())
	if err != nil {
		return SiteAccessStats{}, storageError("count site access", err)
	}
	stats := SiteAccessStats{
		Total:    counts.Total,
		Blocked:  counts.Blocked,
		Accessed: counts.Accessed,
		Recent:   []models.SiteAccessEvent{},
	}
	if recent <= 0 {
		recent = DefaultRecentSiteLogs
	}
	events, err := s.SiteAccessRepo.FindRecent(ctx, childID, r.Start, r.until(), recent)
	if err != nil {
		return SiteAccessStats{}, storageError("load site access", err)
	}
	if events != nil {
		stats.Recent = events
	}
	return stats, nil
}

// Dashboard assembles every rollup for one child in one read.
func (s *AggregationService) Dashboard(ctx context.Context, childHash string, q DashboardQuery) (Dashboard, error) {
	child, err := s.Identity.Resolve(ctx, childHash)
	if err != nil {
		return Dashboard{}, err
	}
	r, err := s.Range(q.Start, q.End)
	if err != nil {
		return Dashboard{}, err
	}

	records, err := s.records(ctx, child.ID, r)
	if err != nil {
		return Dashboard{}, err
	}
	breakdown := AppBreakdown(records)

	dashboard := Dashboard{
		ChildHash:    child.ChildHash,
		ChildName:    child.DisplayName(),
		StartDate:    r.Start.Format(models.DateLayout),
		EndDate:      r.End.Format(models.DateLayout),
		DailyTotals:  DailyTotals(records),
		TopApps:      s.describe(ctx, TopApps(breakdown, q.TopN)),
		AppBreakdown: s.describe(ctx, usages(breakdown)),
	}
	for _, day := range dashboard.DailyTotals {
		dashboard.TotalSeconds += day.TotalSeconds
	}

	if dashboard.Locations, err = s.locationSummary(ctx, child.ID, r, q.Locations); err != nil {
		return Dashboard{}, err
	}
	if dashboard.SiteAccess, err = s.siteAccessStats(ctx, child.ID, r, DefaultRecentSiteLogs); err != nil {
		return Dashboard{}, err
	}
	return dashboard, nil
}

// describe attaches catalog names and icons. Unknown domains keep the fallback name.
func (s *AggregationService) describe(ctx context.Context, apps []AppUsage) []AppUsage {
	domains := make([]string, 0, len(apps))
	for _, app := range apps {
		if !app.Placeholder {
			domains = append(domains, app.Domain)
		}
	}
	known := make(map[string]models.App)
	if len(domains) > 0 && s.AppRepo != nil {
		if rows, err := s.AppRepo.FindByDomains(ctx, domains); err == nil {
			for _, row := range rows {
				known[row.Domain] = row
			}
		}
	}
	for i := range apps {
		if apps[i].Placeholder {
			continue
		}
		if row, ok := known[apps[i].Domain]; ok {
			apps[i].Name = row.AppName
			apps[i].IconURL = row.IconURL
			apps[i].BlockedCount = row.BlockedCount
		}
		if apps[i].Name == "" {
			apps[i].Name = FallbackAppName(apps[i].Domain)
		}
	}
	return apps
}

// DailyTotals lists one entry per record in chronological order.
func DailyTotals(records []models.ScreenTimeRecord) []DailyTotal {
	sorted := make([]models.ScreenTimeRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	totals := make([]DailyTotal, 0, len(sorted))
	for _, record := range sorted {
		totals = append(totals, DailyTotal{
			Date:         record.DateString(),
			TotalSeconds: record.TotalScreenTime,
		})
	}
	return totals
}

// AppBreakdown sums seconds per app across records, in order of first appearance.
func AppBreakdown(records []models.ScreenTimeRecord) []AppSeconds {
	var acc breakdownAccumulator
	for _, record := range records {
		for _, entry := range RecordBreakdown(record) {
			acc.add(entry.Domain, entry.Seconds)
		}
	}
	return acc.result()
}

// RecordBreakdown reads one record's per-app seconds. Hour buckets win whenever
// the record has any; the legacy JSON map is only read for records without them.
func RecordBreakdown(record models.ScreenTimeRecord) []AppSeconds {
	if len(record.AppScreenTimes) == 0 {
		return LegacyBreakdown(record.AppWiseData)
	}
	var acc breakdownAccumulator
	for _, bucket := range record.AppScreenTimes {
		acc.add(bucket.App.Domain, bucket.Seconds)
	}
	return acc.result()
}

// LegacyBreakdown parses {"<domain>": {"<hour>": seconds}} or {"<domain>": seconds}.
// Entries are read with the same rules ingestion applies to hour buckets.
func LegacyBreakdown(raw []byte) []AppSeconds {
	if len(raw) == 0 {
		return nil
	}
	var apps map[string]json.RawMessage
	if err := json.Unmarshal(raw, &apps); err != nil {
		return nil
	}
	domains := make([]string, 0, len(apps))
	for domain := range apps {
		domains = append(domains, domain)
	}
	sort.Strings(domains)

	var acc breakdownAccumulator
	for _, domain := range domains {
		value := apps[domain]
		if seconds, ok := parseSeconds(value); ok {
			acc.add(domain, seconds)
			continue
		}
		hourly, _, ok := hourlySeconds(value)
		if !ok {
			continue
		}
		var total int64
		for _, seconds := range hourly {
			total += seconds
		}
		acc.add(domain, total)
	}
	return acc.result()
}

// TopApps ranks apps by seconds (ties keep breakdown order) and keeps the first n.
// An empty breakdown yields exactly one placeholder entry.
func TopApps(breakdown []AppSeconds, n int) []AppUsage {
	if n <= 0 {
		n = DefaultTopApps
	}
	if len(breakdown) == 0 {
		return []AppUsage{{Name: NoDataAppName, Placeholder: true}}
	}
	ranked := usages(breakdown)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Seconds > ranked[j].Seconds
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func usages(breakdown []AppSeconds) []AppUsage {
	apps := make([]AppUsage, 0, len(breakdown))
	for _, entry := range breakdown {
		apps = append(apps, AppUsage{Domain: entry.Domain, Seconds: entry.Seconds})
	}
	return apps
}

type breakdownAccumulator struct {
	order   []string
	seconds map[string]int64
}

func (a *breakdownAccumulator) add(domain string, seconds int64) {
	if a.seconds == nil {
		a.seconds = make(map[string]int64)
	}
	if _, seen := a.seconds[domain]; !seen {
		a.order = append(a.order, domain)
	}
	a.seconds[domain] += seconds
}

func (a *breakdownAccumulator) result() []AppSeconds {
	out := make([]AppSeconds, 0, len(a.order))
	for _, domain := range a.order {
		out = append(out, AppSeconds{Domain: domain, Seconds: a.seconds[domain]})
	}
	return out
}
