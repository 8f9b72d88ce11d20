package models

import "encoding/json"

// Ingest payloads. Pointer fields distinguish "missing" from zero values so
// validation can name the absent keys.

// ScreenTimeInfo is the screen_time envelope body.
// AppWiseData is {"<domain>": {"<hour>": <seconds>}} kept raw so a malformed
// entry only skips that entry.
type ScreenTimeInfo struct {
	Date            *string                    `json:"date"`
	TotalScreenTime *int64                     `json:"total_screen_time"`
	AppWiseData     map[string]json.RawMessage `json:"app_wise_data"`
}

// LocationInfo is the location envelope body.
type LocationInfo struct {
	Timestamp *string  `json:"timestamp"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// SiteAccessInfo is the site_access envelope body. Logs must be a JSON array.
type SiteAccessInfo struct {
	Logs json.RawMessage `json:"logs"`
}

// SiteAccessEntry is one element of SiteAccessInfo.Logs.
type SiteAccessEntry struct {
	Timestamp *string `json:"timestamp"`
	URL       *string `json:"url"`
	Accessed  *bool   `json:"accessed"`
}

// IngestRequest is the body of the stateless endpoint.
type IngestRequest struct {
	ChildHash      string          `json:"child_hash"`
	ScreenTimeInfo json.RawMessage `json:"screen_time_info"`
	LocationInfo   json.RawMessage `json:"location_info"`
	SiteAccessInfo json.RawMessage `json:"site_access_info"`
}
