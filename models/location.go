package models

import "time"

// LocationSample stores a single device position.
type LocationSample struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ChildID   uint      `json:"-" gorm:"not null;index:idx_location_child_time,priority:1"`
	Child     Child     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index:idx_location_child_time,priority:2"`
	Latitude  float64   `json:"latitude" gorm:"not null"`
	Longitude float64   `json:"longitude" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (LocationSample) TableName() string {
	return "location_history"
}

// SiteAccessEvent records one allowed (Accessed=true) or blocked site visit.
type SiteAccessEvent struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ChildID   uint      `json:"-" gorm:"not null;index:idx_site_access_child_time,priority:1"`
	Child     Child     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index:idx_site_access_child_time,priority:2"`
	URL       string    `json:"url" gorm:"type:text;not null"`
	Accessed  bool      `json:"accessed"`
	CreatedAt time.Time `json:"created_at"`
}

func (SiteAccessEvent) TableName() string {
	return "site_access_logs"
}

// All lists every model for AutoMigrate, parents first.
func All() []interface{} {
	return []interface{}{
		&Child{},
		&Guardian{},
		&App{},
		&ScreenTimeRecord{},
		&AppScreenTime{},
		&LocationSample{},
		&SiteAccessEvent{},
	}
}
