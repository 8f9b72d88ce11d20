package models

import (
	"time"

	"gorm.io/datatypes"
)

// DateLayout is the calendar-date format used on the wire and for bucketing.
const DateLayout = "2006-01-02"

// ScreenTimeRecord is the per-child, per-day screen time total.
// AppWiseData is the legacy {app: {hour: seconds}} map; new writes leave it empty
// and store AppScreenTime rows instead.
type ScreenTimeRecord struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	ChildID         uint            `json:"-" gorm:"not null;uniqueIndex:idx_screen_time_child_date,priority:1"`
	Child           Child           `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Date            time.Time       `json:"date" gorm:"type:date;not null;uniqueIndex:idx_screen_time_child_date,priority:2"`
	TotalScreenTime int64           `json:"total_screen_time" gorm:"not null;default:0"`
	AppWiseData     datatypes.JSON  `json:"app_wise_data,omitempty"`
	AppScreenTimes  []AppScreenTime `json:"-" gorm:"foreignKey:ScreenTimeID"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (ScreenTimeRecord) TableName() string {
	return "screen_times"
}

// DateString renders Date in DateLayout.
func (r ScreenTimeRecord) DateString() string {
	return r.Date.Format(DateLayout)
}

// AppScreenTime is one hour bucket of one app within a ScreenTimeRecord.
type AppScreenTime struct {
	ID           uint             `json:"id" gorm:"primaryKey"`
	ScreenTimeID uint             `json:"-" gorm:"not null;uniqueIndex:idx_app_screen_time_key,priority:1"`
	ScreenTime   ScreenTimeRecord `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	AppID        uint             `json:"-" gorm:"not null;uniqueIndex:idx_app_screen_time_key,priority:2"`
	App          App              `json:"app" gorm:"constraint:OnDelete:CASCADE"`
	Hour         int              `json:"hour" gorm:"not null;uniqueIndex:idx_app_screen_time_key,priority:3"`
	Seconds      int64            `json:"seconds" gorm:"not null;default:0"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// App is one catalog entry per package/domain identifier.
type App struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Domain       string    `json:"domain" gorm:"size:255;uniqueIndex;not null"`
	AppName      string    `json:"app_name" gorm:"size:255"`
	IconURL      string    `json:"icon_url"`
	BlockedCount int64     `json:"blocked_count" gorm:"not null;default:0"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
