package models

import "time"

// Child is owned by the account system; ingestion only reads it through ChildHash.
type Child struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	ChildHash   string     `json:"child_hash" gorm:"size:64;uniqueIndex;not null"`
	FirstName   string     `json:"first_name" gorm:"size:150"`
	LastName    string     `json:"last_name" gorm:"size:150"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty" gorm:"type:date"`
	IsActive    bool       `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Guardian can watch every child linked to it.
type Guardian struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Email       string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	FullName    string    `json:"full_name" gorm:"size:255"`
	Lang        string    `json:"lang" gorm:"size:8"`
	DeviceToken string    `json:"-"` // FCM registration token
	Children    []Child   `json:"children,omitempty" gorm:"many2many:guardian_children;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time `json:"created_at"`
}

func (c Child) DisplayName() string {
	name := c.FirstName
	if c.LastName != "" {
		if name != "" {
			name += " "
		}
		name += c.LastName
	}
	if name == "" {
		return c.ChildHash
	}
	return name
}
