package models

import "time"

// NotificationStatus records what happened to the alert sent for a sighting.
type NotificationStatus string

const (
	NotificationPending                 NotificationStatus = "pending"
	NotificationSent                    NotificationStatus = "sent"
	NotificationSkippedNotConfigured    NotificationStatus = "skipped_not_configured"
	NotificationSkippedInvalidRecipient NotificationStatus = "skipped_invalid_recipient"
	NotificationFailed                  NotificationStatus = "failed"
)

// Sighting is a logged camera match of a registered person.
// It corresponds to the 'sightings' table.
type Sighting struct {
	ID            uint     `gorm:"primaryKey;autoIncrement" json:"id"`
	PersonID      uint     `gorm:"not null;index" json:"person_id"`
	ImageFilename string   `gorm:"not null;column:image_filename" json:"image_filename"`
	Latitude      *float64 `gorm:"column:latitude" json:"latitude,omitempty"`
	Longitude     *float64 `gorm:"column:longitude" json:"longitude,omitempty"`

	MatchScore         int                `gorm:"not null;column:match_score" json:"match_score"`
	MatchDistance      float64            `gorm:"not null;column:match_distance" json:"match_distance"`
	NotificationStatus NotificationStatus `gorm:"not null;column:notification_status;default:'pending'" json:"notification_status"`
	NotificationDetail string             `gorm:"column:notification_detail" json:"notification_detail,omitempty"`
	SessionHash        string             `gorm:"column:session_hash;index" json:"-"`

	Timestamp time.Time `gorm:"not null;autoCreateTime" json:"timestamp"`

	Person *Person `gorm:"foreignKey:PersonID" json:"person,omitempty"` // Belongs to Person
}

// TableName explicitly sets the table name for GORM.
func (Sighting) TableName() string {
	return "sightings"
}
