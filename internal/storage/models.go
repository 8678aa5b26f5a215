package storage

import (
	"time"
)

type SensorStatus string

const (
	SensorStatusActive   SensorStatus = "active"
	SensorStatusArchived SensorStatus = "archived"
	// Rows created only by the mirror carry no status.
	SensorStatusNone SensorStatus = ""
)

// Sensor is the summary row of one physical device, keyed by MAC.
// Every field except MAC may be absent.
type Sensor struct {
	MAC         string       `db:"mac" json:"mac"`
	Name        *string      `db:"name" json:"name,omitempty"`
	Status      SensorStatus `db:"status" json:"status,omitempty"`
	Latitude    *float64     `db:"latitude" json:"latitude,omitempty"`
	Longitude   *float64     `db:"longitude" json:"longitude,omitempty"`
	Location    *string      `db:"location" json:"location,omitempty"`
	Battery     *float64     `db:"battery" json:"battery,omitempty"`
	Temperature *float64     `db:"temperature" json:"temperature,omitempty"`
	Humidity    *float64     `db:"humidity" json:"humidity,omitempty"`
	Dust        *float64     `db:"dust" json:"dust,omitempty"`
	CreatedBy   *string      `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt   *time.Time   `db:"created_at" json:"createdAt,omitempty"`
	UpdatedAt   *time.Time   `db:"updated_at" json:"updatedAt,omitempty"`
}

func (s Sensor) Archived() bool {
	return s.Status == SensorStatusArchived
}

// HistoryEntry is one timestamped reading. A device may report history
// before any sensor row exists for it.
type HistoryEntry struct {
	ID          string    `db:"id" json:"id"`
	MAC         string    `db:"mac" json:"mac"`
	Temperature *float64  `db:"temperature" json:"temperature,omitempty"`
	Humidity    *float64  `db:"humidity" json:"humidity,omitempty"`
	Dust        *float64  `db:"dust" json:"dust,omitempty"`
	Battery     *float64  `db:"battery" json:"battery,omitempty"`
	Latitude    *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude   *float64  `db:"longitude" json:"longitude,omitempty"`
	Location    *string   `db:"location" json:"location,omitempty"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

type User struct {
	UID          string     `db:"uid" json:"uid"`
	Email        string     `db:"email" json:"email"`
	Name         string     `db:"name" json:"name"`
	Role         string     `db:"role" json:"role"`
	PasswordHash string     `db:"password_hash" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	LastLogin    *time.Time `db:"last_login" json:"lastLogin,omitempty"`
}

// serverTimestamp is replaced by the current UTC time when a Patch is written.
type serverTimestamp struct{}

// ServerTimestamp marks a Patch value to be stamped at write time.
var ServerTimestamp = serverTimestamp{}

// Patch is a partial sensor write keyed by column name. A nil value clears
// the column; columns not present are left untouched.
type Patch map[string]any

// Columns a Patch may touch. mac is the key and never patched.
var sensorColumns = map[string]bool{
	"name":        true,
	"status":      true,
	"latitude":    true,
	"longitude":   true,
	"location":    true,
	"battery":     true,
	"temperature": true,
	"humidity":    true,
	"dust":        true,
	"created_by":  true,
	"created_at":  true,
	"updated_at":  true,
}
