package models

import (
	"time"

	"github.com/google/uuid"
)

// Image is a stored original photograph. Its ID is the derivative cache key
// prefix and never changes once assigned.
type Image struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	Title        string        `db:"title" json:"title"`
	OriginalPath string        `db:"original_path" json:"-"`
	Width        int           `db:"width" json:"width"`
	Height       int           `db:"height" json:"height"`
	Tags         []string      `db:"tags" json:"tags"`
	Color        string        `db:"dominant_color" json:"dominant_color,omitempty"`
	Metadata     PhotoMetadata `json:"metadata"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// PhotoMetadata is the camera and location data read from EXIF at
// ingestion. Every field is optional.
type PhotoMetadata struct {
	CameraModel  string     `db:"camera_model" json:"camera_model,omitempty"`
	LensModel    string     `db:"lens_model" json:"lens_model,omitempty"`
	ISOSpeed     *int       `db:"iso_speed" json:"iso_speed,omitempty"`
	Aperture     *float64   `db:"aperture_f_number" json:"aperture_f_number,omitempty"`
	ShutterSpeed *float64   `db:"shutter_speed" json:"shutter_speed,omitempty"` // seconds
	FocalLength  *float64   `db:"focal_length" json:"focal_length,omitempty"`   // mm
	Artist       string     `db:"artist" json:"artist,omitempty"`
	Copyright    string     `db:"copyright" json:"copyright,omitempty"`
	CaptureDate  *time.Time `db:"capture_date" json:"capture_date,omitempty"`
	Latitude     *float64   `db:"latitude" json:"latitude,omitempty"`
	Longitude    *float64   `db:"longitude" json:"longitude,omitempty"`
	Altitude     *float64   `db:"altitude" json:"altitude,omitempty"` // meters
}

// HasLocation reports whether both coordinates are known and not the 0,0
// placeholder some cameras write without a fix.
func (m PhotoMetadata) HasLocation() bool {
	if m.Latitude == nil || m.Longitude == nil {
		return false
	}
	return !(*m.Latitude == 0 && *m.Longitude == 0)
}

type Location struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}
