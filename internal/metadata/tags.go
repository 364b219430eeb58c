package metadata

import (
	"math"
	"strings"
	"time"

	"photopipe/internal/models"
	"photopipe/internal/rational"
)

// Tags maps EXIF tag names to the raw values go-exif decoded for them.
type Tags map[string]any

// Merge copies every entry of other over t.
func (t Tags) Merge(other Tags) {
	for k, v := range other {
		t[k] = v
	}
}

const (
	tagExposureTime      = "ExposureTime"      // 0x829a (33434)
	tagShutterSpeedValue = "ShutterSpeedValue" // 0x9201 (37377), APEX

	exifDateLayout = "2006:01:02 15:04:05"
)

// fieldSetter stores one decoded tag value into m. It returns false when
// the value cannot be interpreted.
type fieldSetter func(m *models.PhotoMetadata, value any) bool

var fieldMap = map[string]fieldSetter{
	"Model":     setString(func(m *models.PhotoMetadata, s string) { m.CameraModel = s }),
	"LensModel": setString(func(m *models.PhotoMetadata, s string) { m.LensModel = s }),
	"Artist":    setString(func(m *models.PhotoMetadata, s string) { m.Artist = s }),
	"Copyright": setString(func(m *models.PhotoMetadata, s string) { m.Copyright = s }),
	"ISOSpeedRatings": func(m *models.PhotoMetadata, value any) bool {
		// SHORT with count N; the first value is the one in effect.
		if items, isSeq := rational.Elements(value); isSeq && len(items) > 0 {
			value = items[0]
		}
		f, ok := rational.Parse(value)
		if !ok {
			return false
		}
		iso := int(math.Round(f))
		m.ISOSpeed = &iso
		return true
	},
	"FNumber": setFloat(func(m *models.PhotoMetadata, f *float64) { m.Aperture = f }),
	"FocalLength": setFloat(func(m *models.PhotoMetadata, f *float64) { m.FocalLength = f }),
	"DateTimeOriginal": func(m *models.PhotoMetadata, value any) bool {
		s, ok := stringValue(value)
		if !ok {
			return false
		}
		ts, err := time.Parse(exifDateLayout, s)
		if err != nil {
			return false
		}
		m.CaptureDate = &ts
		return true
	},
}

func setString(assign func(*models.PhotoMetadata, string)) fieldSetter {
	return func(m *models.PhotoMetadata, value any) bool {
		s, ok := stringValue(value)
		if !ok {
			return false
		}
		assign(m, s)
		return true
	}
}

func setFloat(assign func(*models.PhotoMetadata, *float64)) fieldSetter {
	return func(m *models.PhotoMetadata, value any) bool {
		f, ok := rational.Parse(value)
		if !ok {
			return false
		}
		assign(m, &f)
		return true
	}
}

func stringValue(value any) (string, bool) {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return "", false
	}
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	return s, s != ""
}

// shutterSpeed prefers ExposureTime and falls back to the APEX encoded
// ShutterSpeedValue.
func shutterSpeed(tags Tags) (float64, bool) {
	if v, ok := tags[tagExposureTime]; ok {
		if f, ok := rational.Parse(v); ok && f > 0 {
			return f, true
		}
	}
	if v, ok := tags[tagShutterSpeedValue]; ok {
		if apex, ok := rational.Parse(v); ok {
			return 1 / math.Pow(2, apex), true
		}
	}
	return 0, false
}
