package metadata

import (
	"fmt"
	"strings"

	"photopipe/internal/rational"
)

const (
	tagGPSLatitude     = "GPSLatitude"
	tagGPSLatitudeRef  = "GPSLatitudeRef"
	tagGPSLongitude    = "GPSLongitude"
	tagGPSLongitudeRef = "GPSLongitudeRef"
	tagGPSAltitude     = "GPSAltitude"
)

// ToDecimal converts a degrees/minutes/seconds triple to decimal degrees.
// South and west references give negative values.
func ToDecimal(dms any, ref string) (float64, error) {
	parts, ok := rational.Elements(dms)
	if !ok || len(parts) < 3 {
		return 0, fmt.Errorf("metadata.ToDecimal: expected degrees, minutes, seconds, got %v", dms)
	}

	decimal := rational.ToFloat(parts[0]) +
		rational.ToFloat(parts[1])/60 +
		rational.ToFloat(parts[2])/3600

	switch strings.ToUpper(strings.TrimSpace(strings.Trim(ref, "\x00"))) {
	case "S", "W":
		decimal = -decimal
	}
	return decimal, nil
}

// Position is a decoded GPS fix. Lat/Lon are set together or not at all.
type Position struct {
	Latitude  *float64
	Longitude *float64
	Altitude  *float64
}

// gpsPosition reads the GPS IFD entries. Both coordinates need a value and a
// reference or neither is reported.
func gpsPosition(gps Tags) (Position, error) {
	var pos Position

	if alt, ok := gps[tagGPSAltitude]; ok {
		if f, ok := rational.Parse(alt); ok {
			pos.Altitude = &f
		}
	}

	lat, okLat := gps[tagGPSLatitude]
	latRef, okLatRef := stringValue(gps[tagGPSLatitudeRef])
	lon, okLon := gps[tagGPSLongitude]
	lonRef, okLonRef := stringValue(gps[tagGPSLongitudeRef])
	if !okLat || !okLatRef || !okLon || !okLonRef {
		return pos, nil
	}

	latitude, err := ToDecimal(lat, latRef)
	if err != nil {
		return pos, err
	}
	longitude, err := ToDecimal(lon, lonRef)
	if err != nil {
		return pos, err
	}
	pos.Latitude = &latitude
	pos.Longitude = &longitude
	return pos, nil
}
