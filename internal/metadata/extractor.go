// Package metadata reads camera settings and GPS position from the EXIF
// block of an original photograph.
package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"photopipe/internal/logger"
	"photopipe/internal/models"
)

const (
	exifIfdPath = "IFD/Exif"    // 0x8769
	gpsIfdPath  = "IFD/GPSInfo" // 0x8825
)

type Extractor struct {
	log *logrus.Entry
}

func NewExtractor(log logrus.FieldLogger) *Extractor {
	return &Extractor{log: logger.Component(log, "metadata")}
}

// Extract returns whatever metadata can be read from data. It never fails:
// missing or malformed EXIF leaves the corresponding fields unset.
func (e *Extractor) Extract(data []byte) (meta models.PhotoMetadata) {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithField("panic", r).Warn("exif parser panicked, metadata left empty")
			meta = models.PhotoMetadata{}
		}
	}()

	tags, gps, err := ReadTags(data)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			e.log.Debug("no exif data found")
		} else {
			e.log.WithError(err).Warn("failed to read exif data")
		}
		return meta
	}

	return e.FromTags(tags, gps)
}

func (e *Extractor) apply(m *models.PhotoMetadata, tags Tags) {
	for name, value := range tags {
		set, known := fieldMap[name]
		if !known {
			continue
		}
		if !set(m, value) {
			e.log.WithFields(logrus.Fields{"tag": name, "value": fmt.Sprintf("%v", value)}).
				Warn("unparseable exif value, field left unset")
		}
	}

	if s, ok := shutterSpeed(tags); ok {
		m.ShutterSpeed = &s
	}
}

// FromTags builds metadata from decoded tag tables. tags is the IFD0 table
// with the Exif sub-IFD already merged over it; gps is the GPS IFD.
func (e *Extractor) FromTags(tags, gps Tags) models.PhotoMetadata {
	var meta models.PhotoMetadata
	e.apply(&meta, tags)

	pos, err := gpsPosition(gps)
	if err != nil {
		e.log.WithError(err).Warn("failed to convert gps coordinates")
	}
	meta.Latitude = pos.Latitude
	meta.Longitude = pos.Longitude
	meta.Altitude = pos.Altitude
	return meta
}

// Dimensions reports the pixel size of the encoded image in data.
func (e *Extractor) Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("metadata.Dimensions: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// ReadTags locates the EXIF block in data and returns the IFD0 tags with the
// private Exif IFD merged over them, and the GPS IFD tags separately.
func ReadTags(data []byte) (tags Tags, gps Tags, err error) {
	const op = "metadata.ReadTags"

	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	ti := exif.NewTagIndex()

	_, index, err := exif.Collect(im, ti, rawExif)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	tags = readIfd(index.RootIfd)
	if exifIfd, err := exif.FindIfdFromRootIfd(index.RootIfd, exifIfdPath); err == nil {
		tags.Merge(readIfd(exifIfd))
	}

	gps = Tags{}
	if gpsIfd, err := exif.FindIfdFromRootIfd(index.RootIfd, gpsIfdPath); err == nil {
		gps = readIfd(gpsIfd)
	}
	return tags, gps, nil
}

func readIfd(ifd *exif.Ifd) Tags {
	tags := Tags{}
	if ifd == nil {
		return tags
	}
	for _, ite := range ifd.Entries() {
		if ite.ChildIfdPath() != "" {
			continue
		}
		name := ite.TagName()
		if name == "" {
			continue
		}
		value, err := ite.Value()
		if err != nil {
			continue
		}
		tags[name] = value
	}
	return tags
}
