package derivative

import (
	"errors"
	"fmt"
	"strings"
)

type Format int

const (
	WEBP Format = iota + 1
	JPEG
	PNG
)

var (
	ErrInvalidRequest = errors.New("invalid derivative request")
	ErrDecode         = errors.New("source cannot be decoded")
	ErrEncode         = errors.New("derivative cannot be encoded")
	ErrFilesystem     = errors.New("derivative cannot be stored")
)

// Formats lists every supported output format.
var Formats = []Format{WEBP, JPEG, PNG}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "webp":
		return WEBP, nil
	case "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	}
	return 0, fmt.Errorf("%w: unknown format %q", ErrInvalidRequest, s)
}

func (f Format) String() string {
	switch f {
	case WEBP:
		return "webp"
	case JPEG:
		return "jpeg"
	case PNG:
		return "png"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Ext is the file extension used for cached files, without the dot.
func (f Format) Ext() string {
	if f == JPEG {
		return "jpg"
	}
	return f.String()
}

func (f Format) ContentType() string {
	switch f {
	case WEBP:
		return "image/webp"
	case JPEG:
		return "image/jpeg"
	case PNG:
		return "image/png"
	}
	return "application/octet-stream"
}

func (f Format) valid() bool {
	return f >= WEBP && f <= PNG
}

// Request identifies one derivative: a subject rendered at a maximum width
// in a target format.
type Request struct {
	SubjectID string
	Width     int
	Format    Format
}

func (r Request) Validate() error {
	if r.SubjectID == "" || strings.ContainsAny(r.SubjectID, `/\`) || strings.Contains(r.SubjectID, "..") {
		return fmt.Errorf("%w: bad subject id %q", ErrInvalidRequest, r.SubjectID)
	}
	if r.Width <= 0 {
		return fmt.Errorf("%w: width must be positive, got %d", ErrInvalidRequest, r.Width)
	}
	if !r.Format.valid() {
		return fmt.Errorf("%w: unknown format %v", ErrInvalidRequest, r.Format)
	}
	return nil
}

// FileName is {subject_id}_{width}.{ext}.
func (r Request) FileName() string {
	return fmt.Sprintf("%s_%d.%s", r.SubjectID, r.Width, r.Format.Ext())
}
