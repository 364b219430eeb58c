package iccprofile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	jpegstructure "github.com/dsoprea/go-jpeg-image-structure"
)

const (
	markerAPP0 = 0xE0
	markerAPP2 = 0xE2

	// segment length field (2) + signature + sequence number + count
	maxJPEGChunk = 0xFFFF - 2 - len(jpegICCSignature) - 2
)

const jpegICCSignature = "ICC_PROFILE\x00"

func extractJPEG(data []byte) []byte {
	var parser mediaParser = jpegstructure.NewJpegMediaParser()
	mc, err := parser.Parse(bytes.NewReader(data), len(data))
	if err != nil {
		return nil
	}
	sl, ok := mc.(*jpegstructure.SegmentList)
	if !ok {
		return nil
	}

	chunks := make(map[int][]byte)
	count := 0
	for _, s := range sl.Segments() {
		if s.MarkerId != markerAPP2 || !bytes.HasPrefix(s.Data, []byte(jpegICCSignature)) {
			continue
		}
		header := len(jpegICCSignature)
		if len(s.Data) < header+2 {
			continue
		}
		seq, total := int(s.Data[header]), int(s.Data[header+1])
		if seq == 0 || total == 0 {
			continue
		}
		count = total
		chunks[seq] = s.Data[header+2:]
	}
	if count == 0 {
		return nil
	}

	var profile []byte
	for seq := 1; seq <= count; seq++ {
		chunk, ok := chunks[seq]
		if !ok {
			return nil
		}
		profile = append(profile, chunk...)
	}
	return profile
}

// embedJPEG writes profile as APP2 ICC_PROFILE segments right after SOI, or
// after a leading JFIF APP0 so that it stays the first segment.
func embedJPEG(data, profile []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, errors.New("jpeg stream too short")
	}

	insertAt := 2
	if len(data) >= 6 && data[2] == 0xFF && data[3] == markerAPP0 {
		insertAt = 4 + int(binary.BigEndian.Uint16(data[4:6]))
		if insertAt > len(data) {
			return nil, errors.New("truncated APP0 segment")
		}
	}

	count := (len(profile) + maxJPEGChunk - 1) / maxJPEGChunk
	if count > 255 {
		return nil, fmt.Errorf("icc profile of %d bytes does not fit in jpeg segments", len(profile))
	}

	var segments bytes.Buffer
	for i := 0; i < count; i++ {
		chunk := profile[i*maxJPEGChunk : min((i+1)*maxJPEGChunk, len(profile))]
		segments.Write([]byte{0xFF, markerAPP2})
		_ = binary.Write(&segments, binary.BigEndian, uint16(2+len(jpegICCSignature)+2+len(chunk)))
		segments.WriteString(jpegICCSignature)
		segments.Write([]byte{byte(i + 1), byte(count)})
		segments.Write(chunk)
	}

	out := make([]byte, 0, len(data)+segments.Len())
	out = append(out, data[:insertAt]...)
	out = append(out, segments.Bytes()...)
	out = append(out, data[insertAt:]...)
	return out, nil
}
