package iccprofile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"

	pngstructure "github.com/dsoprea/go-png-image-structure"
	"github.com/klauspost/compress/zlib"
)

const (
	chunkIHDR = "IHDR"
	chunkICCP = "iCCP"

	iccProfileName = "ICC Profile"
)

func extractPNG(data []byte) []byte {
	var parser mediaParser = pngstructure.NewPngMediaParser()
	mc, err := parser.Parse(bytes.NewReader(data), len(data))
	if err != nil {
		return nil
	}
	cs, ok := mc.(*pngstructure.ChunkSlice)
	if !ok {
		return nil
	}

	for _, c := range cs.Chunks() {
		if c.Type != chunkICCP {
			continue
		}
		profile, err := decodeICCP(c.Data)
		if err != nil {
			return nil
		}
		return profile
	}
	return nil
}

// decodeICCP unpacks "name\x00 method zlib-data".
func decodeICCP(data []byte) ([]byte, error) {
	nul := bytes.IndexByte(data, 0)
	if nul < 1 || nul+2 > len(data) {
		return nil, errors.New("malformed iCCP chunk")
	}
	if data[nul+1] != 0 {
		return nil, errors.New("unknown iCCP compression method")
	}
	zr, err := zlib.NewReader(bytes.NewReader(data[nul+2:]))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// embedPNG inserts an iCCP chunk directly after IHDR, replacing any
// existing one.
func embedPNG(data, profile []byte) ([]byte, error) {
	const ihdrEnd = 8 + 4 + 4 + 13 + 4
	if len(data) < ihdrEnd || string(data[12:16]) != chunkIHDR {
		return nil, errors.New("png stream does not start with IHDR")
	}

	var payload bytes.Buffer
	payload.WriteString(iccProfileName)
	payload.Write([]byte{0, 0})
	zw, err := zlib.NewWriterLevel(&payload, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(profile); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	rest, err := dropChunks(data[ihdrEnd:], chunkICCP)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(data)+payload.Len()+12)
	out = append(out, data[:ihdrEnd]...)
	out = appendPNGChunk(out, chunkICCP, payload.Bytes())
	out = append(out, rest...)
	return out, nil
}

func appendPNGChunk(dst []byte, typ string, payload []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	start := len(dst)
	dst = append(dst, typ...)
	dst = append(dst, payload...)
	return binary.BigEndian.AppendUint32(dst, crc32.ChecksumIEEE(dst[start:]))
}

// dropChunks removes every chunk of type typ from a PNG chunk stream.
func dropChunks(stream []byte, typ string) ([]byte, error) {
	out := make([]byte, 0, len(stream))
	for off := 0; off < len(stream); {
		if off+8 > len(stream) {
			return nil, errors.New("truncated png chunk header")
		}
		size := int(binary.BigEndian.Uint32(stream[off : off+4]))
		end := off + 12 + size
		if end > len(stream) {
			return nil, errors.New("truncated png chunk")
		}
		if string(stream[off+4:off+8]) != typ {
			out = append(out, stream[off:end]...)
		}
		off = end
	}
	return out, nil
}
