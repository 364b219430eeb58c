package iccprofile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/image/riff"
	"golang.org/x/image/webp"
)

var (
	fccWEBP = riff.FourCC{'W', 'E', 'B', 'P'}
	fccVP8  = riff.FourCC{'V', 'P', '8', ' '}
	fccVP8L = riff.FourCC{'V', 'P', '8', 'L'}
	fccVP8X = riff.FourCC{'V', 'P', '8', 'X'}
	fccICCP = riff.FourCC{'I', 'C', 'C', 'P'}
)

const vp8xICCFlag = 0x20

type webpChunk struct {
	id   riff.FourCC
	data []byte
}

func readWebPChunks(data []byte) ([]webpChunk, error) {
	formType, r, err := riff.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if formType != fccWEBP {
		return nil, errors.New("riff stream is not webp")
	}

	var chunks []webpChunk
	for {
		id, _, chunkData, err := r.Next()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return nil, err
		}
		b, err := io.ReadAll(chunkData)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, webpChunk{id: id, data: b})
	}
}

func extractWebP(data []byte) []byte {
	chunks, err := readWebPChunks(data)
	if err != nil {
		return nil
	}
	for _, c := range chunks {
		if c.id == fccICCP {
			return c.data
		}
	}
	return nil
}

// embedWebP converts a simple (VP8/VP8L) file to the extended layout when
// needed and places an ICCP chunk right after VP8X.
func embedWebP(data, profile []byte) ([]byte, error) {
	chunks, err := readWebPChunks(data)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, errors.New("empty webp stream")
	}

	var vp8x webpChunk
	rest := make([]webpChunk, 0, len(chunks))
	switch chunks[0].id {
	case fccVP8X:
		if len(chunks[0].data) < 10 {
			return nil, errors.New("short VP8X chunk")
		}
		vp8x = webpChunk{id: fccVP8X, data: append([]byte(nil), chunks[0].data...)}
		for _, c := range chunks[1:] {
			if c.id != fccICCP {
				rest = append(rest, c)
			}
		}
	case fccVP8, fccVP8L:
		cfg, err := webp.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		// The alpha flag stays clear: VP8L carries alpha in its own header
		// and x/image/webp rejects VP8X+alpha in front of a VP8L chunk.
		vp8x = webpChunk{id: fccVP8X, data: make([]byte, 10)}
		putUint24(vp8x.data[4:7], uint32(cfg.Width-1))
		putUint24(vp8x.data[7:10], uint32(cfg.Height-1))
		rest = chunks
	default:
		return nil, errors.New("webp stream has no image chunk")
	}
	vp8x.data[0] |= vp8xICCFlag

	out := []webpChunk{vp8x, {id: fccICCP, data: profile}}
	return writeWebP(append(out, rest...)), nil
}

func writeWebP(chunks []webpChunk) []byte {
	var body bytes.Buffer
	body.Write(fccWEBP[:])
	for _, c := range chunks {
		body.Write(c.id[:])
		_ = binary.Write(&body, binary.LittleEndian, uint32(len(c.data)))
		body.Write(c.data)
		if len(c.data)%2 == 1 {
			body.WriteByte(0)
		}
	}

	out := make([]byte, 0, 8+body.Len())
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(body.Len()))
	return append(out, body.Bytes()...)
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}
