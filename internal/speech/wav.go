package speech

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const wavHeaderSize = 44

// EncodeWAV wraps PCM audio in a RIFF/WAVE container.
func EncodeWAV(a *Audio) ([]byte, error) {
	if a.Empty() {
		return nil, ErrInvalidAudio
	}
	if a.SampleRate <= 0 || a.Channels <= 0 {
		return nil, ErrInvalidAudio
	}

	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(a.Data))

	byteRate := a.SampleRate * a.Channels * 2
	blockAlign := a.Channels * 2

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(a.Data)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(a.Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(a.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(16)) // bits per sample

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(a.Data)))
	buf.Write(a.Data)

	return buf.Bytes(), nil
}

// DecodeWAV extracts PCM audio from a RIFF/WAVE container. Only 16-bit
// PCM is accepted. Streamed files that declare an unknown data length
// (espeak writing to a pipe does this) are read to the end.
func DecodeWAV(data []byte) (*Audio, error) {
	if len(data) < wavHeaderSize {
		return nil, fmt.Errorf("%w: too short (%d bytes)", ErrInvalidAudio, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE magic", ErrInvalidAudio)
	}

	var (
		sampleRate int
		channels   int
		gotFmt     bool
	)

	// Walk chunks. Encoders disagree about what sits between fmt and
	// data (LIST, fact), so scan rather than assume fixed offsets.
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8

		switch id {
		case "fmt ":
			if body+16 > len(data) {
				return nil, fmt.Errorf("%w: truncated fmt chunk", ErrInvalidAudio)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, fmt.Errorf("%w: format %d", ErrUnsupportedWAV, format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if bits != 16 {
				return nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedWAV, bits)
			}
			gotFmt = true

		case "data":
			if !gotFmt {
				return nil, fmt.Errorf("%w: data before fmt", ErrInvalidAudio)
			}
			end := body + size
			if size == int(^uint32(0)) || end > len(data) {
				end = len(data)
			}
			pcm := data[body:end]
			if len(pcm)%2 != 0 {
				pcm = pcm[:len(pcm)-1]
			}
			return &Audio{
				Data:       pcm,
				SampleRate: sampleRate,
				Channels:   channels,
			}, nil
		}

		if size%2 != 0 {
			size++ // chunks are word-aligned
		}
		pos = body + size
	}

	return nil, fmt.Errorf("%w: no data chunk", ErrInvalidAudio)
}
