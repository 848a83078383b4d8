package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrUnsupportedWAV is returned by [DecodeWAV] for input that is not
// 16-bit PCM WAV.
var ErrUnsupportedWAV = errors.New("audio: unsupported wav format")

const bitsPerSample = 16

// EncodeWAV wraps the clip's PCM in a 44-byte RIFF/WAVE header.
func EncodeWAV(c Clip) []byte {
	byteRate := c.SampleRate * c.Channels * bitsPerSample / 8
	blockAlign := c.Channels * bitsPerSample / 8
	dataSize := len(c.PCM)

	buf := make([]byte, 44+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(c.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(c.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], c.PCM)
	return buf
}

// DecodeWAV reads a RIFF/WAVE stream holding 16-bit PCM. Chunks other than
// "fmt " and "data" are skipped.
func DecodeWAV(r io.Reader) (Clip, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Clip{}, fmt.Errorf("audio: read wav header: %w", err)
	}
	if !bytes.Equal(hdr[0:4], []byte("RIFF")) || !bytes.Equal(hdr[8:12], []byte("WAVE")) {
		return Clip{}, fmt.Errorf("%w: missing RIFF/WAVE magic", ErrUnsupportedWAV)
	}

	var (
		clip    Clip
		haveFmt bool
	)
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return Clip{}, fmt.Errorf("audio: read wav chunk: %w", err)
		}
		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return Clip{}, fmt.Errorf("%w: fmt chunk of %d bytes", ErrUnsupportedWAV, size)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return Clip{}, fmt.Errorf("audio: read wav fmt chunk: %w", err)
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			bits := binary.LittleEndian.Uint16(body[14:16])
			if format != 1 || bits != bitsPerSample {
				return Clip{}, fmt.Errorf("%w: format %d with %d bits per sample", ErrUnsupportedWAV, format, bits)
			}
			clip.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return Clip{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrUnsupportedWAV)
			}
			pcm, err := io.ReadAll(io.LimitReader(r, size))
			if err != nil {
				return Clip{}, fmt.Errorf("audio: read wav data: %w", err)
			}
			clip.PCM = pcm
			return clip, nil
		default:
			if _, err := io.CopyN(io.Discard, r, size+size%2); err != nil {
				return Clip{}, fmt.Errorf("audio: skip wav chunk %q: %w", id, err)
			}
		}
		if size%2 == 1 && id == "fmt " {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				return Clip{}, fmt.Errorf("audio: read wav fmt padding: %w", err)
			}
		}
	}
}
