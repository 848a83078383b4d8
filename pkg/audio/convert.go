package audio

import (
	"fmt"
	"log/slog"
)

// Convert returns c converted to the target format. If the clip already
// matches the target it is returned unchanged.
// Conversion order: resample first, then channel convert.
func Convert(c Clip, target Format) Clip {
	if len(c.PCM)%2 != 0 {
		slog.Warn("audio: odd byte count in PCM data, dropping trailing byte",
			"bytes", len(c.PCM),
			"format", c.Format(),
		)
		c.PCM = c.PCM[:len(c.PCM)-1]
	}
	if c.Format() == target {
		return c
	}

	pcm := c.PCM
	if c.SampleRate != target.SampleRate {
		if c.Channels == 2 {
			pcm = resample(pcm, 2, c.SampleRate, target.SampleRate)
		} else {
			pcm = resample(pcm, 1, c.SampleRate, target.SampleRate)
		}
	}
	switch {
	case c.Channels == 1 && target.Channels == 2:
		pcm = MonoToStereo(pcm)
	case c.Channels == 2 && target.Channels == 1:
		pcm = StereoToMono(pcm)
	}
	return Clip{PCM: pcm, SampleRate: target.SampleRate, Channels: target.Channels}
}

// MonoToStereo duplicates each int16 mono sample into a stereo L+R pair.
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		j := i * 2
		out[j], out[j+1] = pcm[i], pcm[i+1]
		out[j+2], out[j+3] = pcm[i], pcm[i+1]
	}
	return out
}

// StereoToMono averages L+R per stereo frame to produce mono output.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(sampleAt(pcm, i*2))
		r := int32(sampleAt(pcm, i*2+1))
		putSample(out, i, clamp16((l+r)/2))
	}
	return out
}

// resample converts interleaved int16 PCM with the given channel count from
// srcRate to dstRate using linear interpolation.
func resample(pcm []byte, channels, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || channels <= 0 {
		return pcm
	}
	frameBytes := 2 * channels
	srcFrames := len(pcm) / frameBytes
	if srcFrames == 0 {
		return pcm
	}
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*frameBytes)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstFrames {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		next := idx + 1
		if next >= srcFrames {
			next = idx
		}
		for ch := range channels {
			s0 := float64(sampleAt(pcm, idx*channels+ch))
			s1 := float64(sampleAt(pcm, next*channels+ch))
			putSample(out, i*channels+ch, int16(s0*(1-frac)+s1*frac))
		}
	}
	return out
}

// ToFloat32Mono converts little-endian int16 PCM to mono float32 samples in
// [-1, 1], averaging channels when the input is multi-channel.
func ToFloat32Mono(c Clip) []float32 {
	channels := max(c.Channels, 1)
	frames := len(c.PCM) / (2 * channels)
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += float32(sampleAt(c.PCM, i*channels+ch)) / 32768.0
		}
		out[i] = sum / float32(channels)
	}
	return out
}

func sampleAt(pcm []byte, i int) int16 {
	return int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
}

func putSample(pcm []byte, i int, s int16) {
	pcm[i*2] = byte(s)
	pcm[i*2+1] = byte(s >> 8)
}

func clamp16(v int32) int16 {
	return int16(min(max(v, -32768), 32767))
}

// String returns a human-readable form such as "48000Hz stereo".
func (f Format) String() string {
	ch := "mono"
	switch {
	case f.Channels == 2:
		ch = "stereo"
	case f.Channels > 2:
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}
