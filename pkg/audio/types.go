// Package audio holds the PCM clip type shared by the speech-to-text
// providers together with WAV encoding and a few signal helpers.
//
// All PCM in this package is signed 16-bit little-endian, interleaved when
// there is more than one channel.
package audio

import (
	"math"
	"time"
)

// Format describes the sample rate and channel count of PCM audio.
type Format struct {
	SampleRate int
	Channels   int
}

// Clip is a complete recording held in memory.
type Clip struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// Format returns the clip's sample rate and channel count.
func (c Clip) Format() Format {
	return Format{SampleRate: c.SampleRate, Channels: c.Channels}
}

// Duration returns the playback length of the clip. A clip without a valid
// format has zero duration.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.PCM) / (2 * c.Channels)
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// RMS returns the root-mean-square energy of int16 PCM, normalised to
// [0, 1]. Empty input has zero energy.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		s := float64(sampleAt(pcm, i)) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// TrimSilence drops leading and trailing windows whose RMS energy is below
// threshold. Windows are 20 ms long. A clip that is silent throughout comes
// back empty.
func TrimSilence(c Clip, threshold float64) Clip {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return c
	}
	window := c.SampleRate / 50 * c.Channels * 2
	if window == 0 || len(c.PCM) <= window {
		if RMS(c.PCM) < threshold {
			c.PCM = nil
		}
		return c
	}

	frame := 2 * c.Channels
	start, end := 0, len(c.PCM)-len(c.PCM)%frame
	for start < end && RMS(c.PCM[start:min(start+window, end)]) < threshold {
		start += window
	}
	for end > start && RMS(c.PCM[max(end-window, start):end]) < threshold {
		end -= window
	}
	if start >= end {
		c.PCM = nil
		return c
	}
	c.PCM = c.PCM[start:end]
	return c
}
