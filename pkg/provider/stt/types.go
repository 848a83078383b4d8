package stt

import (
	"strings"
	"time"
)

// Transcript represents a speech-to-text result.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal is false for interim results of streaming sessions.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). Zero if the
	// provider does not report confidence.
	Confidence float64

	// Words contains per-word detail when available.
	Words []WordDetail

	// Timestamp marks when the utterance started, relative to session start.
	Timestamp time.Duration

	// Duration is the length of the utterance.
	Duration time.Duration
}

// WordDetail holds per-word metadata from providers that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// Join concatenates the finals of a session into one transcript. Texts are
// trimmed and separated by a single space, words are appended in order and
// the confidence is the mean of the non-zero confidences.
func Join(finals []Transcript) Transcript {
	var (
		out   = Transcript{IsFinal: true}
		parts []string
		sum   float64
		n     int
	)
	for i, t := range finals {
		if s := strings.TrimSpace(t.Text); s != "" {
			parts = append(parts, s)
		}
		out.Words = append(out.Words, t.Words...)
		if t.Confidence > 0 {
			sum += t.Confidence
			n++
		}
		if i == 0 {
			out.Timestamp = t.Timestamp
		}
		out.Duration = t.Timestamp + t.Duration - out.Timestamp
	}
	out.Text = strings.Join(parts, " ")
	if n > 0 {
		out.Confidence = sum / float64(n)
	}
	return out
}
