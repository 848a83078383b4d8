package scoring

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned when the reference text is empty or holds no
// words to score against.
var ErrInvalidInput = errors.New("scoring: invalid input")

// ErrorKind classifies a reading mistake.
type ErrorKind int

const (
	// Substitution: the reader said a different word than the one written.
	Substitution ErrorKind = iota + 1
	// Omission: the reader skipped a written word.
	Omission
	// Insertion: the reader said a word that is not in the text.
	Insertion
)

// String returns the stable name of k used in storage and JSON output.
func (k ErrorKind) String() string {
	switch k {
	case Substitution:
		return "substitution"
	case Omission:
		return "omission"
	case Insertion:
		return "insertion"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (k ErrorKind) MarshalText() ([]byte, error) {
	switch k {
	case Substitution, Omission, Insertion:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("scoring: marshal unknown error kind %d", int(k))
	}
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (k *ErrorKind) UnmarshalText(b []byte) error {
	parsed, err := ParseErrorKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseErrorKind is the inverse of [ErrorKind.String].
func ParseErrorKind(s string) (ErrorKind, error) {
	switch s {
	case "substitution":
		return Substitution, nil
	case "omission":
		return Omission, nil
	case "insertion":
		return Insertion, nil
	default:
		return 0, fmt.Errorf("scoring: unknown error kind %q", s)
	}
}

// DefaultSeverity is the severity given to every error. Readers are young
// children, so no mistake is weighted above the lowest level.
const DefaultSeverity = 1

// PronunciationError is one classified mismatch between the reference text
// and what was heard.
type PronunciationError struct {
	Kind ErrorKind `json:"kind"`

	// Expected is the reference word. Empty for insertions.
	Expected string `json:"expected,omitempty"`

	// Observed is the transcribed word. Empty for omissions.
	Observed string `json:"observed,omitempty"`

	// Position indexes the reference token sequence. Insertions point at the
	// reference token they precede, or the last one when they trail the text.
	Position int `json:"position"`

	Severity int `json:"severity"`

	// Similarity is the word similarity for substitutions, 0 otherwise.
	Similarity float64 `json:"similarity"`
}

// TargetWord is the word a learner should practise for e: the expected word
// for substitutions and omissions, the observed word for insertions.
func (e PronunciationError) TargetWord() string {
	switch e.Kind {
	case Substitution, Omission:
		return e.Expected
	case Insertion:
		return e.Observed
	default:
		return ""
	}
}

// WordAccuracy reports the per-word accuracy stored alongside an error:
// the similarity as a percentage when both words are known, else 0.
func (e PronunciationError) WordAccuracy() float64 {
	if e.Expected == "" || e.Observed == "" {
		return 0
	}
	return e.Similarity * 100
}
