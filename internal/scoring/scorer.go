// Package scoring compares what a student read aloud against the text they
// were asked to read.
//
// A call to [Scorer.Score] runs these steps:
//
//  1. Both texts are lowercased, whitespace-collapsed and split into word and
//     punctuation tokens. Comparison uses diacritic-free forms; reported words
//     keep their accents.
//  2. Consecutive repeated words in the transcription are collapsed so that
//     stutters are not reported as insertions.
//  3. The token streams are aligned with a longest-matching-block diff.
//  4. Each aligned segment is classified. Replaced words that are similar
//     enough count as read correctly; near misses earn partial credit and are
//     still reported so that they reach remediation.
//  5. The raw accuracy is passed through [Curve], a forgiving adjustment for
//     young readers, and the reading rate is derived from the duration.
//
// Punctuation is never scored and never reported.
//
// Scoring is pure: a [Scorer] holds only configuration, so one value may be
// shared by any number of goroutines.
package scoring

import (
	"fmt"
	"strings"
	"time"
)

// Result is the outcome of scoring one reading.
type Result struct {
	// Accuracy is the published percentage after [Curve], in [50, 100].
	Accuracy float64 `json:"accuracy"`

	// RawAccuracy is the percentage of reference words read correctly,
	// before any adjustment.
	RawAccuracy float64 `json:"raw_accuracy"`

	// WordsPerMinute counts transcribed words against the audio duration.
	// Zero when the duration is unknown.
	WordsPerMinute float64 `json:"words_per_minute"`

	// Errors lists mistakes in reference order.
	Errors []PronunciationError `json:"errors"`

	ReferenceWords  int `json:"reference_words"`
	HypothesisWords int `json:"hypothesis_words"`
}

// Option is a functional option for configuring a [Scorer].
type Option func(*Scorer)

// WithSimilarity replaces the word similarity metric. Default: [Ratio].
func WithSimilarity(fn SimilarityFunc) Option {
	return func(s *Scorer) {
		if fn != nil {
			s.similarity = fn
		}
	}
}

// Scorer aligns and scores readings. The zero value is not usable; call [New].
type Scorer struct {
	similarity SimilarityFunc
}

// New returns a Scorer configured with opts.
func New(opts ...Option) *Scorer {
	s := &Scorer{similarity: Ratio}
	for _, o := range opts {
		o(s)
	}
	return s
}

var defaultScorer = New()

// Score scores hypothesis against reference with the default configuration.
func Score(reference, hypothesis string, duration time.Duration) (Result, error) {
	return defaultScorer.Score(reference, hypothesis, duration)
}

// Score aligns the transcription hypothesis against reference and returns
// the accuracy, reading rate and classified errors.
//
// hypothesis may be empty, for example when transcription failed; every
// reference word is then an omission. A negative duration is treated as
// unknown. Score fails with [ErrInvalidInput] only when reference contains
// no words.
func (s *Scorer) Score(reference, hypothesis string, duration time.Duration) (Result, error) {
	if strings.TrimSpace(reference) == "" {
		return Result{}, fmt.Errorf("%w: empty reference text", ErrInvalidInput)
	}
	ref := Tokenize(reference)
	refWords := len(words(ref))
	if refWords == 0 {
		return Result{}, fmt.Errorf("%w: reference text has no words", ErrInvalidInput)
	}
	hyp := collapseRepeats(Tokenize(hypothesis))

	c := classifier{ref: ref, hyp: hyp, similarity: s.similarity}
	for _, op := range Align(ref, hyp) {
		c.apply(op)
	}

	raw := c.credit / float64(refWords) * 100
	res := Result{
		Accuracy:        Curve(raw, realErrorCount(c.errs)),
		RawAccuracy:     raw,
		WordsPerMinute:  wordsPerMinute(len(words(hyp)), duration),
		Errors:          c.errs,
		ReferenceWords:  refWords,
		HypothesisWords: len(words(hyp)),
	}
	if res.Errors == nil {
		res.Errors = []PronunciationError{}
	}
	return res, nil
}

// realErrorCount counts errors that involve at least one word. Punctuation
// is never reported, so today this is every error.
func realErrorCount(errs []PronunciationError) int {
	n := 0
	for _, e := range errs {
		if isWord(e.Expected) || isWord(e.Observed) {
			n++
		}
	}
	return n
}

func isWord(s string) bool {
	return s != "" && !strings.ContainsAny(s, punctuationMarks)
}

func wordsPerMinute(n int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Minutes()
}

// classifier accumulates credit and errors across the operations of one
// alignment.
type classifier struct {
	ref, hyp   []Token
	similarity SimilarityFunc

	credit float64
	errs   []PronunciationError
}

func (c *classifier) apply(op Operation) {
	switch op.Kind {
	case OpEqual:
		c.credit += float64(len(words(c.ref[op.RefStart:op.RefEnd])))
	case OpReplace:
		c.replace(words(c.ref[op.RefStart:op.RefEnd]), words(c.hyp[op.HypStart:op.HypEnd]), op.RefStart)
	case OpDelete:
		for _, t := range words(c.ref[op.RefStart:op.RefEnd]) {
			c.omit(t)
		}
	case OpInsert:
		for _, t := range words(c.hyp[op.HypStart:op.HypEnd]) {
			c.insert(t, op.RefStart)
		}
	}
}

// replace pairs words of a replaced range in order. Leftovers on the
// reference side were skipped, leftovers on the hypothesis side were added.
func (c *classifier) replace(ref, hyp []Token, anchor int) {
	n := min(len(ref), len(hyp))
	for i := range n {
		sim := c.similarity(ref[i].Normalized, hyp[i].Normalized)
		switch {
		case sim >= fullCreditSimilarity:
			c.credit++
			continue
		case sim >= partialCreditSimilarity:
			c.credit += partialCredit
		}
		c.errs = append(c.errs, PronunciationError{
			Kind:       Substitution,
			Expected:   ref[i].Surface,
			Observed:   hyp[i].Surface,
			Position:   ref[i].Index,
			Severity:   DefaultSeverity,
			Similarity: sim,
		})
	}
	for _, t := range ref[n:] {
		c.omit(t)
	}
	if len(hyp) > n {
		// Extra words follow the last paired reference word.
		if n > 0 {
			anchor = ref[n-1].Index + 1
		}
		for _, t := range hyp[n:] {
			c.insert(t, anchor)
		}
	}
}

func (c *classifier) omit(t Token) {
	c.errs = append(c.errs, PronunciationError{
		Kind:     Omission,
		Expected: t.Surface,
		Position: t.Index,
		Severity: DefaultSeverity,
	})
}

// insert records t as an extra word before reference index pos, clamped to
// the last reference token so that the position always exists.
func (c *classifier) insert(t Token, pos int) {
	c.errs = append(c.errs, PronunciationError{
		Kind:     Insertion,
		Observed: t.Surface,
		Position: min(pos, len(c.ref)-1),
		Severity: DefaultSeverity,
	})
}
