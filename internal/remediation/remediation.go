// Package remediation turns the errors of a scored reading into practice
// exercises and tracks practice attempts on them.
//
// Errors are grouped by kind. Each non-empty group becomes one
// [store.PracticeExercise] whose target words are the group's words,
// deduplicated in first-seen order. The exercise gets one
// [store.PracticeFragment] per target word so that words can be practised
// one at a time.
package remediation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MrWong99/lectora/internal/scoring"
	"github.com/MrWong99/lectora/internal/store"
)

// Instructions and fragment prompts are shown to Spanish-speaking readers.
const (
	wordDrillInstructions      = "Repite las palabras indicadas hasta que suenen claras y correctas."
	sentenceRereadInstructions = "Lee nuevamente las oraciones completas, sin saltarte palabras."
	fragmentPrompt             = "Lee en voz alta la palabra: "
)

// policy is the kind-specific part of an exercise.
type policy struct {
	kind         store.ExerciseKind
	instructions string
	difficulty   int
}

// policyFor selects the exercise shape for an error kind. Substitutions and
// insertions share the word drill: the activity is the same even though the
// mistake differs.
func policyFor(k scoring.ErrorKind) (policy, error) {
	switch k {
	case scoring.Substitution, scoring.Insertion:
		return policy{kind: store.WordDrill, instructions: wordDrillInstructions, difficulty: 1}, nil
	case scoring.Omission:
		return policy{kind: store.SentenceReread, instructions: sentenceRereadInstructions, difficulty: 2}, nil
	default:
		return policy{}, fmt.Errorf("remediation: no exercise for error kind %v", k)
	}
}

// Plan groups errs by kind and returns the exercises they call for, in the
// order each kind first appears. Nothing is persisted and IDs are empty.
// An empty error list yields no exercises.
func Plan(errs []scoring.PronunciationError) ([]store.PracticeExercise, error) {
	var (
		order  []scoring.ErrorKind
		groups = make(map[scoring.ErrorKind][]string)
	)
	for _, e := range errs {
		if _, err := policyFor(e.Kind); err != nil {
			return nil, err
		}
		w := e.TargetWord()
		if w == "" {
			continue
		}
		words, seen := groups[e.Kind]
		if !seen {
			order = append(order, e.Kind)
		}
		if !slices.Contains(words, w) {
			groups[e.Kind] = append(words, w)
		}
	}

	out := make([]store.PracticeExercise, 0, len(order))
	for _, k := range order {
		p, err := policyFor(k)
		if err != nil {
			return nil, err
		}
		words := groups[k]
		ex := store.PracticeExercise{
			Kind:         p.kind,
			SourceKind:   k,
			TargetWords:  words,
			Instructions: p.instructions,
			Difficulty:   p.difficulty,
			Fragments:    make([]store.PracticeFragment, 0, len(words)),
		}
		for _, w := range words {
			ex.Fragments = append(ex.Fragments, fragment(w, k))
		}
		out = append(out, ex)
	}
	return out, nil
}

func fragment(word string, k scoring.ErrorKind) store.PracticeFragment {
	return store.PracticeFragment{
		Text:      fragmentPrompt + word,
		Word:      word,
		Start:     len(fragmentPrompt),
		End:       len(fragmentPrompt) + len(word),
		ErrorKind: k,
	}
}

// PracticeText is what a learner reads aloud for ex: its target words in
// order. The instructions are a prompt, never the text to read.
func PracticeText(ex store.PracticeExercise) string {
	return strings.Join(ex.TargetWords, " ")
}
