package store

import (
	"time"

	"github.com/MrWong99/lectora/internal/scoring"
)

// Student is a learner whose readings are evaluated.
type Student struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Grade     int       `json:"grade,omitempty" yaml:"grade"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Content is a reading passage students are asked to read aloud. It is the
// reference text source for evaluations.
type Content struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Text      string    `json:"text" yaml:"text"`
	Level     int       `json:"level,omitempty" yaml:"level"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// EvaluationStatus records how an evaluation's hypothesis was obtained.
type EvaluationStatus string

const (
	// StatusScored means the transcription succeeded and was scored.
	StatusScored EvaluationStatus = "scored"

	// StatusTranscriptionFailed means no transcript could be produced and the
	// reading was scored as silence.
	StatusTranscriptionFailed EvaluationStatus = "transcription_failed"
)

// Evaluation is one scored reading attempt.
type Evaluation struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	ContentID string `json:"content_id"`

	// Transcript is the hypothesis text that was scored.
	Transcript string `json:"transcript"`

	// AudioRef identifies the recording, typically its file path.
	AudioRef string `json:"audio_ref,omitempty"`

	Duration       time.Duration    `json:"duration"`
	Accuracy       float64          `json:"accuracy"`
	RawAccuracy    float64          `json:"raw_accuracy"`
	WordsPerMinute float64          `json:"words_per_minute"`
	ErrorCount     int              `json:"error_count"`
	Tier           scoring.Tier     `json:"tier"`
	Status         EvaluationStatus `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
}

// ErrorDetail is a persisted [scoring.PronunciationError], child of an
// evaluation.
type ErrorDetail struct {
	ID           string `json:"id"`
	EvaluationID string `json:"evaluation_id"`
	scoring.PronunciationError

	// WordAccuracy is the similarity percentage of the two words, or 0 when
	// one of them is missing.
	WordAccuracy float64 `json:"word_accuracy"`
}

// ExerciseKind names a remediation activity.
type ExerciseKind string

const (
	// WordDrill asks the reader to repeat isolated words.
	WordDrill ExerciseKind = "word_drill"

	// SentenceReread asks the reader to read whole sentences again without
	// skipping words.
	SentenceReread ExerciseKind = "sentence_reread"
)

// PracticeExercise is a remediation unit derived from the errors of one
// evaluation.
type PracticeExercise struct {
	ID           string       `json:"id"`
	StudentID    string       `json:"student_id"`
	EvaluationID string       `json:"evaluation_id"`
	Kind         ExerciseKind `json:"kind"`

	// SourceKind is the error kind the exercise was derived from.
	SourceKind scoring.ErrorKind `json:"source_kind"`

	// TargetWords is non-empty, duplicate free and in first-seen order.
	TargetWords  []string `json:"target_words"`
	Instructions string   `json:"instructions"`
	Difficulty   int      `json:"difficulty"`
	Completed    bool     `json:"completed"`
	Attempts     int      `json:"attempts"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Fragments []PracticeFragment `json:"fragments,omitempty"`
}

// PracticeFragment is a single-word read-aloud prompt belonging to an
// exercise.
type PracticeFragment struct {
	ID         string `json:"id"`
	ExerciseID string `json:"exercise_id"`
	Text       string `json:"text"`
	Word       string `json:"word"`

	// Start and End are the byte offsets of Word within Text.
	Start int `json:"start"`
	End   int `json:"end"`

	ErrorKind scoring.ErrorKind `json:"error_kind"`
	Completed bool              `json:"completed"`
	Improved  bool              `json:"improved"`
}

// ExerciseFilter narrows [Reader.ListExercises]. Zero fields do not filter.
type ExerciseFilter struct {
	StudentID    string
	EvaluationID string

	// Pending limits results to exercises not yet completed.
	Pending bool

	// Limit caps the number of results. Zero means no limit.
	Limit int
}
