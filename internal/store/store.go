// Package store defines the persistence contract for students, reading
// content, evaluations, their error details and the practice exercises
// derived from them.
//
// Backends live in sub-packages (sqlite, postgres); [MemStore] is the
// in-memory implementation used by tests and the "memory" driver.
//
// Writes that must land together go through [Store.InTx]: either every
// write inside the callback is committed or none is. Every implementation
// must be safe for concurrent use.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("store: not found")

// Reader is the read side shared by [Store] and [Tx].
type Reader interface {
	// GetStudent returns the student with id or [ErrNotFound].
	GetStudent(ctx context.Context, id string) (Student, error)

	// GetContent returns the reading passage with id or [ErrNotFound].
	GetContent(ctx context.Context, id string) (Content, error)

	// GetEvaluation returns the evaluation with id or [ErrNotFound].
	GetEvaluation(ctx context.Context, id string) (Evaluation, error)

	// ListErrorDetails returns the error details of an evaluation in
	// insertion order. An unknown evaluation yields an empty slice.
	ListErrorDetails(ctx context.Context, evaluationID string) ([]ErrorDetail, error)

	// GetExercise returns the exercise with id, fragments included, or
	// [ErrNotFound].
	GetExercise(ctx context.Context, id string) (PracticeExercise, error)

	// ListExercises returns exercises matching f, oldest first, fragments
	// included.
	ListExercises(ctx context.Context, f ExerciseFilter) ([]PracticeExercise, error)
}

// Tx is the write side of a store, valid only inside [Store.InTx].
//
// Create methods assign and return a new ID; any ID set on the argument is
// ignored. A zero CreatedAt is set to the current time.
type Tx interface {
	Reader

	CreateEvaluation(ctx context.Context, ev Evaluation) (string, error)
	CreateErrorDetail(ctx context.Context, evaluationID string, d ErrorDetail) (string, error)
	CreateExercise(ctx context.Context, studentID, evaluationID string, ex PracticeExercise) (string, error)
	CreatePracticeFragment(ctx context.Context, exerciseID string, f PracticeFragment) (string, error)

	// RecordAttempt increments the attempt counter of an exercise. When
	// improved is true the exercise and all its fragments are marked
	// completed at the given time. Returns the updated exercise or
	// [ErrNotFound].
	RecordAttempt(ctx context.Context, exerciseID string, improved bool, at time.Time) (PracticeExercise, error)
}

// Store is a complete persistence backend.
type Store interface {
	Reader

	// PutStudent inserts or replaces a student. An empty ID is assigned.
	PutStudent(ctx context.Context, s Student) (Student, error)

	// PutContent inserts or replaces a reading passage. An empty ID is
	// assigned.
	PutContent(ctx context.Context, c Content) (Content, error)

	// InTx runs fn inside a transaction. If fn returns an error, nothing it
	// wrote is kept and the error is returned unchanged. fn must not call
	// InTx again.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}
