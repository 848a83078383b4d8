package store

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// Compile-time interface checks.
var (
	_ Store = (*MemStore)(nil)
	_ Tx    = (*memState)(nil)
)

// MemStore is a thread-safe, in-memory implementation of [Store]. It is
// suitable for tests and single-process use; nothing survives a restart.
type MemStore struct {
	mu    sync.RWMutex
	state *memState
}

// NewMemStore returns an empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{state: newMemState()}
}

// PutStudent implements [Store].
func (s *MemStore) PutStudent(_ context.Context, st Student) (Student, error) {
	if st.ID == "" {
		st.ID = NewID()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.students[st.ID] = st
	return st, nil
}

// PutContent implements [Store].
func (s *MemStore) PutContent(_ context.Context, c Content) (Content, error) {
	if c.ID == "" {
		c.ID = NewID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.contents[c.ID] = c
	return c, nil
}

// InTx implements [Store]. The callback works on a copy of the current
// state which replaces it only when fn succeeds. Transactions are
// serialized.
func (s *MemStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(work); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	s.state = work
	return nil
}

// Ping implements [Store]. It always succeeds.
func (s *MemStore) Ping(context.Context) error { return nil }

// Close implements [Store]. It is a no-op.
func (s *MemStore) Close() error { return nil }

// GetStudent implements [Reader].
func (s *MemStore) GetStudent(ctx context.Context, id string) (Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.GetStudent(ctx, id)
}

// GetContent implements [Reader].
func (s *MemStore) GetContent(ctx context.Context, id string) (Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.GetContent(ctx, id)
}

// GetEvaluation implements [Reader].
func (s *MemStore) GetEvaluation(ctx context.Context, id string) (Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.GetEvaluation(ctx, id)
}

// ListErrorDetails implements [Reader].
func (s *MemStore) ListErrorDetails(ctx context.Context, evaluationID string) ([]ErrorDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ListErrorDetails(ctx, evaluationID)
}

// GetExercise implements [Reader].
func (s *MemStore) GetExercise(ctx context.Context, id string) (PracticeExercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.GetExercise(ctx, id)
}

// ListExercises implements [Reader].
func (s *MemStore) ListExercises(ctx context.Context, f ExerciseFilter) ([]PracticeExercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ListExercises(ctx, f)
}

// memState holds every record of a [MemStore]. Values are stored by value
// and slices are copied on the way out, so callers never alias store data.
type memState struct {
	students    map[string]Student
	contents    map[string]Content
	evaluations map[string]Evaluation
	details     map[string][]ErrorDetail
	exercises   map[string]PracticeExercise
}

func newMemState() *memState {
	return &memState{
		students:    make(map[string]Student),
		contents:    make(map[string]Content),
		evaluations: make(map[string]Evaluation),
		details:     make(map[string][]ErrorDetail),
		exercises:   make(map[string]PracticeExercise),
	}
}

// clone returns a copy that can be mutated without affecting m. Slices
// inside records are replaced, never written in place, so a shallow map
// copy is enough.
func (m *memState) clone() *memState {
	return &memState{
		students:    maps.Clone(m.students),
		contents:    maps.Clone(m.contents),
		evaluations: maps.Clone(m.evaluations),
		details:     maps.Clone(m.details),
		exercises:   maps.Clone(m.exercises),
	}
}

func (m *memState) GetStudent(_ context.Context, id string) (Student, error) {
	st, ok := m.students[id]
	if !ok {
		return Student{}, fmt.Errorf("store: student %q: %w", id, ErrNotFound)
	}
	return st, nil
}

func (m *memState) GetContent(_ context.Context, id string) (Content, error) {
	c, ok := m.contents[id]
	if !ok {
		return Content{}, fmt.Errorf("store: content %q: %w", id, ErrNotFound)
	}
	return c, nil
}

func (m *memState) GetEvaluation(_ context.Context, id string) (Evaluation, error) {
	ev, ok := m.evaluations[id]
	if !ok {
		return Evaluation{}, fmt.Errorf("store: evaluation %q: %w", id, ErrNotFound)
	}
	return ev, nil
}

func (m *memState) ListErrorDetails(_ context.Context, evaluationID string) ([]ErrorDetail, error) {
	out := slices.Clone(m.details[evaluationID])
	if out == nil {
		out = []ErrorDetail{}
	}
	return out, nil
}

func (m *memState) GetExercise(_ context.Context, id string) (PracticeExercise, error) {
	ex, ok := m.exercises[id]
	if !ok {
		return PracticeExercise{}, fmt.Errorf("store: exercise %q: %w", id, ErrNotFound)
	}
	return copyExercise(ex), nil
}

func (m *memState) ListExercises(_ context.Context, f ExerciseFilter) ([]PracticeExercise, error) {
	out := []PracticeExercise{}
	for _, ex := range m.exercises {
		if f.StudentID != "" && ex.StudentID != f.StudentID {
			continue
		}
		if f.EvaluationID != "" && ex.EvaluationID != f.EvaluationID {
			continue
		}
		if f.Pending && ex.Completed {
			continue
		}
		out = append(out, copyExercise(ex))
	}
	slices.SortFunc(out, func(a, b PracticeExercise) int { return cmp.Compare(a.ID, b.ID) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memState) CreateEvaluation(ctx context.Context, ev Evaluation) (string, error) {
	if _, err := m.GetStudent(ctx, ev.StudentID); err != nil {
		return "", err
	}
	if _, err := m.GetContent(ctx, ev.ContentID); err != nil {
		return "", err
	}
	ev.ID = NewID()
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	m.evaluations[ev.ID] = ev
	return ev.ID, nil
}

func (m *memState) CreateErrorDetail(ctx context.Context, evaluationID string, d ErrorDetail) (string, error) {
	if _, err := m.GetEvaluation(ctx, evaluationID); err != nil {
		return "", err
	}
	d.ID = NewID()
	d.EvaluationID = evaluationID
	m.details[evaluationID] = append(slices.Clip(m.details[evaluationID]), d)
	return d.ID, nil
}

func (m *memState) CreateExercise(ctx context.Context, studentID, evaluationID string, ex PracticeExercise) (string, error) {
	if _, err := m.GetStudent(ctx, studentID); err != nil {
		return "", err
	}
	if _, err := m.GetEvaluation(ctx, evaluationID); err != nil {
		return "", err
	}
	ex.ID = NewID()
	ex.StudentID = studentID
	ex.EvaluationID = evaluationID
	ex.TargetWords = slices.Clone(ex.TargetWords)
	ex.Fragments = nil
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}
	m.exercises[ex.ID] = ex
	return ex.ID, nil
}

func (m *memState) CreatePracticeFragment(_ context.Context, exerciseID string, f PracticeFragment) (string, error) {
	ex, ok := m.exercises[exerciseID]
	if !ok {
		return "", fmt.Errorf("store: exercise %q: %w", exerciseID, ErrNotFound)
	}
	f.ID = NewID()
	f.ExerciseID = exerciseID
	ex.Fragments = append(slices.Clip(ex.Fragments), f)
	m.exercises[exerciseID] = ex
	return f.ID, nil
}

func (m *memState) RecordAttempt(_ context.Context, exerciseID string, improved bool, at time.Time) (PracticeExercise, error) {
	ex, ok := m.exercises[exerciseID]
	if !ok {
		return PracticeExercise{}, fmt.Errorf("store: exercise %q: %w", exerciseID, ErrNotFound)
	}
	ex = copyExercise(ex)
	ex.Attempts++
	if improved {
		ex.Completed = true
		ex.CompletedAt = &at
		for i := range ex.Fragments {
			ex.Fragments[i].Completed = true
			ex.Fragments[i].Improved = true
		}
	}
	m.exercises[exerciseID] = ex
	return copyExercise(ex), nil
}

func copyExercise(ex PracticeExercise) PracticeExercise {
	ex.TargetWords = slices.Clone(ex.TargetWords)
	ex.Fragments = slices.Clone(ex.Fragments)
	if ex.CompletedAt != nil {
		t := *ex.CompletedAt
		ex.CompletedAt = &t
	}
	return ex
}
