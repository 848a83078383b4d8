package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/MrWong99/lectora/internal/store"
	"github.com/MrWong99/lectora/internal/store/storetest"
)

func TestMemStore(t *testing.T) {
	t.Parallel()
	storetest.Run(t, func(*testing.T) store.Store { return store.NewMemStore() })
}

func TestMemStore_ReturnedExercisesDoNotAlias(t *testing.T) {
	t.Parallel()

	s := store.NewMemStore()
	st, c := storetest.Seed(t, s)
	evalID := storetest.CreateEvaluation(t, s, st.ID, c.ID, nil)
	ctx := context.Background()

	var exID string
	err := s.InTx(ctx, func(tx store.Tx) error {
		var err error
		exID, err = tx.CreateExercise(ctx, st.ID, evalID, store.PracticeExercise{
			Kind:        store.WordDrill,
			TargetWords: []string{"perro"},
		})
		return err
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}

	ex, err := s.GetExercise(ctx, exID)
	if err != nil {
		t.Fatalf("GetExercise: %v", err)
	}
	ex.TargetWords[0] = "gato"

	again, err := s.GetExercise(ctx, exID)
	if err != nil {
		t.Fatalf("GetExercise: %v", err)
	}
	if again.TargetWords[0] != "perro" {
		t.Errorf("TargetWords[0] = %q after caller mutation, want %q", again.TargetWords[0], "perro")
	}
}

func TestMemStore_ConcurrentTransactions(t *testing.T) {
	t.Parallel()

	s := store.NewMemStore()
	st, c := storetest.Seed(t, s)

	const n = 20
	var wg sync.WaitGroup
	ids := make([]string, n)
	for i := range n {
		wg.Go(func() {
			err := s.InTx(context.Background(), func(tx store.Tx) error {
				var err error
				ids[i], err = tx.CreateEvaluation(context.Background(), store.Evaluation{
					StudentID: st.ID,
					ContentID: c.ID,
					Status:    store.StatusScored,
				})
				return err
			})
			if err != nil {
				t.Errorf("InTx: %v", err)
			}
		})
	}
	wg.Wait()

	for _, id := range ids {
		if _, err := s.GetEvaluation(context.Background(), id); err != nil {
			t.Errorf("GetEvaluation(%s): %v", id, err)
		}
	}
}
