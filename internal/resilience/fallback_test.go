package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newGroup() *FallbackGroup[string] {
	fg := NewFallbackGroup("primary", "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	fg.AddFallback("secondary", "secondary")
	return fg
}

func TestFallbackGroup_PrimarySuccess(t *testing.T) {
	t.Parallel()
	fg := newGroup()

	var called string
	err := fg.Execute(context.Background(), func(_ context.Context, v string) error {
		called = v
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if called != "primary" {
		t.Fatalf("called = %q, want primary", called)
	}
}

func TestFallbackGroup_CircuitBreakerSkipsOpenProvider(t *testing.T) {
	t.Parallel()
	fg := newGroup()
	ctx := context.Background()

	var calls []string
	fn := func(_ context.Context, v string) error {
		calls = append(calls, v)
		if v == "primary" {
			return errTest
		}
		return nil
	}
	for range 3 {
		if err := fg.Execute(ctx, fn); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}

	want := "primary,secondary,primary,secondary,secondary"
	if got := strings.Join(calls, ","); got != want {
		t.Errorf("calls = %s, want %s", got, want)
	}
	if st, ok := fg.State("primary"); !ok || st != StateOpen {
		t.Errorf("State(primary) = %v, %v, want open, true", st, ok)
	}
}

func TestFallbackGroup_AllFail(t *testing.T) {
	t.Parallel()
	fg := newGroup()

	err := fg.Execute(context.Background(), func(_ context.Context, v string) error {
		return errors.New(v + " down")
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("Execute = %v, want ErrAllFailed", err)
	}
	for _, part := range []string{"primary: primary down", "secondary: secondary down"} {
		if !strings.Contains(err.Error(), part) {
			t.Errorf("error %q does not mention %q", err, part)
		}
	}
}

func TestFallbackGroup_StopsWhenContextDone(t *testing.T) {
	t.Parallel()
	fg := newGroup()
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	err := fg.Execute(ctx, func(ctx context.Context, _ string) error {
		calls++
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if st, _ := fg.State("primary"); st != StateClosed {
		t.Errorf("State(primary) = %v, want closed", st)
	}
}

func TestFallbackGroup_Names(t *testing.T) {
	t.Parallel()
	got := strings.Join(newGroup().Names(), ",")
	if got != "primary,secondary" {
		t.Errorf("Names() = %s, want primary,secondary", got)
	}
	if _, ok := newGroup().State("missing"); ok {
		t.Error("State(missing) reported ok")
	}
}

func TestExecuteWithResult_Failover(t *testing.T) {
	t.Parallel()
	fg := NewFallbackGroup(10, "ten", FallbackConfig{})
	fg.AddFallback("twenty", 20)

	result, err := ExecuteWithResult(context.Background(), fg, func(_ context.Context, v int) (int, error) {
		if v == 10 {
			return 0, errTest
		}
		return v * 2, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if result != 40 {
		t.Fatalf("result = %d, want 40", result)
	}
}
