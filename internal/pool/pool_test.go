package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestSolveTasksOrdersByEnqueueIndex(t *testing.T) {
	p := New(3)
	for i := 0; i < 10; i++ {
		i := i
		p.AddTask(func(ctx context.Context) (bool, error) {
			return i%2 == 0, nil
		})
	}
	if err := p.SolveTasks(context.Background()); err != nil {
		t.Fatal(err)
	}
	res := p.Result()
	if len(res) != 10 {
		t.Fatalf("expected 10 results, got %d", len(res))
	}
	for i, item := range res {
		if !item.Ok {
			t.Fatalf("item %d: expected Ok", i)
		}
		want := 0
		if i%2 == 0 {
			want = 1
		}
		if item.Value != want {
			t.Fatalf("item %d: got %d want %d", i, item.Value, want)
		}
	}
}

func TestSolveTasksRespectsLimit(t *testing.T) {
	p := New(2)
	inFlight := 0
	maxSeen := 0
	var mu sync.Mutex
	for i := 0; i < 20; i++ {
		p.AddTask(func(ctx context.Context) (bool, error) {
			mu.Lock()
			inFlight++
			if inFlight > maxSeen {
				maxSeen = inFlight
			}
			mu.Unlock()
			mu.Lock()
			inFlight--
			mu.Unlock()
			return true, nil
		})
	}
	if err := p.SolveTasks(context.Background()); err != nil {
		t.Fatal(err)
	}
	if maxSeen > 2 {
		t.Fatalf("expected at most 2 concurrent tasks, saw %d", maxSeen)
	}
}

func TestSolveTasksDegradesFailedSlotBySentinel(t *testing.T) {
	p := New(4)
	p.AddTask(func(ctx context.Context) (bool, error) { return true, nil })
	p.AddTask(func(ctx context.Context) (bool, error) { return false, errors.New("boom") })
	p.AddTask(func(ctx context.Context) (bool, error) { return true, nil })

	if err := p.SolveTasks(context.Background()); err != nil {
		t.Fatal(err)
	}
	str := p.GetStrResult()
	if len(str) != 3 || str[1] != sentinelByte {
		t.Fatalf("expected failed slot to carry sentinel byte, got %q", str)
	}
}

func TestSolveTasksFailFastPropagatesFirstError(t *testing.T) {
	p := New(4)
	p.FailFast = true
	wantErr := errors.New("boom")
	p.AddTask(func(ctx context.Context) (bool, error) { return false, wantErr })

	err := p.SolveTasks(context.Background())
	if err == nil {
		t.Fatal("expected error under FailFast")
	}
}

func TestSolveTasksRecoversWorkerPanic(t *testing.T) {
	p := New(1)
	p.AddTask(func(ctx context.Context) (bool, error) {
		panic("worker exploded")
	})
	if err := p.SolveTasks(context.Background()); err != nil {
		t.Fatal(err)
	}
	res := p.Result()
	if res[0].Ok {
		t.Fatal("expected panicked slot to be marked not-ok")
	}
}

func TestBisectClassicConvergesToTrueValue(t *testing.T) {
	const trueVal = 137
	oracle := func(ctx context.Context, cond string) (bool, error) {
		var cmp int
		if _, err := fmt.Sscanf(cond, "(val) < %d", &cmp); err != nil {
			return false, err
		}
		return trueVal < cmp, nil
	}
	got, err := bisectClassic(context.Background(), oracle, "val", 0, 256)
	if err != nil {
		t.Fatal(err)
	}
	if got != trueVal {
		t.Fatalf("got %d want %d", got, trueVal)
	}
}

func TestBisectOptimizedConvergesToTrueValue(t *testing.T) {
	const trueVal = 65
	oracle := func(ctx context.Context, cond string) (bool, error) {
		var cmp int
		if _, err := fmt.Sscanf(cond, "(val) < %d", &cmp); err != nil {
			return false, err
		}
		return trueVal < cmp, nil
	}
	got, err := bisectOptimized(context.Background(), oracle, "val", 0, 255)
	if err != nil {
		t.Fatal(err)
	}
	if got != trueVal {
		t.Fatalf("got %d want %d", got, trueVal)
	}
}
