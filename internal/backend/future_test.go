package backend_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/seantiz/estimator/internal/backend"
)

func TestFutureResolveOnce(t *testing.T) {
	f := backend.NewFuture()
	f.Resolve("first", nil)
	f.Resolve("second", errors.New("ignored"))

	v, err := f.Result()
	if err != nil {
		t.Fatalf("Result error = %v, want nil", err)
	}
	if v != "first" {
		t.Errorf("value = %v, want first", v)
	}
}

func TestFutureWaitRespectsContext(t *testing.T) {
	f := backend.NewFuture()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait error = %v, want DeadlineExceeded", err)
	}
}

func TestFutureOnDoneBeforeAndAfterResolve(t *testing.T) {
	f := backend.NewFuture()
	got := make(chan any, 2)

	f.OnDone(func(f *backend.Future) {
		v, _ := f.Result()
		got <- v
	})
	f.Resolve(42, nil)
	f.OnDone(func(f *backend.Future) {
		v, _ := f.Result()
		got <- v
	})

	for i := 0; i < 2; i++ {
		select {
		case v := <-got:
			if v != 42 {
				t.Errorf("callback %d value = %v, want 42", i, v)
			}
		case <-time.After(time.Second):
			t.Fatalf("callback %d did not run", i)
		}
	}
}

func TestJoinWaitsForAll(t *testing.T) {
	a := backend.NewFuture()
	b := backend.NewFuture()
	joined := backend.Join("ledger", a, b)

	a.Resolve(1, nil)
	select {
	case <-joined.Done():
		t.Fatal("join resolved before every future resolved")
	case <-time.After(20 * time.Millisecond):
	}

	boom := errors.New("boom")
	b.Resolve(nil, boom)

	v, err := joined.Wait(context.Background())
	if err != nil {
		t.Fatalf("join error = %v", err)
	}
	res, ok := v.(backend.JoinResult)
	if !ok {
		t.Fatalf("join value type = %T, want JoinResult", v)
	}
	if res.Passthrough != "ledger" {
		t.Errorf("passthrough = %v, want ledger", res.Passthrough)
	}
	if len(res.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(res.Results))
	}
	if res.Results[0].Value != 1 || res.Results[0].Err != nil {
		t.Errorf("results[0] = %+v", res.Results[0])
	}
	if !errors.Is(res.Results[1].Err, boom) {
		t.Errorf("results[1].Err = %v, want boom", res.Results[1].Err)
	}
}

func TestJoinEmpty(t *testing.T) {
	v, err := backend.Join(nil).Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res := v.(backend.JoinResult); len(res.Results) != 0 {
		t.Errorf("results = %d, want 0", len(res.Results))
	}
}
