package task

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTaskLifecycleSuccess(t *testing.T) {
	tk := New("board-1", func(ctx context.Context, progress ProgressFunc, cancelled func() bool) (any, error) {
		progress(Progress{Action: "upload", Value: 50, Max: 100})
		return "done", nil
	})

	if tk.Status() != StatusReady {
		t.Fatalf("initial status = %v, want ready", tk.Status())
	}
	tk.markPending()
	if tk.Status() != StatusPending {
		t.Fatalf("status after markPending = %v, want pending", tk.Status())
	}

	var got Progress
	tk.Observe(func(p Progress) { got = p })

	tk.run(context.Background())

	if tk.Status() != StatusFinished {
		t.Fatalf("status after run = %v, want finished", tk.Status())
	}
	if tk.Err() != nil {
		t.Errorf("Err() = %v, want nil", tk.Err())
	}
	if got.Value != 50 || got.Max != 100 {
		t.Errorf("observed progress = %+v", got)
	}

	h, ok := tk.Result()
	if !ok {
		t.Fatal("Result() ok = false after finish")
	}
	if h.Value != "done" {
		t.Errorf("result = %v, want done", h.Value)
	}
	h.Release()
}

func TestTaskLifecycleError(t *testing.T) {
	wantErr := errors.New("boom")
	tk := New("board-1", func(ctx context.Context, progress ProgressFunc, cancelled func() bool) (any, error) {
		return nil, wantErr
	})
	tk.run(context.Background())

	if tk.Err() == nil {
		t.Error("expected a non-nil terminal error")
	}
}

func TestTaskCancellation(t *testing.T) {
	tk := New("board-1", func(ctx context.Context, progress ProgressFunc, cancelled func() bool) (any, error) {
		for i := 0; i < 3; i++ {
			if cancelled() {
				return nil, nil
			}
			progress(Progress{Action: "upload", Value: i, Max: 3})
		}
		return "finished normally", nil
	})

	tk.Cancel()
	if !tk.Cancelled() {
		t.Fatal("Cancelled() should be true after Cancel()")
	}
	tk.run(context.Background())

	if tk.Err() == nil {
		t.Error("a cancelled task should finish with a non-nil error")
	}
}

func TestTaskResultNotReadyBeforeFinish(t *testing.T) {
	tk := New("board-1", func(ctx context.Context, progress ProgressFunc, cancelled func() bool) (any, error) {
		return "x", nil
	})
	if _, ok := tk.Result(); ok {
		t.Error("Result() should not be ready before the task runs")
	}
}

func TestTaskRunSynchronousNoPool(t *testing.T) {
	tk := New("board-1", func(ctx context.Context, progress ProgressFunc, cancelled func() bool) (any, error) {
		return "done", nil
	})

	if err := tk.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if tk.Status() != StatusFinished {
		t.Fatalf("status after Run = %v, want finished", tk.Status())
	}
	h, ok := tk.Result()
	if !ok || h.Value != "done" {
		t.Fatalf("Result() = (%+v, %v), want (\"done\", true)", h, ok)
	}
}

func TestTaskRunReturnsCtxErrIfAlreadyDone(t *testing.T) {
	tk := New("board-1", func(ctx context.Context, progress ProgressFunc, cancelled func() bool) (any, error) {
		t.Fatal("fn should not run when ctx is already done")
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tk.Run(ctx); err == nil {
		t.Error("Run should return ctx.Err() when ctx is already done")
	}
	if tk.Status() != StatusReady {
		t.Errorf("status = %v, want ready (Run should not have started fn)", tk.Status())
	}
}

func TestTaskWaitRespectsContext(t *testing.T) {
	tk := New("board-1", func(ctx context.Context, progress ProgressFunc, cancelled func() bool) (any, error) {
		return "x", nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := tk.Wait(ctx); err == nil {
		t.Error("Wait should return an error when the context expires before the task finishes")
	}
}
