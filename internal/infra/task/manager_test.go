package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForStatus(t *testing.T, m *Manager, task *Task, want Status) *Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, err := m.Get(context.Background(), task.ID)
		require.NoError(t, err)
		if got.Status == want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task never reached status %s", want)
	return nil
}

func TestManagerSubmitAndComplete(t *testing.T) {
	m := NewManager(NewMemoryRepository(), nil, nil)
	defer m.Stop()

	m.RegisterExecutor("generate", func(_ context.Context, task *Task, onProgress func(int)) (map[string]any, error) {
		onProgress(50)
		return map[string]any{"uri": "gs://bucket/out.mp4"}, nil
	})

	task, err := m.Submit(context.Background(), &SubmitRequest{
		Type:    "generate",
		Payload: map[string]any{"prompt": "a cat"},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, task.Status)

	done := waitForStatus(t, m, task, StatusCompleted)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, "gs://bucket/out.mp4", done.Output["uri"])
	require.NotNil(t, done.CompletedAt)
}

func TestManagerSubmitUnknownType(t *testing.T) {
	m := NewManager(NewMemoryRepository(), nil, nil)
	defer m.Stop()

	_, err := m.Submit(context.Background(), &SubmitRequest{Type: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no executor registered")
}

func TestManagerExecutorFailure(t *testing.T) {
	m := NewManager(NewMemoryRepository(), nil, nil)
	defer m.Stop()

	m.RegisterExecutor("generate", func(_ context.Context, _ *Task, _ func(int)) (map[string]any, error) {
		return nil, errors.New("vendor said no")
	})

	task, err := m.Submit(context.Background(), &SubmitRequest{Type: "generate"})
	require.NoError(t, err)

	failed := waitForStatus(t, m, task, StatusFailed)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "execution_failed", failed.Error.Code)
	assert.Contains(t, failed.Error.Message, "vendor said no")
}

func TestManagerCancelRunningTask(t *testing.T) {
	m := NewManager(NewMemoryRepository(), nil, nil)
	defer m.Stop()

	started := make(chan struct{})
	m.RegisterExecutor("generate", func(ctx context.Context, _ *Task, _ func(int)) (map[string]any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	task, err := m.Submit(context.Background(), &SubmitRequest{Type: "generate"})
	require.NoError(t, err)

	<-started
	require.NoError(t, m.Cancel(context.Background(), task.ID))

	got := waitForStatus(t, m, task, StatusCancelled)
	assert.True(t, got.IsTerminal())
}

func TestManagerCancelTerminalTask(t *testing.T) {
	m := NewManager(NewMemoryRepository(), nil, nil)
	defer m.Stop()

	m.RegisterExecutor("generate", func(_ context.Context, _ *Task, _ func(int)) (map[string]any, error) {
		return nil, nil
	})

	task, err := m.Submit(context.Background(), &SubmitRequest{Type: "generate"})
	require.NoError(t, err)
	waitForStatus(t, m, task, StatusCompleted)

	err = m.Cancel(context.Background(), task.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminal state")
}

func TestManagerConcurrencyCap(t *testing.T) {
	m := NewManager(NewMemoryRepository(), nil, &Config{MaxConcurrent: 2, ExecTimeout: time.Minute})
	defer m.Stop()

	var running atomic.Int32
	var peak atomic.Int32
	release := make(chan struct{})

	m.RegisterExecutor("generate", func(_ context.Context, _ *Task, _ func(int)) (map[string]any, error) {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return nil, nil
	})

	tasks := make([]*Task, 0, 5)
	for i := 0; i < 5; i++ {
		task, err := m.Submit(context.Background(), &SubmitRequest{Type: "generate"})
		require.NoError(t, err)
		tasks = append(tasks, task)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)

	for _, task := range tasks {
		waitForStatus(t, m, task, StatusCompleted)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestManagerSubscribe(t *testing.T) {
	m := NewManager(NewMemoryRepository(), nil, nil)
	defer m.Stop()

	m.RegisterExecutor("generate", func(_ context.Context, _ *Task, onProgress func(int)) (map[string]any, error) {
		onProgress(30)
		onProgress(60)
		return nil, nil
	})

	task, err := m.Submit(context.Background(), &SubmitRequest{Type: "generate"})
	require.NoError(t, err)

	statuses := make(chan Status, 16)
	unsub := m.Subscribe(task.ID, func(t *Task) {
		statuses <- t.Status
	})
	defer unsub()

	waitForStatus(t, m, task, StatusCompleted)

	// Subscription may attach after early updates; the terminal
	// notification must always arrive.
	sawTerminal := false
	timeout := time.After(2 * time.Second)
	for !sawTerminal {
		select {
		case s := <-statuses:
			if s == StatusCompleted {
				sawTerminal = true
			}
		case <-timeout:
			t.Fatal("no terminal notification")
		}
	}
}

func TestManagerListFilter(t *testing.T) {
	m := NewManager(NewMemoryRepository(), nil, nil)
	defer m.Stop()

	m.RegisterExecutor("image", func(_ context.Context, _ *Task, _ func(int)) (map[string]any, error) {
		return nil, nil
	})
	m.RegisterExecutor("video", func(_ context.Context, _ *Task, _ func(int)) (map[string]any, error) {
		return nil, nil
	})

	a, err := m.Submit(context.Background(), &SubmitRequest{Type: "image"})
	require.NoError(t, err)
	b, err := m.Submit(context.Background(), &SubmitRequest{Type: "video"})
	require.NoError(t, err)
	waitForStatus(t, m, a, StatusCompleted)
	waitForStatus(t, m, b, StatusCompleted)

	videoType := "video"
	got, err := m.List(context.Background(), &Filter{Type: &videoType})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.ID, got[0].ID)
}

func TestManagerStopWaits(t *testing.T) {
	m := NewManager(NewMemoryRepository(), nil, nil)

	finished := make(chan struct{})
	m.RegisterExecutor("generate", func(ctx context.Context, _ *Task, _ func(int)) (map[string]any, error) {
		<-ctx.Done()
		close(finished)
		return nil, ctx.Err()
	})

	_, err := m.Submit(context.Background(), &SubmitRequest{Type: "generate"})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	m.Stop()

	select {
	case <-finished:
	default:
		t.Fatal("Stop returned before executors unwound")
	}
}

func TestManagerOnFinishedHook(t *testing.T) {
	m := NewManager(NewMemoryRepository(), nil, nil)
	defer m.Stop()

	type finish struct {
		taskType string
		status   string
	}
	finishes := make(chan finish, 2)
	m.OnFinished(func(taskType, status string) {
		finishes <- finish{taskType, status}
	})

	m.RegisterExecutor("ok", func(_ context.Context, _ *Task, _ func(int)) (map[string]any, error) {
		return nil, nil
	})
	m.RegisterExecutor("broken", func(_ context.Context, _ *Task, _ func(int)) (map[string]any, error) {
		return nil, errors.New("boom")
	})

	a, err := m.Submit(context.Background(), &SubmitRequest{Type: "ok"})
	require.NoError(t, err)
	waitForStatus(t, m, a, StatusCompleted)

	b, err := m.Submit(context.Background(), &SubmitRequest{Type: "broken"})
	require.NoError(t, err)
	waitForStatus(t, m, b, StatusFailed)

	seen := map[finish]bool{}
	for i := 0; i < 2; i++ {
		select {
		case f := <-finishes:
			seen[f] = true
		case <-time.After(time.Second):
			t.Fatal("hook not called for every terminal task")
		}
	}
	assert.True(t, seen[finish{"ok", string(StatusCompleted)}])
	assert.True(t, seen[finish{"broken", string(StatusFailed)}])
}
