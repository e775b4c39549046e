package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Executor defines the function signature for task executors. Long-running
// executors should honor ctx cancellation and report progress through the
// callback; the returned output map is stored on completion.
type Executor func(ctx context.Context, task *Task, onProgress func(progress int)) (map[string]any, error)

type subscriber struct {
	fn func(*Task)
}

// Manager manages async tasks with pluggable executors.
type Manager struct {
	mu sync.RWMutex

	repo      Repository
	executors map[string]Executor
	logger    *zap.Logger

	config *Config

	semaphore chan struct{}

	subscribers map[uuid.UUID][]*subscriber

	// onFinished, when set, is called once per task reaching a terminal
	// status with the task type and final status.
	onFinished func(taskType, status string)

	// cancels holds per-task cancel funcs for running tasks.
	cancels map[uuid.UUID]context.CancelFunc

	baseCtx  context.Context
	baseStop context.CancelFunc
	wg       sync.WaitGroup
}

// Config contains manager configuration.
type Config struct {
	MaxConcurrent int           `json:"max_concurrent" mapstructure:"max_concurrent"`
	ExecTimeout   time.Duration `json:"exec_timeout" mapstructure:"exec_timeout"`
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrent: 10,
		ExecTimeout:   30 * time.Minute,
	}
}

// NewManager creates a new task manager.
func NewManager(repo Repository, logger *zap.Logger, config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, stop := context.WithCancel(context.Background())

	return &Manager{
		repo:        repo,
		executors:   make(map[string]Executor),
		logger:      logger.Named("task-manager"),
		config:      config,
		semaphore:   make(chan struct{}, config.MaxConcurrent),
		subscribers: make(map[uuid.UUID][]*subscriber),
		cancels:     make(map[uuid.UUID]context.CancelFunc),
		baseCtx:     ctx,
		baseStop:    stop,
	}
}

// Stop cancels all running tasks and waits for them to finish.
func (m *Manager) Stop() {
	m.logger.Info("stopping task manager")
	m.baseStop()
	m.wg.Wait()
	m.logger.Info("task manager stopped")
}

// OnFinished installs a hook invoked whenever a task reaches a terminal
// status. Set it before the first Submit.
func (m *Manager) OnFinished(fn func(taskType, status string)) {
	m.onFinished = fn
}

func (m *Manager) finished(task *Task) {
	if m.onFinished != nil {
		m.onFinished(task.Type, string(task.Status))
	}
}

// RegisterExecutor registers a task executor for a specific task type.
func (m *Manager) RegisterExecutor(taskType string, executor Executor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executors[taskType] = executor
	m.logger.Debug("registered executor", zap.String("task_type", taskType))
}

// Submit submits a new task for background execution.
func (m *Manager) Submit(ctx context.Context, req *SubmitRequest) (*Task, error) {
	m.mu.RLock()
	_, ok := m.executors[req.Type]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no executor registered for task type: %s", req.Type)
	}

	now := time.Now()
	task := &Task{
		ID:        uuid.New(),
		Type:      req.Type,
		Status:    StatusPending,
		Input:     req.Payload,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	m.logger.Debug("task submitted",
		zap.String("task_id", task.ID.String()),
		zap.String("type", task.Type))

	m.wg.Add(1)
	go m.executeTask(task)

	// The goroutine owns the task struct from here; hand back a snapshot.
	snapshot := *task
	return &snapshot, nil
}

// Get retrieves a task by ID.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	return m.repo.Get(ctx, id)
}

// List lists tasks matching the filter.
func (m *Manager) List(ctx context.Context, filter *Filter) ([]*Task, error) {
	return m.repo.List(ctx, filter)
}

// Cancel cancels a task. A running task's context is cancelled; its
// executor decides how quickly it unwinds.
func (m *Manager) Cancel(ctx context.Context, id uuid.UUID) error {
	task, err := m.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if task.IsTerminal() {
		return fmt.Errorf("task already in terminal state: %s", task.Status)
	}

	m.mu.Lock()
	if cancel, ok := m.cancels[id]; ok {
		cancel()
	}
	m.mu.Unlock()

	task.Status = StatusCancelled
	task.UpdatedAt = time.Now()

	if err := m.repo.Update(ctx, task); err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	m.logger.Debug("task cancelled", zap.String("task_id", id.String()))
	m.finished(task)
	m.notifySubscribers(task)
	return nil
}

// Subscribe subscribes to task progress updates.
// Returns an unsubscribe function.
func (m *Manager) Subscribe(id uuid.UUID, callback func(*Task)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := &subscriber{fn: callback}
	m.subscribers[id] = append(m.subscribers[id], entry)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		subs := m.subscribers[id]
		for i, s := range subs {
			if s == entry {
				m.subscribers[id] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(m.subscribers[id]) == 0 {
			delete(m.subscribers, id)
		}
	}
}

func (m *Manager) executeTask(task *Task) {
	defer m.wg.Done()

	select {
	case <-m.baseCtx.Done():
		return
	case m.semaphore <- struct{}{}:
		defer func() { <-m.semaphore }()
	}

	ctx, cancel := context.WithTimeout(m.baseCtx, m.config.ExecTimeout)
	defer cancel()

	m.mu.Lock()
	executor := m.executors[task.Type]
	m.cancels[task.ID] = cancel
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.cancels, task.ID)
		m.mu.Unlock()
	}()

	// Cancel may have landed between Submit and semaphore acquisition.
	if current, err := m.repo.Get(context.Background(), task.ID); err == nil && current.IsTerminal() {
		return
	}

	task.Status = StatusRunning
	task.UpdatedAt = time.Now()
	if err := m.repo.Update(context.Background(), task); err != nil {
		m.logger.Error("failed to update task status",
			zap.String("task_id", task.ID.String()),
			zap.Error(err))
		return
	}
	m.notifySubscribers(task)

	onProgress := func(progress int) {
		task.Progress = progress
		task.UpdatedAt = time.Now()
		_ = m.repo.Update(context.Background(), task)
		m.notifySubscribers(task)
	}

	output, err := executor(ctx, task, onProgress)
	if err != nil {
		// A cancelled task already carries its terminal status.
		if current, gerr := m.repo.Get(context.Background(), task.ID); gerr == nil && current.Status == StatusCancelled {
			return
		}
		m.failTask(task, "execution_failed", err.Error())
		return
	}

	task.Status = StatusCompleted
	task.Progress = 100
	task.Output = output
	now := time.Now()
	task.CompletedAt = &now
	task.UpdatedAt = now

	if err := m.repo.Update(context.Background(), task); err != nil {
		m.logger.Error("failed to update completed task",
			zap.String("task_id", task.ID.String()),
			zap.Error(err))
		return
	}

	m.logger.Debug("task completed", zap.String("task_id", task.ID.String()))
	m.finished(task)
	m.notifySubscribers(task)
}

func (m *Manager) failTask(task *Task, code, message string) {
	task.Status = StatusFailed
	task.Error = &Error{Code: code, Message: message}
	task.UpdatedAt = time.Now()

	if err := m.repo.Update(context.Background(), task); err != nil {
		m.logger.Error("failed to update failed task",
			zap.String("task_id", task.ID.String()),
			zap.Error(err))
	}

	m.logger.Warn("task failed",
		zap.String("task_id", task.ID.String()),
		zap.String("code", code),
		zap.String("message", message))
	m.finished(task)
	m.notifySubscribers(task)
}

func (m *Manager) notifySubscribers(task *Task) {
	m.mu.RLock()
	subs := make([]*subscriber, len(m.subscribers[task.ID]))
	copy(subs, m.subscribers[task.ID])
	m.mu.RUnlock()

	for _, sub := range subs {
		sub.fn(task)
	}
}
