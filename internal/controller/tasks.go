package controller

import (
	"encoding/json"
	"errors"
	"time"

	pebblestore "github.com/ipcluster/controller/internal/storage/pebble"
	logpkg "github.com/ipcluster/controller/pkg/log"
)

// TaskState tracks a task through the queue.
type TaskState string

const (
	TaskPending TaskState = "pending"
	TaskRunning TaskState = "running"
	TaskDone    TaskState = "done"
	TaskFailed  TaskState = "failed"
)

// Task is a unit of work submitted by a client and executed by an engine.
type Task struct {
	ID      string            `json:"id"`
	Payload []byte            `json:"payload"`
	Meta    map[string]string `json:"meta,omitempty"`

	State    TaskState `json:"state"`
	EngineID string    `json:"engine_id,omitempty"`
	// Pinned restricts dispatch to one engine; broadcast tasks use it.
	Pinned string `json:"pinned,omitempty"`

	Result []byte `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

const archivePrefix = "task/"

// SubmitTask queues a new task and returns its identifier.
func (c *Controller) SubmitTask(payload []byte, meta map[string]string) string {
	t := &Task{
		ID:          c.gen.Next().String(),
		Payload:     payload,
		Meta:        meta,
		State:       TaskPending,
		SubmittedAt: time.Now(),
	}

	c.mu.Lock()
	c.tasks[t.ID] = t
	c.pending = append(c.pending, t)
	c.mu.Unlock()

	c.logger.Debug("task submitted", logpkg.Str("task_id", t.ID))
	return t.ID
}

// Broadcast queues one pinned copy of the payload per registered engine
// and returns the task identifiers. An empty registry yields an empty
// slice, not an error.
func (c *Controller) Broadcast(payload []byte, meta map[string]string) []string {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.engines))
	for engineID := range c.engines {
		t := &Task{
			ID:          c.gen.Next().String(),
			Payload:     payload,
			Meta:        meta,
			State:       TaskPending,
			Pinned:      engineID,
			SubmittedAt: now,
		}
		c.tasks[t.ID] = t
		c.pending = append(c.pending, t)
		ids = append(ids, t.ID)
	}
	return ids
}

// PullTask hands the next eligible pending task to an engine. Tasks
// pinned to other engines are skipped; otherwise dispatch is FIFO.
func (c *Controller) PullTask(engineID string) (*Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	eng, ok := c.engines[engineID]
	if !ok {
		return nil, ErrUnknownEngine
	}
	eng.lastSeen = time.Now()

	for i, t := range c.pending {
		if t.Pinned != "" && t.Pinned != engineID {
			continue
		}
		c.pending = append(c.pending[:i], c.pending[i+1:]...)
		t.State = TaskRunning
		t.EngineID = engineID
		cp := *t
		return &cp, nil
	}
	return nil, ErrNoPendingTasks
}

// PushResult records the outcome of a running task. A non-empty taskErr
// marks the task failed. Completed tasks are persisted to the archive
// when one is configured.
func (c *Controller) PushResult(engineID, taskID string, result []byte, taskErr string) error {
	c.mu.Lock()
	t, ok := c.tasks[taskID]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownTask
	}
	if t.State != TaskRunning || t.EngineID != engineID {
		c.mu.Unlock()
		return ErrUnknownTask
	}
	t.Result = result
	t.Error = taskErr
	t.CompletedAt = time.Now()
	if taskErr != "" {
		t.State = TaskFailed
	} else {
		t.State = TaskDone
	}
	cp := *t
	c.mu.Unlock()

	if err := c.archiveTask(&cp); err != nil {
		c.logger.Error("archive write failed",
			logpkg.Str("task_id", taskID), logpkg.Err(err))
	}
	return nil
}

// TaskStatus reports the current state of a task without its payload or
// result body.
func (c *Controller) TaskStatus(taskID string) (TaskState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tasks[taskID]; ok {
		return t.State, nil
	}
	if t := c.lookupArchivedLocked(taskID); t != nil {
		return t.State, nil
	}
	return "", ErrUnknownTask
}

// TaskResult returns the full task record. Tasks from earlier runs are
// served from the archive.
func (c *Controller) TaskResult(taskID string) (*Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tasks[taskID]; ok {
		cp := *t
		return &cp, nil
	}
	if t := c.lookupArchivedLocked(taskID); t != nil {
		return t, nil
	}
	return nil, ErrUnknownTask
}

func (c *Controller) archiveTask(t *Task) error {
	if c.archive == nil {
		return nil
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return c.archive.Set([]byte(archivePrefix+t.ID), raw)
}

func (c *Controller) lookupArchivedLocked(taskID string) *Task {
	if c.archive == nil {
		return nil
	}
	raw, err := c.archive.Get([]byte(archivePrefix + taskID))
	if err != nil {
		if !errors.Is(err, pebblestore.ErrNotFound) {
			c.logger.Error("archive read failed",
				logpkg.Str("task_id", taskID), logpkg.Err(err))
		}
		return nil
	}
	var t Task
	if err := json.Unmarshal(raw, &t); err != nil {
		c.logger.Error("archive decode failed",
			logpkg.Str("task_id", taskID), logpkg.Err(err))
		return nil
	}
	return &t
}
