package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	pebblestore "github.com/ipcluster/controller/internal/storage/pebble"
	"github.com/ipcluster/controller/pkg/id"
	logpkg "github.com/ipcluster/controller/pkg/log"
)

// Sentinel errors surfaced to both listener services.
var (
	ErrUnknownEngine  = errors.New("controller: unknown engine")
	ErrUnknownTask    = errors.New("controller: unknown task")
	ErrNoPendingTasks = errors.New("controller: no pending tasks")
)

// Options configures the shared controller backend.
type Options struct {
	// ArchiveDir, when set, points to the directory holding the persistent
	// task result archive. Empty disables persistence.
	ArchiveDir string
	// HeartbeatTimeout is how long an engine may stay silent before its
	// registration expires and its running tasks are requeued.
	HeartbeatTimeout time.Duration
	Logger           logpkg.Logger
}

// Controller is the shared backend behind the client and engine listener
// services. All methods are safe for concurrent use from both request
// paths.
type Controller struct {
	mu      sync.Mutex
	engines map[string]*engineState
	pending []*Task
	tasks   map[string]*Task

	gen     *id.Generator
	archive *pebblestore.DB
	logger  logpkg.Logger

	heartbeatTimeout time.Duration

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New constructs a controller backend with default state. Opening the
// archive is the only construction step that can fail.
func New(opts Options) (*Controller, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	timeout := opts.HeartbeatTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Controller{
		engines:          make(map[string]*engineState),
		tasks:            make(map[string]*Task),
		gen:              id.NewGenerator(),
		logger:           logger.With(logpkg.Component("controller")),
		heartbeatTimeout: timeout,
		done:             make(chan struct{}),
	}

	if opts.ArchiveDir != "" {
		db, err := pebblestore.Open(pebblestore.Options{
			Dir:  opts.ArchiveDir,
			Sync: true,
		})
		if err != nil {
			return nil, err
		}
		c.archive = db
	}
	return c, nil
}

// Start launches the heartbeat sweeper. It returns immediately; the
// sweeper stops when ctx is cancelled or Close is called.
func (c *Controller) Start(ctx context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.heartbeatTimeout / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case <-ticker.C:
				c.sweepExpired(time.Now())
			}
		}
	}()
	return nil
}

// Close stops the sweeper and closes the archive. Safe to call more than
// once; later calls return the first result.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
		if c.archive != nil {
			c.closeErr = c.archive.Close()
		}
	})
	return c.closeErr
}

// Stats is a point-in-time queue snapshot.
type Stats struct {
	Engines   int `json:"engines"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
}

// QueueStatus reports engine and task counts.
func (c *Controller) QueueStatus() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Stats{Engines: len(c.engines), Pending: len(c.pending)}
	for _, t := range c.tasks {
		switch t.State {
		case TaskRunning:
			st.Running++
		case TaskDone, TaskFailed:
			st.Completed++
		}
	}
	return st
}

// CheckHealth reports whether the backend (and its archive, when enabled)
// is usable.
func (c *Controller) CheckHealth(_ context.Context) error {
	if c.archive == nil {
		return nil
	}
	err := c.archive.Scan([]byte("task/"), func(_, _ []byte) bool { return false })
	return err
}
