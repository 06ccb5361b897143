package controller

import (
	"time"

	"github.com/google/uuid"

	logpkg "github.com/ipcluster/controller/pkg/log"
)

type engineState struct {
	info     EngineInfo
	lastSeen time.Time
}

// EngineInfo describes a registered engine as reported to clients.
type EngineInfo struct {
	ID           string    `json:"id"`
	Hostname     string    `json:"hostname"`
	Capabilities []string  `json:"capabilities,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Registration is returned to a newly registered engine.
type Registration struct {
	EngineID          string        `json:"engine_id"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
}

// RegisterEngine admits an engine into the registry and assigns it a
// session identifier. The identifier is fresh per registration; an engine
// that reconnects gets a new one.
func (c *Controller) RegisterEngine(hostname string, capabilities []string) Registration {
	now := time.Now()
	eng := &engineState{
		info: EngineInfo{
			ID:           uuid.NewString(),
			Hostname:     hostname,
			Capabilities: capabilities,
			RegisteredAt: now,
		},
		lastSeen: now,
	}

	c.mu.Lock()
	c.engines[eng.info.ID] = eng
	c.mu.Unlock()

	c.logger.Info("engine registered",
		logpkg.Str("engine_id", eng.info.ID),
		logpkg.Str("hostname", hostname))

	return Registration{
		EngineID:          eng.info.ID,
		HeartbeatInterval: c.heartbeatTimeout / 3,
	}
}

// Heartbeat refreshes an engine's liveness deadline.
func (c *Controller) Heartbeat(engineID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	eng, ok := c.engines[engineID]
	if !ok {
		return ErrUnknownEngine
	}
	eng.lastSeen = time.Now()
	return nil
}

// UnregisterEngine removes an engine. Tasks it was running go back to the
// front of the pending queue.
func (c *Controller) UnregisterEngine(engineID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.engines[engineID]; !ok {
		return ErrUnknownEngine
	}
	delete(c.engines, engineID)
	requeued := c.requeueLocked(engineID)

	c.logger.Info("engine unregistered",
		logpkg.Str("engine_id", engineID),
		logpkg.Int("requeued", requeued))
	return nil
}

// ListEngines returns a snapshot of the registry.
func (c *Controller) ListEngines() []EngineInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]EngineInfo, 0, len(c.engines))
	for _, eng := range c.engines {
		out = append(out, eng.info)
	}
	return out
}

// sweepExpired drops engines whose heartbeat deadline has passed and
// requeues their running tasks.
func (c *Controller) sweepExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for engineID, eng := range c.engines {
		if now.Sub(eng.lastSeen) <= c.heartbeatTimeout {
			continue
		}
		delete(c.engines, engineID)
		requeued := c.requeueLocked(engineID)
		c.logger.Warn("engine expired",
			logpkg.Str("engine_id", engineID),
			logpkg.Int("requeued", requeued))
	}
}

// requeueLocked moves an engine's running tasks back to pending. Pinned
// tasks lose their pin since the target engine is gone.
func (c *Controller) requeueLocked(engineID string) int {
	n := 0
	for _, t := range c.tasks {
		if t.State == TaskRunning && t.EngineID == engineID {
			t.State = TaskPending
			t.EngineID = ""
			t.Pinned = ""
			c.pending = append([]*Task{t}, c.pending...)
			n++
		}
	}
	return n
}
