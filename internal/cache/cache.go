package cache

import (
	"sync"

	"github.com/hlynr/interceptor/pkg/core"
	"github.com/hlynr/interceptor/pkg/mathx"
)

// AgentEntry is the last published kinematic state of one agent.
type AgentEntry struct {
	Pose     core.Pose
	Velocity mathx.Vec3
	Status   core.AgentStatus
}

// AgentCache is the explicit target registry: components that need to
// look up another agent's state receive this by reference instead of
// consulting a process-wide current-target. The tick loop publishes
// into it; sensors read from it.
type AgentCache struct {
	mu      sync.RWMutex
	entries map[string]AgentEntry
}

func NewAgentCache() *AgentCache {
	return &AgentCache{entries: make(map[string]AgentEntry)}
}

// Set publishes an agent's state.
func (c *AgentCache) Set(id string, e AgentEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = e
}

// Get returns an agent's last published state.
func (c *AgentCache) Get(id string) (AgentEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return e, ok
}

// Position returns an agent's position if it is present and not
// destroyed. Seekers use this: a missing or destroyed target means no
// target reference at all.
func (c *AgentCache) Position(id string) (mathx.Vec3, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok || e.Status == core.StatusDestroyed {
		return mathx.Vec3{}, false
	}
	return e.Pose.Position, true
}

// Remove drops an agent from the registry.
func (c *AgentCache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Reset clears all entries, for episode restarts.
func (c *AgentCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]AgentEntry)
}

// IDs returns the currently registered agent identifiers.
func (c *AgentCache) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	return ids
}
