package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hlynr/interceptor/pkg/core"
	"github.com/hlynr/interceptor/pkg/mathx"
)

func entryAt(p mathx.Vec3, status core.AgentStatus) AgentEntry {
	return AgentEntry{
		Pose: core.Pose{
			Position:    p,
			Orientation: mathx.Quat{W: 1},
		},
		Status: status,
	}
}

func TestSetGetRemove(t *testing.T) {
	c := NewAgentCache()

	_, ok := c.Get("interceptor_0")
	assert.False(t, ok)

	c.Set("interceptor_0", entryAt(mathx.Vec3{X: 1, Y: 2, Z: 3}, core.StatusActive))
	e, ok := c.Get("interceptor_0")
	require.True(t, ok)
	assert.Equal(t, mathx.Vec3{X: 1, Y: 2, Z: 3}, e.Pose.Position)

	c.Remove("interceptor_0")
	_, ok = c.Get("interceptor_0")
	assert.False(t, ok)
}

func TestPositionHidesDestroyedAgents(t *testing.T) {
	c := NewAgentCache()
	c.Set("target_0", entryAt(mathx.Vec3{Z: 500}, core.StatusActive))

	pos, ok := c.Position("target_0")
	require.True(t, ok)
	assert.Equal(t, mathx.Vec3{Z: 500}, pos)

	c.Set("target_0", entryAt(mathx.Vec3{Z: 500}, core.StatusDestroyed))
	_, ok = c.Position("target_0")
	assert.False(t, ok, "destroyed agents must not resolve as target references")

	_, ok = c.Position("missing")
	assert.False(t, ok)
}

func TestResetAndIDs(t *testing.T) {
	c := NewAgentCache()
	c.Set("a", entryAt(mathx.Vec3{}, core.StatusActive))
	c.Set("b", entryAt(mathx.Vec3{}, core.StatusActive))
	assert.ElementsMatch(t, []string{"a", "b"}, c.IDs())

	c.Reset()
	assert.Empty(t, c.IDs())
}

func TestConcurrentAccess(t *testing.T) {
	c := NewAgentCache()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.Set("agent", entryAt(mathx.Vec3{X: float64(j)}, core.StatusActive))
				c.Get("agent")
				c.Position("agent")
				c.IDs()
			}
		}()
	}
	wg.Wait()

	_, ok := c.Get("agent")
	assert.True(t, ok)
}
