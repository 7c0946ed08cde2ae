package policy

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hlynr/interceptor/pkg/core"
	"github.com/hlynr/interceptor/pkg/mathx"
	"github.com/hlynr/interceptor/pkg/streaming"
)

func testBridge(cfg Config) *Bridge {
	return NewBridge(cfg, nil)
}

func commandEnvelope(t *testing.T, cmd streaming.CommandPayload) streaming.Envelope {
	t.Helper()
	raw, err := json.Marshal(cmd)
	require.NoError(t, err)
	return streaming.Envelope{Type: streaming.TypeCommand, Payload: raw}
}

func TestPollBeforeAnyCommand(t *testing.T) {
	b := testBridge(Config{})
	_, ok := b.Poll()
	assert.False(t, ok)
}

func TestPollHoldsThenDecays(t *testing.T) {
	b := testBridge(Config{StaleTicks: 2, DecayTicks: 4})
	b.obsTick.Store(1)
	b.handleEnvelope(commandEnvelope(t, streaming.CommandPayload{
		Tick:      1,
		ThrustCmd: 0.8,
		RateCmd:   mathx.Vec3{Y: 1.5},
	}))

	cmd, ok := b.Poll()
	require.True(t, ok)
	assert.InDelta(t, 0.8, cmd.Thrust, 1e-9)
	assert.True(t, b.Healthy())

	// Quiet link: held unchanged inside the trust window.
	for i := 0; i < 2; i++ {
		cmd, ok = b.Poll()
		require.True(t, ok)
		assert.InDelta(t, 0.8, cmd.Thrust, 1e-9)
	}
	assert.True(t, b.Healthy())

	// Then thrust ramps down over DecayTicks while the rate holds.
	want := []float64{0.6, 0.4, 0.2, 0}
	for i, w := range want {
		cmd, ok = b.Poll()
		require.True(t, ok)
		assert.InDelta(t, w, cmd.Thrust, 1e-9, "decay tick %d", i)
		assert.InDelta(t, 1.5, cmd.Rate.Y, 1e-9, "rate holds during decay")
	}
	assert.False(t, b.Healthy())

	// Thrust stays at zero once fully decayed.
	cmd, ok = b.Poll()
	require.True(t, ok)
	assert.Zero(t, cmd.Thrust)

	// A fresh command restores full authority.
	b.handleEnvelope(commandEnvelope(t, streaming.CommandPayload{Tick: 2, ThrustCmd: 1}))
	cmd, ok = b.Poll()
	require.True(t, ok)
	assert.InDelta(t, 1, cmd.Thrust, 1e-9)
	assert.True(t, b.Healthy())
}

func TestHandleEnvelopeRejectsBadCommands(t *testing.T) {
	cases := []struct {
		name string
		env  streaming.Envelope
		prep func(b *Bridge)
	}{
		{
			name: "malformed payload",
			env:  streaming.Envelope{Type: streaming.TypeCommand, Payload: []byte(`{"thrust_cmd":`)},
		},
		{
			name: "thrust out of float range",
			env: streaming.Envelope{Type: streaming.TypeCommand,
				Payload: []byte(`{"tick":1,"thrust_cmd":1e999,"rate_cmd":{"x":0,"y":0,"z":0}}`)},
		},
		{
			name: "stale tick",
			prep: func(b *Bridge) { b.obsTick.Store(100) },
			env: commandEnvelope(t, streaming.CommandPayload{
				Tick: 10, ThrustCmd: 0.5,
			}),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := testBridge(Config{StaleTicks: 5, DecayTicks: 5})
			if tc.prep != nil {
				tc.prep(b)
			}
			b.handleEnvelope(tc.env)
			_, ok := b.Poll()
			assert.False(t, ok, "rejected command must not reach the hold slot")
		})
	}
}

func TestHandleEnvelopeNonFiniteRate(t *testing.T) {
	// encoding/json refuses to emit infinities, so build the payload
	// raw the way a misbehaving server would send it.
	b := testBridge(Config{})
	b.handleEnvelope(streaming.Envelope{
		Type:    streaming.TypeCommand,
		Payload: []byte(`{"tick":1,"thrust_cmd":0.5,"rate_cmd":{"x":1e999,"y":0,"z":0}}`),
	})
	_, ok := b.Poll()
	assert.False(t, ok, "non-finite rate must not reach the hold slot")
}

func TestValidCommand(t *testing.T) {
	ok := streaming.CommandPayload{ThrustCmd: 0.5, RateCmd: mathx.Vec3{Y: 1}}
	assert.True(t, validCommand(ok))

	assert.False(t, validCommand(streaming.CommandPayload{ThrustCmd: math.NaN()}))
	assert.False(t, validCommand(streaming.CommandPayload{ThrustCmd: math.Inf(1)}))
	assert.False(t, validCommand(streaming.CommandPayload{RateCmd: mathx.Vec3{X: math.Inf(-1)}}))
	assert.False(t, validCommand(streaming.CommandPayload{RateCmd: mathx.Vec3{Z: math.NaN()}}))
}

func TestObserveDerivedFeatures(t *testing.T) {
	b := testBridge(Config{})

	own := core.AgentState{
		Position:    mathx.Vec3{},
		Velocity:    mathx.Vec3{X: 50},
		Orientation: mathx.QuatIdentity(),
	}
	target := core.AgentState{
		Position: mathx.Vec3{X: 1000},
		Velocity: mathx.Vec3{X: -50},
	}

	obs := b.Observe(1, 0, "missile", 0.1, own, 1, &target)
	assert.True(t, obs.HasTarget)
	assert.InDelta(t, 1000, obs.RangeM, 1e-9)
	assert.InDelta(t, 1, obs.LOSUnit.X, 1e-9)
	assert.InDelta(t, 100, obs.ClosingSpeed, 1e-9, "head-on closure sums both speeds")
	assert.Zero(t, obs.LOSRateRad, "no rate before a second sighting")

	// Target steps sideways: LOS swings and the rate shows it.
	target.Position = mathx.Vec3{X: 1000, Y: 100}
	obs = b.Observe(2, 0.1, "missile", 0.1, own, 1, &target)
	wantAngle := math.Atan2(100, 1000)
	assert.InDelta(t, wantAngle/0.1, obs.LOSRateRad, 1e-9)

	// Losing the target clears the LOS memory.
	obs = b.Observe(3, 0.2, "missile", 0.1, own, 1, nil)
	assert.False(t, obs.HasTarget)
	obs = b.Observe(4, 0.3, "missile", 0.1, own, 1, &target)
	assert.Zero(t, obs.LOSRateRad)
}

// policyServer upgrades to WebSocket, acks hello, and answers every
// observation with a command echoing its tick.
func policyServer(t *testing.T) (*httptest.Server, *frameLog) {
	t.Helper()
	fl := &frameLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			fl.add(env)

			switch env.Type {
			case streaming.TypeHello:
				data, _ := streaming.Wrap(streaming.TypeAck,
					streaming.AckMessage{Type: streaming.TypeAck, For: streaming.TypeHello})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			case streaming.TypeObservation:
				var obs streaming.ObservationPayload
				if err := json.Unmarshal(env.Payload, &obs); err != nil {
					continue
				}
				data, _ := streaming.Wrap(streaming.TypeCommand, streaming.CommandPayload{
					Tick:      obs.Tick,
					ThrustCmd: 0.75,
					RateCmd:   mathx.Vec3{Z: 0.25},
				})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))

	return srv, fl
}

type frameLog struct {
	mu     sync.Mutex
	frames []streaming.Envelope
}

func (f *frameLog) add(env streaming.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, env)
}

func (f *frameLog) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.frames))
	for i, env := range f.frames {
		out[i] = env.Type
	}
	return out
}

func TestBridgeRoundTrip(t *testing.T) {
	srv, fl := policyServer(t)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	b := NewBridge(Config{URL: wsURL, Token: "sekrit", AckTimeout: 2 * time.Second}, nil)

	err := b.Connect(streaming.HelloPayload{EpisodeID: "ep-rt", AgentID: "missile", Dt: 0.1})
	require.NoError(t, err)

	own := core.AgentState{Orientation: mathx.QuatIdentity()}
	target := core.AgentState{Position: mathx.Vec3{X: 500}}
	b.Observe(1, 0, "missile", 0.1, own, 1, &target)

	var cmd Command
	require.Eventually(t, func() bool {
		c, ok := b.Poll()
		if ok {
			cmd = c
		}
		return ok
	}, 2*time.Second, 10*time.Millisecond, "command should arrive")
	assert.InDelta(t, 0.75, cmd.Thrust, 1e-9)
	assert.InDelta(t, 0.25, cmd.Rate.Z, 1e-9)

	require.NoError(t, b.Close(streaming.EpisodeEndPayload{EpisodeID: "ep-rt", Outcome: "hit"}))

	types := fl.types()
	require.NotEmpty(t, types)
	assert.Equal(t, streaming.TypeHello, types[0])
	assert.Contains(t, types, streaming.TypeObservation)
}
