// Package dispatcher routes control commands, such as :REPLAY:LOAD: or
// :RECORD:START:, to their registered handlers. Handlers run inline by
// default; Buffered moves them onto a per-command queue so slow work
// (episode parsing, storage flushes) never stalls the caller.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Event is one incoming control command with its raw string arguments.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger is the minimal logging surface the dispatcher needs; the
// logging package provides a zerolog-backed implementation.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered runs the handler on a dedicated goroutine behind a queue of
// the given size. Dispatch returns "queued" immediately.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when its queue is full
// instead of dropping the event.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged wraps the handler with debug/error logging and timing.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers and exports queue
// metrics through the global OTel meter.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	queueDepth metric.Int64ObservableGauge
	handled    metric.Int64Counter
	dropped    metric.Int64Counter

	// buffers is read by the gauge callback concurrently with Register
	mu      sync.RWMutex
	buffers map[string]chan Event
}

// New creates a Dispatcher. The global OTel meter supplies the
// instruments; without a configured provider they are no-ops.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan Event),
		logger:   logger,
	}
	if err := d.initMetrics(meter()); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dispatcher) initMetrics(m metric.Meter) error {
	var err error

	d.queueDepth, err = m.Int64ObservableGauge(
		"command.queue.depth",
		metric.WithDescription("Buffered control commands awaiting their handler"),
	)
	if err != nil {
		return fmt.Errorf("creating queue depth gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for cmd, buf := range d.buffers {
				o.ObserveInt64(d.queueDepth, int64(len(buf)),
					metric.WithAttributes(attribute.String("command", cmd)))
			}
			return nil
		},
		d.queueDepth,
	)
	if err != nil {
		return fmt.Errorf("registering queue depth callback: %w", err)
	}

	d.handled, err = m.Int64Counter(
		"commands.handled",
		metric.WithDescription("Control commands completed by a buffered handler"),
	)
	if err != nil {
		return fmt.Errorf("creating handled counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"commands.dropped",
		metric.WithDescription("Control commands dropped because a queue was full"),
	)
	if err != nil {
		return fmt.Errorf("creating dropped counter: %w", err)
	}

	return nil
}

// Register adds a handler for the command. Registering the same
// command again replaces the previous handler.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h
	if cfg.bufferSize > 0 {
		handler = d.withBuffer(command, cfg.bufferSize, cfg.blocking, handler)
	}
	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	d.handlers[command] = handler
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}
	return h(e)
}

// HasHandler reports whether a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

func (d *Dispatcher) withBuffer(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	d.mu.Lock()
	d.buffers[command] = buffer
	d.mu.Unlock()

	cmdAttr := attribute.String("command", command)

	go func() {
		for e := range buffer {
			h(e)
			d.handled.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
		}
	}()

	if blocking {
		return func(e Event) (any, error) {
			buffer <- e
			return "queued", nil
		}
	}

	return func(e Event) (any, error) {
		select {
		case buffer <- e:
			return "queued", nil
		default:
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
			return nil, fmt.Errorf("queue full: %s", command)
		}
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling command", "command", command, "args", len(e.Args))

		result, err := h(e)

		if err != nil {
			d.logger.Error("command failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("command complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
