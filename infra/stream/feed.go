package stream

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fieldserve/dispatch/core/events"
	"github.com/fieldserve/dispatch/core/logger"
	"github.com/fieldserve/dispatch/core/metrics"
	"github.com/fieldserve/dispatch/core/model"
	"github.com/fieldserve/dispatch/internal/eventbus"
)

// Config holds the live-channel settings.
type Config struct {
	// URL is the WebSocket endpoint, e.g. wss://api.example.com/dispatch/feed.
	URL string `json:"url"`
	// BackoffMS is the initial reconnect delay.
	BackoffMS int `json:"backoff_ms"`
	// MaxBackoffMS caps the exponential reconnect delay.
	MaxBackoffMS int `json:"max_backoff_ms"`
	// HandshakeTimeoutSeconds bounds the WebSocket dial.
	HandshakeTimeoutSeconds int `json:"handshake_timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.BackoffMS <= 0 {
		c.BackoffMS = 500
	}
	if c.MaxBackoffMS <= 0 {
		c.MaxBackoffMS = 30000
	}
	if c.HandshakeTimeoutSeconds <= 0 {
		c.HandshakeTimeoutSeconds = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	if _, err := url.Parse(c.URL); err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	return nil
}

// Conn is the subset of a WebSocket connection the feed reads from. Satisfied
// by *websocket.Conn and by fakes in tests.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// DialFunc opens one connection attempt.
type DialFunc func(ctx context.Context, rawURL string) (Conn, error)

// Manager opens live feeds. One feed per business id for its lifetime.
type Manager struct {
	cfg  Config
	dial DialFunc
	log  logger.Logger
	sink metrics.BoardSink
}

// NewManager creates a feed manager. A nil sink disables metrics.
func NewManager(cfg Config, log logger.Logger, sink metrics.BoardSink) (*Manager, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	dialer := &websocket.Dialer{
		HandshakeTimeout: time.Duration(cfg.HandshakeTimeoutSeconds) * time.Second,
	}
	dial := func(ctx context.Context, rawURL string) (Conn, error) {
		conn, _, err := dialer.DialContext(ctx, rawURL, nil)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	return &Manager{cfg: cfg, dial: dial, log: log, sink: sink}, nil
}

// SetDialFunc overrides the dialer. Used by tests to inject fake connections.
func (m *Manager) SetDialFunc(dial DialFunc) { m.dial = dial }

// Connect opens the live channel for one business and starts its reconnect
// loop. The returned Feed is the explicitly owned handle: the caller must
// Close it on view teardown.
func (m *Manager) Connect(businessID string) (*Feed, error) {
	if businessID == "" {
		return nil, fmt.Errorf("stream: business id is required")
	}
	u, err := url.Parse(m.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("stream: invalid url: %w", err)
	}
	q := u.Query()
	q.Set("business_id", businessID)
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithCancel(context.Background())
	f := &Feed{
		url:        u.String(),
		businessID: businessID,
		state:      model.Disconnected,
		events:     eventbus.New[events.Event](),
		states:     eventbus.New[model.ConnectionState](),
		dial:       m.dial,
		backoff:    time.Duration(m.cfg.BackoffMS) * time.Millisecond,
		maxBackoff: time.Duration(m.cfg.MaxBackoffMS) * time.Millisecond,
		log:        m.log,
		sink:       m.sink,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go f.run(ctx)
	return f, nil
}

// Feed is one live event channel. Events and connection-state transitions
// are fanned out on typed buses; after Close nothing is delivered.
type Feed struct {
	url        string
	businessID string

	mu    sync.RWMutex
	state model.ConnectionState

	events *eventbus.Bus[events.Event]
	states *eventbus.Bus[model.ConnectionState]

	dial       DialFunc
	backoff    time.Duration
	maxBackoff time.Duration
	log        logger.Logger
	sink       metrics.BoardSink

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Events returns a subscription to decoded push events.
func (f *Feed) Events() <-chan events.Event { return f.events.Subscribe() }

// States returns a subscription to connection-state transitions.
func (f *Feed) States() <-chan model.ConnectionState { return f.states.Subscribe() }

// State returns the current connection state.
func (f *Feed) State() model.ConnectionState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Close tears the feed down: the socket is closed, the pending retry timer is
// cancelled and no further events are delivered.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		f.cancel()
		<-f.done
		f.events.Close()
		f.states.Close()
	})
}

func (f *Feed) setState(s model.ConnectionState, attempt int) {
	f.mu.Lock()
	changed := f.state != s
	f.state = s
	f.mu.Unlock()
	if !changed {
		return
	}
	f.states.Publish(s)
	if err := f.sink.RecordConnection(metrics.ConnectionRecord{
		State:   s,
		Attempt: attempt,
		Time:    time.Now(),
	}); err != nil {
		f.log.Errorf("metrics error: %v", err)
	}
}

// run is the reconnect loop. The channel counts as connected only once the
// first message arrives, not merely on socket-open; the backoff resets after
// a session confirmed live that way.
func (f *Feed) run(ctx context.Context) {
	defer close(f.done)
	defer f.setState(model.Disconnected, 0)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		f.setState(model.Reconnecting, attempt)

		conn, err := f.dial(ctx, f.url)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.log.Warnf("feed dial failed (attempt %d): %v", attempt+1, err)
			if !f.sleep(ctx, f.delay(attempt)) {
				return
			}
			attempt++
			continue
		}

		confirmed := f.consume(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		if confirmed {
			attempt = 0
		} else {
			if !f.sleep(ctx, f.delay(attempt)) {
				return
			}
			attempt++
		}
	}
}

// consume reads one session until it fails. Returns whether the session was
// confirmed live (at least one message received).
func (f *Feed) consume(ctx context.Context, conn Conn) bool {
	defer func() {
		if err := conn.Close(); err != nil {
			f.log.Debugf("feed close: %v", err)
		}
	}()

	// Unblock ReadMessage when the owning view tears down.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	confirmed := false
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				f.log.Warnf("feed read: %v", err)
			}
			return confirmed
		}
		if !confirmed {
			confirmed = true
			f.setState(model.Connected, 0)
			f.log.Infof("feed live for business %s", f.businessID)
		}
		ev, err := events.Decode(payload)
		if err != nil {
			// Malformed or unknown messages are dropped, never fatal.
			f.log.Debugf("feed decode: %v", err)
			continue
		}
		if ctx.Err() != nil {
			return confirmed
		}
		f.events.Publish(ev)
	}
}

// delay returns the backoff for the given consecutive failure count.
func (f *Feed) delay(attempt int) time.Duration {
	d := f.backoff
	for i := 0; i < attempt && d < f.maxBackoff; i++ {
		d *= 2
	}
	if d > f.maxBackoff {
		d = f.maxBackoff
	}
	return d
}

// sleep waits for d or until the context is cancelled. Reports whether the
// loop should continue.
func (f *Feed) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
