// Package remote keeps the schedule in step with other processes over
// websockets.  Channel is the outbound client: it dials one upstream
// endpoint, pulls the selected date on connect, applies pushed patches and
// forwards local edits.  Hub is the inbound side served at /ws.
package remote

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/iliyamo/parking-schedule/internal/catalog"
	"github.com/iliyamo/parking-schedule/internal/model"
	"github.com/iliyamo/parking-schedule/internal/store"
)

// State is the lifecycle state of a Channel.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	// StateStopped is terminal: reached after too many failed attempts or
	// after Close.
	StateStopped State = "stopped"
)

const (
	DefaultBaseDelay   = 2000 * time.Millisecond
	DefaultMaxAttempts = 5
	DefaultDialTimeout = 5 * time.Second
	// DefaultWriteTimeout bounds a single frame write on any sync socket.
	DefaultWriteTimeout = 2 * time.Second
)

// Conn is an established message connection.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(p []byte) error
	Close() error
}

// Dialer opens connections to an endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// Timer is a pending reconnect.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Config configures a Channel.  Zero fields take the package defaults;
// DateKey defaults to today in the local zone and Catalog to the built-in
// layout.
type Config struct {
	Endpoint     string
	BaseDelay    time.Duration
	MaxAttempts  int
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	Catalog      *catalog.Catalog
	Dialer       Dialer
	AfterFunc   AfterFunc
	DateKey     func() string
}

// Status is a point-in-time view of a Channel.
type Status struct {
	State       State  `json:"state"`
	Retries     int    `json:"retries"`
	MaxAttempts int    `json:"max_attempts"`
	Endpoint    string `json:"endpoint"`
}

// Channel is the client side of the sync protocol.  It is safe for
// concurrent use.
type Channel struct {
	cfg   Config
	store *store.Store

	mu      sync.Mutex
	ctx     context.Context
	state   State
	retries int
	conn    Conn
	timer   Timer
	unsub   func()

	wmu sync.Mutex
}

// NewChannel builds a disconnected channel for st.
func NewChannel(st *store.Store, cfg Config) *Channel {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = WSDialer{Timeout: cfg.DialTimeout, WriteTimeout: cfg.WriteTimeout}
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = realAfterFunc
	}
	if cfg.DateKey == nil {
		cfg.DateKey = func() string { return model.DateKey(time.Now()) }
	}
	return &Channel{cfg: cfg, store: st, state: StateDisconnected, ctx: context.Background()}
}

// Backoff returns the delay before reconnect attempt number attempt
// (zero based): base doubled attempt times.
func Backoff(base time.Duration, attempt int) time.Duration {
	return base << attempt
}

// Start subscribes to local changes and begins connecting in the
// background.  Cancelling ctx has the same effect as Close.
func (c *Channel) Start(ctx context.Context) {
	c.mu.Lock()
	if c.state == StateStopped || c.unsub != nil {
		c.mu.Unlock()
		return
	}
	c.ctx = ctx
	c.unsub = c.store.Subscribe(c.OnChange)
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.Close()
	}()
	go c.connect()
}

// Status reports the current state.
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{State: c.state, Retries: c.retries, MaxAttempts: c.cfg.MaxAttempts, Endpoint: c.cfg.Endpoint}
}

// OnChange forwards locally made patches upstream.  Patches that arrived
// from a remote peer are never sent back.
func (c *Channel) OnChange(ch store.Change) {
	if ch.Origin != store.OriginLocal {
		return
	}
	c.Publish(ch.Patch)
}

// Publish sends patch as UPDATE_SCHEDULE when connected and reports whether
// it was handed to the connection.  Nothing is queued while disconnected.
func (c *Channel) Publish(patch model.Schedule) bool {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected || conn == nil {
		return false
	}
	return c.send(conn, Message{Type: TypeUpdateSchedule, Schedule: patch})
}

// Close cancels any pending reconnect, closes the connection and stops
// the channel for good.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.state == StateStopped && c.conn == nil && c.timer == nil && c.unsub == nil {
		c.mu.Unlock()
		return
	}
	c.state = StateStopped
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Channel) connect() {
	c.mu.Lock()
	if c.state == StateStopped {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.timer = nil
	ctx := c.ctx
	c.mu.Unlock()

	dctx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	conn, err := c.cfg.Dialer.Dial(dctx, c.cfg.Endpoint)
	cancel()
	if err != nil {
		log.Printf("sync: dial %s failed: %v", c.cfg.Endpoint, err)
		c.disconnected()
		return
	}

	c.mu.Lock()
	if c.state == StateStopped {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.state = StateConnected
	c.retries = 0
	c.mu.Unlock()

	log.Printf("sync: connected to %s", c.cfg.Endpoint)
	c.send(conn, Message{Type: TypeGetData, Date: c.cfg.DateKey()})
	c.readLoop(ctx, conn)
}

func (c *Channel) readLoop(ctx context.Context, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			current := c.conn == conn
			if current {
				c.conn = nil
			}
			c.mu.Unlock()
			_ = conn.Close()
			if current {
				log.Printf("sync: connection closed: %v", err)
				c.disconnected()
			}
			return
		}
		c.handle(ctx, data)
	}
}

func (c *Channel) handle(ctx context.Context, data []byte) {
	msg, err := Decode(data)
	if err != nil {
		log.Printf("sync: dropping message: %v", err)
		return
	}
	switch msg.Type {
	case TypeScheduleUpdate:
		patch, dropped := Sanitize(msg.Schedule, c.cfg.Catalog, c.cfg.Endpoint)
		if dropped > 0 && len(patch) == 0 {
			return
		}
		if _, err := c.store.Apply(ctx, patch, store.OriginRemote, c); err != nil {
			log.Printf("sync: apply remote update failed: %v", err)
		}
	default:
		log.Printf("sync: ignoring %s message", msg.Type)
	}
}

// disconnected schedules the next attempt or gives up.
func (c *Channel) disconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStopped {
		return
	}
	if c.retries >= c.cfg.MaxAttempts {
		c.state = StateStopped
		log.Printf("sync: giving up on %s after %d attempts", c.cfg.Endpoint, c.retries)
		return
	}
	delay := Backoff(c.cfg.BaseDelay, c.retries)
	c.retries++
	c.state = StateDisconnected
	log.Printf("sync: reconnecting in %s (attempt %d/%d)", delay, c.retries, c.cfg.MaxAttempts)
	c.timer = c.cfg.AfterFunc(delay, c.connect)
}

func (c *Channel) send(conn Conn, m Message) bool {
	data, err := Encode(m)
	if err != nil {
		log.Printf("sync: encode %s failed: %v", m.Type, err)
		return false
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := conn.WriteMessage(data); err != nil {
		// the read loop notices the close and schedules a reconnect
		log.Printf("sync: send %s failed: %v", m.Type, err)
		_ = conn.Close()
		return false
	}
	return true
}
