package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Default sender timings.
const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultGrace        = 100 * time.Millisecond
	DefaultBackoff      = time.Second
	DefaultDialTimeout  = 5 * time.Second
)

// SenderConfig configures a Sender.
type SenderConfig struct {
	URI string
	// Persistent keeps one connection open across messages and redials on
	// the next message after a failure. Delivery stays at-most-once.
	Persistent   bool
	PollInterval time.Duration
	Grace        time.Duration
	Backoff      time.Duration
	DialTimeout  time.Duration
}

func (c *SenderConfig) setDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Grace < 0 {
		c.Grace = 0
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
}

// Sender drains a Queue and pushes each message to the websocket endpoint.
// Messages that cannot be delivered are logged and dropped.
type Sender struct {
	cfg   SenderConfig
	queue *Queue
	dial  func(ctx context.Context, uri string) (*websocket.Conn, error)
	log   zerolog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
	running bool

	sent    atomic.Int64
	dropped atomic.Int64
}

// NewSender creates a Sender reading from q.
func NewSender(cfg SenderConfig, q *Queue, logger zerolog.Logger) *Sender {
	cfg.setDefaults()
	dialer := &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout}
	return &Sender{
		cfg:   cfg,
		queue: q,
		dial: func(ctx context.Context, uri string) (*websocket.Conn, error) {
			conn, _, err := dialer.DialContext(ctx, uri, nil)
			return conn, err
		},
		log: logger.With().Str("component", "notify").Logger(),
	}
}

// Start launches the sender goroutine. Calling Start twice is a no-op.
func (s *Sender) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.done = make(chan struct{})
	s.running = true

	go s.run()
}

// Stop ends the sender loop and waits for it to exit. Messages still
// queued are not sent.
func (s *Sender) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	<-done
}

// Sent returns the number of messages written to the endpoint.
func (s *Sender) Sent() int64 { return s.sent.Load() }

// Dropped returns the number of messages lost to transport errors.
func (s *Sender) Dropped() int64 { return s.dropped.Load() }

func (s *Sender) run() {
	defer close(s.done)
	defer s.closeConn()

	for s.ctx.Err() == nil {
		if err := s.step(); err != nil {
			s.log.Error().Err(err).Msg("sender loop error")
			s.sleep(s.cfg.Backoff)
		}
	}
}

// step handles at most one message. Panics from the transport are turned
// into errors so the loop survives them.
func (s *Sender) step() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered: %v", r)
		}
	}()

	msg, ok := s.queue.TryDequeue()
	if !ok {
		s.sleep(s.cfg.PollInterval)
		return nil
	}
	defer s.queue.Done()

	if err := s.send(msg); err != nil {
		s.dropped.Add(1)
		s.log.Warn().Err(err).Str("uri", s.cfg.URI).Msg("notification dropped")
		return nil
	}
	s.sent.Add(1)
	return nil
}

func (s *Sender) send(msg Message) error {
	payload, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	if s.cfg.Persistent {
		return s.sendPersistent(payload)
	}

	conn, err := s.dial(s.ctx, s.cfg.URI)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	// Give the peer a moment to read before the close frame.
	s.sleep(s.cfg.Grace)

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
	return nil
}

func (s *Sender) sendPersistent(payload []byte) error {
	conn := s.currentConn()
	if conn == nil {
		c, err := s.dial(s.ctx, s.cfg.URI)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		conn = c
		s.connMu.Lock()
		s.conn = conn
		s.connMu.Unlock()
		go s.watch(conn)
	}

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		s.dropConn(conn)
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// watch reads from a persistent connection so close frames and pings are
// handled. When the peer goes away the connection is dropped and the next
// message redials.
func (s *Sender) watch(conn *websocket.Conn) {
	for {
		if _, _, err := conn.NextReader(); err != nil {
			s.log.Debug().Err(err).Msg("persistent connection closed")
			s.dropConn(conn)
			return
		}
	}
}

func (s *Sender) currentConn() *websocket.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

func (s *Sender) dropConn(conn *websocket.Conn) {
	s.connMu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.connMu.Unlock()
	conn.Close()
}

func (s *Sender) closeConn() {
	conn := s.currentConn()
	if conn == nil {
		return
	}
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
	s.dropConn(conn)
}

// sleep waits for d or until the sender is stopped.
func (s *Sender) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-s.ctx.Done():
	}
}
