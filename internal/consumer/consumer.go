package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/namikmesic/sidekick-stream/internal/stream"
	"github.com/rs/zerolog/log"
)

var (
	// ErrDisconnected is the cancellation cause for Disconnect and for a
	// session replaced by a later Connect. It never reaches OnError.
	ErrDisconnected   = errors.New("consumer: disconnected")
	ErrNoBody         = errors.New("consumer: stream has no readable body")
	ErrMissingHandler = errors.New("consumer: missing required handler")
)

const (
	defaultReadSize          = 32 * 1024
	defaultInvalidateTimeout = 5 * time.Second
)

// Transport opens the event stream for a subject. Cancelling ctx must make
// pending reads on the returned body fail.
type Transport interface {
	Open(ctx context.Context, subjectID string) (io.ReadCloser, error)
}

// Invalidator drops cached views of a subject: its detail and the subject
// list.
type Invalidator interface {
	Invalidate(ctx context.Context, subjectID string) error
}

// Handlers are the consumer callbacks. The four frame handlers are
// required. All callbacks of one session run on that session's goroutine.
type Handlers struct {
	OnMessageEvent func(stream.MessageFrame)
	OnSessionEvent func(stream.SessionFrame)
	OnThreadEvent  func(stream.ThreadFrame)
	OnErrorEvent   func(stream.ErrorFrame)

	OnConnected  func()
	OnError      func(error)
	OnDisconnect func()
}

type Option func(*Consumer)

func WithReadSize(n int) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.readSize = n
		}
	}
}

func WithInvalidateTimeout(d time.Duration) Option {
	return func(c *Consumer) { c.invalidateTimeout = d }
}

// Consumer follows the event stream of one subject. At most one read loop
// is active at a time.
type Consumer struct {
	subjectID         string
	transport         Transport
	invalidator       Invalidator
	h                 Handlers
	readSize          int
	invalidateTimeout time.Duration

	mu      sync.Mutex
	state   State
	current *session
}

type session struct {
	id     uuid.UUID
	ctx    context.Context
	cancel context.CancelCauseFunc
	prev   *session
	done   chan struct{}

	// connected is set once the session reaches StateConnected and cleared
	// by whichever path fires OnDisconnect first.
	connected atomic.Bool
}

func New(subjectID string, transport Transport, invalidator Invalidator, h Handlers, opts ...Option) (*Consumer, error) {
	if h.OnMessageEvent == nil || h.OnSessionEvent == nil || h.OnThreadEvent == nil || h.OnErrorEvent == nil {
		return nil, ErrMissingHandler
	}
	if transport == nil {
		return nil, errors.New("consumer: nil transport")
	}
	if invalidator == nil {
		return nil, errors.New("consumer: nil invalidator")
	}

	c := &Consumer{
		subjectID:         subjectID,
		transport:         transport,
		invalidator:       invalidator,
		h:                 h,
		readSize:          defaultReadSize,
		invalidateTimeout: defaultInvalidateTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Consumer) SubjectID() string {
	return c.subjectID
}

func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect cancels any previous session and starts a new one. It returns
// immediately; outcomes are reported through the handlers. The new session
// does not open its stream until the previous read loop has exited.
func (c *Consumer) Connect(ctx context.Context) {
	sctx, cancel := context.WithCancelCause(ctx)
	s := &session{
		id:     uuid.New(),
		ctx:    sctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	s.prev = c.current
	c.current = s
	c.state = StateConnecting
	c.mu.Unlock()

	if s.prev != nil {
		s.prev.cancel(ErrDisconnected)
	}

	log.Debug().
		Str("subject_id", c.subjectID).
		Str("connection_id", s.id.String()).
		Msg("connecting")

	go c.run(s)
}

// Disconnect cancels the current session. OnDisconnect fires once, from the
// read loop, if the session had reached StateConnected.
func (c *Consumer) Disconnect() {
	c.mu.Lock()
	s := c.current
	if s != nil {
		c.state = StateDisconnected
	}
	c.mu.Unlock()

	if s != nil {
		s.cancel(ErrDisconnected)
	}
}

// Wait blocks until the current session's read loop has exited.
func (c *Consumer) Wait() {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s != nil {
		<-s.done
	}
}

func (c *Consumer) run(s *session) {
	defer close(s.done)

	if s.prev != nil {
		<-s.prev.done
		s.prev = nil
	}
	if s.ctx.Err() != nil {
		c.finish(s, context.Cause(s.ctx))
		return
	}

	body, err := c.transport.Open(s.ctx, c.subjectID)
	if err == nil && body == nil {
		err = ErrNoBody
	}
	if err != nil {
		if s.ctx.Err() != nil {
			err = context.Cause(s.ctx)
		}
		c.finish(s, err)
		return
	}
	stop := context.AfterFunc(s.ctx, func() { body.Close() })
	defer func() {
		stop()
		body.Close()
	}()

	if !c.markConnected(s) {
		c.finish(s, context.Cause(s.ctx))
		return
	}
	log.Info().
		Str("subject_id", c.subjectID).
		Str("connection_id", s.id.String()).
		Msg("stream connected")
	if c.h.OnConnected != nil {
		c.h.OnConnected()
	}

	c.finish(s, c.readLoop(s, body))
}

func (c *Consumer) markConnected(s *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != s || s.ctx.Err() != nil {
		return false
	}
	s.connected.Store(true)
	c.state = StateConnected
	return true
}

// readLoop returns nil on a clean end of stream.
func (c *Consumer) readLoop(s *session, body io.Reader) error {
	buf := make([]byte, c.readSize)
	lines := stream.NewLineBuffer()

	for {
		if s.ctx.Err() != nil {
			return context.Cause(s.ctx)
		}

		n, err := body.Read(buf)
		if n > 0 {
			for _, line := range lines.Append(buf[:n]) {
				if s.ctx.Err() != nil {
					return context.Cause(s.ctx)
				}
				c.dispatch(s, stream.DecodeFrame(line))
			}
		}
		if err == io.EOF {
			// A final record without a trailing newline is still a record.
			if rest := lines.Pending(); rest != "" {
				c.dispatch(s, stream.DecodeFrame(rest))
			}
			return nil
		}
		if err != nil {
			if s.ctx.Err() != nil {
				return context.Cause(s.ctx)
			}
			return fmt.Errorf("read stream: %w", err)
		}
	}
}

func (c *Consumer) dispatch(s *session, f stream.Frame) {
	switch f := f.(type) {
	case stream.MessageFrame:
		c.h.OnMessageEvent(f)
	case stream.SessionFrame:
		c.invalidate(s)
		c.h.OnSessionEvent(f)
	case stream.ThreadFrame:
		c.invalidate(s)
		c.h.OnThreadEvent(f)
	case stream.ErrorFrame:
		c.h.OnErrorEvent(f)
	}
}

// invalidate does not wait for the invalidator.
func (c *Consumer) invalidate(s *session) {
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), c.invalidateTimeout)
		defer cancel()
		if err := c.invalidator.Invalidate(ctx, c.subjectID); err != nil {
			log.Warn().Err(err).
				Str("subject_id", c.subjectID).
				Str("connection_id", s.id.String()).
				Msg("cache invalidation failed")
		}
	}()
}

func (c *Consumer) finish(s *session, err error) {
	intentional := errors.Is(context.Cause(s.ctx), ErrDisconnected)
	if err != nil && !intentional {
		log.Warn().Err(err).
			Str("subject_id", c.subjectID).
			Str("connection_id", s.id.String()).
			Msg("stream failed")
		if c.h.OnError != nil {
			c.h.OnError(err)
		}
	}

	c.mu.Lock()
	if c.current == s {
		c.state = StateDisconnected
	}
	c.mu.Unlock()

	// Release the context; it may still be live after a clean end of stream.
	s.cancel(ErrDisconnected)

	if s.connected.CompareAndSwap(true, false) {
		log.Info().
			Str("subject_id", c.subjectID).
			Str("connection_id", s.id.String()).
			Msg("stream disconnected")
		if c.h.OnDisconnect != nil {
			c.h.OnDisconnect()
		}
	}
}
