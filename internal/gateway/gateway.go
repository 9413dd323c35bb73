// Package gateway is the narrow boundary between the sync engine and the
// appliance. The engine only ever sees Fetch and Push; session management,
// framing, and crypto live behind the Session interface.
package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mholland/senville-sync/internal/model"
)

// Gateway is what the engine consumes.
type Gateway interface {
	Fetch(ctx context.Context) (model.DeviceState, error)
	Push(ctx context.Context, st model.DeviceState) error
}

// Session is one authenticated connection to the appliance. Implementations
// are not required to be safe for concurrent use; Client serializes access.
type Session interface {
	Query(ctx context.Context) (model.DeviceState, error)
	Apply(ctx context.Context, st model.DeviceState) error
	Close() error
}

// Dialer establishes a new authenticated session.
type Dialer func(ctx context.Context) (Session, error)

// Client owns the single shared appliance session. The session is established
// lazily on first use and reused until a communication failure, after which
// it is dropped and re-dialed on the next call. All calls are serialized and
// bounded by the configured timeout.
type Client struct {
	mu      sync.Mutex
	dial    Dialer
	addr    string
	timeout time.Duration
	sess    Session
}

func New(dial Dialer, addr string, timeout time.Duration) *Client {
	return &Client{dial: dial, addr: addr, timeout: timeout}
}

func (c *Client) Fetch(ctx context.Context) (model.DeviceState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sess, err := c.session(ctx)
	if err != nil {
		return model.DeviceState{}, &ConnectionError{Addr: c.addr, Err: err}
	}

	st, err := sess.Query(ctx)
	if err != nil {
		c.dropSession()
		return model.DeviceState{}, &CommunicationError{Op: "fetch", Err: err}
	}
	return st, nil
}

func (c *Client) Push(ctx context.Context, st model.DeviceState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sess, err := c.session(ctx)
	if err != nil {
		return &ConnectionError{Addr: c.addr, Err: err}
	}

	if err := sess.Apply(ctx, st); err != nil {
		c.dropSession()
		return &CommunicationError{Op: "push", Err: err}
	}
	return nil
}

// Close tears down the cached session, if any. The client remains usable; the
// next call re-dials.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	err := c.sess.Close()
	c.sess = nil
	return err
}

func (c *Client) session(ctx context.Context) (Session, error) {
	if c.sess != nil {
		return c.sess, nil
	}

	log.Debug().Str("address", c.addr).Msg("Establishing device session")
	sess, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.sess = sess
	return sess, nil
}

// dropSession discards a session after a failed call so the next operation
// starts clean instead of reusing a possibly desynchronized connection.
func (c *Client) dropSession() {
	if c.sess != nil {
		c.sess.Close()
		c.sess = nil
		log.Debug().Str("address", c.addr).Msg("Dropped device session after failure")
	}
}
