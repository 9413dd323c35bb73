package midealan

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mholland/senville-sync/internal/model"
)

// DefaultPort is the appliance's LAN control port.
const DefaultPort = 6444

// Config carries everything needed to establish one authenticated session.
// Token and key are opaque pairing credentials; presence is validated by the
// configuration layer, format here.
type Config struct {
	Address string
	Port    int
	Token   string
	Key     string
}

// Session is one authenticated TCP connection to the appliance. Not safe for
// concurrent use; the gateway client serializes calls.
type Session struct {
	conn net.Conn
	key  cipherKey
}

// Dial connects, performs the token handshake, and derives the session key.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}

	token, err := decodeToken(cfg.Token)
	if err != nil {
		return nil, err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(cfg.Address, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}

	s := &Session{conn: conn}
	if err := s.handshake(ctx, token, cfg.Key); err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake failed: %w", err)
	}

	log.Debug().Str("address", cfg.Address).Int("port", port).Msg("Device session established")
	return s, nil
}

// handshake sends the pairing token encrypted under the local key and derives
// the per-session cipher key from the appliance's reply.
func (s *Session) handshake(ctx context.Context, token []byte, key string) error {
	defer s.clearDeadline()
	if err := s.applyDeadline(ctx); err != nil {
		return err
	}

	sealed, err := encrypt(localKey(key), token)
	if err != nil {
		return err
	}
	if err := EncodeFrame(s.conn, Frame{Type: TypeHandshakeRequest, Payload: sealed}); err != nil {
		return err
	}

	resp, err := ReadFrame(s.conn)
	if err != nil {
		return err
	}
	if resp.Type != TypeHandshakeResponse {
		return fmt.Errorf("unexpected frame type 0x%x in handshake", resp.Type)
	}

	reply, err := decrypt(localKey(key), resp.Payload)
	if err != nil {
		return fmt.Errorf("could not decrypt handshake reply: %w", err)
	}

	s.key = deriveSessionKey(key, reply)
	return nil
}

// Query fetches a fresh state snapshot.
func (s *Session) Query(ctx context.Context) (model.DeviceState, error) {
	body, err := s.roundTrip(ctx, buildQueryBody())
	if err != nil {
		return model.DeviceState{}, err
	}
	return parseStatusBody(body)
}

// Apply pushes a full state snapshot. The appliance acknowledges a set
// command with a status report, which is decoded and discarded; the engine
// re-fetches after the settle delay rather than trusting the echo.
func (s *Session) Apply(ctx context.Context, st model.DeviceState) error {
	body, err := s.roundTrip(ctx, buildSetBody(st))
	if err != nil {
		return err
	}
	if _, err := parseStatusBody(body); err != nil {
		return fmt.Errorf("device rejected set command: %w", err)
	}
	return nil
}

func (s *Session) Close() error {
	return s.conn.Close()
}

func (s *Session) roundTrip(ctx context.Context, body []byte) ([]byte, error) {
	defer s.clearDeadline()
	if err := s.applyDeadline(ctx); err != nil {
		return nil, err
	}

	sealed, err := encrypt(s.key, wrapMessage(body))
	if err != nil {
		return nil, err
	}
	if err := EncodeFrame(s.conn, Frame{Type: TypeEncryptedRequest, Payload: sealed}); err != nil {
		return nil, err
	}

	resp, err := ReadFrame(s.conn)
	if err != nil {
		return nil, err
	}
	if resp.Type != TypeEncryptedResponse {
		return nil, fmt.Errorf("unexpected frame type 0x%x", resp.Type)
	}

	msg, err := decrypt(s.key, resp.Payload)
	if err != nil {
		return nil, err
	}
	return unwrapMessage(msg)
}

func (s *Session) applyDeadline(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		return s.conn.SetDeadline(deadline)
	}
	return nil
}

func (s *Session) clearDeadline() {
	s.conn.SetDeadline(time.Time{})
}
