package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/gorilla/websocket"
)

var (
	ErrConnectionClosed  = errors.New("realtime: connection closed")
	ErrDisconnectTimeout = errors.New("realtime: disconnect receipt timed out")
	ErrUnauthorized      = errors.New("realtime: handshake rejected credentials")
)

const (
	defaultHandshakeTimeout  = 10 * time.Second
	defaultDisconnectTimeout = 5 * time.Second
)

// PreviewDestination is the per-session address the backend delivers preview
// updates to.
func PreviewDestination(session string) string {
	return "/user/" + session + "/queue/previews"
}

// Dialer opens STOMP sessions on top of a websocket.
type Dialer struct {
	URL string
	// STOMP host header; defaults to the websocket host
	Host              string
	HeartBeat         time.Duration
	HandshakeTimeout  time.Duration
	DisconnectTimeout time.Duration
	Logger            *slog.Logger
}

// Dial connects to d.URL and negotiates a STOMP session presenting token as
// a bearer Authorization header. Cancelling ctx aborts the negotiation.
func (d *Dialer) Dial(ctx context.Context, token string) (*Session, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handshakeTimeout := d.HandshakeTimeout
	if handshakeTimeout == 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	wsDialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
		Subprotocols:     []string{"v12.stomp"},
	}

	ws, resp, err := wsDialer.DialContext(ctx, d.URL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("realtime: dial %s: %w", d.URL, err)
	}
	conn := NewConn(ws)

	host := d.Host
	if host == "" {
		host = ws.RemoteAddr().String()
	}

	opts := []func(*stomp.Conn) error{
		stomp.ConnOpt.Host(host),
		stomp.ConnOpt.HeartBeat(d.HeartBeat, d.HeartBeat),
		stomp.ConnOpt.Logger(stompLogger{l: logger}),
	}
	if token != "" {
		opts = append(opts, stomp.ConnOpt.Header("Authorization", "Bearer "+token))
	}

	type result struct {
		conn *stomp.Conn
		err  error
	}
	done := make(chan result, 1)

	go func() {
		sc, err := stomp.Connect(conn, opts...)
		done <- result{conn: sc, err: err}
	}()

	select {
	case <-ctx.Done():
		// Closing the socket unblocks the pending CONNECTED read
		conn.Close()
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			conn.Close()
			return nil, fmt.Errorf("realtime: stomp negotiation: %w", r.err)
		}

		disconnectTimeout := d.DisconnectTimeout
		if disconnectTimeout == 0 {
			disconnectTimeout = defaultDisconnectTimeout
		}

		s := &Session{
			conn:              r.conn,
			raw:               conn,
			logger:            logger,
			disconnectTimeout: disconnectTimeout,
			done:              make(chan struct{}),
		}
		logger.Debug("stomp session established", "session", s.ID(), "server", r.conn.Server())
		return s, nil
	}
}

// Session is one negotiated STOMP connection.
type Session struct {
	conn              *stomp.Conn
	raw               *Conn
	logger            *slog.Logger
	disconnectTimeout time.Duration

	mu       sync.Mutex
	closing  bool
	err      error
	done     chan struct{}
	doneOnce sync.Once
}

// ID is the session identifier assigned by the server in CONNECTED.
func (s *Session) ID() string {
	return s.conn.Session()
}

// Subscribe starts delivering message bodies sent to destination to handler.
// Deliveries for one subscription are sequential and in transport order.
func (s *Session) Subscribe(destination string, handler func(body []byte)) error {
	sub, err := s.conn.Subscribe(destination, stomp.AckAuto)
	if err != nil {
		return fmt.Errorf("realtime: subscribe %s: %w", destination, err)
	}

	go s.listen(sub, handler)
	return nil
}

func (s *Session) listen(sub *stomp.Subscription, handler func([]byte)) {
	for msg := range sub.C {
		if msg == nil {
			continue
		}
		if msg.Err != nil {
			s.fail(msg.Err)
			return
		}
		handler(msg.Body)
	}
	s.fail(ErrConnectionClosed)
}

// fail records the first terminal error unless the session is being closed on purpose.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.closing || s.err != nil {
		s.mu.Unlock()
		return
	}
	s.err = err
	s.mu.Unlock()

	s.logger.Warn("stomp session terminated", "session", s.ID(), "err", err)
	s.raw.Close()
	s.markDone()
}

func (s *Session) markDone() {
	s.doneOnce.Do(func() {
		close(s.done)
	})
}

// Done is closed once the session has ended, either by Close or by a
// transport failure.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the terminal transport error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close sends DISCONNECT and waits a bounded time for the receipt before
// closing the socket.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	failed := s.err != nil
	s.mu.Unlock()

	var err error
	if !failed {
		errCh := make(chan error, 1)
		go func() {
			errCh <- s.conn.Disconnect()
		}()

		select {
		case err = <-errCh:
		case <-time.After(s.disconnectTimeout):
			err = ErrDisconnectTimeout
		}
	}

	if cerr := s.raw.Close(); cerr != nil && err == nil && !errors.Is(cerr, websocket.ErrCloseSent) {
		s.logger.Debug("closing websocket", "err", cerr)
	}

	s.markDone()
	return err
}
