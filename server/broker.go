package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/honganh1206/stargazer/preview"
	"github.com/honganh1206/stargazer/realtime"
)

const sessionQueueSize = 64

// broker is a minimal STOMP 1.2 server on top of websockets. Clients may only
// subscribe to their own session's preview queue; everything they receive is
// pushed by publish.
type broker struct {
	tokens   *tokenIssuer
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*stompSession
	closed   bool
}

func newBroker(tokens *tokenIssuer, logger *slog.Logger) *broker {
	return &broker{
		tokens: tokens,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{"v12.stomp", "v11.stomp", "v10.stomp"},
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		sessions: make(map[string]*stompSession),
	}
}

type stompSession struct {
	id     string
	userID string
	conn   *realtime.Conn
	writer *frame.Writer

	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[string]string // subscription id -> destination

	send chan *frame.Frame
	done chan struct{}
}

func (s *stompSession) write(f *frame.Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.writer.Write(f)
}

func (s *stompSession) writeLoop() {
	for {
		select {
		case f := <-s.send:
			if err := s.write(f); err != nil {
				s.conn.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *stompSession) enqueue(f *frame.Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- f:
		return true
	default:
		return false
	}
}

func (s *stompSession) sendError(message string) {
	s.write(frame.New(frame.ERROR, frame.Message, message))
}

func (b *broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on the upgrade, so a missing bearer is left
	// for CONNECT to check. A bad one is refused right away.
	upgradeToken, hasToken := bearerToken(r.Header.Get("Authorization"))
	if hasToken {
		if _, err := b.tokens.Verify(upgradeToken); err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
	}

	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Debug("websocket upgrade failed", "err", err)
		return
	}

	conn := realtime.NewConn(ws)
	defer conn.Close()

	b.serve(conn, upgradeToken)
}

func (b *broker) serve(conn *realtime.Conn, upgradeToken string) {
	reader := frame.NewReader(conn)
	writer := frame.NewWriter(conn)

	connect, err := readFrame(reader)
	if err != nil {
		return
	}

	reject := func(msg string) {
		writer.Write(frame.New(frame.ERROR, frame.Message, msg))
	}

	if connect.Command != frame.CONNECT && connect.Command != frame.STOMP {
		reject("expected CONNECT")
		return
	}

	token, ok := bearerToken(connect.Header.Get("Authorization"))
	if !ok {
		token = upgradeToken
	}
	userID, err := b.tokens.Verify(token)
	if err != nil {
		b.logger.Debug("stomp connect rejected", "err", err)
		reject("unauthorized")
		return
	}

	sess := &stompSession{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		writer: writer,
		subs:   make(map[string]string),
		send:   make(chan *frame.Frame, sessionQueueSize),
		done:   make(chan struct{}),
	}

	// Registered before CONNECTED so Close always reaches sessions a client
	// already considers open
	if !b.add(sess) {
		reject("server shutting down")
		return
	}
	defer b.remove(sess)

	connected := frame.New(frame.CONNECTED,
		frame.Version, "1.2",
		frame.Session, sess.id,
		frame.HeartBeat, "0,0",
		frame.Server, "stargazer-dev")
	if err := sess.write(connected); err != nil {
		return
	}
	go sess.writeLoop()

	b.logger.Debug("stomp session opened", "session", sess.id, "user", userID)

	for {
		f, err := readFrame(reader)
		if err != nil {
			if !isClosed(err) {
				b.logger.Debug("stomp read failed", "session", sess.id, "err", err)
			}
			return
		}

		switch f.Command {
		case frame.SUBSCRIBE:
			dest := f.Header.Get(frame.Destination)
			if dest != realtime.PreviewDestination(sess.id) {
				sess.sendError("subscription to " + dest + " is not allowed")
				return
			}
			sess.mu.Lock()
			sess.subs[f.Header.Get(frame.Id)] = dest
			sess.mu.Unlock()

		case frame.UNSUBSCRIBE:
			sess.mu.Lock()
			delete(sess.subs, f.Header.Get(frame.Id))
			sess.mu.Unlock()

		case frame.DISCONNECT:
			if receipt := f.Header.Get(frame.Receipt); receipt != "" {
				sess.write(frame.New(frame.RECEIPT, frame.ReceiptId, receipt))
			}
			b.logger.Debug("stomp session closed", "session", sess.id)
			return

		default:
			sess.sendError(f.Command + " is not supported")
			return
		}

		if receipt := f.Header.Get(frame.Receipt); receipt != "" {
			sess.write(frame.New(frame.RECEIPT, frame.ReceiptId, receipt))
		}
	}
}

// readFrame skips heart-beats.
func readFrame(r *frame.Reader) (*frame.Frame, error) {
	for {
		f, err := r.Read()
		if err != nil {
			return nil, err
		}
		if f != nil {
			return f, nil
		}
	}
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

func (b *broker) add(sess *stompSession) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.sessions[sess.id] = sess
	return true
}

func (b *broker) remove(sess *stompSession) {
	b.mu.Lock()
	delete(b.sessions, sess.id)
	b.mu.Unlock()
	close(sess.done)
}

// publish pushes ev to every subscription of every session userID has open.
func (b *broker) publish(userID string, ev preview.Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error("encode preview event", "err", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sess := range b.sessions {
		if sess.userID != userID {
			continue
		}

		sess.mu.Lock()
		for subID, dest := range sess.subs {
			f := frame.New(frame.MESSAGE,
				frame.Destination, dest,
				frame.Subscription, subID,
				frame.MessageId, uuid.NewString(),
				frame.ContentType, "application/json",
				frame.ContentLength, strconv.Itoa(len(body)))
			f.Body = body

			if !sess.enqueue(f) {
				b.logger.Warn("dropped preview event", "session", sess.id, "team", ev.TeamID)
			}
		}
		sess.mu.Unlock()
	}
}

// subscribed reports whether userID has at least one live subscription.
func (b *broker) subscribed(userID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sess := range b.sessions {
		if sess.userID != userID {
			continue
		}
		sess.mu.Lock()
		n := len(sess.subs)
		sess.mu.Unlock()
		if n > 0 {
			return true
		}
	}
	return false
}

// Close drops every open session and refuses new ones.
func (b *broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, sess := range b.sessions {
		sess.conn.Close()
	}
}
