// Package chatsync keeps a preview list current by applying push events from a
// realtime session on top of a baseline fetched over REST.
package chatsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/honganh1206/stargazer/credential"
	"github.com/honganh1206/stargazer/preview"
	"github.com/honganh1206/stargazer/realtime"
)

var (
	ErrConnecting = errors.New("chatsync: activation already in progress")
)

type State int

const (
	Idle State = iota
	Connecting
	Subscribed
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Subscribed:
		return "subscribed"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is a negotiated subscription-capable connection.
type Session interface {
	ID() string
	Subscribe(destination string, handler func(body []byte)) error
	Done() <-chan struct{}
	Err() error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, token string) (Session, error)
}

type DialFunc func(ctx context.Context, token string) (Session, error)

func (f DialFunc) Dial(ctx context.Context, token string) (Session, error) {
	return f(ctx, token)
}

// RealtimeDialer adapts a realtime.Dialer.
func RealtimeDialer(d *realtime.Dialer) Dialer {
	return DialFunc(func(ctx context.Context, token string) (Session, error) {
		s, err := d.Dial(ctx, token)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// Updater receives list transformations. preview.List satisfies it.
type Updater interface {
	Update(fn func([]preview.Preview) []preview.Preview)
}

type Option func(*Synchronizer)

func WithMissPolicy(p preview.MissPolicy) Option {
	return func(s *Synchronizer) {
		s.policy = p
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = l
	}
}

// WithDestination overrides the address derived from the session id.
func WithDestination(fn func(session string) string) Option {
	return func(s *Synchronizer) {
		s.destination = fn
	}
}

type Synchronizer struct {
	dialer      Dialer
	list        Updater
	policy      preview.MissPolicy
	logger      *slog.Logger
	destination func(string) string

	mu      sync.Mutex
	state   State
	session Session
	cancel  context.CancelFunc
	// Bumped on every activation and teardown so stale goroutines can tell
	// they no longer own the handle
	gen uint64
}

func New(dialer Dialer, list Updater, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		dialer:      dialer,
		list:        list,
		policy:      preview.MissIgnore,
		logger:      slog.Default(),
		destination: realtime.PreviewDestination,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Activate connects and subscribes in the background. The returned channel
// yields exactly one value: nil once subscribed, or the failure.
func (s *Synchronizer) Activate(ctx context.Context, token string) <-chan error {
	result := make(chan error, 1)

	s.mu.Lock()
	switch s.state {
	case Subscribed:
		s.mu.Unlock()
		result <- nil
		return result
	case Connecting:
		s.mu.Unlock()
		result <- ErrConnecting
		return result
	}

	if token == "" {
		s.mu.Unlock()
		result <- credential.ErrUnauthenticated
		return result
	}

	ctx, cancel := context.WithCancel(ctx)
	s.gen++
	gen := s.gen
	s.state = Connecting
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		result <- s.connect(ctx, gen, token)
	}()

	return result
}

func (s *Synchronizer) connect(ctx context.Context, gen uint64, token string) error {
	sess, err := s.dialer.Dial(ctx, token)
	if err != nil {
		s.logger.Error("chat preview negotiation failed", "err", err)
		s.abort(gen)
		return err
	}

	dest := s.destination(sess.ID())
	handler := func(body []byte) {
		// Deliveries racing a teardown belong to a handle we no longer own
		s.mu.Lock()
		current := s.gen == gen
		s.mu.Unlock()
		if current {
			s.handle(body)
		}
	}
	if err := sess.Subscribe(dest, handler); err != nil {
		s.logger.Error("chat preview subscription failed", "destination", dest, "err", err)
		sess.Close()
		s.abort(gen)
		return err
	}

	s.mu.Lock()
	if s.gen != gen {
		// Deactivated while negotiating
		s.mu.Unlock()
		sess.Close()
		return context.Canceled
	}
	s.state = Subscribed
	s.session = sess
	s.mu.Unlock()

	s.logger.Info("subscribed to chat previews", "session", sess.ID(), "destination", dest)
	go s.watch(gen, sess)
	return nil
}

// abort moves a failed activation back to Idle, unless a teardown got there first.
func (s *Synchronizer) abort(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.state = Idle
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// watch notices transport failures. They are terminal: the handle is dropped
// and the synchronizer waits for the caller to activate again.
func (s *Synchronizer) watch(gen uint64, sess Session) {
	<-sess.Done()

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.state = Idle
	s.session = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.logger.Warn("chat preview connection lost", "err", sess.Err())
}

func (s *Synchronizer) handle(body []byte) {
	var ev preview.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		s.logger.Warn("dropping malformed preview event", "err", err, "body", string(body))
		return
	}
	if ev.TeamID == "" {
		s.logger.Warn("dropping preview event without team id", "body", string(body))
		return
	}

	s.list.Update(func(items []preview.Preview) []preview.Preview {
		out, err := preview.Apply(items, ev, s.policy)
		if err != nil {
			s.logger.Error("applying preview event", "team", ev.TeamID, "err", err)
		}
		return out
	})
}

// Deactivate tears the connection down. The close request is issued right
// away; the returned channel yields the outcome of the graceful disconnect.
func (s *Synchronizer) Deactivate() <-chan error {
	result := make(chan error, 1)

	s.mu.Lock()
	prev := s.state
	sess := s.session
	cancel := s.cancel
	s.gen++
	s.session = nil
	s.cancel = nil
	if prev != Idle {
		s.state = Closed
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if sess == nil {
		result <- nil
		return result
	}

	go func() {
		err := sess.Close()
		if err != nil {
			s.logger.Warn("chat preview disconnect", "err", err)
		} else {
			s.logger.Info("chat preview connection closed")
		}
		result <- err
	}()

	return result
}
