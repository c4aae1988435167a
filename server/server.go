package server

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/honganh1206/stargazer/config"
	"github.com/honganh1206/stargazer/server/data"
	"github.com/honganh1206/stargazer/server/db"
)

const shutdownTimeout = 10 * time.Second

// Server is the development backend: REST endpoints for groups, chat and
// uploads plus a STOMP broker pushing preview updates.
type Server struct {
	cfg     config.ServerConfig
	db      *sql.DB
	models  *data.Models
	tokens  *tokenIssuer
	uploads *uploadStore
	broker  *broker
	logger  *slog.Logger
}

func New(cfg config.ServerConfig, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	database, err := db.OpenDB(db.DefaultConfig(cfg.DSN), data.Schema)
	if err != nil {
		return nil, err
	}

	uploads, err := newUploadStore(cfg.UploadDir)
	if err != nil {
		database.Close()
		return nil, err
	}

	tokens := newTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	return &Server{
		cfg:     cfg,
		db:      database,
		models:  data.NewModels(database),
		tokens:  tokens,
		uploads: uploads,
		broker:  newBroker(tokens, logger),
		logger:  logger,
	}, nil
}

// IssueToken signs an access token for userID the same way the OAuth
// exchange does.
func (s *Server) IssueToken(userID string) (string, error) {
	token, _, err := s.tokens.Issue(userID)
	return token, err
}

// Close drops live sessions and closes the database.
func (s *Server) Close() error {
	s.broker.Close()
	return s.db.Close()
}

// Serve runs the backend on ln until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, ln net.Listener, cfg config.ServerConfig, logger *slog.Logger) error {
	srv, err := New(cfg, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		srv.logger.Info("stargazer dev server listening", "addr", ln.Addr().String())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	srv.logger.Info("shutting down dev server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown
	srv.broker.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	code, message := errorStatus(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeError(w, code, message)
}

func (s *Server) publicURL(r *http.Request) string {
	if s.cfg.PublicURL != "" {
		return s.cfg.PublicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
