package credential

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/buntdb"
)

// TokenKey is the single key the bearer token lives under.
const TokenKey = "accessToken"

var (
	ErrUnauthenticated = errors.New("credential: not authenticated")
	ErrMalformedToken  = errors.New("credential: malformed token")

	// An expired token is also ErrUnauthenticated
	ErrTokenExpired = fmt.Errorf("%w: token expired", ErrUnauthenticated)
)

// Store persists the bearer token in a buntdb file.
type Store struct {
	db  *buntdb.DB
	now func() time.Time
}

type Option func(*Store)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open opens (or creates) the store at path. ":memory:" keeps everything in memory.
func Open(path string, opts ...Option) (*Store, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("credential: create store dir %s: %w", dir, err)
			}
		}
	}

	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("credential: open %s: %w", path, err)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	slog.Debug("opened credential store", "path", path)
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SetToken stores token until its exp claim passes.
func (s *Store) SetToken(token string) error {
	exp, err := Expiry(token)
	if err != nil {
		return err
	}

	ttl := exp.Sub(s.now())
	if ttl <= 0 {
		return ErrTokenExpired
	}

	err = s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(TokenKey, token, &buntdb.SetOptions{Expires: true, TTL: ttl})
		return err
	})
	if err != nil {
		return fmt.Errorf("credential: write token: %w", err)
	}

	slog.Info("stored access token", "expires", exp.Format(time.RFC3339))
	return nil
}

// Token returns the stored token without checking expiry.
func (s *Store) Token() (string, error) {
	var token string
	err := s.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(TokenKey)
		if err != nil {
			return err
		}
		token = val
		return nil
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return "", ErrUnauthenticated
	}
	if err != nil {
		return "", fmt.Errorf("credential: read token: %w", err)
	}
	return token, nil
}

// BearerToken returns a token that is present and not yet expired.
func (s *Store) BearerToken() (string, error) {
	token, err := s.Token()
	if err != nil {
		return "", err
	}

	exp, err := Expiry(token)
	if err != nil {
		return "", ErrUnauthenticated
	}
	if !s.now().Before(exp) {
		return "", ErrTokenExpired
	}

	return token, nil
}

func (s *Store) Clear() error {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(TokenKey)
		return err
	})
	if err != nil && !errors.Is(err, buntdb.ErrNotFound) {
		return fmt.Errorf("credential: clear token: %w", err)
	}
	return nil
}

// Expiry decodes the exp claim of a JWT. The signature is not verified; the
// backend does that on every request.
func Expiry(token string) (time.Time, error) {
	claims, err := parseClaims(token)
	if err != nil {
		return time.Time{}, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("%w: missing exp claim", ErrMalformedToken)
	}
	return exp.Time, nil
}

// Subject decodes the sub claim of a JWT.
func Subject(token string) (string, error) {
	claims, err := parseClaims(token)
	if err != nil {
		return "", err
	}
	return claims.GetSubject()
}

func parseClaims(token string) (jwt.MapClaims, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return claims, nil
}
