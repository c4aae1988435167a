package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
)

// Config holds the environment driven configuration for the client and the dev server.
type Config struct {
	BaseURL        string        `env:"STARGAZER_BASE_URL" envDefault:"http://localhost:11436"`
	SocketURL      string        `env:"STARGAZER_SOCKET_URL"`
	CredentialPath string        `env:"STARGAZER_CREDENTIALS"`
	RequestTimeout time.Duration `env:"STARGAZER_REQUEST_TIMEOUT" envDefault:"15s"`

	Server ServerConfig `envPrefix:"STARGAZER_SERVER_"`
}

type ServerConfig struct {
	Addr      string        `env:"ADDR" envDefault:":11436"`
	DSN       string        `env:"DSN"`
	UploadDir string        `env:"UPLOAD_DIR"`
	PublicURL string        `env:"PUBLIC_URL" envDefault:"http://localhost:11436"`
	JWTSecret string        `env:"JWT_SECRET" envDefault:"stargazer-dev-secret"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
}

// Load reads envPath (if it exists) into the process environment and then
// parses the environment. Variables already set win over the file.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envPath, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finalize() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		return errors.New("STARGAZER_BASE_URL must not be empty")
	}

	if c.SocketURL == "" {
		socketURL, err := SocketURLFor(c.BaseURL)
		if err != nil {
			return err
		}
		c.SocketURL = socketURL
	}

	home, err := homedir.Dir()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}
	dataDir := filepath.Join(home, ".stargazer")

	if c.CredentialPath == "" {
		c.CredentialPath = filepath.Join(dataDir, "credentials.db")
	} else if c.CredentialPath, err = homedir.Expand(c.CredentialPath); err != nil {
		return fmt.Errorf("expand credential path: %w", err)
	}

	if c.Server.DSN == "" {
		c.Server.DSN = filepath.Join(dataDir, "server.db")
	}
	if c.Server.UploadDir == "" {
		c.Server.UploadDir = filepath.Join(dataDir, "uploads")
	} else if c.Server.UploadDir, err = homedir.Expand(c.Server.UploadDir); err != nil {
		return fmt.Errorf("expand upload dir: %w", err)
	}
	c.Server.PublicURL = strings.TrimRight(c.Server.PublicURL, "/")

	return nil
}

// SocketURLFor derives the STOMP endpoint from the REST base URL.
func SocketURLFor(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = ""
	return u.String(), nil
}
