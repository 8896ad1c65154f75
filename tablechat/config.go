package tablechat

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultReconnectDelay is the fixed wait between a dropped transport and the next dial.
const DefaultReconnectDelay = 3 * time.Second

// Config controls how the SDK connects.
type Config struct {
	WSBaseURL        string        `env:"PUBLIC_BASE_WS_URL" yaml:"ws_base_url" toml:"ws_base_url"`   // e.g. ws://localhost:8080
	APIBaseURL       string        `env:"PUBLIC_BASE_API_URL" yaml:"api_base_url" toml:"api_base_url"` // e.g. http://localhost:8080
	HandshakeTimeout time.Duration `env:"TABLECHAT_HANDSHAKE_TIMEOUT" yaml:"handshake_timeout" toml:"handshake_timeout"`
	ReadTimeout      time.Duration `env:"TABLECHAT_READ_TIMEOUT" yaml:"read_timeout" toml:"read_timeout"` // 0 keeps idle tables open
	WriteTimeout     time.Duration `env:"TABLECHAT_WRITE_TIMEOUT" yaml:"write_timeout" toml:"write_timeout"`
	HTTPTimeout      time.Duration `env:"TABLECHAT_HTTP_TIMEOUT" yaml:"http_timeout" toml:"http_timeout"`
	ReconnectDelay   time.Duration `env:"TABLECHAT_RECONNECT_DELAY" yaml:"reconnect_delay" toml:"reconnect_delay"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		HTTPTimeout:      30 * time.Second,
		ReconnectDelay:   DefaultReconnectDelay,
	}
}

// ConfigFromEnv starts from DefaultConfig and overrides any field whose
// environment variable is set.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, WrapError(ErrorInvalidConfig, "parse env", err)
	}
	return cfg, nil
}

// Validate checks the base URLs.
func (c Config) Validate() error {
	if err := checkBaseURL(c.WSBaseURL, "ws", "wss"); err != nil {
		return WrapError(ErrorInvalidConfig, "ws_base_url", err)
	}
	if err := checkBaseURL(c.APIBaseURL, "http", "https"); err != nil {
		return WrapError(ErrorInvalidConfig, "api_base_url", err)
	}
	if c.ReconnectDelay < 0 {
		return NewError(ErrorInvalidConfig, "reconnect_delay must not be negative")
	}
	return nil
}

// Endpoint returns the live transport URL for token.
func (c Config) Endpoint(token string) string {
	return strings.TrimRight(c.WSBaseURL, "/") + "/ws?" + url.Values{"token": {token}}.Encode()
}

func checkBaseURL(raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("empty URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("missing host in %q", raw)
			}
			return nil
		}
	}
	return fmt.Errorf("scheme %q not one of %v", u.Scheme, schemes)
}
