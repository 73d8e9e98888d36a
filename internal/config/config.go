package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"resthub/internal/models"
)

// DefaultClientID is registered when OAUTH2_CLIENTS is not set.
const DefaultClientID = "Avn3NVJfH9"

// Config holds all environment-based configuration for the API server.
type Config struct {
	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Port        int    `env:"PORT" envDefault:"8080"`

	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Access and refresh tokens are signed with different secrets.
	AccessTokenSecret    string        `env:"OAUTH2_ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret   string        `env:"OAUTH2_REFRESH_TOKEN_SECRET"`
	AccessTokenLifetime  time.Duration `env:"OAUTH2_ACCESS_TOKEN_LIFETIME" envDefault:"24h"`
	RefreshTokenLifetime time.Duration `env:"OAUTH2_REFRESH_TOKEN_LIFETIME" envDefault:"168h"`

	// Clients is a JSON array of clients upserted at startup. When empty,
	// a single default client is registered with DefaultClientSecret.
	Clients             ClientList `env:"OAUTH2_CLIENTS"`
	DefaultClientSecret string     `env:"OAUTH2_CLIENT_SECRET"`

	// Seed superadmin, skipped when either is empty.
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	LoginRateLimit  int           `env:"LOGIN_RATE_LIMIT" envDefault:"10"`
	LoginRateWindow time.Duration `env:"LOGIN_RATE_WINDOW" envDefault:"1m"`

	RequestTimeout       time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	TokenCleanupInterval time.Duration `env:"TOKEN_CLEANUP_INTERVAL" envDefault:"1h"`

	SocketsPath string `env:"SOCKETS_PATH" envDefault:"/sockets"`
}

// ClientConfig is one statically configured OAuth2 client.
type ClientConfig struct {
	ClientID             string   `json:"clientId"`
	ClientSecret         string   `json:"clientSecret"`
	Grants               []string `json:"grants"`
	RedirectURIs         []string `json:"redirectUris"`
	AccessTokenLifetime  int      `json:"accessTokenLifetime"`
	RefreshTokenLifetime int      `json:"refreshTokenLifetime"`
	// OwnerEmail names the user client_credentials tokens are issued for.
	OwnerEmail string `json:"ownerEmail"`
}

type ClientList []ClientConfig

// UnmarshalText decodes OAUTH2_CLIENTS.
func (l *ClientList) UnmarshalText(text []byte) error {
	var clients []ClientConfig
	if err := json.Unmarshal(text, &clients); err != nil {
		return fmt.Errorf("decoding clients: %w", err)
	}
	*l = clients
	return nil
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.Clients) == 0 && cfg.DefaultClientSecret != "" {
		cfg.Clients = ClientList{{
			ClientID:     DefaultClientID,
			ClientSecret: cfg.DefaultClientSecret,
			Grants:       []string{models.GrantPassword, models.GrantRefreshToken},
			RedirectURIs: []string{"/"},
		}}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.AccessTokenSecret == "" {
		return fmt.Errorf("OAUTH2_ACCESS_TOKEN_SECRET is required")
	}

	if c.RefreshTokenSecret == "" {
		return fmt.Errorf("OAUTH2_REFRESH_TOKEN_SECRET is required")
	}

	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return fmt.Errorf("access and refresh token secrets must differ")
	}

	if c.AccessTokenLifetime <= 0 || c.RefreshTokenLifetime <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}

	if len(c.Clients) == 0 {
		return fmt.Errorf("OAUTH2_CLIENTS or OAUTH2_CLIENT_SECRET is required")
	}

	for i, client := range c.Clients {
		if client.ClientID == "" || client.ClientSecret == "" {
			return fmt.Errorf("client %d: clientId and clientSecret are required", i)
		}
		if len(client.Grants) == 0 {
			return fmt.Errorf("client %s: at least one grant is required", client.ClientID)
		}
	}

	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Address is the listen address for the HTTP server.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}
