package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvPrefix is prepended to every environment override, e.g. KBX_DATABASE_PATH.
const EnvPrefix = "KBX_"

const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Backend  string         `toml:"backend" env:"BACKEND"`
	Database DatabaseConfig `toml:"database" envPrefix:"DATABASE_"`
	Server   ServerConfig   `toml:"server" envPrefix:"SERVER_"`
	Remote   RemoteConfig   `toml:"remote" envPrefix:"REMOTE_"`
	User     UserConfig     `toml:"user" envPrefix:"USER_"`
	Realtime RealtimeConfig `toml:"realtime" envPrefix:"REALTIME_"`
	Writes   WritesConfig   `toml:"writes" envPrefix:"WRITES_"`
	Drag     DragConfig     `toml:"drag" envPrefix:"DRAG_"`
	S3       S3Config       `toml:"s3" envPrefix:"S3_"`
	Log      LogConfig      `toml:"log" envPrefix:"LOG_"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"PATH"`
	MaxOpenConns int    `toml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns int    `toml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host      string        `toml:"host" env:"HOST"`
	Port      int           `toml:"port" env:"PORT"`
	JWTSecret string        `toml:"jwt_secret" env:"JWT_SECRET"`
	Issuer    string        `toml:"issuer" env:"ISSUER"`
	TokenTTL  time.Duration `toml:"token_ttl" env:"TOKEN_TTL"`
}

// Addr joins host and port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RemoteConfig points the client at a kbx server.
type RemoteConfig struct {
	URL     string        `toml:"url" env:"URL"`
	Token   string        `toml:"token" env:"TOKEN"`
	Timeout time.Duration `toml:"timeout" env:"TIMEOUT"`
}

// UserConfig identifies the local user. Boards are scoped by owner.
type UserConfig struct {
	ID string `toml:"id" env:"ID"`
}

// RealtimeConfig controls the change feed subscription.
type RealtimeConfig struct {
	Resubscribe bool          `toml:"resubscribe" env:"RESUBSCRIBE"`
	Backoff     time.Duration `toml:"backoff" env:"BACKOFF"`
	Buffer      int           `toml:"buffer" env:"BUFFER"`
}

// WritesConfig bounds bulk position writes.
type WritesConfig struct {
	Workers   int     `toml:"workers" env:"WORKERS"`
	RateLimit float64 `toml:"rate_limit" env:"RATE_LIMIT"`
}

// DragConfig controls abandoned drag behavior.
type DragConfig struct {
	RestoreOnCancel bool `toml:"restore_on_cancel" env:"RESTORE_ON_CANCEL"`
}

// S3Config configures board snapshot storage.
type S3Config struct {
	Bucket          string `toml:"bucket" env:"BUCKET"`
	Region          string `toml:"region" env:"REGION"`
	Endpoint        string `toml:"endpoint" env:"ENDPOINT"`
	AccessKeyID     string `toml:"access_key_id" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `toml:"secret_access_key" env:"SECRET_ACCESS_KEY"`
	Prefix          string `toml:"prefix" env:"PREFIX"`
	UsePathStyle    bool   `toml:"use_path_style" env:"USE_PATH_STYLE"`
}

// LogConfig sets the log level and an optional log file.
type LogConfig struct {
	Level string `toml:"level" env:"LEVEL"`
	File  string `toml:"file" env:"FILE"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep their defaults from the embedded example, and
// KBX_* environment variables take precedence over both.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	return config, config.Validate()
}

// ApplyEnv overlays KBX_* environment variables onto config.
func ApplyEnv(config *Config) error {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("%w: parse env: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal:
		if c.Database.Path == "" {
			return fmt.Errorf("%w: database.path is required for the local backend", ErrInvalidConfig)
		}
	case BackendRemote:
		if c.Remote.URL == "" {
			return fmt.Errorf("%w: remote.url is required for the remote backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}

	if c.User.ID == "" {
		return fmt.Errorf("%w: user.id is required", ErrInvalidConfig)
	}
	if c.Writes.Workers < 1 {
		return fmt.Errorf("%w: writes.workers must be at least 1", ErrInvalidConfig)
	}
	if c.Writes.RateLimit <= 0 {
		return fmt.Errorf("%w: writes.rate_limit must be positive", ErrInvalidConfig)
	}
	if c.Realtime.Backoff < 0 {
		return fmt.Errorf("%w: realtime.backoff cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
