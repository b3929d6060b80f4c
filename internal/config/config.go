// Package config loads the client configuration from flags, MEDIZONE_* environment
// variables and an optional medizone.yaml in the data directory, in that precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix.
const EnvPrefix = "MEDIZONE"

// FileName is the optional config file looked up in the data directory.
const FileName = "medizone.yaml"

// Remote backends.
const (
	RemoteGRPC   = "grpc"
	RemoteS3     = "s3"
	RemoteMemory = "memory"
)

// Output formats.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// S3 configures the S3 remote backend.
type S3 struct {
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access-key"`
	SecretKey string `mapstructure:"secret-key"`
	PathStyle bool   `mapstructure:"path-style"`
}

// Sync tunes the reconciler.
type Sync struct {
	MaxPerPass       int           `mapstructure:"max-per-pass"`
	RetryInterval    time.Duration `mapstructure:"retry-interval"`
	MaxRetryInterval time.Duration `mapstructure:"max-retry-interval"`
	MaxRetries       int           `mapstructure:"max-retries"`
}

// Config is the client configuration.
type Config struct {
	DataDir  string `mapstructure:"data-dir"`
	Owner    string `mapstructure:"owner"`
	Timezone string `mapstructure:"timezone"`
	Output   string `mapstructure:"output"`
	Debug    bool   `mapstructure:"debug"`

	Remote      string        `mapstructure:"remote"`
	Addr        string        `mapstructure:"addr"`
	Token       string        `mapstructure:"token"`
	CACert      string        `mapstructure:"cacert"`
	Insecure    bool          `mapstructure:"insecure"`
	Plaintext   bool          `mapstructure:"plaintext"`
	CallTimeout time.Duration `mapstructure:"call-timeout"`
	S3          S3            `mapstructure:"s3"`

	ProbeInterval time.Duration `mapstructure:"probe-interval"`
	Listen        string        `mapstructure:"listen"`
	Sync          Sync          `mapstructure:"sync"`
}

// DefaultDataDir is $XDG_DATA_HOME/medizone or ~/.local/share/medizone.
func DefaultDataDir() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return filepath.Join(v, "medizone")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "medizone")
}

// SetDefaults registers every key so environment variables reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data-dir", DefaultDataDir())
	v.SetDefault("owner", "")
	v.SetDefault("timezone", "Local")
	v.SetDefault("output", OutputTable)
	v.SetDefault("debug", false)

	v.SetDefault("remote", RemoteGRPC)
	v.SetDefault("addr", "localhost:8443")
	v.SetDefault("token", "")
	v.SetDefault("cacert", "")
	v.SetDefault("insecure", false)
	v.SetDefault("plaintext", false)
	v.SetDefault("call-timeout", 10*time.Second)

	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", "medizone")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access-key", "")
	v.SetDefault("s3.secret-key", "")
	v.SetDefault("s3.path-style", false)

	v.SetDefault("probe-interval", 15*time.Second)
	v.SetDefault("listen", "127.0.0.1:8787")
	v.SetDefault("sync.max-per-pass", 0)
	v.SetDefault("sync.retry-interval", 30*time.Second)
	v.SetDefault("sync.max-retry-interval", 30*time.Minute)
	v.SetDefault("sync.max-retries", 0)
}

// Load reads the configuration. Flags must already be bound to v.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(filepath.Join(v.GetString("data-dir"), FileName))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read %s: %w", FileName, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return c, c.Validate()
}

// Validate checks field combinations.
func (c Config) Validate() error {
	var problems []error
	if c.DataDir == "" {
		problems = append(problems, errors.New("data-dir is required"))
	}
	if strings.TrimSpace(c.Owner) == "" {
		problems = append(problems, errors.New("owner is required"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		problems = append(problems, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	switch c.Output {
	case OutputTable, OutputJSON, OutputYAML:
	default:
		problems = append(problems, fmt.Errorf("output %q: want table, json or yaml", c.Output))
	}
	switch c.Remote {
	case RemoteGRPC:
		if c.Addr == "" {
			problems = append(problems, errors.New("addr is required for the grpc remote"))
		}
	case RemoteS3:
		if c.S3.Bucket == "" {
			problems = append(problems, errors.New("s3.bucket is required for the s3 remote"))
		}
	case RemoteMemory:
	default:
		problems = append(problems, fmt.Errorf("remote %q: want grpc, s3 or memory", c.Remote))
	}
	if c.CallTimeout < 0 || c.ProbeInterval < 0 || c.Sync.RetryInterval < 0 || c.Sync.MaxRetryInterval < 0 {
		problems = append(problems, errors.New("durations must not be negative"))
	}
	if c.Sync.MaxPerPass < 0 || c.Sync.MaxRetries < 0 {
		problems = append(problems, errors.New("sync limits must not be negative"))
	}
	return errors.Join(problems...)
}

// Location resolves Timezone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// DBPath is the local SQLite database location.
func (c Config) DBPath() string { return filepath.Join(c.DataDir, "medizone.db") }
