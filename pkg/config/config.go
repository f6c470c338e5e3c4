package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "CONFSYNC_"

// Remote names understood by connector.Open
const (
	RemoteNone = ""
	RemoteFile = "file"
	RemoteS3   = "s3"
)

// Config is the daemon configuration
type Config struct {
	NodeID       string `yaml:"node_id"`
	DataDir      string `yaml:"data_dir"`
	BindAddr     string `yaml:"bind_addr"` // Raft TCP address; empty keeps Raft in-process
	SeedExamples bool   `yaml:"seed_examples"`

	Log        LogConfig        `yaml:"log"`
	API        APIConfig        `yaml:"api"`
	HTTP       HTTPConfig       `yaml:"http"`
	Sync       SyncConfig       `yaml:"sync"`
	Connectors ConnectorsConfig `yaml:"connectors"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type APIConfig struct {
	Addr     string `yaml:"addr"`
	ReadOnly bool   `yaml:"read_only"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// SyncConfig controls the sync scheduler
type SyncConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Remote         string        `yaml:"remote"`
	Download       bool          `yaml:"download"`
	MinInterval    time.Duration `yaml:"min_interval"`
	MaxInterval    time.Duration `yaml:"max_interval"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

type ConnectorsConfig struct {
	File FileConnectorConfig `yaml:"file"`
	S3   S3ConnectorConfig   `yaml:"s3"`
}

type FileConnectorConfig struct {
	Dir string `yaml:"dir"`
}

type S3ConnectorConfig struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		NodeID:       "confsync-1",
		DataDir:      "./confsync-data",
		SeedExamples: true,
		Log: LogConfig{
			Level: "info",
		},
		API: APIConfig{
			Addr: "127.0.0.1:7420",
		},
		HTTP: HTTPConfig{
			Addr: "127.0.0.1:7421",
		},
		Sync: SyncConfig{
			Enabled:        true,
			Download:       true,
			MinInterval:    time.Second,
			MaxInterval:    60 * time.Second,
			SessionTimeout: 30 * time.Second,
		},
		Connectors: ConnectorsConfig{
			S3: S3ConnectorConfig{
				Region: "us-east-1",
			},
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file and CONFSYNC_* environment variables, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if os.Getenv(envPrefix+"ENV") != "production" {
		_ = godotenv.Load() // optional .env for local runs
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.NodeID, "NODE_ID")
	setString(&c.DataDir, "DATA_DIR")
	setString(&c.BindAddr, "BIND_ADDR")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.API.Addr, "API_ADDR")
	setString(&c.HTTP.Addr, "HTTP_ADDR")
	setString(&c.Sync.Remote, "SYNC_REMOTE")
	setString(&c.Connectors.File.Dir, "FILE_DIR")
	setString(&c.Connectors.S3.Bucket, "S3_BUCKET")
	setString(&c.Connectors.S3.Prefix, "S3_PREFIX")
	setString(&c.Connectors.S3.Region, "S3_REGION")
	setString(&c.Connectors.S3.Endpoint, "S3_ENDPOINT")
	setString(&c.Connectors.S3.AccessKeyID, "S3_ACCESS_KEY_ID")
	setString(&c.Connectors.S3.SecretAccessKey, "S3_SECRET_ACCESS_KEY")

	for key, dst := range map[string]*bool{
		"LOG_JSON":          &c.Log.JSON,
		"API_READ_ONLY":     &c.API.ReadOnly,
		"SEED_EXAMPLES":     &c.SeedExamples,
		"SYNC_ENABLED":      &c.Sync.Enabled,
		"SYNC_DOWNLOAD":     &c.Sync.Download,
		"S3_USE_PATH_STYLE": &c.Connectors.S3.UsePathStyle,
	} {
		if err := setBool(dst, key); err != nil {
			return err
		}
	}

	for key, dst := range map[string]*time.Duration{
		"SYNC_MIN_INTERVAL":    &c.Sync.MinInterval,
		"SYNC_MAX_INTERVAL":    &c.Sync.MaxInterval,
		"SYNC_SESSION_TIMEOUT": &c.Sync.SessionTimeout,
	} {
		if err := setDuration(dst, key); err != nil {
			return err
		}
	}

	return nil
}

// Validate checks the configuration for values the daemon cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.NodeID == "" {
		errs = append(errs, errors.New("node_id is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.Sync.MinInterval < time.Second {
		errs = append(errs, fmt.Errorf("sync.min_interval must be at least 1s, got %s", c.Sync.MinInterval))
	}
	if c.Sync.MaxInterval > 60*time.Second {
		errs = append(errs, fmt.Errorf("sync.max_interval must be at most 60s, got %s", c.Sync.MaxInterval))
	}
	if c.Sync.MinInterval > c.Sync.MaxInterval {
		errs = append(errs, fmt.Errorf("sync.min_interval %s exceeds sync.max_interval %s", c.Sync.MinInterval, c.Sync.MaxInterval))
	}
	if c.Sync.SessionTimeout <= 0 {
		errs = append(errs, errors.New("sync.session_timeout must be positive"))
	}
	switch c.Sync.Remote {
	case RemoteNone, RemoteFile, RemoteS3:
	default:
		errs = append(errs, fmt.Errorf("unknown sync.remote %q", c.Sync.Remote))
	}

	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
	}
	*dst = d
	return nil
}
