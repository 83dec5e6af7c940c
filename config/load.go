package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the runtime knobs of a connection and of the command line tool.
type Config struct {
	RTMP    RTMPConfig    `yaml:"rtmp"`
	Logging LoggingConfig `yaml:"logging"`
}

type RTMPConfig struct {
	URL string `yaml:"url"`
	// Listen is the address a passive session accepts on.
	Listen string `yaml:"listen"`
	// Connect selects active connect (true) or passive listen (false) for the publish direction.
	Connect bool `yaml:"connect"`
	// CachingMs bounds how long the first Read waits for media before it synthesizes metadata.
	CachingMs        int           `yaml:"caching_ms"`
	QueueSize        int           `yaml:"queue_size"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		RTMP: RTMPConfig{
			Listen:           ":" + DefaultPort,
			Connect:          true,
			CachingMs:        int(DefaultCaching / time.Millisecond),
			QueueSize:        DefaultQueueSize,
			HandshakeTimeout: DefaultHandshakeTimeout,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML configuration file. Fields missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "parse config file")
	}
	if err := c.validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return c, nil
}

// Caching returns CachingMs as a duration.
func (c *Config) Caching() time.Duration {
	return time.Duration(c.RTMP.CachingMs) * time.Millisecond
}

func (c *Config) validate() error {
	if c.RTMP.CachingMs < 0 {
		return errors.Errorf("invalid caching_ms: %d (must be non-negative)", c.RTMP.CachingMs)
	}
	if c.RTMP.QueueSize <= 0 {
		return errors.Errorf("invalid queue_size: %d (must be positive)", c.RTMP.QueueSize)
	}
	if c.RTMP.HandshakeTimeout < 0 {
		return errors.Errorf("invalid handshake_timeout: %s", c.RTMP.HandshakeTimeout)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("invalid log level: %s (must be one of debug, info, warn, error)", c.Logging.Level)
	}
	return nil
}
