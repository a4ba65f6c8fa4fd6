package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAPIToken is the demonstration bearer token accepted when no other
// token is configured.
const DefaultAPIToken = "im_a_valid_user"

type Config struct {
	mu sync.RWMutex `yaml:"-"`

	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Web       WebConfig       `yaml:"web"`
	Log       LogConfig       `yaml:"log"`
	Messaging MessagingConfig `yaml:"messaging"`
	Simulator SimulatorConfig `yaml:"simulator"`
}

type DatabaseConfig struct {
	// URL selects the driver by scheme: postgres:// and postgresql:// use
	// pgx, sqlite:// and file: use the embedded sqlite driver.
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AcquireTimeout  time.Duration `yaml:"acquire_timeout"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WebConfig struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	APIToken     string   `yaml:"api_token"`
	APITokenHash string   `yaml:"api_token_hash"`
	CORSOrigins  []string `yaml:"cors_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// JSONOutput reports whether logs are written as JSON. An explicit format
// wins; when unset, release builds log JSON and dev builds log to the console.
func (l LogConfig) JSONOutput(release bool) bool {
	switch l.Format {
	case "json":
		return true
	case "console":
		return false
	}
	return release
}

type MessagingConfig struct {
	Kafka               KafkaConfig   `yaml:"kafka"`
	OperationsTopic     string        `yaml:"operations_topic"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
}

// Enabled reports whether any broker is configured.
func (m MessagingConfig) Enabled() bool {
	return len(m.Kafka.Brokers) > 0
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

type SimulatorConfig struct {
	// RebootDelay is how long after a reboot the simulator powers the node
	// back on. Zero disables the simulator.
	RebootDelay time.Duration `yaml:"reboot_delay"`
}

func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			AcquireTimeout:  30 * time.Second,
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		Web: WebConfig{
			Host:     "127.0.0.1",
			Port:     8080,
			APIToken: DefaultAPIToken,
		},
		Log: LogConfig{
			Level: "info",
		},
		Messaging: MessagingConfig{
			OperationsTopic:     "nodefleet.operations",
			OutboxDrainInterval: 5 * time.Second,
		},
	}
}

// Load reads path over the defaults (a missing file is not an error) and then
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("DATABASE_URL"); ok {
		c.Database.URL = v
	}
	if v, ok := lookup("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Web.Port = port
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok {
		c.Log.Format = v
	}
	if v, ok := lookup("API_TOKEN"); ok {
		c.Web.APIToken = v
	}
	if v, ok := lookup("API_TOKEN_HASH"); ok {
		c.Web.APITokenHash = v
	}
	if v, ok := lookup("CORS_ORIGINS"); ok {
		c.Web.CORSOrigins = splitList(v)
	}
	if v, ok := lookup("REDIS_ADDR"); ok {
		c.Redis.Address = v
		c.Redis.Enabled = v != ""
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok {
		c.Messaging.Kafka.Brokers = splitList(v)
	}
	if v, ok := lookup("REBOOT_SIMULATOR_DELAY"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REBOOT_SIMULATOR_DELAY: %w", err)
		}
		c.Simulator.RebootDelay = d
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required (set DATABASE_URL)")
	}
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Web.Port)
	}
	if c.Web.APIToken == "" && c.Web.APITokenHash == "" {
		return fmt.Errorf("an api token or api token hash is required")
	}
	if c.Log.Format != "" && c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("invalid log format %q (must be json or console)", c.Log.Format)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Web.Host, c.Web.Port)
}

func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
