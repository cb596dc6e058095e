package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fanoshome/bingo/go/internal/engine"
	"github.com/fanoshome/bingo/go/internal/events"
	"github.com/fanoshome/bingo/go/internal/gateway"
	"github.com/fanoshome/bingo/go/internal/room"
)

type Config struct {
	API     APIConfig     `yaml:"api"`
	Room    RoomConfig    `yaml:"room"`
	Engine  EngineConfig  `yaml:"engine"`
	Gateway GatewayConfig `yaml:"gateway"`
	Events  EventsConfig  `yaml:"events"`
	Log     LogConfig     `yaml:"log"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type RoomConfig struct {
	SnapshotInterval    time.Duration `yaml:"snapshot_interval"`
	PollInterval        time.Duration `yaml:"poll_interval"`
	LoadThrottle        time.Duration `yaml:"load_throttle"`
	SettleDelay         time.Duration `yaml:"settle_delay"`
	CardPrice           float64       `yaml:"card_price"`
	NextRoundSeconds    int           `yaml:"next_round_seconds"`
	CardsCacheTTL       time.Duration `yaml:"cards_cache_ttl"`
	PlayerCountCacheTTL time.Duration `yaml:"player_count_cache_ttl"`
}

type EngineConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Interval       time.Duration `yaml:"interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AutoStart      bool          `yaml:"auto_start"`
}

type GatewayConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type EventsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000/api",
			Timeout: 10 * time.Second,
		},
		Room: RoomConfig{
			SnapshotInterval:    5 * time.Second,
			PollInterval:        2 * time.Second,
			LoadThrottle:        2 * time.Second,
			SettleDelay:         300 * time.Millisecond,
			CardPrice:           10,
			NextRoundSeconds:    5,
			CardsCacheTTL:       2 * time.Second,
			PlayerCountCacheTTL: 5 * time.Second,
		},
		Engine: EngineConfig{
			Enabled:        true,
			Interval:       2 * time.Second,
			RequestTimeout: 3 * time.Second,
			AutoStart:      true,
		},
		Gateway: GatewayConfig{
			Addr: ":8080",
		},
		Events: EventsConfig{
			NATSURL:       "nats://localhost:4222",
			SubjectPrefix: "bingo.room",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads .env (if present), overlays the YAML file named by BINGO_CONFIG
// on the defaults and finally applies BINGO_* environment overrides.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("BINGO_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.API.BaseURL = getEnv("BINGO_API_URL", c.API.BaseURL)
	c.API.Token = getEnv("BINGO_API_TOKEN", c.API.Token)
	c.API.Timeout = getEnvAsDuration("BINGO_API_TIMEOUT", c.API.Timeout)

	c.Room.SnapshotInterval = getEnvAsDuration("BINGO_SNAPSHOT_INTERVAL", c.Room.SnapshotInterval)
	c.Room.PollInterval = getEnvAsDuration("BINGO_POLL_INTERVAL", c.Room.PollInterval)
	c.Room.LoadThrottle = getEnvAsDuration("BINGO_LOAD_THROTTLE", c.Room.LoadThrottle)
	c.Room.SettleDelay = getEnvAsDuration("BINGO_SETTLE_DELAY", c.Room.SettleDelay)
	c.Room.CardPrice = getEnvAsFloat("BINGO_CARD_PRICE", c.Room.CardPrice)
	c.Room.NextRoundSeconds = getEnvAsInt("BINGO_NEXT_ROUND_SECONDS", c.Room.NextRoundSeconds)

	c.Engine.Enabled = getEnvAsBool("BINGO_ENGINE_MONITOR", c.Engine.Enabled)
	c.Engine.Interval = getEnvAsDuration("BINGO_ENGINE_INTERVAL", c.Engine.Interval)
	c.Engine.AutoStart = getEnvAsBool("BINGO_ENGINE_AUTO_START", c.Engine.AutoStart)

	c.Gateway.Addr = getEnv("BINGO_GATEWAY_ADDR", c.Gateway.Addr)
	if origins := getEnv("BINGO_ALLOWED_ORIGINS", ""); origins != "" {
		c.Gateway.AllowedOrigins = strings.Split(origins, ",")
	}

	c.Events.Enabled = getEnvAsBool("BINGO_EVENTS_ENABLED", c.Events.Enabled)
	c.Events.NATSURL = getEnv("BINGO_NATS_URL", c.Events.NATSURL)
	c.Events.SubjectPrefix = getEnv("BINGO_EVENTS_PREFIX", c.Events.SubjectPrefix)

	c.Log.Level = getEnv("BINGO_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("BINGO_LOG_FORMAT", c.Log.Format)
}

func (c Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.Room.PollInterval <= 0 || c.Room.SnapshotInterval <= 0 {
		return fmt.Errorf("room intervals must be positive")
	}
	if c.Room.CardPrice <= 0 {
		return fmt.Errorf("room.card_price must be positive")
	}
	if c.Events.Enabled && c.Events.NATSURL == "" {
		return fmt.Errorf("events.nats_url is required when events are enabled")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func (c Config) RoomConfig() room.Config {
	return room.Config{
		SnapshotInterval:    c.Room.SnapshotInterval,
		PollInterval:        c.Room.PollInterval,
		LoadThrottle:        c.Room.LoadThrottle,
		SettleDelay:         c.Room.SettleDelay,
		CardPrice:           c.Room.CardPrice,
		NextRoundSeconds:    c.Room.NextRoundSeconds,
		CardsCacheTTL:       c.Room.CardsCacheTTL,
		PlayerCountCacheTTL: c.Room.PlayerCountCacheTTL,
	}
}

func (c Config) EngineConfig(sourceID string) engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Interval = c.Engine.Interval
	cfg.RequestTimeout = c.Engine.RequestTimeout
	cfg.AutoStartEngine = c.Engine.AutoStart
	cfg.SourceID = sourceID
	return cfg
}

func (c Config) GatewayConfig() gateway.Config {
	cfg := gateway.DefaultConfig()
	cfg.AllowedOrigins = c.Gateway.AllowedOrigins
	return cfg
}

func (c Config) NATSConfig() events.NATSConfig {
	cfg := events.DefaultNATSConfig()
	cfg.URL = c.Events.NATSURL
	cfg.SubjectPrefix = c.Events.SubjectPrefix
	return cfg
}
