package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"SignalPulse/pkg/logger"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string         `yaml:"environment" default:"development" validate:"required"`
	Server      ServerConfig   `yaml:"server"`
	Metrics     MetricsConfig  `yaml:"metrics"`
	Logger      logger.Config  `yaml:"logger"`
	LogSummary  LogSummary     `yaml:"log_summary"`
	Monitor     MonitorConfig  `yaml:"monitor"`
	Store       StoreConfig    `yaml:"store"`
	Notify      NotifyConfig   `yaml:"notify"`
	Audio       AudioConfig    `yaml:"audio"`
	History     HistoryConfig  `yaml:"history"`
	Redis       RedisConfig    `yaml:"redis"`
	Kafka       KafkaConfig    `yaml:"kafka"`
	ClickHouse  ClickHouseConf `yaml:"clickhouse"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
}

// LogSummary controls aggregation of repeated data and dispatch errors.
// Summaries go to Kafka when the kafka channel is enabled, otherwise to the log.
type LogSummary struct {
	Interval  time.Duration `yaml:"interval" default:"1m" validate:"gt=0"`
	Threshold int           `yaml:"threshold" default:"100" validate:"gte=1"`
	Topic     string        `yaml:"topic" default:"signal-log-summary"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

// MonitorConfig tunes the trigger engine.
type MonitorConfig struct {
	TickInterval       time.Duration `yaml:"tick_interval" default:"1s" validate:"gt=0"`
	Tolerance          time.Duration `yaml:"tolerance" default:"3s" validate:"gt=0"`
	LockGrace          time.Duration `yaml:"lock_grace" default:"2s" validate:"gt=0"`
	PersistAttempts    int           `yaml:"persist_attempts" default:"3" validate:"gte=1,lte=10"`
	PersistBackoff     time.Duration `yaml:"persist_backoff" default:"30ms"`
	StorageLockPoll    time.Duration `yaml:"storage_lock_poll" default:"10ms" validate:"gt=0"`
	StorageLockTimeout time.Duration `yaml:"storage_lock_timeout" default:"5s" validate:"gt=0"`
	DispatchTimeout    time.Duration `yaml:"dispatch_timeout" default:"10s" validate:"gt=0"`
	// OwnerTTL lets a contender supersede a silent owner. Zero disables it.
	OwnerTTL time.Duration `yaml:"owner_ttl"`
	// Instances lists the execution contexts started at boot. The first one is started
	// immediately, the rest wait as standby contenders.
	Instances    []string      `yaml:"instances" default:"[\"foreground\",\"background\"]" validate:"min=1,dive,required"`
	StandbyRetry time.Duration `yaml:"standby_retry" default:"5s" validate:"gt=0"`
	TimeZone     string        `yaml:"time_zone" default:"Local"`
}

type StoreConfig struct {
	Backend string `yaml:"backend" default:"file" validate:"oneof=memory file redis"`
	Path    string `yaml:"path" default:"data/signals.yaml"`
	Prefix  string `yaml:"prefix" default:"signalpulse"`
}

type NotifyConfig struct {
	// Channels lists the enabled dispatchers: log, desktop, telegram, websocket, kafka.
	Channels []string `yaml:"channels" default:"[\"log\",\"websocket\"]" validate:"min=1,dive,oneof=log desktop telegram websocket kafka"`
	Title    string   `yaml:"title" default:"Signal"`
	Desktop  struct {
		Command string `yaml:"command" default:"osascript" validate:"oneof=osascript notify-send"`
	} `yaml:"desktop"`
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	KafkaTopic string `yaml:"kafka_topic" default:"signal-alerts"`
}

type AudioConfig struct {
	Enabled     bool     `yaml:"enabled" default:"false"`
	Command     []string `yaml:"command"`
	DefaultFile string   `yaml:"default_file"`
	CustomFile  string   `yaml:"custom_file"`
}

type HistoryConfig struct {
	Backend  string `yaml:"backend" default:"memory" validate:"oneof=none memory clickhouse"`
	Capacity int    `yaml:"capacity" default:"500" validate:"gte=1"`
	Table    string `yaml:"table" default:"signal_fires"`
}

type RedisConfig struct {
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size" default:"10"`
}

type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	RequiredAcks int           `yaml:"required_acks" default:"-1"`
	Compression  string        `yaml:"compression" default:"gzip"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
}

type ClickHouseConf struct {
	Host         string        `yaml:"host" default:"localhost"`
	Port         int           `yaml:"port" default:"9000"`
	Database     string        `yaml:"database" default:"signalpulse"`
	User         string        `yaml:"user" default:"default"`
	Password     string        `yaml:"password"`
	UseHTTP      bool          `yaml:"use_http"`
	DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
}

var validate = validator.New()

// Default returns a configuration holding only default values.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("SIGNALPULSE_STORE"); v != "" {
		c.Store.Backend = v
	}
	if v := getenv("SIGNALPULSE_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, found := strings.Cut(v, ":")
		c.Redis.Host = host
		if found {
			if p, err := strconv.Atoi(port); err == nil {
				c.Redis.Port = p
			}
		}
	}
	if v := getenv("TELEGRAM_TOKEN"); v != "" {
		c.Notify.Telegram.Token = v
	}
	if v := getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Notify.Telegram.ChatID = id
		}
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Monitor.LockGrace >= c.Monitor.Tolerance*2 {
		return fmt.Errorf("monitor.lock_grace (%s) must be shorter than twice the tolerance (%s)", c.Monitor.LockGrace, c.Monitor.Tolerance)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("monitor.time_zone: %w", err)
	}
	for _, ch := range c.Notify.Channels {
		switch ch {
		case "telegram":
			if c.Notify.Telegram.Token == "" || c.Notify.Telegram.ChatID == 0 {
				return fmt.Errorf("notify.telegram.token and notify.telegram.chat_id are required for the telegram channel")
			}
		case "kafka":
			if len(c.Kafka.Brokers) == 0 {
				return fmt.Errorf("kafka.brokers cannot be empty for the kafka channel")
			}
		}
	}
	if c.Audio.Enabled && len(c.Audio.Command) == 0 {
		return fmt.Errorf("audio.command is required when audio is enabled")
	}
	return nil
}

// Location resolves the configured scheduling time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Monitor.TimeZone == "" || c.Monitor.TimeZone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Monitor.TimeZone)
}
