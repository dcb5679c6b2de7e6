// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/bingo/internal/bingo"
	"github.com/jason-s-yu/bingo/internal/room"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the full process configuration. Zero values in a YAML file keep the defaults.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Room      RoomConfig      `yaml:"room"`
	Conn      ConnConfig      `yaml:"conn"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	NATS      NATSConfig      `yaml:"nats"`
	Historian HistorianConfig `yaml:"historian"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// SweepInterval is how often turn timeouts and completed-room expiry are checked.
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

type RoomConfig struct {
	MaxPlayers   int           `yaml:"maxPlayers"`
	WinThreshold int           `yaml:"winThreshold"`
	TurnTimeout  time.Duration `yaml:"turnTimeout"`
	CompletedTTL time.Duration `yaml:"completedTTL"`
}

// Policy converts the room section into room rules.
func (c RoomConfig) Policy() room.Policy {
	return room.Policy{
		MaxPlayers:   c.MaxPlayers,
		WinThreshold: c.WinThreshold,
		TurnTimeout:  c.TurnTimeout,
		CompletedTTL: c.CompletedTTL,
	}
}

// ConnConfig controls per-connection behavior on the websocket.
type ConnConfig struct {
	OutBuffer         int     `yaml:"outBuffer"`
	MessagesPerSecond float64 `yaml:"messagesPerSecond"`
	Burst             int     `yaml:"burst"`
	AllowGuests       bool    `yaml:"allowGuests"`
}

type PostgresConfig struct {
	// URL takes precedence over the individual parts.
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Database string `yaml:"database"`
	// Migrate runs the embedded migrations at startup.
	Migrate bool `yaml:"migrate"`
}

// DSN returns the connection string for pgx.
func (c PostgresConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + c.Port,
		Path:   c.Database,
	}
	return u.String()
}

type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	DB        int    `yaml:"db"`
	QueueName string `yaml:"queueName"`
}

type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// HistorianConfig tunes the action log consumer.
type HistorianConfig struct {
	BatchSize     int           `yaml:"batchSize"`
	FlushInterval time.Duration `yaml:"flushInterval"`
	// Inactivity marks in-progress games abandoned once their last action is this old.
	Inactivity time.Duration `yaml:"inactivity"`
}

type AuthConfig struct {
	TokenTTL time.Duration `yaml:"tokenTTL"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Logger builds a logrus logger with the configured level and format.
func (c LogConfig) Logger() (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	logger.SetLevel(level)
	if c.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// Default returns the built-in configuration.
func Default() Config {
	policy := room.DefaultPolicy()
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			SweepInterval:   time.Second,
		},
		Room: RoomConfig{
			MaxPlayers:   policy.MaxPlayers,
			WinThreshold: policy.WinThreshold,
			TurnTimeout:  policy.TurnTimeout,
			CompletedTTL: policy.CompletedTTL,
		},
		Conn: ConnConfig{
			OutBuffer:         32,
			MessagesPerSecond: 10,
			Burst:             20,
			AllowGuests:       true,
		},
		Postgres: PostgresConfig{
			User:     "postgres",
			Host:     "localhost",
			Port:     "5432",
			Database: "bingo",
			Migrate:  true,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			QueueName: "bingo_actions",
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			SubjectPrefix: "bingo.rooms",
		},
		Historian: HistorianConfig{
			BatchSize:     20,
			FlushInterval: 500 * time.Millisecond,
			Inactivity:    10 * time.Minute,
		},
		Auth: AuthConfig{TokenTTL: 30 * 24 * time.Hour},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path, and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	num("BINGO_MAX_PLAYERS", &c.Room.MaxPlayers)
	num("BINGO_WIN_THRESHOLD", &c.Room.WinThreshold)
	dur("BINGO_TURN_TIMEOUT", &c.Room.TurnTimeout)
	dur("BINGO_COMPLETED_TTL", &c.Room.CompletedTTL)
	boolean("BINGO_ALLOW_GUESTS", &c.Conn.AllowGuests)

	str("DATABASE_URL", &c.Postgres.URL)
	str("POSTGRES_USER", &c.Postgres.User)
	str("POSTGRES_PASSWORD", &c.Postgres.Password)
	str("PG_HOST", &c.Postgres.Host)
	str("PG_PORT", &c.Postgres.Port)
	str("PG_DATABASE", &c.Postgres.Database)

	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	num("REDIS_DB", &c.Redis.DB)
	str("HISTORIAN_QUEUE_NAME", &c.Redis.QueueName)

	if v, ok := lookup("NATS_URL"); ok && v != "" {
		c.NATS.URL = v
		c.NATS.Enabled = true
	}

	num("HISTORIAN_BATCH_SIZE", &c.Historian.BatchSize)
	if v, ok := lookup("HISTORIAN_FLUSH_MS"); ok && v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("HISTORIAN_FLUSH_MS: %w", err))
		} else {
			c.Historian.FlushInterval = time.Duration(ms) * time.Millisecond
		}
	}
	dur("GAME_INACTIVITY_TIMEOUT_SEC", &c.Historian.Inactivity)

	// TOKEN_EXPIRE_TIME is in seconds
	if v, ok := lookup("TOKEN_EXPIRE_TIME"); ok && v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TOKEN_EXPIRE_TIME: %w", err))
		} else {
			c.Auth.TokenTTL = time.Duration(secs) * time.Second
		}
	}
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	return errors.Join(errs...)
}

// parseDuration accepts Go durations and bare seconds.
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// Validate rejects configurations the room engine cannot honor.
func (c Config) Validate() error {
	var errs []error
	if c.Room.MaxPlayers < room.MinPlayers || c.Room.MaxPlayers > room.MaxPlayersLimit {
		errs = append(errs, fmt.Errorf("room.maxPlayers must be between %d and %d, got %d",
			room.MinPlayers, room.MaxPlayersLimit, c.Room.MaxPlayers))
	}
	if c.Room.WinThreshold < 1 || c.Room.WinThreshold > bingo.MaxLines {
		errs = append(errs, fmt.Errorf("room.winThreshold must be between 1 and %d, got %d",
			bingo.MaxLines, c.Room.WinThreshold))
	}
	if c.Room.TurnTimeout < 0 || c.Room.CompletedTTL < 0 {
		errs = append(errs, errors.New("room timeouts must not be negative"))
	}
	if c.Conn.OutBuffer < 1 {
		errs = append(errs, errors.New("conn.outBuffer must be positive"))
	}
	if c.Conn.MessagesPerSecond <= 0 || c.Conn.Burst < 1 {
		errs = append(errs, errors.New("conn rate limit must be positive"))
	}
	if c.Server.SweepInterval <= 0 {
		errs = append(errs, errors.New("server.sweepInterval must be positive"))
	}
	if c.Historian.BatchSize < 1 || c.Historian.FlushInterval <= 0 || c.Historian.Inactivity <= 0 {
		errs = append(errs, errors.New("historian batch size, flush interval and inactivity must be positive"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
