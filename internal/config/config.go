package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"slackclone/internal/common"
)

const envPrefix = "SLACK_"

type Config struct {
	Server ServerConfig `koanf:"server"`

	// Database Configuration
	Database DatabaseConfig `koanf:"database"`

	// Realtime fan-out and its backends
	Realtime RealtimeConfig `koanf:"realtime"`
	Pusher   PusherConfig   `koanf:"pusher"`
	Redis    RedisConfig    `koanf:"redis"`
	Kafka    KafkaConfig    `koanf:"kafka"`

	// Attachment storage (GridFS)
	MongoDB MongoDBConfig `koanf:"mongo"`
	Upload  UploadConfig  `koanf:"upload"`

	RateLimit RateLimitConfig `koanf:"ratelimit"`

	// Logging Configuration
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port         string        `koanf:"port"`
	Host         string        `koanf:"host"`
	GRPCPort     string        `koanf:"grpc_port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	Environment  string        `koanf:"environment"` // development, staging, production
	AllowOrigin  string        `koanf:"allow_origin"`
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Driver       string `koanf:"driver"` // mysql, postgres, sqlite
	Host         string `koanf:"host"`
	Port         string `koanf:"port"`
	Username     string `koanf:"username"`
	Password     string `koanf:"password"`
	DatabaseName string `koanf:"database_name"`
	SSLMode      string `koanf:"ssl_mode"`
	Path         string `koanf:"path"` // sqlite file, ":memory:" allowed
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	LogLevel     string `koanf:"log_level"` // silent, error, warn, info

	// Overrides the DSN built from the fields above
	URL string `koanf:"url"`
}

type RealtimeConfig struct {
	Drivers   string `koanf:"drivers"`    // comma separated: pusher,websocket,redis,kafka
	Workers   int    `koanf:"workers"`    // background sink workers
	QueueSize int    `koanf:"queue_size"` // background sink buffer
}

type PusherConfig struct {
	AppID   string `koanf:"app_id"`
	Key     string `koanf:"key"`
	Secret  string `koanf:"secret"`
	Cluster string `koanf:"cluster"`
	Host    string `koanf:"host"`
	Secure  bool   `koanf:"secure"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type KafkaConfig struct {
	Brokers string `koanf:"brokers"`
	Topic   string `koanf:"topic"`
}

type MongoDBConfig struct {
	Enabled  bool   `koanf:"enabled"`
	URI      string `koanf:"uri"`
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
}

type UploadConfig struct {
	MaxSize string `koanf:"max_size"` // humanized, e.g. "10MB"
	BaseURL string `koanf:"base_url"` // prefix for served files
}

type RateLimitConfig struct {
	Enabled bool          `koanf:"enabled"`
	RPS     float64       `koanf:"rps"`
	Burst   int           `koanf:"burst"`
	IdleTTL time.Duration `koanf:"idle_ttl"`
	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For is honoured.
	TrustedProxies string `koanf:"trusted_proxies"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "3001",
			Host:         "0.0.0.0",
			GRPCPort:     "7003",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			Environment:  "development",
			AllowOrigin:  "*",
		},
		Database: DatabaseConfig{
			Driver:       "mysql",
			Host:         "localhost",
			Port:         "3306",
			Username:     "slack",
			Password:     "slack123",
			DatabaseName: "slack",
			SSLMode:      "disable",
			Path:         "slack.db",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
			LogLevel:     "warn",
		},
		Realtime: RealtimeConfig{
			Drivers:   "websocket",
			Workers:   2,
			QueueSize: 1000,
		},
		Pusher: PusherConfig{
			Cluster: "eu",
			Secure:  true,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Kafka: KafkaConfig{
			Brokers: "localhost:9092",
			Topic:   "chat-events",
		},
		MongoDB: MongoDBConfig{
			Host:     "localhost",
			Port:     "27017",
			Database: "slack",
		},
		Upload: UploadConfig{
			MaxSize: "10MB",
			BaseURL: "/media/",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     20,
			Burst:   40,
			IdleTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig layers defaults, an optional YAML file and the environment.
// SLACK_<SECTION>_<KEY> variables win over the short aliases (DB_HOST, ...).
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	k := koanf.New(".")

	path := getEnv("CONFIG_FILE", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	applyEnvAliases(cfg)

	k = koanf.New(".")
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	return cfg, nil
}

// envKey maps SLACK_DATABASE_MAX_OPEN_CONNS to database.max_open_conns.
func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".", 1)
}

func applyEnvAliases(cfg *Config) {
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.Username = getEnv("DB_USER", cfg.Database.Username)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DatabaseName = getEnv("DB_NAME", cfg.Database.DatabaseName)
	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)

	cfg.Pusher.AppID = getEnv("PUSHER_APP_ID", cfg.Pusher.AppID)
	cfg.Pusher.Key = getEnv("PUSHER_KEY", cfg.Pusher.Key)
	cfg.Pusher.Secret = getEnv("PUSHER_SECRET", cfg.Pusher.Secret)
	cfg.Pusher.Cluster = getEnv("PUSHER_CLUSTER", cfg.Pusher.Cluster)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Kafka.Brokers = getEnv("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.MongoDB.URI = getEnv("MONGO_URI", cfg.MongoDB.URI)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
}

// DSN builds the connection string for the configured driver.
func (cfg *Config) DSN() string {
	if cfg.Database.URL != "" {
		return cfg.Database.URL
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}

	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
		sslMode := cfg.Database.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.Username,
			cfg.Database.Password,
			cfg.Database.DatabaseName,
			sslMode,
		)
	case "sqlite":
		return cfg.Database.Path
	default:
		if cfg.Database.Port == "" {
			cfg.Database.Port = "3306"
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.Database.Username,
			cfg.Database.Password,
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.DatabaseName,
		)
	}
}

func (cfg *Config) GetMongoURI() string {
	if cfg.MongoDB.URI != "" {
		return cfg.MongoDB.URI
	}
	if cfg.MongoDB.Username == "" {
		return fmt.Sprintf("mongodb://%s:%s/%s", cfg.MongoDB.Host, cfg.MongoDB.Port, cfg.MongoDB.Database)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s:%s/%s?authSource=admin",
		cfg.MongoDB.Username,
		cfg.MongoDB.Password,
		cfg.MongoDB.Host,
		cfg.MongoDB.Port,
		cfg.MongoDB.Database,
	)
}

// RealtimeDrivers returns the enabled realtime backends, lowercased and deduplicated.
func (cfg *Config) RealtimeDrivers() []string {
	return splitList(cfg.Realtime.Drivers)
}

func (cfg *Config) HasRealtimeDriver(name string) bool {
	for _, d := range cfg.RealtimeDrivers() {
		if d == name {
			return true
		}
	}
	return false
}

func (cfg *Config) TrustedProxies() []string {
	return splitList(cfg.RateLimit.TrustedProxies)
}

func (cfg *Config) KafkaBrokers() []string {
	return splitList(cfg.Kafka.Brokers)
}

// UploadLimit parses Upload.MaxSize ("10MB", "512KiB", ...) into bytes.
func (cfg *Config) UploadLimit() (int64, error) {
	n, err := humanize.ParseBytes(cfg.Upload.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("invalid upload.max_size %q: %w", cfg.Upload.MaxSize, err)
	}
	return int64(n), nil
}

// Validate rejects configurations the server cannot start with.
func (cfg *Config) Validate() error {
	var errs []error

	switch cfg.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", cfg.Database.Driver))
	}

	for _, d := range cfg.RealtimeDrivers() {
		switch d {
		case "pusher", "websocket", "redis", "kafka":
		default:
			errs = append(errs, fmt.Errorf("unknown realtime driver %q", d))
		}
	}

	if cfg.HasRealtimeDriver("pusher") &&
		(cfg.Pusher.AppID == "" || cfg.Pusher.Key == "" || cfg.Pusher.Secret == "") {
		errs = append(errs, errors.New("pusher driver requires pusher.app_id, pusher.key and pusher.secret"))
	}

	if cfg.HasRealtimeDriver("kafka") && (len(cfg.KafkaBrokers()) == 0 || cfg.Kafka.Topic == "") {
		errs = append(errs, errors.New("kafka driver requires kafka.brokers and kafka.topic"))
	}

	if cfg.RateLimit.Enabled {
		if _, err := common.TrustedClientKey(cfg.TrustedProxies()); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.MongoDB.Enabled {
		if _, err := cfg.UploadLimit(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func splitList(raw string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
