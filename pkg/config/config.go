package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "KIOSK"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	GRPC    GRPCConfig    `mapstructure:"grpc"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Orders  OrdersConfig  `mapstructure:"orders"`
	Board   BoardConfig   `mapstructure:"board"`
	Etcd    EtcdConfig    `mapstructure:"etcd"`
	Redis   RedisConfig   `mapstructure:"redis"`
	MongoDB MongoDBConfig `mapstructure:"mongodb"`
	Archive ArchiveConfig `mapstructure:"archive"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Name string `mapstructure:"name"`
	Host string `mapstructure:"host"`
}

type GRPCConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	// Addr is dialed by clients when discovery finds nothing.
	Addr string `mapstructure:"addr"`
}

type GatewayConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	AllowOrigins    []string      `mapstructure:"allow_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	Swagger         bool          `mapstructure:"swagger"`
}

type OrdersConfig struct {
	Retention         time.Duration    `mapstructure:"retention"`
	UndoWindow        time.Duration    `mapstructure:"undo_window"`
	SweepInterval     time.Duration    `mapstructure:"sweep_interval"`
	StrictTransitions bool             `mapstructure:"strict_transitions"`
	Validation        ValidationConfig `mapstructure:"validation"`
}

type ValidationConfig struct {
	RejectNegative bool    `mapstructure:"reject_negative"`
	MaxItems       int     `mapstructure:"max_items"`
	TotalCheck     bool    `mapstructure:"total_check"`
	Epsilon        float64 `mapstructure:"epsilon"`
}

type BoardConfig struct {
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	SubscriberBuffer int           `mapstructure:"subscriber_buffer"`
}

type EtcdConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
	TTL         int64         `mapstructure:"ttl"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type MongoDBConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type ArchiveConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "kiosk")
	v.SetDefault("server.host", "127.0.0.1")

	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50061)
	v.SetDefault("grpc.addr", "127.0.0.1:50061")

	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 8080)
	v.SetDefault("gateway.mode", "release")
	v.SetDefault("gateway.allow_origins", []string{"*"})
	v.SetDefault("gateway.shutdown_timeout", 10*time.Second)
	v.SetDefault("gateway.ping_interval", 30*time.Second)
	v.SetDefault("gateway.write_timeout", 10*time.Second)
	v.SetDefault("gateway.swagger", true)

	v.SetDefault("orders.retention", time.Hour)
	v.SetDefault("orders.undo_window", 5*time.Second)
	v.SetDefault("orders.sweep_interval", time.Minute)
	v.SetDefault("orders.strict_transitions", false)
	v.SetDefault("orders.validation.reject_negative", true)
	v.SetDefault("orders.validation.max_items", 100)
	v.SetDefault("orders.validation.total_check", false)
	v.SetDefault("orders.validation.epsilon", 0.01)

	v.SetDefault("board.request_timeout", 5*time.Second)
	v.SetDefault("board.subscriber_buffer", 256)

	v.SetDefault("etcd.enabled", false)
	v.SetDefault("etcd.endpoints", []string{"127.0.0.1:2379"})
	v.SetDefault("etcd.dial_timeout", 5*time.Second)
	v.SetDefault("etcd.prefix", "/services")
	v.SetDefault("etcd.ttl", 10)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.ttl", 2*time.Hour)

	v.SetDefault("mongodb.enabled", false)
	v.SetDefault("mongodb.uri", "mongodb://127.0.0.1:27017")
	v.SetDefault("mongodb.database", "kiosk")
	v.SetDefault("mongodb.collection", "order_audit")

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.driver", "postgres")
	v.SetDefault("archive.dsn", "")
	v.SetDefault("archive.max_idle_conns", 2)
	v.SetDefault("archive.max_open_conns", 5)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.subject_prefix", "kiosk.orders")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
}

// Load reads configPath on top of the defaults. An empty path runs on defaults and
// environment alone. Variables from a local .env file are loaded first and any
// KIOSK_SECTION_KEY variable overrides the matching key.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		// Read config file
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Orders.UndoWindow <= 0 {
		return fmt.Errorf("orders.undo_window must be positive, got %s", c.Orders.UndoWindow)
	}
	if c.Orders.Retention <= 0 {
		return fmt.Errorf("orders.retention must be positive, got %s", c.Orders.Retention)
	}
	if c.Archive.Enabled {
		switch c.Archive.Driver {
		case "mysql", "postgres":
		default:
			return fmt.Errorf("archive.driver must be mysql or postgres, got %q", c.Archive.Driver)
		}
		if c.Archive.DSN == "" {
			return fmt.Errorf("archive.dsn is required when the archive is enabled")
		}
	}
	return nil
}

func (c *GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *GRPCConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
