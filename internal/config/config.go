package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/nytron88/streamix-sub000/pkg/config"
	"github.com/nytron88/streamix-sub000/pkg/database"
	"github.com/nytron88/streamix-sub000/pkg/pubsub"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

type WorkerTuning struct {
	Interval               time.Duration `mapstructure:"interval"`
	BatchSize              int           `mapstructure:"batch_size"`
	MaxConsecutiveFailures int           `mapstructure:"max_consecutive_failures"`
}

type ViewersConfig struct {
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
}

type DirectoryConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

// WorkerConfig configures the batch worker binary.
type WorkerConfig struct {
	Server    ServerConfig       `mapstructure:"server"`
	Redis     pubsub.RedisConfig `mapstructure:"redis"`
	Database  database.Config    `mapstructure:"database"`
	Kafka     KafkaConfig        `mapstructure:"kafka"`
	Worker    WorkerTuning       `mapstructure:"worker"`
	Viewers   ViewersConfig      `mapstructure:"viewers"`
	Directory DirectoryConfig    `mapstructure:"directory"`
	Log       LogConfig          `mapstructure:"log"`
}

// GatewayConfig configures the realtime gateway binary.
type GatewayConfig struct {
	Server    ServerConfig       `mapstructure:"server"`
	Redis     pubsub.RedisConfig `mapstructure:"redis"`
	WebSocket WebSocketConfig    `mapstructure:"websocket"`
	Log       LogConfig          `mapstructure:"log"`
}

// LoadWorker loads the worker configuration from ./config/config.yaml
// with environment overrides.
func LoadWorker() (*WorkerConfig, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.db_name", "notifications")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "domain-events")
	v.SetDefault("kafka.group_id", "notification-worker")
	v.SetDefault("worker.interval", "10s")
	v.SetDefault("worker.batch_size", 50)
	v.SetDefault("worker.max_consecutive_failures", 5)
	v.SetDefault("viewers.reconcile_interval", "30s")
	v.SetDefault("directory.cache_ttl", "5m")
	v.SetDefault("log.level", "info")

	v.BindEnv("server.port", "PORT")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.db_name", "DB_NAME")
	v.BindEnv("kafka.enabled", "KAFKA_ENABLED")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_EVENTS_TOPIC")
	v.BindEnv("kafka.group_id", "KAFKA_GROUP_ID")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg WorkerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Worker.Interval = parseDuration(v, "worker.interval", 10*time.Second)
	cfg.Viewers.ReconcileInterval = parseDuration(v, "viewers.reconcile_interval", 30*time.Second)
	cfg.Directory.CacheTTL = parseDuration(v, "directory.cache_ttl", 5*time.Minute)

	return &cfg, nil
}

// LoadGateway loads the gateway configuration from ./config/config.yaml
// with environment overrides.
func LoadGateway() (*GatewayConfig, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("log.level", "info")

	v.BindEnv("server.port", "PORT")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg GatewayConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
