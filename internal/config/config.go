package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/travel-approval/internal/infrastructure/external/directory"
	"github.com/garyjia/travel-approval/pkg/tracing"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig               `mapstructure:"server"`
	Database      DatabaseConfig             `mapstructure:"database"`
	Logger        LoggerConfig               `mapstructure:"logger"`
	Lark          LarkConfig                 `mapstructure:"lark"`
	Redis         RedisConfig                `mapstructure:"redis"`
	TravelRequest TravelRequestConfig        `mapstructure:"travel_request"`
	Workflow      WorkflowConfig             `mapstructure:"workflow"`
	Directory     map[string]directory.Entry `mapstructure:"directory"`
	Notification  NotificationConfig         `mapstructure:"notification"`
	Tracing       tracing.Config             `mapstructure:"tracing"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// LarkConfig holds Lark API configuration. An empty app id disables Lark.
type LarkConfig struct {
	AppID      string            `mapstructure:"app_id"`
	AppSecret  string            `mapstructure:"app_secret"`
	UserIDType string            `mapstructure:"user_id_type"`
	RoleChats  map[string]string `mapstructure:"role_chats"`
}

// RedisConfig holds the Redis outbox connection
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
	PoolSize int    `mapstructure:"pool_size"`
}

// TravelRequestConfig holds the request tracking service endpoint
type TravelRequestConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// WorkflowConfig holds engine policy settings
type WorkflowConfig struct {
	StepsFile          string  `mapstructure:"steps_file"`
	FallbackApproverID string  `mapstructure:"fallback_approver_id"`
	DefaultDueDays     int     `mapstructure:"default_due_days"`
	HighCostThreshold  float64 `mapstructure:"high_cost_threshold"`
	LongTripDays       int     `mapstructure:"long_trip_days"`
}

// NotificationConfig selects the outbox queue and delivery pool size
type NotificationConfig struct {
	Queue           string        `mapstructure:"queue"`
	QueueCapacity   int           `mapstructure:"queue_capacity"`
	Workers         int           `mapstructure:"workers"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
}

// Load reads an optional .env, then the config file, then the environment.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.path", "data/travel_approval.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("lark.user_id_type", "user_id")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.key", "travel-approval:notifications")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("travel_request.base_url", "http://localhost:8080")
	v.SetDefault("travel_request.timeout", 10*time.Second)

	v.SetDefault("workflow.steps_file", "configs/steps.yaml")
	v.SetDefault("workflow.fallback_approver_id", "SYSTEM")
	v.SetDefault("workflow.default_due_days", 3)
	v.SetDefault("workflow.high_cost_threshold", 5000.0)
	v.SetDefault("workflow.long_trip_days", 14)

	v.SetDefault("notification.queue", "memory")
	v.SetDefault("notification.queue_capacity", 256)
	v.SetDefault("notification.workers", 2)
	v.SetDefault("notification.delivery_timeout", 15*time.Second)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "travel-approval")
}

// bindEnvVars binds the secrets and deployment endpoints to their env names
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"lark.app_id":             "LARK_APP_ID",
		"lark.app_secret":         "LARK_APP_SECRET",
		"redis.addr":              "REDIS_ADDR",
		"redis.password":          "REDIS_PASSWORD",
		"travel_request.base_url": "TRAVEL_REQUEST_BASE_URL",
		"database.path":           "DATABASE_PATH",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.TravelRequest.BaseURL == "" {
		return fmt.Errorf("travel_request.base_url is required")
	}
	if c.Workflow.StepsFile == "" {
		return fmt.Errorf("workflow.steps_file is required")
	}
	if c.Workflow.FallbackApproverID == "" {
		return fmt.Errorf("workflow.fallback_approver_id is required")
	}
	if c.Workflow.DefaultDueDays <= 0 {
		return fmt.Errorf("workflow.default_due_days must be positive")
	}
	if c.Lark.AppID != "" && c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required when lark.app_id is set")
	}

	switch c.Notification.Queue {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis notification queue")
		}
	default:
		return fmt.Errorf("notification.queue must be memory or redis, got %q", c.Notification.Queue)
	}
	if c.Notification.Workers <= 0 {
		return fmt.Errorf("notification.workers must be positive")
	}

	return nil
}
