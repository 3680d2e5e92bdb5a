// Package container wires the travel approval service: ordered
// initialization, reverse-order teardown and health.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/travel-approval/internal/infrastructure/external/directory"
	"github.com/garyjia/travel-approval/pkg/tracing"
)

// Queue backends
const (
	QueueMemory = "memory"
	QueueRedis  = "redis"
)

// Config holds all configuration for the Container.
type Config struct {
	Database      DatabaseConfig
	Lark          LarkConfig
	Redis         RedisConfig
	TravelRequest TravelRequestConfig
	Workflow      WorkflowConfig
	// Directory is the static employee directory used when Lark is disabled.
	Directory    map[string]directory.Entry
	Notification NotificationConfig
	Tracing      tracing.Config
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LarkConfig holds Lark API settings. Lark is disabled when AppID is empty.
type LarkConfig struct {
	AppID      string
	AppSecret  string
	UserIDType string

	// RoleChats maps an approver role to the group chat that receives its notifications
	RoleChats map[string]string
}

// Enabled reports whether Lark credentials are configured.
func (c LarkConfig) Enabled() bool {
	return c.AppID != ""
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
	PoolSize int
}

// TravelRequestConfig points at the request tracking service.
type TravelRequestConfig struct {
	BaseURL string
	Timeout time.Duration
}

// WorkflowConfig holds engine policy settings.
type WorkflowConfig struct {
	// StepsFile is the YAML step catalog, seeded into storage at start
	StepsFile string

	// FallbackApproverID is assigned when no manager can be resolved
	FallbackApproverID string

	DefaultDueWindow  time.Duration
	HighCostThreshold float64
	LongTripDays      int
}

// NotificationConfig holds outbox settings.
type NotificationConfig struct {
	// Queue is QueueMemory or QueueRedis
	Queue           string
	QueueCapacity   int
	Workers         int
	DeliveryTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/travel_approval.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Lark: LarkConfig{
			UserIDType: "user_id",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Key:      "travel-approval:notifications",
			PoolSize: 10,
		},
		TravelRequest: TravelRequestConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 10 * time.Second,
		},
		Workflow: WorkflowConfig{
			StepsFile:          "configs/steps.yaml",
			FallbackApproverID: "SYSTEM",
			DefaultDueWindow:   72 * time.Hour,
			HighCostThreshold:  5000,
			LongTripDays:       14,
		},
		Notification: NotificationConfig{
			Queue:           QueueMemory,
			QueueCapacity:   256,
			Workers:         2,
			DeliveryTimeout: 15 * time.Second,
		},
		Tracing: tracing.Config{
			ServiceName: "travel-approval",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
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
	if c.Lark.Enabled() && c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required when lark.app_id is set")
	}

	switch c.Notification.Queue {
	case QueueMemory:
	case QueueRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis notification queue")
		}
	default:
		return fmt.Errorf("unknown notification queue %q", c.Notification.Queue)
	}

	return nil
}
