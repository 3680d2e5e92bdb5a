package config

import (
	"time"

	"github.com/garyjia/travel-approval/internal/container"
	httpapi "github.com/garyjia/travel-approval/internal/interfaces/http"
)

// ToContainerConfig converts the application Config to a container.Config.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Lark: container.LarkConfig{
			AppID:      c.Lark.AppID,
			AppSecret:  c.Lark.AppSecret,
			UserIDType: c.Lark.UserIDType,
			RoleChats:  c.Lark.RoleChats,
		},
		Redis: container.RedisConfig{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			Key:      c.Redis.Key,
			PoolSize: c.Redis.PoolSize,
		},
		TravelRequest: container.TravelRequestConfig{
			BaseURL: c.TravelRequest.BaseURL,
			Timeout: c.TravelRequest.Timeout,
		},
		Workflow: container.WorkflowConfig{
			StepsFile:          c.Workflow.StepsFile,
			FallbackApproverID: c.Workflow.FallbackApproverID,
			DefaultDueWindow:   time.Duration(c.Workflow.DefaultDueDays) * 24 * time.Hour,
			HighCostThreshold:  c.Workflow.HighCostThreshold,
			LongTripDays:       c.Workflow.LongTripDays,
		},
		Directory: c.Directory,
		Notification: container.NotificationConfig{
			Queue:           c.Notification.Queue,
			QueueCapacity:   c.Notification.QueueCapacity,
			Workers:         c.Notification.Workers,
			DeliveryTimeout: c.Notification.DeliveryTimeout,
		},
		Tracing: c.Tracing,
	}
}

// ToServerConfig converts the server section to the HTTP adapter's config.
func (c *Config) ToServerConfig() httpapi.ServerConfig {
	return httpapi.ServerConfig{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		Mode:            c.Server.Mode,
		ReadTimeout:     c.Server.ReadTimeout,
		WriteTimeout:    c.Server.WriteTimeout,
		ShutdownTimeout: c.Server.ShutdownTimeout,
	}
}
