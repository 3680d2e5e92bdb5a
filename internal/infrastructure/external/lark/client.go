package lark

import (
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"
)

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string
	// UserIDType is how recipient and employee ids are interpreted:
	// user_id, open_id or union_id.
	UserIDType string
	// RoleChats maps an approver role to the group chat that receives
	// notifications for role-only steps.
	RoleChats map[string]string
}

// Client wraps the Lark SDK client
type Client struct {
	client *lark.Client
	cfg    Config
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.UserIDType == "" {
		cfg.UserIDType = "user_id"
	}
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)

	return &Client{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// GetClient returns the underlying Lark SDK client
func (c *Client) GetClient() *lark.Client {
	return c.client
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
