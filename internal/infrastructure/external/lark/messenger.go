package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

type createMessageFunc func(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)

// Messenger delivers notifications as Lark text messages. Notifications for
// a whole role go to that role's group chat.
type Messenger struct {
	create     createMessageFunc
	userIDType string
	roleChats  map[string]string
	logger     *zap.Logger
}

func NewMessenger(c *Client, logger *zap.Logger) *Messenger {
	return newMessenger(c.client.Im.Message.Create, c.cfg, logger)
}

func newMessenger(create createMessageFunc, cfg Config, logger *zap.Logger) *Messenger {
	chats := make(map[string]string, len(cfg.RoleChats))
	for role, chat := range cfg.RoleChats {
		chats[strings.ToUpper(role)] = chat
	}
	idType := cfg.UserIDType
	if idType == "" {
		idType = "user_id"
	}
	return &Messenger{
		create:     create,
		userIDType: idType,
		roleChats:  chats,
		logger:     logger,
	}
}

func (m *Messenger) Send(ctx context.Context, n *entity.Notification) error {
	receiveIDType, receiveID, err := m.target(n)
	if err != nil {
		return err
	}

	content, err := json.Marshal(map[string]string{"text": n.Subject + "\n" + n.Message})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(larkim.MsgTypeText).
			Content(string(content)).
			Uuid(n.ID).
			Build()).
		Build()

	resp, err := m.create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("notification_id", n.ID),
			zap.String("receive_id", receiveID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("notification_id", n.ID),
			zap.String("receive_id", receiveID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	var messageID string
	if resp.Data != nil {
		messageID = derefString(resp.Data.MessageId)
	}
	m.logger.Info("Message sent successfully",
		zap.String("notification_id", n.ID),
		zap.String("message_id", messageID),
		zap.String("receive_id", receiveID))
	return nil
}

func (m *Messenger) target(n *entity.Notification) (string, string, error) {
	if n.RecipientID != "" {
		return m.userIDType, n.RecipientID, nil
	}
	if chat, ok := m.roleChats[strings.ToUpper(n.RecipientRole)]; ok && chat != "" {
		return larkim.ReceiveIdTypeChatId, chat, nil
	}
	if n.RecipientRole != "" {
		return "", "", fmt.Errorf("no chat configured for role %s", n.RecipientRole)
	}
	return "", "", fmt.Errorf("notification %s has no recipient", n.ID)
}

var _ port.Notifier = (*Messenger)(nil)
