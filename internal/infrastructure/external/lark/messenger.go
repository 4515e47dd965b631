package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/garyjia/credit-approvals/internal/application/port"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// ReceiveIDTypeChat addresses a group chat by its chat_id
const ReceiveIDTypeChat = "chat_id"

// Messenger implements port.Messenger with the Lark IM API
type Messenger struct {
	client        *SDKClient
	receiveIDType string
	logger        *zap.Logger
}

// NewMessenger creates a messenger posting to group chats
func NewMessenger(client *SDKClient, logger *zap.Logger) *Messenger {
	return &Messenger{
		client:        client,
		receiveIDType: ReceiveIDTypeChat,
		logger:        logger,
	}
}

// SendText posts a plain text message to chatID
func (m *Messenger) SendText(ctx context.Context, chatID, text string) error {
	content, err := textContent(chatID, text)
	if err != nil {
		return err
	}

	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType(m.receiveIDType).
		Body(larkIm.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkIm.MsgTypeText).
			Content(content).
			Build()).
		Build()

	resp, err := m.client.GetClient().Im.Message.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", chatID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", chatID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("receive_id", chatID))
	return nil
}

// textContent builds the JSON body of a Lark text message
func textContent(chatID, text string) (string, error) {
	if chatID == "" {
		return "", errors.New("chat ID cannot be empty")
	}
	if text == "" {
		return "", errors.New("content cannot be empty")
	}

	b, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}
	return string(b), nil
}

// Verify interface compliance
var _ port.Messenger = (*Messenger)(nil)
