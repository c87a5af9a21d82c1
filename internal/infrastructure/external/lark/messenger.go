package lark

import (
	"context"
	"encoding/json"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
)

// CreateMessageFunc matches the SDK's Im.Message.Create
type CreateMessageFunc func(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)

// Messenger implements port.LarkMessageSender
type Messenger struct {
	create        CreateMessageFunc
	receiveIDType string
	logger        *zap.Logger
}

var _ port.LarkMessageSender = (*Messenger)(nil)

// NewMessenger creates a message sender backed by the Lark SDK client
func NewMessenger(client *lark.Client, receiveIDType string, logger *zap.Logger) *Messenger {
	return NewMessengerWithFunc(client.Im.Message.Create, receiveIDType, logger)
}

// NewMessengerWithFunc creates a message sender around an explicit create call
func NewMessengerWithFunc(create CreateMessageFunc, receiveIDType string, logger *zap.Logger) *Messenger {
	if receiveIDType == "" {
		receiveIDType = DefaultReceiveIDType
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Messenger{
		create:        create,
		receiveIDType: receiveIDType,
		logger:        logger,
	}
}

// SendMessage sends a text message to a receiver
func (m *Messenger) SendMessage(ctx context.Context, receiveID string, content string) error {
	if receiveID == "" {
		return fmt.Errorf("receiveID cannot be empty")
	}
	if content == "" {
		return fmt.Errorf("content cannot be empty")
	}

	text, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return fmt.Errorf("failed to marshal text content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(m.receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType("text").
			Content(string(text)).
			Build()).
		Build()

	resp, err := m.create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", receiveID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", receiveID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	m.logger.Debug("Message sent",
		zap.String("message_id", messageID),
		zap.String("receive_id", receiveID))

	return nil
}
