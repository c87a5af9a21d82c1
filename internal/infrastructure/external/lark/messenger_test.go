package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessenger_SendMessage(t *testing.T) {
	var captured *larkim.CreateMessageReq
	messageID := "om_123"
	m := NewMessengerWithFunc(func(ctx context.Context, req *larkim.CreateMessageReq, _ ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error) {
		captured = req
		return &larkim.CreateMessageResp{Data: &larkim.CreateMessageRespData{MessageId: &messageID}}, nil
	}, "", nil)

	err := m.SendMessage(context.Background(), "ou_abc", `invoice "42" ready`)
	require.NoError(t, err)
	require.NotNil(t, captured)
	require.NotNil(t, captured.Body)

	assert.Equal(t, "ou_abc", *captured.Body.ReceiveId)
	assert.Equal(t, "text", *captured.Body.MsgType)

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(*captured.Body.Content), &content))
	assert.Equal(t, `invoice "42" ready`, content["text"])
}

func TestMessenger_Validation(t *testing.T) {
	called := false
	m := NewMessengerWithFunc(func(ctx context.Context, req *larkim.CreateMessageReq, _ ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error) {
		called = true
		return &larkim.CreateMessageResp{}, nil
	}, "open_id", nil)

	assert.Error(t, m.SendMessage(context.Background(), "", "hi"))
	assert.Error(t, m.SendMessage(context.Background(), "ou_abc", ""))
	assert.False(t, called)
}

func TestMessenger_Failures(t *testing.T) {
	t.Run("transport error", func(t *testing.T) {
		m := NewMessengerWithFunc(func(ctx context.Context, req *larkim.CreateMessageReq, _ ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error) {
			return nil, errors.New("connection reset")
		}, "", nil)
		err := m.SendMessage(context.Background(), "ou_abc", "hi")
		assert.ErrorContains(t, err, "connection reset")
	})

	t.Run("api error", func(t *testing.T) {
		m := NewMessengerWithFunc(func(ctx context.Context, req *larkim.CreateMessageReq, _ ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error) {
			return &larkim.CreateMessageResp{CodeError: larkcore.CodeError{Code: 230001, Msg: "invalid receive_id"}}, nil
		}, "", nil)
		err := m.SendMessage(context.Background(), "ou_abc", "hi")
		assert.ErrorContains(t, err, "code=230001")
	})
}
