package lark

import (
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
)

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string
	// ReceiveIDType is how receiver ids are interpreted: open_id, user_id, union_id, email or chat_id
	ReceiveIDType string
}

// DefaultReceiveIDType is used when Config.ReceiveIDType is empty
const DefaultReceiveIDType = "open_id"

// NewClient creates a Lark SDK client with token caching enabled
func NewClient(cfg Config) *lark.Client {
	return lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)
}
