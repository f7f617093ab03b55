package backend

import (
	"context"
	"net/http"
)

// CreateSupportConversation opens a fresh support conversation and returns
// its id. Conversations are never reused; each chat session starts clean.
func (c *Client) CreateSupportConversation(ctx context.Context) (int64, error) {
	var result struct {
		ConversationID int64 `json:"conversation_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/support/conversations/create/", nil, nil, &result); err != nil {
		return 0, err
	}
	return result.ConversationID, nil
}
