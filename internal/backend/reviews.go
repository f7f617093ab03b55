package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pawmart/storefront/pkg/types"
)

// Comment statuses as the backend reports them. New comments wait in
// pending until a product manager approves them.
const (
	CommentStatusPending  = "pending"
	CommentStatusApproved = "approved"
)

// Comment is one review row from the backend moderation pipeline.
type Comment struct {
	ID          int64            `json:"id"`
	ProductID   types.FlexString `json:"product_id"`
	ProductName string           `json:"product_name"`
	UserID      types.FlexString `json:"user_id"`
	UserName    string           `json:"user_name"`
	Rating      types.FlexInt    `json:"rating"`
	Comment     string           `json:"comment"`
	Status      string           `json:"status"`
	CreatedAt   string           `json:"created_at"`
}

type commentsEnvelope struct {
	Comments []Comment `json:"comments"`
}

// FetchComments lists comments, optionally filtered by status.
func (c *Client) FetchComments(ctx context.Context, status string) ([]Comment, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	var envelope commentsEnvelope
	if err := c.do(ctx, http.MethodGet, "/comments/", query, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Comments, nil
}

// CreateCommentInput is the review submission payload.
type CreateCommentInput struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	UserEmail   string `json:"user_email"`
	Rating      int    `json:"rating"`
	Comment     string `json:"comment"`
}

// CreateComment submits a review; the backend parks it as pending.
func (c *Client) CreateComment(ctx context.Context, input CreateCommentInput) (*Comment, error) {
	var created Comment
	if err := c.do(ctx, http.MethodPost, "/comments/create/", nil, input, &created); err != nil {
		return nil, err
	}
	return &created, nil
}
