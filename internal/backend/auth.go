package backend

import (
	"context"
	"net/http"
)

// User is the backend's serialized account profile.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type authEnvelope struct {
	Message string `json:"message"`
	User    User   `json:"user"`
	Token   string `json:"token"`
}

// Login authenticates with a username or email; the session cookie lands on
// the client's jar.
func (c *Client) Login(ctx context.Context, usernameOrEmail, password string) (*User, string, error) {
	var envelope authEnvelope
	input := LoginInput{Username: usernameOrEmail, Password: password}
	if err := c.do(ctx, http.MethodPost, "/login/", nil, input, &envelope); err != nil {
		return nil, "", err
	}
	return &envelope.User, envelope.Token, nil
}

// Logout drops the backend session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout/", nil, nil, nil)
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, input RegisterInput) (*User, error) {
	var envelope authEnvelope
	if err := c.do(ctx, http.MethodPost, "/register/", nil, input, &envelope); err != nil {
		return nil, err
	}
	return &envelope.User, nil
}

// CurrentUser returns the profile bound to the session cookie, or an
// unauthorized error when the session is gone.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/user/", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
