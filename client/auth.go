package client

import (
	"context"

	"github.com/sendgrid/rest"

	"github.com/trezcool/admitflow/core/user"
)

type Session struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

// Login authenticates and keeps the returned token for subsequent calls.
func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	body := map[string]string{"username": username, "password": password}
	env, err := do[Session](ctx, c, rest.Post, "/auth/login", nil, body)
	if err != nil {
		return Session{}, err
	}
	c.SetToken(env.Data.Token)
	return env.Data, nil
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := do[struct{}](ctx, c, rest.Post, "/auth/logout", nil, nil)
	c.SetToken("")
	return err
}

// RefreshToken swaps the current token for a fresh one.
func (c *Client) RefreshToken(ctx context.Context) (Session, error) {
	env, err := do[Session](ctx, c, rest.Post, "/auth/token-refresh", nil, nil)
	if err != nil {
		return Session{}, err
	}
	c.SetToken(env.Data.Token)
	return env.Data, nil
}

func (c *Client) Me(ctx context.Context) (user.User, error) {
	env, err := do[user.User](ctx, c, rest.Get, "/auth/me", nil, nil)
	return env.Data, err
}

// Counsellors lists the users leads can be assigned to.
func (c *Client) Counsellors(ctx context.Context) ([]user.User, error) {
	return Fetch(c.cache, "users:counsellors", func() ([]user.User, error) {
		env, err := do[[]user.User](ctx, c, rest.Get, "/users/counsellors", nil, nil)
		return env.Data, err
	})
}
