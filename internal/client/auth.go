package client

import (
	"context"
	"net/url"
)

type Credentials struct {
	Username string
	Password string
}

func (cr Credentials) form() url.Values {
	return url.Values{"username": {cr.Username}, "password": {cr.Password}}
}

// Register creates an account and returns its token.
func (c *Client) Register(ctx context.Context, cr Credentials) (string, error) {
	return c.postForm(ctx, "/auth/register", cr.form())
}

// Login returns a fresh token for valid credentials.
func (c *Client) Login(ctx context.Context, cr Credentials) (string, error) {
	return c.postForm(ctx, "/auth/login", cr.form())
}
