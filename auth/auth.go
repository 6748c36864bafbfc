package auth

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenProvider supplies the bearer token attached to every backend request.
// Token refresh is the provider's concern; callers treat it as a black box.
type TokenProvider interface {
	SetAuthHeader(r *http.Request) error
}

// StaticToken is a TokenProvider for a pre-issued bearer token, typically
// handed over by the host application's authentication layer.
type StaticToken string

func (t StaticToken) SetAuthHeader(r *http.Request) error {
	if t == "" {
		return fmt.Errorf("auth: empty bearer token")
	}
	r.Header.Set("Authorization", "Bearer "+string(t))
	return nil
}

// ClientCred obtains and refreshes tokens via the OAuth2 client-credentials
// flow. Used by the headless watcher, which has no interactive auth layer.
type ClientCred struct {
	conf  clientcredentials.Config
	token *oauth2.Token
}

// NewClientCred builds a provider from the given configuration.
func NewClientCred(conf Conf) *ClientCred {
	return &ClientCred{conf: conf.toOauth2Config()}
}

// GetToken returns a valid access token, requesting a new one when the
// cached token has expired.
func (c *ClientCred) GetToken() (string, error) {
	if c.token != nil && c.token.Valid() {
		return c.token.AccessToken, nil
	}
	if err := c.getToken(); err != nil {
		return "", err
	}
	return c.token.AccessToken, nil
}

func (c *ClientCred) getToken() error {
	var err error
	c.token, err = c.conf.Token(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}
	return nil
}

// SetAuthHeader attaches a valid bearer token to the request.
func (c *ClientCred) SetAuthHeader(r *http.Request) error {
	if c.token != nil && c.token.Valid() {
		c.token.SetAuthHeader(r)
		return nil
	}
	if err := c.getToken(); err != nil {
		return err
	}
	c.token.SetAuthHeader(r)
	return nil
}
