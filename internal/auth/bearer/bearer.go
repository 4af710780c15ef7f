// Package bearer performs GET requests authorized with an OAuth 2 bearer token.
package bearer

import (
	"context"
	"io"
	"net/http"

	"github.com/gwlsn/thingiverse-auth/internal/auth"
	"golang.org/x/oauth2"
)

// Client sends bearer-authorized requests. The zero value uses http.DefaultClient.
type Client struct {
	HTTPClient *http.Client
}

// Get fetches rawURL with token as the bearer credential. OAuth 2 has no
// token secret, so tokenSecret is ignored.
func (c *Client) Get(ctx context.Context, rawURL, token, _ string) ([]byte, error) {
	if c.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &auth.StatusError{StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}
