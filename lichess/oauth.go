package lichess

import (
	"context"
	"fmt"

	"github.com/gaborage/lichess-go/httpclient"
)

// TokenExchange holds the authorization code grant parameters.
type TokenExchange struct {
	Code         string
	CodeVerifier string
	RedirectURI  string
	ClientID     string
}

// ExchangeToken trades an authorization code for an access token. The
// resulting token is not installed in the Client.
func (c *Client) ExchangeToken(ctx context.Context, exchange TokenExchange) (*Token, error) {
	required := []struct{ field, value string }{
		{"code", exchange.Code},
		{"code_verifier", exchange.CodeVerifier},
		{"redirect_uri", exchange.RedirectURI},
		{"client_id", exchange.ClientID},
	}
	for _, r := range required {
		if err := requireArg(r.field, r.value); err != nil {
			return nil, err
		}
	}

	req := httpclient.Post("/api/token").WithBody(httpclient.FormBody(map[string]string{
		"grant_type":    "authorization_code",
		"code":          exchange.Code,
		"code_verifier": exchange.CodeVerifier,
		"redirect_uri":  exchange.RedirectURI,
		"client_id":     exchange.ClientID,
	}))
	token, err := httpclient.SendJSON[Token](ctx, c.transport, req)
	if err != nil {
		return nil, fmt.Errorf("exchange token: %w", err)
	}
	return &token, nil
}

// RevokeToken revokes the access token the Client was configured with.
func (c *Client) RevokeToken(ctx context.Context) error {
	if err := c.transport.Send(ctx, httpclient.Delete("/api/token").WithAuth(), nil); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}
