package lichess

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gaborage/lichess-go/httpclient"
)

// MaxStatusIDs is the largest number of ids accepted by UsersStatus.
const MaxStatusIDs = 100

// Account returns the profile of the token owner. It requires an access token.
func (c *Client) Account(ctx context.Context) (*Account, error) {
	account, err := httpclient.SendJSON[Account](ctx, c.transport, httpclient.Get("/api/account").WithAuth())
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &account, nil
}

// User returns the public profile of username.
func (c *Client) User(ctx context.Context, username string) (*User, error) {
	if err := requireArg("username", username); err != nil {
		return nil, err
	}
	user, err := httpclient.SendJSON[User](ctx, c.transport, httpclient.Get("/api/user/"+url.PathEscape(username)))
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", username, err)
	}
	return &user, nil
}

// UsersStatus returns the presence of up to MaxStatusIDs players.
func (c *Client) UsersStatus(ctx context.Context, ids ...string) ([]UserStatus, error) {
	if len(ids) == 0 {
		return nil, &httpclient.ValidationError{Field: "ids", Message: "at least one id is required"}
	}
	if len(ids) > MaxStatusIDs {
		return nil, &httpclient.ValidationError{Field: "ids", Message: fmt.Sprintf("at most %d ids are allowed", MaxStatusIDs)}
	}

	req := httpclient.Get("/api/users/status").WithQuery("ids", strings.Join(ids, ","))
	statuses, err := httpclient.SendJSON[[]UserStatus](ctx, c.transport, req)
	if err != nil {
		return nil, fmt.Errorf("get users status: %w", err)
	}
	return statuses, nil
}
