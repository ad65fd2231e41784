package lichess

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/gaborage/lichess-go/httpclient"
)

// UserGamesOptions filters the games exported by StreamUserGames.
// Zero values are omitted from the query.
type UserGamesOptions struct {
	Max      int
	Since    time.Time
	Until    time.Time
	Vs       string
	Rated    *bool
	PerfType string
	Color    string
	// PGNInJSON includes the PGN text in each game.
	PGNInJSON bool
	Moves     *bool
	Ongoing   bool
}

func (o UserGamesOptions) query() []httpclient.QueryParam {
	var params []httpclient.QueryParam
	add := func(key, value string) {
		params = append(params, httpclient.QueryParam{Key: key, Value: value})
	}

	if o.Max > 0 {
		add("max", strconv.Itoa(o.Max))
	}
	if !o.Since.IsZero() {
		add("since", strconv.FormatInt(o.Since.UnixMilli(), 10))
	}
	if !o.Until.IsZero() {
		add("until", strconv.FormatInt(o.Until.UnixMilli(), 10))
	}
	if o.Vs != "" {
		add("vs", o.Vs)
	}
	if o.Rated != nil {
		add("rated", strconv.FormatBool(*o.Rated))
	}
	if o.PerfType != "" {
		add("perfType", o.PerfType)
	}
	if o.Color != "" {
		add("color", o.Color)
	}
	if o.PGNInJSON {
		add("pgnInJson", "true")
	}
	if o.Moves != nil {
		add("moves", strconv.FormatBool(*o.Moves))
	}
	if o.Ongoing {
		add("ongoing", "true")
	}
	return params
}

// ExportGame returns one game as JSON.
func (c *Client) ExportGame(ctx context.Context, gameID string) (*Game, error) {
	if err := requireArg("gameID", gameID); err != nil {
		return nil, err
	}
	req := httpclient.Get("/game/export/" + url.PathEscape(gameID)).WithAccept(httpclient.MediaTypeJSON)
	game, err := httpclient.SendJSON[Game](ctx, c.transport, req)
	if err != nil {
		return nil, fmt.Errorf("export game %s: %w", gameID, err)
	}
	return &game, nil
}

// ExportGamePGN returns one game in PGN notation.
func (c *Client) ExportGamePGN(ctx context.Context, gameID string) (string, error) {
	if err := requireArg("gameID", gameID); err != nil {
		return "", err
	}
	req := httpclient.Get("/game/export/" + url.PathEscape(gameID))
	pgn, err := c.transport.SendText(ctx, req, httpclient.MediaTypePGN)
	if err != nil {
		return "", fmt.Errorf("export game %s as pgn: %w", gameID, err)
	}
	return pgn, nil
}

// StreamUserGames streams the games of username, newest first. No request is
// made until the first Next; the caller must Close the stream.
func (c *Client) StreamUserGames(ctx context.Context, username string, opts UserGamesOptions) *httpclient.Stream[Game] {
	req := httpclient.Get("/api/games/user/" + url.PathEscape(username)).
		WithQueryParams(opts.query()...).
		WithAccept(httpclient.MediaTypeNDJSON)
	return httpclient.StreamNDJSON[Game](ctx, c.transport, req)
}

// StreamEvents streams the incoming events of the token owner. The stream
// stays open until ctx is canceled or Close is called.
func (c *Client) StreamEvents(ctx context.Context) *httpclient.Stream[Event] {
	return httpclient.StreamNDJSON[Event](ctx, c.transport, httpclient.Get("/api/stream/event").WithAuth())
}
