package lichess

import (
	"context"
	"fmt"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gaborage/lichess-go/httpclient"
)

// Opening explorer databases.
const (
	ExplorerLichess = "lichess"
	ExplorerMasters = "masters"
)

// ExplorerOptions narrows an opening explorer query. Empty fields are omitted.
type ExplorerOptions struct {
	Variant  string
	Speeds   []string
	Ratings  []int
	Moves    int
	TopGames int
	// Play is a comma separated list of UCI moves played from FEN.
	Play string
}

func (o ExplorerOptions) query(fen string) []httpclient.QueryParam {
	params := []httpclient.QueryParam{{Key: "fen", Value: fen}}
	add := func(key, value string) {
		if value != "" {
			params = append(params, httpclient.QueryParam{Key: key, Value: value})
		}
	}

	add("variant", o.Variant)
	add("play", o.Play)
	add("speeds", strings.Join(o.Speeds, ","))
	if len(o.Ratings) > 0 {
		ratings := make([]string, len(o.Ratings))
		for i, r := range o.Ratings {
			ratings[i] = strconv.Itoa(r)
		}
		add("ratings", strings.Join(ratings, ","))
	}
	if o.Moves > 0 {
		add("moves", strconv.Itoa(o.Moves))
	}
	if o.TopGames > 0 {
		add("topGames", strconv.Itoa(o.TopGames))
	}
	return params
}

// OpeningExplorer queries the opening explorer database (ExplorerLichess or
// ExplorerMasters) for the position fen.
func (c *Client) OpeningExplorer(ctx context.Context, database, fen string, opts ExplorerOptions) (*ExplorerResult, error) {
	if err := requireArg("database", database); err != nil {
		return nil, err
	}
	if err := requireArg("fen", fen); err != nil {
		return nil, err
	}

	rawURL := c.explorerURL + "/" + url.PathEscape(database)
	result, err := httpclient.SendAbsolute[ExplorerResult](ctx, c.transport, rawURL, opts.query(fen)...)
	if err != nil {
		return nil, fmt.Errorf("query %s explorer: %w", database, err)
	}
	return &result, nil
}

// PlayerExplorer queries the games of player with color for the position fen.
// The explorer streams progressively refined results; the final one is returned.
func (c *Client) PlayerExplorer(ctx context.Context, player, color, fen string, opts ExplorerOptions) (*ExplorerResult, error) {
	if err := requireArg("player", player); err != nil {
		return nil, err
	}
	if err := requireArg("color", color); err != nil {
		return nil, err
	}

	params := append(opts.query(fen),
		httpclient.QueryParam{Key: "player", Value: player},
		httpclient.QueryParam{Key: "color", Value: color},
	)
	req := httpclient.NewAbsoluteRequest(nethttp.MethodGet, c.explorerURL+"/player").
		WithQueryParams(params...).
		WithAccept(httpclient.MediaTypeNDJSON)

	result, ok, err := httpclient.LastNDJSON[ExplorerResult](ctx, c.transport, req)
	if err != nil {
		return nil, fmt.Errorf("query player explorer for %s: %w", player, err)
	}
	if !ok {
		return &ExplorerResult{}, nil
	}
	return &result, nil
}

// Tablebase looks up the endgame tablebase. An empty variant means standard.
func (c *Client) Tablebase(ctx context.Context, variant, fen string) (*TablebaseResult, error) {
	if err := requireArg("fen", fen); err != nil {
		return nil, err
	}
	if variant == "" {
		variant = "standard"
	}

	rawURL := c.tablebaseURL + "/" + url.PathEscape(variant)
	result, err := httpclient.SendAbsolute[TablebaseResult](ctx, c.transport, rawURL, httpclient.QueryParam{Key: "fen", Value: fen})
	if err != nil {
		return nil, fmt.Errorf("query %s tablebase: %w", variant, err)
	}
	return &result, nil
}

// CloudEval returns the cached evaluation of fen with up to multiPV lines.
// A position without cached evaluation yields a NotFoundError.
func (c *Client) CloudEval(ctx context.Context, fen string, multiPV int) (*CloudEval, error) {
	if err := requireArg("fen", fen); err != nil {
		return nil, err
	}
	req := httpclient.Get("/api/cloud-eval").WithQuery("fen", fen)
	if multiPV > 0 {
		req = req.WithQuery("multiPv", strconv.Itoa(multiPV))
	}

	eval, err := httpclient.SendJSON[CloudEval](ctx, c.transport, req)
	if err != nil {
		return nil, fmt.Errorf("get cloud eval: %w", err)
	}
	return &eval, nil
}
