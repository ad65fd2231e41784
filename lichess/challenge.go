package lichess

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gaborage/lichess-go/httpclient"
)

// ChallengeAIOptions configures a game against the computer.
type ChallengeAIOptions struct {
	// Level is the engine strength, 1 to 8.
	Level int
	// ClockLimit in seconds and ClockIncrement in seconds set a real-time clock.
	ClockLimit     int
	ClockIncrement int
	// Days sets a correspondence game when no clock is given.
	Days    int
	Color   string
	Variant string
	FEN     string
}

func (o ChallengeAIOptions) validate() error {
	if o.Level < 1 || o.Level > 8 {
		return &httpclient.ValidationError{Field: "level", Message: "level must be between 1 and 8"}
	}
	if o.ClockLimit > 0 && o.Days > 0 {
		return &httpclient.ValidationError{Field: "days", Message: "days cannot be combined with a clock"}
	}
	return nil
}

func (o ChallengeAIOptions) form() map[string]string {
	fields := map[string]string{"level": strconv.Itoa(o.Level)}
	if o.ClockLimit > 0 {
		fields["clock.limit"] = strconv.Itoa(o.ClockLimit)
		fields["clock.increment"] = strconv.Itoa(o.ClockIncrement)
	}
	if o.Days > 0 {
		fields["days"] = strconv.Itoa(o.Days)
	}
	if o.Color != "" {
		fields["color"] = o.Color
	}
	if o.Variant != "" {
		fields["variant"] = o.Variant
	}
	if o.FEN != "" {
		fields["fen"] = o.FEN
	}
	return fields
}

// ChallengeAI starts a game against the computer. The call creates a game, so
// transient failures are never retried.
func (c *Client) ChallengeAI(ctx context.Context, opts ChallengeAIOptions) (*AIGame, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	req := httpclient.Post("/api/challenge/ai").
		WithAuth().
		WithoutRetry().
		WithBody(httpclient.FormBody(opts.form()))

	game, err := httpclient.SendJSON[AIGame](ctx, c.transport, req)
	if err != nil {
		return nil, fmt.Errorf("challenge ai: %w", err)
	}
	return &game, nil
}
