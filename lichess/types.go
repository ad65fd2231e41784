package lichess

import "encoding/json"

// Perf is a player's rating in one speed or variant.
type Perf struct {
	Games  int  `json:"games"`
	Rating int  `json:"rating"`
	RD     int  `json:"rd"`
	Prog   int  `json:"prog"`
	Prov   bool `json:"prov,omitempty"`
}

// User is the public profile of a player.
type User struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	Title        string          `json:"title,omitempty"`
	Perfs        map[string]Perf `json:"perfs,omitempty"`
	CreatedAt    int64           `json:"createdAt,omitempty"`
	SeenAt       int64           `json:"seenAt,omitempty"`
	Disabled     bool            `json:"disabled,omitempty"`
	TosViolation bool            `json:"tosViolation,omitempty"`
	Patron       bool            `json:"patron,omitempty"`
	URL          string          `json:"url,omitempty"`
}

// Account is the profile of the token owner.
type Account struct {
	User
	Email string `json:"email,omitempty"`
	Kid   bool   `json:"kid,omitempty"`
}

// UserStatus reports whether a player is online, playing or streaming.
type UserStatus struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Title     string `json:"title,omitempty"`
	Online    bool   `json:"online,omitempty"`
	Playing   bool   `json:"playing,omitempty"`
	Streaming bool   `json:"streaming,omitempty"`
	Patron    bool   `json:"patron,omitempty"`
}

// GameUser identifies the account behind a game player.
type GameUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
}

// GamePlayer is one side of a game.
type GamePlayer struct {
	User       *GameUser `json:"user,omitempty"`
	Rating     int       `json:"rating,omitempty"`
	RatingDiff int       `json:"ratingDiff,omitempty"`
	AILevel    int       `json:"aiLevel,omitempty"`
}

// Game is an exported game.
type Game struct {
	ID         string `json:"id"`
	Rated      bool   `json:"rated"`
	Variant    string `json:"variant"`
	Speed      string `json:"speed"`
	Perf       string `json:"perf"`
	CreatedAt  int64  `json:"createdAt"`
	LastMoveAt int64  `json:"lastMoveAt"`
	Status     string `json:"status"`
	Players    struct {
		White GamePlayer `json:"white"`
		Black GamePlayer `json:"black"`
	} `json:"players"`
	Winner string `json:"winner,omitempty"`
	Moves  string `json:"moves,omitempty"`
	PGN    string `json:"pgn,omitempty"`
}

// GameEventInfo describes the game referenced by a gameStart or gameFinish event.
type GameEventInfo struct {
	GameID   string `json:"gameId"`
	FullID   string `json:"fullId"`
	Color    string `json:"color"`
	FEN      string `json:"fen"`
	IsMyTurn bool   `json:"isMyTurn"`
	Source   string `json:"source,omitempty"`
	Opponent struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Rating   int    `json:"rating,omitempty"`
	} `json:"opponent"`
}

// Event is one item of the incoming event stream of the token owner.
// Challenge payloads are kept raw; their shape depends on Type.
type Event struct {
	Type      string          `json:"type"`
	Game      *GameEventInfo  `json:"game,omitempty"`
	Challenge json.RawMessage `json:"challenge,omitempty"`
}

// Opening names an opening by ECO code.
type Opening struct {
	ECO  string `json:"eco"`
	Name string `json:"name"`
}

// ExplorerMove is one continuation of an opening explorer position.
type ExplorerMove struct {
	UCI           string `json:"uci"`
	SAN           string `json:"san"`
	AverageRating int    `json:"averageRating,omitempty"`
	White         int    `json:"white"`
	Draws         int    `json:"draws"`
	Black         int    `json:"black"`
}

// ExplorerGame references a game listed by the opening explorer.
type ExplorerGame struct {
	ID     string `json:"id"`
	Winner string `json:"winner,omitempty"`
	Year   int    `json:"year,omitempty"`
	White  struct {
		Name   string `json:"name"`
		Rating int    `json:"rating"`
	} `json:"white"`
	Black struct {
		Name   string `json:"name"`
		Rating int    `json:"rating"`
	} `json:"black"`
}

// ExplorerResult is the opening explorer answer for one position.
type ExplorerResult struct {
	Opening     *Opening       `json:"opening,omitempty"`
	White       int            `json:"white"`
	Draws       int            `json:"draws"`
	Black       int            `json:"black"`
	Moves       []ExplorerMove `json:"moves"`
	TopGames    []ExplorerGame `json:"topGames,omitempty"`
	RecentGames []ExplorerGame `json:"recentGames,omitempty"`
}

// TablebaseMove is one move of a tablebase position.
type TablebaseMove struct {
	UCI       string `json:"uci"`
	SAN       string `json:"san"`
	Category  string `json:"category"`
	DTZ       *int   `json:"dtz"`
	DTM       *int   `json:"dtm"`
	Zeroing   bool   `json:"zeroing"`
	Checkmate bool   `json:"checkmate"`
	Stalemate bool   `json:"stalemate"`
}

// TablebaseResult is the endgame tablebase answer for one position.
type TablebaseResult struct {
	Category             string          `json:"category"`
	DTZ                  *int            `json:"dtz"`
	DTM                  *int            `json:"dtm"`
	Checkmate            bool            `json:"checkmate"`
	Stalemate            bool            `json:"stalemate"`
	InsufficientMaterial bool            `json:"insufficient_material"`
	Moves                []TablebaseMove `json:"moves"`
}

// PrincipalVariation is one line of a cloud evaluation.
// Exactly one of CP and Mate is set.
type PrincipalVariation struct {
	Moves string `json:"moves"`
	CP    *int   `json:"cp,omitempty"`
	Mate  *int   `json:"mate,omitempty"`
}

// CloudEval is a cached engine evaluation.
type CloudEval struct {
	FEN    string               `json:"fen"`
	Knodes int                  `json:"knodes"`
	Depth  int                  `json:"depth"`
	PVs    []PrincipalVariation `json:"pvs"`
}

// AIGame is the game created by a challenge against the computer.
type AIGame struct {
	ID      string `json:"id"`
	Rated   bool   `json:"rated"`
	Speed   string `json:"speed"`
	Perf    string `json:"perf"`
	FEN     string `json:"fen"`
	Player  string `json:"player"`
	Turns   int    `json:"turns"`
	Source  string `json:"source"`
	Variant struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"variant"`
	Status struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"status"`
}

// Token is the result of an OAuth authorization code exchange.
type Token struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}
