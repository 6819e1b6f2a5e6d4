// Package game is the game catalogue: the game table, its repository and
// service, and the HTTP routes that expose them.
package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

// MaxCodeLength bounds game_code, group_key and parent_game_code.
const MaxCodeLength = 64

// ErrInvalidGame is returned when a game fails validation.
var ErrInvalidGame = errors.New("game: invalid game")

// Game is a row of the game table.
type Game struct {
	bun.BaseModel `bun:"table:game,alias:g"`

	ID             int64   `bun:"id,pk,autoincrement" json:"id"`
	GameCode       string  `bun:"game_code,notnull" json:"gameCode"`
	GroupKey       string  `bun:"group_key,notnull" json:"groupKey"`
	IsParent       bool    `bun:"is_parent,notnull" json:"isParent"`
	ParentGameCode *string `bun:"parent_game_code" json:"parentGameCode"`
}

// HasParent reports whether the game names a parent.
func (g *Game) HasParent() bool {
	return g.ParentGameCode != nil && *g.ParentGameCode != ""
}

// Validate checks the fields a caller controls.
func (g *Game) Validate() error {
	g.GameCode = strings.TrimSpace(g.GameCode)
	g.GroupKey = strings.TrimSpace(g.GroupKey)
	if g.ParentGameCode != nil {
		code := strings.TrimSpace(*g.ParentGameCode)
		if code == "" {
			g.ParentGameCode = nil
		} else {
			g.ParentGameCode = &code
		}
	}

	switch {
	case g.GameCode == "":
		return fmt.Errorf("%w: gameCode is required", ErrInvalidGame)
	case g.GroupKey == "":
		return fmt.Errorf("%w: groupKey is required", ErrInvalidGame)
	case len(g.GameCode) > MaxCodeLength:
		return fmt.Errorf("%w: gameCode longer than %d", ErrInvalidGame, MaxCodeLength)
	case len(g.GroupKey) > MaxCodeLength:
		return fmt.Errorf("%w: groupKey longer than %d", ErrInvalidGame, MaxCodeLength)
	}

	if g.HasParent() {
		switch {
		case g.IsParent:
			return fmt.Errorf("%w: a parent game cannot have a parent", ErrInvalidGame)
		case *g.ParentGameCode == g.GameCode:
			return fmt.Errorf("%w: a game cannot be its own parent", ErrInvalidGame)
		case len(*g.ParentGameCode) > MaxCodeLength:
			return fmt.Errorf("%w: parentGameCode longer than %d", ErrInvalidGame, MaxCodeLength)
		}
	}
	return nil
}
