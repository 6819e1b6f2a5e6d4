package game

import (
	"context"

	"github.com/fernandezvara/gamekit"
)

// Repository reads and writes the game table.
type Repository struct {
	db gamekit.IDB
}

// NewRepository returns a repository over db, which may be a DB or a Tx.
func NewRepository(db gamekit.IDB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gamekit.Tx) *Repository {
	return &Repository{db: tx}
}

// FindByID returns the game with the primary key id.
func (r *Repository) FindByID(ctx context.Context, id int64) (*Game, error) {
	return gamekit.FindByID[Game](ctx, r.db, id)
}

// selectGames reads game rows; lookups append their WHERE clause.
const selectGames = "SELECT id, game_code, group_key, is_parent, parent_game_code FROM game"

// FindByCode returns the game with the given code.
func (r *Repository) FindByCode(ctx context.Context, gameCode string) (*Game, error) {
	return gamekit.SelectOne[Game](ctx, r.db, selectGames+" WHERE game_code = ? LIMIT 1", gameCode)
}

// ListByGroup returns one page of the games in a group, ordered by id.
func (r *Repository) ListByGroup(ctx context.Context, groupKey string, page, pageSize int) (*gamekit.OffsetPage[Game], error) {
	return gamekit.PaginateSQL[Game](ctx, r.db, page, pageSize, selectGames+" WHERE group_key = ? ORDER BY id ASC", groupKey)
}

// CountChildren counts the games naming parentCode as their parent.
func (r *Repository) CountChildren(ctx context.Context, parentCode string) (int, error) {
	return gamekit.SelectInt(ctx, r.db, "SELECT count(*) FROM game WHERE parent_game_code = ?", parentCode)
}

// Save inserts g when it has no id yet and updates it by primary key otherwise.
func (r *Repository) Save(ctx context.Context, g *Game) error {
	if g.ID == 0 {
		return gamekit.Create(ctx, r.db, g)
	}
	return gamekit.Update(ctx, r.db, g)
}

// Delete removes the game with the primary key id.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return gamekit.DeleteByID[Game](ctx, r.db, id)
}
