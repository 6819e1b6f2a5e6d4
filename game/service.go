package game

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fernandezvara/gamekit"
)

// Service implements the game operations on top of the repository.
type Service struct {
	db     *gamekit.DB
	repo   *Repository
	logger *slog.Logger
}

// NewService creates a game service. A nil logger uses slog.Default.
func NewService(db *gamekit.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:     db,
		repo:   NewRepository(db),
		logger: logger,
	}
}

// GetGameByCode returns the game with the given code.
func (s *Service) GetGameByCode(ctx context.Context, gameCode string) (*Game, error) {
	return s.repo.FindByCode(ctx, gameCode)
}

// GetGamesByGroup returns one page of the games in a group.
func (s *Service) GetGamesByGroup(ctx context.Context, groupKey string, page, pageSize int) (*gamekit.OffsetPage[Game], error) {
	return s.repo.ListByGroup(ctx, groupKey, page, pageSize)
}

// CreateGame validates g and inserts it. The parent lookup and the insert
// share a transaction.
func (s *Service) CreateGame(ctx context.Context, g *Game) (*Game, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	g.ID = 0

	err := s.db.Transaction(ctx, func(tx *gamekit.Tx) error {
		repo := s.repo.WithTx(tx)
		if err := checkParent(ctx, repo, g); err != nil {
			return err
		}
		return repo.Save(ctx, g)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "game created",
		slog.Int64("id", g.ID),
		slog.String("game_code", g.GameCode),
		slog.String("group_key", g.GroupKey),
	)
	return g, nil
}

// UpdateGame replaces the game with the primary key id. A parent game that
// still has children keeps its code and stays a parent.
func (s *Service) UpdateGame(ctx context.Context, id int64, g *Game) (*Game, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: id must be positive", ErrInvalidGame)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	g.ID = id

	err := s.db.Transaction(ctx, func(tx *gamekit.Tx) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkChildren(ctx, repo, current, g); err != nil {
			return err
		}
		if err := checkParent(ctx, repo, g); err != nil {
			return err
		}
		return repo.Save(ctx, g)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "game updated", slog.Int64("id", g.ID), slog.String("game_code", g.GameCode))
	return g, nil
}

// DeleteGame removes the game with the primary key id.
func (s *Service) DeleteGame(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "game deleted", slog.Int64("id", id))
	return nil
}

// checkParent requires a named parent to exist and to be a parent game.
func checkParent(ctx context.Context, repo *Repository, g *Game) error {
	if !g.HasParent() {
		return nil
	}

	parent, err := repo.FindByCode(ctx, *g.ParentGameCode)
	if gamekit.IsNotFound(err) {
		return fmt.Errorf("%w: parent game %q does not exist", ErrInvalidGame, *g.ParentGameCode)
	}
	if err != nil {
		return err
	}
	if !parent.IsParent {
		return fmt.Errorf("%w: game %q is not a parent game", ErrInvalidGame, parent.GameCode)
	}
	return nil
}

// checkChildren refuses to demote or rename a parent its children point at.
func checkChildren(ctx context.Context, repo *Repository, current, next *Game) error {
	if !current.IsParent || (next.IsParent && next.GameCode == current.GameCode) {
		return nil
	}
	n, err := repo.CountChildren(ctx, current.GameCode)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: game %q still has %d child games", ErrInvalidGame, current.GameCode, n)
	}
	return nil
}
