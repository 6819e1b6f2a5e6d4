package game

import (
	"github.com/uptrace/bun/dialect"

	"github.com/fernandezvara/gamekit"
)

// Migrations returns the schema of the game table for the dialect.
func Migrations(name dialect.Name) []gamekit.Migration {
	if name == dialect.PG {
		return []gamekit.Migration{
			{
				ID:          "001",
				Description: "Create game table",
				SQL: `CREATE TABLE IF NOT EXISTS game (
    id BIGSERIAL PRIMARY KEY,
    game_code VARCHAR(64) NOT NULL,
    group_key VARCHAR(64) NOT NULL,
    is_parent BOOLEAN NOT NULL DEFAULT FALSE,
    parent_game_code VARCHAR(64),
    CONSTRAINT uk_game_code UNIQUE (game_code)
)`,
			},
			{
				ID:          "002",
				Description: "Index game group",
				SQL:         `CREATE INDEX IF NOT EXISTS idx_game_group_key ON game (group_key)`,
			},
		}
	}

	return []gamekit.Migration{
		{
			ID:          "001",
			Description: "Create game table",
			SQL: `CREATE TABLE IF NOT EXISTS game (
    id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
    game_code VARCHAR(64) NOT NULL,
    group_key VARCHAR(64) NOT NULL,
    is_parent TINYINT(1) NOT NULL DEFAULT 0,
    parent_game_code VARCHAR(64) NULL,
    CONSTRAINT uk_game_code UNIQUE (game_code)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		},
		{
			ID:          "002",
			Description: "Index game group",
			SQL:         `CREATE INDEX idx_game_group_key ON game (group_key)`,
		},
	}
}
