package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReturnsRows(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"SELECT * FROM game", true},
		{"SHOW TABLES", true},
		{"UPDATE game SET game_code = ? WHERE id = ?", false},
		{"insert into game (game_code) values (?)", false},
		{"INSERT INTO game (game_code) VALUES ($1) RETURNING id", true},
		{"DELETE FROM game WHERE id = 4", false},
		{"CREATE TABLE t (id INT)", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, returnsRows(tt.query))
		})
	}
}
