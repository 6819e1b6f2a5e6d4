package gamekit

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/uptrace/bun/dialect"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name  string
		dia   dialect.Name
		query string
		want  string
	}{
		{"mysql untouched", dialect.MySQL, "SELECT * FROM game WHERE id = ?", "SELECT * FROM game WHERE id = ?"},
		{"pg numbered", dialect.PG, "UPDATE game SET game_code = ? WHERE id = ?", "UPDATE game SET game_code = $1 WHERE id = $2"},
		{"pg skips literals", dialect.PG, "SELECT '?' AS q, \"a?\" FROM game WHERE id = ?", "SELECT '?' AS q, \"a?\" FROM game WHERE id = $1"},
		{"pg no placeholders", dialect.PG, "SELECT 1", "SELECT 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rebind(tt.dia, tt.query); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSelect_BindsArguments(t *testing.T) {
	db, mock := newMockDB(t, testConfig())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, game_code FROM game WHERE group_key = ?")).
		WithArgs("slots").
		WillReturnRows(sqlmock.NewRows([]string{"id", "game_code"}).AddRow(int64(1), "A1").AddRow(int64(2), "A2"))

	games, err := Select[pagedGame](context.Background(), db, "SELECT id, game_code FROM game WHERE group_key = ?", "slots")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(games) != 2 || games[1].GameCode != "A2" {
		t.Errorf("unexpected rows %+v", games)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSelectOne_NotFound(t *testing.T) {
	db, mock := newMockDB(t, testConfig())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, game_code FROM game WHERE game_code = ?")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "game_code"}))

	_, err := SelectOne[pagedGame](context.Background(), db, "SELECT id, game_code FROM game WHERE game_code = ?", "nope")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if table, _ := GetTable(err); table != "game" {
		t.Errorf("expected table game, got %q", table)
	}
}

func TestPaginateSQL(t *testing.T) {
	db, mock := newMockDB(t, testConfig())
	query := "SELECT id, game_code FROM game WHERE group_key = ? ORDER BY id"

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM (" + query + ") AS counted")).
		WithArgs("slots").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(5))
	mock.ExpectQuery(regexp.QuoteMeta(query + " LIMIT ? OFFSET ?")).
		WithArgs("slots", 2, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "game_code"}).AddRow(int64(3), "C").AddRow(int64(4), "D"))

	page, err := PaginateSQL[pagedGame](context.Background(), db, 2, 2, query, "slots")
	if err != nil {
		t.Fatalf("PaginateSQL: %v", err)
	}
	if page.TotalItems != 5 || page.TotalPages != 3 || len(page.Items) != 2 {
		t.Errorf("unexpected page %+v", page)
	}
	if !page.PageInfo.HasNextPage || !page.PageInfo.HasPreviousPage {
		t.Errorf("page 2 of 3 should have neighbours, got %+v", page.PageInfo)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSelect_InsideTransaction(t *testing.T) {
	db, mock := newMockDB(t, testConfig())
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM game WHERE parent_game_code = ?")).
		WithArgs("P1").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(2))
	mock.ExpectCommit()

	var n int
	err := db.Transaction(ctx, func(tx *Tx) error {
		var err error
		n, err = SelectInt(ctx, tx, "SELECT count(*) FROM game WHERE parent_game_code = ?", "P1")
		return err
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
