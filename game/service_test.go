package game

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernandezvara/gamekit"
)

const (
	insertGame = "INSERT INTO `game` .*"
	updateGame = "UPDATE `game` .*`id` = "
	deleteGame = "DELETE FROM `game` .*id = "
	findGame   = "SELECT .* FROM `game` AS `g` WHERE \\(id = %d\\)"
)

func expectByCode(mock sqlmock.Sqlmock, code string) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(regexp.QuoteMeta(selectGames + " WHERE game_code = ? LIMIT 1")).WithArgs(code)
}

func expectFind(mock sqlmock.Sqlmock, id int64, rows *sqlmock.Rows) {
	mock.ExpectQuery(fmt.Sprintf(findGame, id)).WillReturnRows(rows)
}

func TestService_GetGameByCode(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewService(db, discardLogger())

	expectByCode(mock, "G1").
		WillReturnRows(sqlmock.NewRows(gameColumns).AddRow(int64(1), "G1", "slots", false, nil))

	g, err := svc.GetGameByCode(context.Background(), "G1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), g.ID)
	assert.Equal(t, "slots", g.GroupKey)
	assert.Nil(t, g.ParentGameCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_GetGameByCode_NotFound(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewService(db, discardLogger())

	expectByCode(mock, "nope").WillReturnRows(sqlmock.NewRows(gameColumns))

	_, err := svc.GetGameByCode(context.Background(), "nope")
	assert.True(t, gamekit.IsNotFound(err), "got %v", err)
}

func TestService_GetGamesByGroup(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewService(db, discardLogger())

	listQuery := selectGames + " WHERE group_key = ? ORDER BY id ASC"
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM (" + listQuery + ") AS counted")).
		WithArgs("slots").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta(listQuery + " LIMIT ? OFFSET ?")).
		WithArgs("slots", 2, 2).
		WillReturnRows(sqlmock.NewRows(gameColumns).AddRow(int64(3), "C1", "slots", false, "P1"))

	page, err := svc.GetGamesByGroup(context.Background(), "slots", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)
	assert.False(t, page.PageInfo.HasNextPage)
	require.Len(t, page.Items, 1)
	require.NotNil(t, page.Items[0].ParentGameCode)
	assert.Equal(t, "P1", *page.Items[0].ParentGameCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_GetGamesByGroup_Empty(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewService(db, discardLogger())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM (")).
		WithArgs("none").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	page, err := svc.GetGamesByGroup(context.Background(), "none", 1, 20)
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Equal(t, 1, page.TotalPages)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_CreateGame(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewService(db, discardLogger())

	mock.ExpectBegin()
	mock.ExpectExec(insertGame + "'G1', 'slots'").WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	g, err := svc.CreateGame(context.Background(), &Game{ID: 7, GameCode: "G1", GroupKey: "slots"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), g.ID, "id should come from the insert, not the request")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_CreateGame_WithParent(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewService(db, discardLogger())

	mock.ExpectBegin()
	expectByCode(mock, "P1").
		WillReturnRows(sqlmock.NewRows(gameColumns).AddRow(int64(1), "P1", "slots", true, nil))
	mock.ExpectExec(insertGame + "'C1', 'slots'.*'P1'").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	g, err := svc.CreateGame(context.Background(), &Game{GameCode: "C1", GroupKey: "slots", ParentGameCode: strPtr("P1")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), g.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_CreateGame_ParentChecks(t *testing.T) {
	tests := []struct {
		name string
		rows *sqlmock.Rows
	}{
		{"missing parent", sqlmock.NewRows(gameColumns)},
		{"parent is not a parent", sqlmock.NewRows(gameColumns).AddRow(int64(1), "P1", "slots", false, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newTestDB(t)
			svc := NewService(db, discardLogger())

			mock.ExpectBegin()
			expectByCode(mock, "P1").WillReturnRows(tt.rows)
			mock.ExpectRollback()

			_, err := svc.CreateGame(context.Background(), &Game{GameCode: "C1", GroupKey: "slots", ParentGameCode: strPtr("P1")})
			assert.True(t, errors.Is(err, ErrInvalidGame), "got %v", err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestService_CreateGame_Invalid(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewService(db, discardLogger())

	_, err := svc.CreateGame(context.Background(), &Game{GroupKey: "slots"})
	assert.True(t, errors.Is(err, ErrInvalidGame))
	require.NoError(t, mock.ExpectationsWereMet(), "invalid games never reach the database")
}

func TestService_CreateGame_Duplicate(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewService(db, discardLogger())

	mock.ExpectBegin()
	mock.ExpectExec(insertGame).WillReturnError(&mysql.MySQLError{
		Number:  1062,
		Message: "Duplicate entry 'G1' for key 'game.uk_game_code'",
	})
	mock.ExpectRollback()

	_, err := svc.CreateGame(context.Background(), &Game{GameCode: "G1", GroupKey: "slots"})
	require.True(t, gamekit.IsDuplicate(err), "got %v", err)
	constraint, _ := gamekit.GetConstraint(err)
	assert.Equal(t, "uk_game_code", constraint)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_UpdateGame(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewService(db, discardLogger())

	mock.ExpectBegin()
	expectFind(mock, 5, sqlmock.NewRows(gameColumns).AddRow(int64(5), "OLD_CODE", "slots", false, nil))
	mock.ExpectExec(updateGame + "5").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	g, err := svc.UpdateGame(context.Background(), 5, &Game{GameCode: "NEW_CODE", GroupKey: "slots"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), g.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_UpdateGame_NotFound(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewService(db, discardLogger())

	mock.ExpectBegin()
	expectFind(mock, 9, sqlmock.NewRows(gameColumns))
	mock.ExpectRollback()

	_, err := svc.UpdateGame(context.Background(), 9, &Game{GameCode: "G9", GroupKey: "slots"})
	assert.True(t, gamekit.IsNotFound(err), "got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_UpdateGame_ParentWithChildren(t *testing.T) {
	tests := []struct {
		name string
		next *Game
	}{
		{"demoted", &Game{GameCode: "P1", GroupKey: "slots", IsParent: false}},
		{"renamed", &Game{GameCode: "P2", GroupKey: "slots", IsParent: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newTestDB(t)
			svc := NewService(db, discardLogger())

			mock.ExpectBegin()
			expectFind(mock, 1, sqlmock.NewRows(gameColumns).AddRow(int64(1), "P1", "slots", true, nil))
			mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM game WHERE parent_game_code = ?")).
				WithArgs("P1").
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
			mock.ExpectRollback()

			_, err := svc.UpdateGame(context.Background(), 1, tt.next)
			assert.True(t, errors.Is(err, ErrInvalidGame), "got %v", err)
			assert.Contains(t, err.Error(), `"P1" still has 2 child games`)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestService_UpdateGame_ChildlessParentRenamed(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewService(db, discardLogger())

	mock.ExpectBegin()
	expectFind(mock, 1, sqlmock.NewRows(gameColumns).AddRow(int64(1), "P1", "slots", true, nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM game WHERE parent_game_code = ?")).
		WithArgs("P1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(updateGame + "1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := svc.UpdateGame(context.Background(), 1, &Game{GameCode: "P2", GroupKey: "slots", IsParent: true})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_UpdateGame_BadID(t *testing.T) {
	db, _ := newTestDB(t)
	svc := NewService(db, discardLogger())

	_, err := svc.UpdateGame(context.Background(), 0, &Game{GameCode: "G1", GroupKey: "slots"})
	assert.True(t, errors.Is(err, ErrInvalidGame))
}

func TestService_DeleteGame(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewService(db, discardLogger())

	mock.ExpectExec(deleteGame + "5").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteGame + "6").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, svc.DeleteGame(context.Background(), 5))
	assert.True(t, gamekit.IsNotFound(svc.DeleteGame(context.Background(), 6)))
	require.NoError(t, mock.ExpectationsWereMet())
}
