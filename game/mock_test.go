package game

import (
	"context"
	"database/sql/driver"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/dialect/mysqldialect"

	"github.com/fernandezvara/gamekit"
	"github.com/fernandezvara/gamekit/endpoint"
	"github.com/fernandezvara/gamekit/pool"
)

var gameColumns = []string{"id", "game_code", "group_key", "is_parent", "parent_game_code"}

type mockConnector struct {
	drv driver.Driver
	dsn string
}

func (m mockConnector) Connect(context.Context) (driver.Conn, error) { return m.drv.Open(m.dsn) }
func (m mockConnector) Driver() driver.Driver                        { return m.drv }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestDB builds a gamekit DB over sqlmock with the MySQL dialect.
func newTestDB(t *testing.T) (*gamekit.DB, sqlmock.Sqlmock) {
	t.Helper()

	dsn := "game_" + strings.ReplaceAll(t.Name(), "/", "_")
	sqlDB, mock, err := sqlmock.NewWithDSN(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	mock.ExpectQuery(regexp.QuoteMeta("SELECT version()")).
		WillReturnRows(sqlmock.NewRows([]string{"version()"}).AddRow("8.0.36"))

	cfg := gamekit.DefaultConfig(endpoint.Default())
	cfg.Pool = pool.Policy{
		Name:            "game-test",
		InitialSize:     1,
		MaxSize:         1,
		ValidationDepth: pool.ValidateLocal,
		AcquireTimeout:  time.Second,
		ReapInterval:    time.Hour,
	}
	cfg.Logger = discardLogger()

	db, err := gamekit.NewWithConnector(context.Background(), cfg, mockConnector{drv: sqlDB.Driver(), dsn: dsn}, mysqldialect.New())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db, mock
}

func strPtr(s string) *string { return &s }
