package gamekit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Migration is one schema change. ID orders nothing: migrations run in
// slice order, and ID only identifies what has been applied.
type Migration struct {
	ID          string // e.g. "001"
	Description string
	SQL         string
}

// MigrationResult is the outcome of one Migrate call.
type MigrationResult struct {
	Applied   []AppliedMigration
	Skipped   []string // IDs already applied
	TotalTime time.Duration
}

// AppliedMigration is a row of the tracking table.
type AppliedMigration struct {
	ID          string
	Description string
	AppliedAt   time.Time
	Duration    time.Duration
	Checksum    string
}

// MigrationStatusEntry reports one known migration against the database.
type MigrationStatusEntry struct {
	ID            string
	Description   string
	Checksum      string
	Applied       bool
	ChecksumMatch bool // only meaningful when Applied
}

// MigrationsTable tracks applied migrations. Its name also keys the
// migration lock.
const MigrationsTable = "_gamekit_migrations"

const (
	migrationLockTimeout = 60 // seconds, MySQL GET_LOCK
	migrationLockKey     = int64(0x67616d656b6974)
)

func migrationsTableDDL(name dialect.Name) string {
	appliedAt := "TIMESTAMPTZ NOT NULL DEFAULT NOW()"
	if name == dialect.MySQL {
		appliedAt = "TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)"
	}
	return `CREATE TABLE IF NOT EXISTS ` + MigrationsTable + ` (
    id VARCHAR(255) PRIMARY KEY,
    description TEXT,
    checksum VARCHAR(64) NOT NULL,
    applied_at ` + appliedAt + `,
    duration_ms BIGINT NOT NULL
)`
}

// Migrate applies the migrations not yet recorded, each in its own
// transaction, and stops at the first failure. An applied migration whose
// SQL has since changed is an error.
//
// The run holds a database lock on one pinned connection, so several
// processes migrating at once apply each migration exactly once.
func (db *DB) Migrate(ctx context.Context, migrations []Migration) (*MigrationResult, error) {
	start := time.Now()

	conn, err := db.DB.Conn(ctx)
	if err != nil {
		return nil, wrapError(err, "Migrate")
	}
	defer conn.Close()

	if err := lockMigrations(ctx, conn); err != nil {
		return nil, err
	}
	defer func() {
		if err := unlockMigrations(context.WithoutCancel(ctx), conn); err != nil {
			db.logger.WarnContext(ctx, "gamekit: migration lock not released", slog.String("error", err.Error()))
		}
	}()

	if err := ensureMigrationsTable(ctx, conn, "Migrate"); err != nil {
		return nil, err
	}
	applied, err := appliedChecksums(ctx, conn)
	if err != nil {
		return nil, err
	}

	result := &MigrationResult{Applied: []AppliedMigration{}, Skipped: []string{}}
	for _, m := range migrations {
		checksum := checksumSQL(m.SQL)

		if existing, ok := applied[m.ID]; ok {
			if existing != checksum {
				return nil, &Error{
					Code:    CodeUnknown,
					Message: fmt.Sprintf("migration %s has changed (checksum mismatch: expected %s, got %s)", m.ID, existing, checksum),
					Op:      "Migrate",
				}
			}
			result.Skipped = append(result.Skipped, m.ID)
			continue
		}

		am, err := applyMigration(ctx, conn, m, checksum)
		if err != nil {
			return nil, err
		}
		db.logger.InfoContext(ctx, "gamekit: migration applied",
			slog.String("id", m.ID),
			slog.String("description", m.Description),
			slog.Duration("duration", am.Duration),
		)
		result.Applied = append(result.Applied, am)
	}

	result.TotalTime = time.Since(start)
	return result, nil
}

func lockMigrations(ctx context.Context, conn bun.Conn) error {
	if conn.Dialect().Name() == dialect.MySQL {
		var got sql.NullInt64
		err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", MigrationsTable, migrationLockTimeout).Scan(&got)
		if err != nil {
			return wrapError(err, "Migrate.Lock")
		}
		if !got.Valid || got.Int64 != 1 {
			return &Error{Code: CodeTimeout, Message: "migration lock held by another process", Op: "Migrate.Lock"}
		}
		return nil
	}
	_, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock(?)", migrationLockKey)
	return wrapError(err, "Migrate.Lock")
}

func unlockMigrations(ctx context.Context, conn bun.Conn) error {
	var err error
	if conn.Dialect().Name() == dialect.MySQL {
		_, err = conn.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", MigrationsTable)
	} else {
		_, err = conn.ExecContext(ctx, "SELECT pg_advisory_unlock(?)", migrationLockKey)
	}
	return wrapError(err, "Migrate.Unlock")
}

func ensureMigrationsTable(ctx context.Context, idb bun.IDB, op string) error {
	if _, err := idb.ExecContext(ctx, migrationsTableDDL(idb.Dialect().Name())); err != nil {
		return &Error{
			Code:    CodeUnknown,
			Message: "failed to create migrations table",
			Op:      op,
			Cause:   err,
		}
	}
	return nil
}

// appliedChecksums maps applied migration IDs to their checksums.
func appliedChecksums(ctx context.Context, idb bun.IDB) (map[string]string, error) {
	var rows []struct {
		ID       string `bun:"id"`
		Checksum string `bun:"checksum"`
	}
	err := idb.NewSelect().TableExpr(MigrationsTable).Column("id", "checksum").Scan(ctx, &rows)
	if err != nil {
		return nil, wrapError(err, "Migrate.GetApplied")
	}

	checksums := make(map[string]string, len(rows))
	for _, row := range rows {
		checksums[row.ID] = row.Checksum
	}
	return checksums, nil
}

// applyMigration runs m and records it in one transaction. MySQL commits
// DDL implicitly, so there a failed migration can leave partial schema.
func applyMigration(ctx context.Context, conn bun.Conn, m Migration, checksum string) (AppliedMigration, error) {
	start := time.Now()
	err := conn.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			return &Error{
				Code:    CodeUnknown,
				Message: fmt.Sprintf("migration %s failed: %v", m.ID, err),
				Op:      "Migrate.Apply",
				Query:   truncateSQL(m.SQL, 200),
				Cause:   err,
			}
		}
		_, err := tx.NewRaw(
			"INSERT INTO "+MigrationsTable+" (id, description, checksum, duration_ms) VALUES (?, ?, ?, ?)",
			m.ID, m.Description, checksum, time.Since(start).Milliseconds(),
		).Exec(ctx)
		return wrapError(err, "Migrate.Record")
	})
	if err != nil {
		return AppliedMigration{}, err
	}
	return AppliedMigration{
		ID:          m.ID,
		Description: m.Description,
		AppliedAt:   time.Now(),
		Duration:    time.Since(start),
		Checksum:    checksum,
	}, nil
}

// MigrationStatus compares migrations with the tracking table without
// applying anything.
func (db *DB) MigrationStatus(ctx context.Context, migrations []Migration) ([]MigrationStatusEntry, error) {
	if err := ensureMigrationsTable(ctx, db, "MigrationStatus"); err != nil {
		return nil, err
	}
	applied, err := appliedChecksums(ctx, db)
	if err != nil {
		return nil, err
	}

	entries := make([]MigrationStatusEntry, 0, len(migrations))
	for _, m := range migrations {
		entry := MigrationStatusEntry{ID: m.ID, Description: m.Description, Checksum: checksumSQL(m.SQL)}
		if existing, ok := applied[m.ID]; ok {
			entry.Applied = true
			entry.ChecksumMatch = existing == entry.Checksum
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetAppliedMigrations lists the tracking table in application order.
func (db *DB) GetAppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	if err := ensureMigrationsTable(ctx, db, "GetAppliedMigrations"); err != nil {
		return nil, err
	}

	var rows []struct {
		ID          string    `bun:"id"`
		Description string    `bun:"description"`
		Checksum    string    `bun:"checksum"`
		AppliedAt   time.Time `bun:"applied_at"`
		DurationMs  int64     `bun:"duration_ms"`
	}
	err := db.NewSelect().
		TableExpr(MigrationsTable).
		Column("id", "description", "checksum", "applied_at", "duration_ms").
		OrderExpr("applied_at ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, wrapError(err, "GetAppliedMigrations")
	}

	applied := make([]AppliedMigration, len(rows))
	for i, row := range rows {
		applied[i] = AppliedMigration{
			ID:          row.ID,
			Description: row.Description,
			AppliedAt:   row.AppliedAt,
			Duration:    time.Duration(row.DurationMs) * time.Millisecond,
			Checksum:    row.Checksum,
		}
	}
	return applied, nil
}

func checksumSQL(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}

func truncateSQL(query string, maxLen int) string {
	if len(query) <= maxLen {
		return query
	}
	return query[:maxLen] + "..."
}
