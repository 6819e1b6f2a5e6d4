/*
Package gamekit provides the database layer of the game service.

Every connection bun uses is leased from a validated pool (package pool) and
wrapped by an intercepting proxy (package proxy). The proxy times each
statement, captures its result set, and hands a QueryEvent to the installed
hooks (package hooks), which log the formatted SQL and result table
(package sqlfmt), record Prometheus metrics, and emit OpenTelemetry spans.

On top of that gamekit offers:
  - Migration execution with checksum verification
  - Transaction support with auto commit/rollback and savepoints
  - Generic CRUD helpers using Go generics
  - Rich error handling for MySQL and PostgreSQL errors
  - Health check utilities with pool statistics

# Basic Usage

	cfg := gamekit.DefaultConfig(endpoint.Default())
	cfg = cfg.WithLogger(slog.Default()).WithSlowQueryLog(100 * time.Millisecond)

	db, err := gamekit.New(ctx, cfg)
	if err != nil {
	    log.Fatal(err)
	}
	defer db.Close()

# Pool

The pool keeps between Policy.InitialSize and Policy.MaxSize connections.
Idle connections are closed after MaxIdleTime, every connection after
MaxLifeTime, and leases are validated to the configured depth:

	cfg = cfg.WithPool(pool.Policy{
	    Name:            "games",
	    InitialSize:     2,
	    MaxSize:         10,
	    MaxIdleTime:     5 * time.Minute,
	    ValidationDepth: pool.ValidateRemote,
	})

	stats := db.Stats()

# Query Logging

With LogQueries set each statement is logged as a block:

	---- Executed SQL ----
	SELECT * FROM game WHERE game_code = 'G1'
	Execution time: 2 ms
	Connection: 4 | Caller: 3f1c... | Kind: query
	|id         |game_code  |
	...

Tag a request so its statements carry the caller:

	ctx = proxy.WithCaller(ctx, requestID)

# Migrations

	migrations := []gamekit.Migration{
	    {ID: "001", Description: "Create game", SQL: "CREATE TABLE game (...)"},
	    {ID: "002", Description: "Add index", SQL: "CREATE INDEX ..."},
	}

	result, err := db.Migrate(ctx, migrations)

Migrate holds a database lock for the whole run (GET_LOCK on MySQL,
pg_advisory_lock on PostgreSQL), so replicas can migrate on startup.

# Generic CRUD

	g, err := gamekit.FindByID[game.Game](ctx, db, 42)

	games, err := gamekit.FindAll[game.Game](ctx, db, func(q *bun.SelectQuery) *bun.SelectQuery {
	    return q.Where("group_key = ?", "slots").Order("id ASC")
	})

	err := gamekit.Create(ctx, db, &g)
	err := gamekit.Update(ctx, db, &g)
	err := gamekit.Delete(ctx, db, &g)

# Transactions

Callback-based (auto commit/rollback):

	err := db.Transaction(ctx, func(tx *gamekit.Tx) error {
	    if err := gamekit.Create(ctx, tx, &g); err != nil {
	        return err // rollback
	    }
	    return nil // commit
	})

Nested transactions use savepoints:

	err := db.Transaction(ctx, func(tx *gamekit.Tx) error {
	    gamekit.Create(ctx, tx, &parent)

	    err := tx.Transaction(ctx, func(tx2 *gamekit.Tx) error {
	        return errors.New("fail") // only rolls back inner
	    })

	    return nil // outer commits
	})

# Error Handling

	if err := gamekit.Create(ctx, db, &g); err != nil {
	    if gamekit.IsDuplicate(err) {
	        // game code taken
	    }

	    var dbErr *gamekit.Error
	    if errors.As(err, &dbErr) {
	        fmt.Println(dbErr.Code)       // DUPLICATE
	        fmt.Println(dbErr.Constraint) // uk_game_code
	        fmt.Println(dbErr.DBCode)     // 1062
	    }
	}
*/
package gamekit
