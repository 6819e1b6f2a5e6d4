// Package hooks provides observability hooks for the query proxy
package hooks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fernandezvara/gamekit/proxy"
	"github.com/fernandezvara/gamekit/sqlfmt"
)

// Banner opens every rendered statement.
const Banner = "---- Executed SQL ----"

// LoggerHook logs statements as structured records and, when a console is
// set, renders them with their results as a colored block.
type LoggerHook struct {
	logger        *slog.Logger
	logAll        bool
	slowThreshold time.Duration
	maxRows       int

	mu      sync.Mutex
	console io.Writer
}

// NewLoggerHook creates a new logger hook. With logAll false only statements
// at or above slowThreshold, and failures, are logged.
func NewLoggerHook(logger *slog.Logger, logAll bool, slowThreshold time.Duration) *LoggerHook {
	return &LoggerHook{
		logger:        logger,
		logAll:        logAll,
		slowThreshold: slowThreshold,
	}
}

// WithMaxRows limits how many captured rows are rendered (0 = all captured)
func (h *LoggerHook) WithMaxRows(n int) *LoggerHook {
	h.maxRows = n
	return h
}

// WithConsole writes the rendered block for every logged statement to w.
// The block keeps its line breaks and colors; it is not a log record.
func (h *LoggerHook) WithConsole(w io.Writer) *LoggerHook {
	h.console = w
	return h
}

// BeforeQuery is called before a query is executed
func (h *LoggerHook) BeforeQuery(ctx context.Context, event *proxy.QueryEvent) context.Context {
	return ctx
}

// AfterQuery is called after a query is executed
func (h *LoggerHook) AfterQuery(ctx context.Context, event *proxy.QueryEvent) {
	if event.Skipped() {
		return
	}

	failed := event.Err != nil
	slow := h.slowThreshold > 0 && event.Duration >= h.slowThreshold
	if !h.logAll && !slow && !failed {
		return
	}

	values := event.BoundValues()
	formatted := sqlfmt.FormatQuery(event.Query, values)

	level, msg := slog.LevelInfo, "database query"
	if slow {
		level, msg = slog.LevelWarn, "slow database query"
	}
	h.logger.LogAttrs(ctx, level, msg,
		slog.String("query", event.Query),
		slog.Any("args", values),
		slog.String("operation", OperationType(event.Query)),
		slog.Duration("duration", event.Duration),
		slog.Int64("rows", event.RowsAffected),
	)
	h.logger.LogAttrs(ctx, level, "database query origin",
		slog.Uint64("conn_id", event.ConnID),
		slog.String("caller", event.Caller),
		slog.String("kind", string(event.Kind)),
	)
	if failed {
		h.logger.LogAttrs(ctx, slog.LevelError, "database query failed",
			slog.String("query", event.Query),
			slog.Uint64("conn_id", event.ConnID),
			slog.String("error", event.Err.Error()),
		)
	}
	if formatted.Mismatch() {
		h.logger.LogAttrs(ctx, slog.LevelWarn, "bound values do not match placeholders",
			slog.Int("placeholders", formatted.Placeholders),
			slog.Int("values", formatted.Values),
			slog.Uint64("conn_id", event.ConnID),
		)
	}

	if h.console != nil {
		block := h.render(event, formatted)
		h.mu.Lock()
		_, _ = io.WriteString(h.console, block+"\n")
		h.mu.Unlock()
	}
}

// render builds the console block: banner, statement, timing, origin, then
// the result table or the failure.
func (h *LoggerHook) render(event *proxy.QueryEvent, formatted sqlfmt.Query) string {
	var b strings.Builder
	b.WriteString(Banner)
	if !strings.HasPrefix(formatted.Text, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(formatted.Text)
	fmt.Fprintf(&b, "\nExecution time: %d ms", event.Duration.Milliseconds())
	fmt.Fprintf(&b, "\nConnection: %d | Caller: %s | Kind: %s", event.ConnID, callerOrDash(event.Caller), event.Kind)

	if event.Err != nil {
		b.WriteString("\n")
		b.WriteString(sqlfmt.ErrorPrefix("Error executing SQL: "))
		b.WriteString(event.Err.Error())
		return b.String()
	}

	if event.Kind.ReturnsRows() {
		rows := event.Rows
		if h.maxRows > 0 && len(rows) > h.maxRows {
			rows = rows[:h.maxRows]
		}
		table := sqlfmt.FormatTable(event.Columns, rows)
		if !strings.HasPrefix(table, "\n") {
			b.WriteString("\n")
		}
		b.WriteString(table)
		if shown := int64(len(rows)); shown < event.RowsAffected {
			fmt.Fprintf(&b, "\n(%d of %d rows shown)", shown, event.RowsAffected)
		}
	}
	return b.String()
}

func callerOrDash(caller string) string {
	if caller == "" {
		return "-"
	}
	return caller
}

// OperationType extracts the operation type from a query
func OperationType(query string) string {
	query = strings.TrimSpace(strings.ToUpper(query))
	switch {
	case strings.HasPrefix(query, "SELECT"):
		return "select"
	case strings.HasPrefix(query, "INSERT"):
		return "insert"
	case strings.HasPrefix(query, "UPDATE"):
		return "update"
	case strings.HasPrefix(query, "DELETE"):
		return "delete"
	case strings.HasPrefix(query, "CREATE"):
		return "create"
	case strings.HasPrefix(query, "DROP"):
		return "drop"
	case strings.HasPrefix(query, "ALTER"):
		return "alter"
	case strings.HasPrefix(query, "BEGIN"), strings.HasPrefix(query, "START TRANSACTION"):
		return "begin"
	case strings.HasPrefix(query, "COMMIT"):
		return "commit"
	case strings.HasPrefix(query, "ROLLBACK"):
		return "rollback"
	case strings.HasPrefix(query, "SAVEPOINT"):
		return "savepoint"
	case strings.HasPrefix(query, "RELEASE"):
		return "release"
	default:
		return "other"
	}
}
