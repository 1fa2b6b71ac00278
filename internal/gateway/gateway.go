// Package gateway owns direct database connectivity. Every Execute call
// opens its own connection and releases it before returning; nothing is
// pooled or reused across calls.
package gateway

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hazyhaar/datagate/internal/config"
	"github.com/hazyhaar/datagate/internal/errors"
	"github.com/hazyhaar/datagate/internal/logging"
)

// Gateway executes single SQL statements against the configured database.
type Gateway struct {
	driver       string
	dsn          string
	queryTimeout time.Duration
}

// New builds a Gateway for the PostgreSQL database described by cfg. No
// connection is made until the first call.
func New(cfg *config.Config) *Gateway {
	return &Gateway{
		driver:       "pgx",
		dsn:          cfg.DSN(),
		queryTimeout: cfg.QueryTimeout(),
	}
}

// Execute runs one statement with positional parameters. Row-returning
// statements come back as an ordered record set; everything else commits
// and reports the affected-row count. The connection is released on every
// exit path.
func (g *Gateway) Execute(ctx context.Context, statement string, params ...any) (*Result, error) {
	if strings.TrimSpace(statement) == "" {
		return nil, errors.New(errors.Validation, "empty statement")
	}
	ctx, cancel := context.WithTimeout(ctx, g.queryTimeout)
	defer cancel()

	start := time.Now()
	res, err := g.run(ctx, statement, params)
	logStatement(ctx, statement, time.Since(start), err)
	return res, err
}

// TestConnection opens a connection and runs a trivial statement. It never
// returns an error: any failure collapses to false with the detail logged.
func (g *Gateway) TestConnection(ctx context.Context) bool {
	if _, err := g.Execute(ctx, "SELECT 1"); err != nil {
		slog.Error("database connection test failed", "error", logging.Mask(err.Error()))
		return false
	}
	return true
}

func (g *Gateway) run(ctx context.Context, statement string, params []any) (*Result, error) {
	db, err := sql.Open(g.driver, g.dsn)
	if err != nil {
		return nil, errors.Wrap(errors.Connection, "opening connection", err)
	}
	defer db.Close()

	if rowReturning(statement) {
		return queryRows(ctx, db, statement, params)
	}

	res, err := db.ExecContext(ctx, statement, params...)
	if err != nil {
		return nil, errors.Wrap(classify(err), "statement failed", err)
	}
	result := &Result{}
	if n, err := res.RowsAffected(); err == nil {
		result.Affected = n
	}
	return result, nil
}

func queryRows(ctx context.Context, db *sql.DB, statement string, params []any) (*Result, error) {
	rows, err := db.QueryContext(ctx, statement, params...)
	if err != nil {
		return nil, errors.Wrap(classify(err), "query failed", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(errors.Statement, "reading result metadata", err)
	}

	records := []Record{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(errors.Serialization, "materializing row", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		records = append(records, Record{Columns: columns, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(classify(err), "reading rows", err)
	}

	return &Result{Columns: columns, Records: records, RowCount: len(records), IsRows: true}, nil
}

// rowReturning reports whether the statement's leading keyword produces a
// row set. database/sql splits Query and Exec, so the verb picks the path.
func rowReturning(statement string) bool {
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(strings.TrimLeft(fields[0], "(")) {
	case "SELECT", "WITH", "SHOW", "VALUES", "EXPLAIN", "TABLE":
		return true
	}
	return false
}

func classify(err error) errors.Kind {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		if len(pgErr.Code) >= 2 {
			switch pgErr.Code[:2] {
			case "28", "3D": // invalid_authorization_specification, invalid_catalog_name
				return errors.Connection
			}
		}
		return errors.Statement
	}
	// Query timeout or caller cancellation is a statement failure. The
	// check must come first: context.DeadlineExceeded satisfies net.Error.
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return errors.Statement
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return errors.Connection
	}
	if stderrors.Is(err, driver.ErrBadConn) || stderrors.Is(err, sql.ErrConnDone) {
		return errors.Connection
	}
	return errors.Statement
}

// logStatement mirrors each execution into the log: Debug normally, Warn
// past 100ms, Error on failure.
func logStatement(ctx context.Context, statement string, d time.Duration, err error) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	} else if d > 100*time.Millisecond {
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("component", "sql"),
		slog.String("statement", logging.Mask(truncate(statement, 500))),
		slog.Duration("duration", d),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", logging.Mask(err.Error())))
	}
	slog.LogAttrs(ctx, level, "SQL", attrs...)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
