package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

// --- Fixture schema ---

// The analytics schema the tools operate on: two base tables plus the
// customer_summary view. list_tables must see exactly the base tables;
// the view is reachable only through get_customer_summary and
// query_database.

var dropStatements = []string{
	`DROP VIEW IF EXISTS customer_summary`,
	`DROP TABLE IF EXISTS revenue`,
	`DROP TABLE IF EXISTS customers`,
}

var schemaStatements = []string{
	`CREATE TABLE customers (
		customer_id   SERIAL PRIMARY KEY,
		customer_name VARCHAR(100) NOT NULL,
		email         VARCHAR(255),
		account_type  VARCHAR(20) NOT NULL,
		monthly_fee   NUMERIC(8,2) NOT NULL
	)`,
	`CREATE TABLE revenue (
		revenue_id       SERIAL PRIMARY KEY,
		customer_id      INTEGER NOT NULL REFERENCES customers(customer_id),
		transaction_date DATE NOT NULL,
		amount           NUMERIC(10,2) NOT NULL,
		transaction_type VARCHAR(20) NOT NULL,
		payment_method   VARCHAR(20) NOT NULL
	)`,
	`CREATE VIEW customer_summary AS
	SELECT c.customer_id,
	       c.customer_name,
	       c.account_type,
	       COUNT(r.revenue_id) AS transaction_count,
	       COALESCE(SUM(r.amount), 0) AS total_revenue
	  FROM customers c
	  LEFT JOIN revenue r ON r.customer_id = c.customer_id
	 GROUP BY c.customer_id, c.customer_name, c.account_type`,
}

// --- Fixture rows ---

// Three customers and five revenue transactions. Alice totals 105.49,
// Bob 99.98, Carol 29.99.

var dataStatements = []string{
	`INSERT INTO customers (customer_name, email, account_type, monthly_fee) VALUES
		('Alice Johnson', 'alice.johnson@example.com', 'premium',  79.99),
		('Bob Smith',     'bob.smith@example.com',     'standard', 49.99),
		('Carol Davis',   'carol.davis@example.com',   'basic',    29.99)`,
	`INSERT INTO revenue (customer_id, transaction_date, amount, transaction_type, payment_method) VALUES
		(1, '2026-07-01',  79.99, 'subscription', 'credit_card'),
		(1, '2026-07-15',  25.50, 'overage',      'credit_card'),
		(2, '2026-07-01',  49.99, 'subscription', 'bank_transfer'),
		(2, '2026-08-01',  49.99, 'subscription', 'bank_transfer'),
		(3, '2026-08-01',  29.99, 'subscription', 'paypal')`,
}

// SeedDatabase drops and recreates the fixture schema in the target
// database.
func SeedDatabase(t *testing.T, dsn string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to fixture database: %v", err)
	}
	defer conn.Close(ctx)

	for _, group := range [][]string{dropStatements, schemaStatements, dataStatements} {
		for _, stmt := range group {
			if _, err := conn.Exec(ctx, stmt); err != nil {
				t.Fatalf("seeding fixture: %v\nstatement: %s", err, stmt)
			}
		}
	}
}

// TableRowCount reads a COUNT(*) directly, bypassing the server, for
// verifying that rejected mutations never reached the database.
func TableRowCount(t *testing.T, dsn, table string) int {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting for row count: %v", err)
	}
	defer conn.Close(ctx)

	var n int
	if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM "+pgx.Identifier{table}.Sanitize()).Scan(&n); err != nil {
		t.Fatalf("counting %s rows: %v", table, err)
	}
	return n
}
