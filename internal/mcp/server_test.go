package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hazyhaar/datagate/internal/errors"
	"github.com/hazyhaar/datagate/internal/gateway"
)

type call struct {
	statement string
	params    []any
}

// fakeExecutor records every statement and answers from a scripted function.
type fakeExecutor struct {
	calls []call
	fn    func(statement string, params []any) (*gateway.Result, error)
}

func (f *fakeExecutor) Execute(ctx context.Context, statement string, params ...any) (*gateway.Result, error) {
	f.calls = append(f.calls, call{statement: statement, params: params})
	if f.fn != nil {
		return f.fn(statement, params)
	}
	return &gateway.Result{IsRows: true, Records: []gateway.Record{}}, nil
}

func rowsResult(columns []string, rows ...[]any) *gateway.Result {
	records := make([]gateway.Record, 0, len(rows))
	for _, values := range rows {
		records = append(records, gateway.Record{Columns: columns, Values: values})
	}
	return &gateway.Result{Columns: columns, Records: records, RowCount: len(records), IsRows: true}
}

func callReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func contentText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("result has no text content")
	return ""
}

func decodePayload(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	text := contentText(t, res)
	var payload map[string]any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		t.Fatalf("decoding payload %q: %v", text, err)
	}
	return payload
}

func TestQueryDatabaseRejectsNonSelect(t *testing.T) {
	tests := []string{
		"DELETE FROM customers",
		"insert into customers values (1)",
		"UPDATE customers SET customer_name = 'x'",
		"DROP TABLE customers",
		"TRUNCATE customers",
	}
	for _, statement := range tests {
		t.Run(statement, func(t *testing.T) {
			exec := &fakeExecutor{}
			res, err := queryDatabaseHandler(exec)(context.Background(), callReq(map[string]any{"query": statement}))
			if err != nil {
				t.Fatalf("handler: %v", err)
			}
			if !res.IsError {
				t.Fatal("non-SELECT statement should produce an error result")
			}
			payload := decodePayload(t, res)
			if payload["category"] != "validation" {
				t.Errorf("category = %v, want validation", payload["category"])
			}
			if msg, _ := payload["message"].(string); !strings.Contains(msg, "SELECT") {
				t.Errorf("message = %q, should mention SELECT", msg)
			}
			if len(exec.calls) != 0 {
				t.Errorf("gateway was called %d times, want 0", len(exec.calls))
			}
		})
	}
}

func TestQueryDatabaseMissingArgument(t *testing.T) {
	exec := &fakeExecutor{}
	res, err := queryDatabaseHandler(exec)(context.Background(), callReq(nil))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !res.IsError {
		t.Fatal("missing query should produce an error result")
	}
	if payload := decodePayload(t, res); payload["category"] != "validation" {
		t.Errorf("category = %v, want validation", payload["category"])
	}
	if len(exec.calls) != 0 {
		t.Errorf("gateway was called %d times, want 0", len(exec.calls))
	}
}

func TestQueryDatabaseSelect(t *testing.T) {
	exec := &fakeExecutor{fn: func(statement string, params []any) (*gateway.Result, error) {
		return rowsResult(
			[]string{"customer_id", "customer_name"},
			[]any{int64(1), "Acme"},
			[]any{int64(2), "Globex"},
		), nil
	}}

	res, err := queryDatabaseHandler(exec)(context.Background(), callReq(map[string]any{"query": "  select * from customers"}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %s", contentText(t, res))
	}

	payload := decodePayload(t, res)
	if payload["success"] != true {
		t.Error("payload should carry success: true")
	}
	if rows, _ := payload["rows"].(float64); rows != 2 {
		t.Errorf("rows = %v, want 2", payload["rows"])
	}
	data, _ := payload["data"].([]any)
	if len(data) != 2 {
		t.Fatalf("data has %d entries, want 2", len(data))
	}

	// Record keys keep column order in the serialized document.
	text := contentText(t, res)
	if !strings.Contains(text, `"customer_id":1,"customer_name":"Acme"`) {
		t.Errorf("serialized records should preserve column order: %s", text)
	}

	if len(exec.calls) != 1 || exec.calls[0].statement != "  select * from customers" {
		t.Errorf("gateway calls = %+v", exec.calls)
	}
}

func TestListTables(t *testing.T) {
	exec := &fakeExecutor{fn: func(statement string, params []any) (*gateway.Result, error) {
		switch {
		case statement == ListTablesQuery:
			return rowsResult(
				[]string{"table_name", "column_count"},
				[]any{"customers", int64(2)},
				[]any{"revenue", int64(3)},
			), nil
		case strings.Contains(statement, `"customers"`):
			return rowsResult([]string{"count"}, []any{int64(3)}), nil
		case strings.Contains(statement, `"revenue"`):
			return rowsResult([]string{"count"}, []any{int64(5)}), nil
		}
		return nil, errors.Newf(errors.Statement, "unexpected statement: %s", statement)
	}}

	res, err := listTablesHandler(exec)(context.Background(), callReq(nil))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %s", contentText(t, res))
	}

	payload := decodePayload(t, res)
	tables, _ := payload["tables"].([]any)
	if len(tables) != 2 {
		t.Fatalf("tables has %d entries, want 2", len(tables))
	}

	first, _ := tables[0].(map[string]any)
	second, _ := tables[1].(map[string]any)
	if first["table_name"] != "customers" || first["row_count"].(float64) != 3 || first["column_count"].(float64) != 2 {
		t.Errorf("first entry = %v", first)
	}
	if second["table_name"] != "revenue" || second["row_count"].(float64) != 5 {
		t.Errorf("second entry = %v", second)
	}

	// Metadata query first, then one quoted count per table in metadata order.
	if len(exec.calls) != 3 {
		t.Fatalf("gateway calls = %d, want 3", len(exec.calls))
	}
	if !strings.Contains(exec.calls[1].statement, `"customers"`) || !strings.Contains(exec.calls[2].statement, `"revenue"`) {
		t.Errorf("count queries out of order: %+v", exec.calls[1:])
	}
}

func TestListTablesCountFailure(t *testing.T) {
	exec := &fakeExecutor{fn: func(statement string, params []any) (*gateway.Result, error) {
		if statement == ListTablesQuery {
			return rowsResult([]string{"table_name", "column_count"}, []any{"customers", int64(2)}), nil
		}
		return nil, errors.Wrap(errors.Statement, "query failed", context.DeadlineExceeded)
	}}

	res, err := listTablesHandler(exec)(context.Background(), callReq(nil))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !res.IsError {
		t.Fatal("count failure should produce an error result")
	}
	if payload := decodePayload(t, res); payload["category"] != "statement" {
		t.Errorf("category = %v, want statement", payload["category"])
	}
}

func TestDescribeTable(t *testing.T) {
	exec := &fakeExecutor{fn: func(statement string, params []any) (*gateway.Result, error) {
		return rowsResult(
			[]string{"column_name", "data_type", "character_maximum_length", "is_nullable", "column_default"},
			[]any{"customer_id", "integer", nil, "NO", nil},
			[]any{"customer_name", "character varying", int64(100), "YES", nil},
		), nil
	}}

	res, err := describeTableHandler(exec)(context.Background(), callReq(map[string]any{"table_name": "customers"}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %s", contentText(t, res))
	}

	payload := decodePayload(t, res)
	if payload["table_name"] != "customers" {
		t.Errorf("table_name = %v", payload["table_name"])
	}
	columns, _ := payload["columns"].([]any)
	if len(columns) != 2 {
		t.Fatalf("columns has %d entries, want 2", len(columns))
	}
	first, _ := columns[0].(map[string]any)
	if first["column_name"] != "customer_id" || first["data_type"] != "integer" || first["is_nullable"] != "NO" {
		t.Errorf("first column = %v", first)
	}

	if len(exec.calls) != 1 {
		t.Fatalf("gateway calls = %d, want 1", len(exec.calls))
	}
	if exec.calls[0].statement != DescribeTableQuery {
		t.Errorf("statement = %q, want the catalog query", exec.calls[0].statement)
	}
	if len(exec.calls[0].params) != 1 || exec.calls[0].params[0] != "customers" {
		t.Errorf("params = %v, want [customers]", exec.calls[0].params)
	}
}

func TestDescribeTableMissingTable(t *testing.T) {
	exec := &fakeExecutor{} // default: empty row set
	res, err := describeTableHandler(exec)(context.Background(), callReq(map[string]any{"table_name": "no_such_table"}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res.IsError {
		t.Fatalf("missing table should not be an error: %s", contentText(t, res))
	}

	payload := decodePayload(t, res)
	if payload["success"] != true {
		t.Error("payload should carry success: true")
	}
	columns, ok := payload["columns"].([]any)
	if !ok || len(columns) != 0 {
		t.Errorf("columns = %v, want empty list", payload["columns"])
	}
}

func TestDescribeTableMissingArgument(t *testing.T) {
	exec := &fakeExecutor{}
	res, err := describeTableHandler(exec)(context.Background(), callReq(map[string]any{}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !res.IsError {
		t.Fatal("missing table_name should produce an error result")
	}
	if payload := decodePayload(t, res); payload["category"] != "validation" {
		t.Errorf("category = %v, want validation", payload["category"])
	}
	if len(exec.calls) != 0 {
		t.Errorf("gateway was called %d times, want 0", len(exec.calls))
	}
}

func TestDescribeTableBindsHostileName(t *testing.T) {
	const hostile = "x'; DROP TABLE y; --"
	exec := &fakeExecutor{}
	res, err := describeTableHandler(exec)(context.Background(), callReq(map[string]any{"table_name": hostile}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res.IsError {
		t.Fatalf("hostile name should come back as an empty column list: %s", contentText(t, res))
	}

	if len(exec.calls) != 1 {
		t.Fatalf("gateway calls = %d, want 1", len(exec.calls))
	}
	got := exec.calls[0]
	if strings.Contains(got.statement, hostile) {
		t.Errorf("table name was interpolated into the statement: %q", got.statement)
	}
	if !strings.Contains(got.statement, "$1") {
		t.Errorf("statement lost its placeholder: %q", got.statement)
	}
	if len(got.params) != 1 || got.params[0] != hostile {
		t.Errorf("params = %v, want the raw name bound as $1", got.params)
	}
}

func TestGetCustomerSummary(t *testing.T) {
	exec := &fakeExecutor{fn: func(statement string, params []any) (*gateway.Result, error) {
		return rowsResult(
			[]string{"customer_id", "customer_name", "total_revenue"},
			[]any{int64(1), "Acme", 125.5},
		), nil
	}}

	res, err := getCustomerSummaryHandler(exec)(context.Background(), callReq(nil))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %s", contentText(t, res))
	}

	payload := decodePayload(t, res)
	customers, _ := payload["customers"].([]any)
	if len(customers) != 1 {
		t.Fatalf("customers has %d entries, want 1", len(customers))
	}

	if exec.calls[0].statement != customerSummaryQuery {
		t.Errorf("statement = %q", exec.calls[0].statement)
	}
}

func TestErrorCategoriesSurface(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"connection", errors.New(errors.Connection, "connection refused"), "connection"},
		{"statement", errors.New(errors.Statement, "relation does not exist"), "statement"},
		{"serialization", errors.New(errors.Serialization, "bad value"), "serialization"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{fn: func(string, []any) (*gateway.Result, error) {
				return nil, tt.err
			}}
			res, err := queryDatabaseHandler(exec)(context.Background(), callReq(map[string]any{"query": "SELECT 1"}))
			if err != nil {
				t.Fatalf("handler: %v", err)
			}
			if !res.IsError {
				t.Fatal("gateway failure should produce an error result")
			}
			payload := decodePayload(t, res)
			if payload["category"] != tt.want {
				t.Errorf("category = %v, want %s", payload["category"], tt.want)
			}
			if _, hasSuccess := payload["success"]; hasSuccess {
				t.Error("error payload must not carry a success field")
			}
		})
	}
}
