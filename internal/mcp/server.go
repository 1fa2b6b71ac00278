// Package mcp registers the data-analytics tools on an MCP server. Four
// fixed tools cover ad-hoc SELECTs, schema discovery, and the customer
// summary view; every invocation yields exactly one JSON document.
package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/datagate/internal/errors"
	"github.com/hazyhaar/datagate/internal/gateway"
	"github.com/hazyhaar/datagate/pkg/audit"
)

// ServerName is the identity announced during the MCP handshake.
const ServerName = "data-analytics-mcp"

// Executor runs one SQL statement on behalf of a tool. *gateway.Gateway is
// the production implementation.
type Executor interface {
	Execute(ctx context.Context, statement string, params ...any) (*gateway.Result, error)
}

// NewServer creates an MCPServer with the four data-analytics tools registered.
func NewServer(exec Executor, auditLog audit.Logger) *server.MCPServer {
	srv := server.NewMCPServer(
		ServerName,
		"0.1.0",
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	registerQueryDatabase(srv, exec, auditLog)
	registerListTables(srv, exec, auditLog)
	registerDescribeTable(srv, exec, auditLog)
	registerGetCustomerSummary(srv, exec, auditLog)

	return srv
}

// ListTablesQuery enumerates public base tables with their column counts.
// Its ORDER BY drives the order of the tool response.
const ListTablesQuery = `
SELECT
    table_name,
    (SELECT COUNT(*)
     FROM information_schema.columns
     WHERE table_schema = t.table_schema
     AND table_name = t.table_name) AS column_count
FROM information_schema.tables t
WHERE table_schema = 'public'
AND table_type = 'BASE TABLE'
ORDER BY table_name`

// DescribeTableQuery returns one table's column layout in ordinal order.
// The table name binds as $1, never interpolated into the text.
const DescribeTableQuery = `
SELECT
    column_name,
    data_type,
    character_maximum_length,
    is_nullable,
    column_default
FROM information_schema.columns
WHERE table_schema = 'public'
AND table_name = $1
ORDER BY ordinal_position`

const customerSummaryQuery = "SELECT * FROM customer_summary ORDER BY customer_id"

// --- query_database ---

func registerQueryDatabase(srv *server.MCPServer, exec Executor, auditLog audit.Logger) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]string{"type": "string", "description": "SQL query to execute (SELECT statements only for safety)"},
		},
		"required": []string{"query"},
	})
	tool := mcp.NewToolWithRawSchema("query_database", "Execute SQL queries against the PostgreSQL database. Returns results as JSON.", schema)

	handler := queryDatabaseHandler(exec)
	if auditLog != nil {
		handler = audit.Middleware(auditLog, "query_database")(handler)
	}
	srv.AddTool(tool, handler)
}

func queryDatabaseHandler(exec Executor) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		r := queryDatabaseReq{Query: stringArg(req.GetArguments(), "query")}
		if strings.TrimSpace(r.Query) == "" {
			return errorResult(errors.New(errors.Validation, "missing required argument: query")), nil
		}
		if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(r.Query)), "SELECT") {
			return errorResult(errors.New(errors.Validation, "Only SELECT queries are allowed for safety")), nil
		}

		res, err := exec.Execute(ctx, r.Query)
		if err != nil {
			return errorResult(err), nil
		}
		return textResult(map[string]any{"success": true, "rows": res.RowCount, "data": res.Records})
	}
}

type queryDatabaseReq struct {
	Query string `json:"query"`
}

// --- list_tables ---

func registerListTables(srv *server.MCPServer, exec Executor, auditLog audit.Logger) {
	schema, _ := json.Marshal(map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	})
	tool := mcp.NewToolWithRawSchema("list_tables", "List all tables in the database with their row counts", schema)

	handler := listTablesHandler(exec)
	if auditLog != nil {
		handler = audit.Middleware(auditLog, "list_tables")(handler)
	}
	srv.AddTool(tool, handler)
}

func listTablesHandler(exec Executor) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := exec.Execute(ctx, ListTablesQuery)
		if err != nil {
			return errorResult(err), nil
		}

		// One count query per table; attachment order follows the metadata
		// query's ordering.
		tables := make([]tableEntry, 0, len(res.Records))
		for _, rec := range res.Records {
			name, _ := rec.Get("table_name").(string)
			entry := tableEntry{TableName: name, ColumnCount: asInt64(rec.Get("column_count"))}

			count, err := exec.Execute(ctx, "SELECT COUNT(*) AS count FROM "+pgx.Identifier{name}.Sanitize())
			if err != nil {
				return errorResult(err), nil
			}
			if len(count.Records) > 0 {
				entry.RowCount = asInt64(count.Records[0].Get("count"))
			}
			tables = append(tables, entry)
		}
		return textResult(map[string]any{"success": true, "tables": tables})
	}
}

type tableEntry struct {
	TableName   string `json:"table_name"`
	ColumnCount int64  `json:"column_count"`
	RowCount    int64  `json:"row_count"`
}

// --- describe_table ---

func registerDescribeTable(srv *server.MCPServer, exec Executor, auditLog audit.Logger) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"table_name": map[string]string{"type": "string", "description": "Name of the table to describe"},
		},
		"required": []string{"table_name"},
	})
	tool := mcp.NewToolWithRawSchema("describe_table", "Get the schema/structure of a specific table", schema)

	handler := describeTableHandler(exec)
	if auditLog != nil {
		handler = audit.Middleware(auditLog, "describe_table")(handler)
	}
	srv.AddTool(tool, handler)
}

func describeTableHandler(exec Executor) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		r := describeTableReq{TableName: stringArg(req.GetArguments(), "table_name")}
		if strings.TrimSpace(r.TableName) == "" {
			return errorResult(errors.New(errors.Validation, "missing required argument: table_name")), nil
		}

		res, err := exec.Execute(ctx, DescribeTableQuery, r.TableName)
		if err != nil {
			return errorResult(err), nil
		}
		// A table that does not exist yields an empty column list, not an
		// error.
		return textResult(map[string]any{"success": true, "table_name": r.TableName, "columns": res.Records})
	}
}

type describeTableReq struct {
	TableName string `json:"table_name"`
}

// --- get_customer_summary ---

func registerGetCustomerSummary(srv *server.MCPServer, exec Executor, auditLog audit.Logger) {
	schema, _ := json.Marshal(map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	})
	tool := mcp.NewToolWithRawSchema("get_customer_summary", "Get a summary of all customers with their activity and revenue", schema)

	handler := getCustomerSummaryHandler(exec)
	if auditLog != nil {
		handler = audit.Middleware(auditLog, "get_customer_summary")(handler)
	}
	srv.AddTool(tool, handler)
}

func getCustomerSummaryHandler(exec Executor) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := exec.Execute(ctx, customerSummaryQuery)
		if err != nil {
			return errorResult(err), nil
		}
		return textResult(map[string]any{"success": true, "customers": res.Records})
	}
}

// --- helpers ---

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}

func textResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return errorResult(errors.Wrap(errors.Serialization, "encoding response", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorPayload is the uniform error document: a message plus a coarse
// category (connection, validation, statement, serialization).
type errorPayload struct {
	Message  string `json:"message"`
	Category string `json:"category"`
}

func errorResult(err error) *mcp.CallToolResult {
	data, merr := json.Marshal(errorPayload{
		Message:  errors.Message(err),
		Category: string(errors.KindOf(err)),
	})
	if merr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(string(data))
}
