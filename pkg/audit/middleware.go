package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Middleware wraps a tool handler: measures duration, captures
// arguments/result/error, and logs asynchronously via the Logger.
func Middleware(logger Logger, toolName string) func(server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := time.Now()

			result, err := next(ctx, req)

			entry := &Entry{
				Tool:       toolName,
				Transport:  "stdio",
				RequestID:  uuid.NewString(),
				DurationMs: time.Since(start).Milliseconds(),
			}
			if params, e := json.Marshal(req.GetArguments()); e == nil {
				entry.Parameters = string(params)
			}
			switch {
			case err != nil:
				entry.Error = err.Error()
				entry.Status = "error"
			case result != nil && result.IsError:
				entry.Error = resultText(result)
				entry.Status = "error"
			default:
				entry.Status = "success"
				entry.Result = resultText(result)
			}

			logger.LogAsync(entry)
			return result, err
		}
	}
}

func resultText(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
