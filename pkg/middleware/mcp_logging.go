package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/storefront/pkg/audit"
	"github.com/txn2/storefront/pkg/auth"
)

// MCPLoggingMiddleware creates MCP protocol-level middleware that logs every
// tools/call with its caller, duration and outcome.
func MCPLoggingMiddleware() mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if method != methodToolsCall {
				return next(ctx, method, req)
			}

			start := time.Now()
			result, err := next(ctx, method, req)

			toolName, _ := extractToolName(req)
			operator := ""
			if op := auth.GetOperator(ctx); op != nil {
				operator = op.Name
			}

			attrs := []any{
				"tool", toolName,
				"operator", operator,
				"request_id", audit.RequestID(ctx),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			switch {
			case err != nil:
				slog.Warn("mcp tool call failed", append(attrs, "error", err)...)
			case isErrorResult(result):
				slog.Info("mcp tool call returned error", append(attrs, "error", extractErrorMessage(result))...)
			default:
				slog.Info("mcp tool call", attrs...)
			}
			return result, err
		}
	}
}

func isErrorResult(result mcp.Result) bool {
	r, ok := result.(*mcp.CallToolResult)
	return ok && r != nil && r.IsError
}

// extractErrorMessage extracts the error message from an MCP CallToolResult.
func extractErrorMessage(result mcp.Result) string {
	r, ok := result.(*mcp.CallToolResult)
	if !ok || r == nil || len(r.Content) == 0 {
		return ""
	}
	if text, ok := r.Content[0].(*mcp.TextContent); ok {
		return text.Text
	}
	return ""
}
