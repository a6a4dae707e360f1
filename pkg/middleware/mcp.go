// Package middleware provides MCP protocol-level middleware for the operator
// tool surface.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/storefront/pkg/audit"
	"github.com/txn2/storefront/pkg/auth"
)

const methodToolsCall = "tools/call"

var (
	errMissingParams   = errors.New("missing params")
	errMissingToolName = errors.New("missing tool name")
)

// OperatorAuthenticator resolves a raw credential to an operator.
type OperatorAuthenticator interface {
	Authenticate(key string) (*auth.Operator, error)
}

// MCPToolCallMiddleware authenticates tools/call requests. Other methods
// pass through untouched.
//
// The credential comes from the context, where the HTTP auth middleware put
// it, or from the request headers. The operator must hold requiredRole when
// one is given. Rejections are returned as tool error results so the client
// sees the reason. Accepted calls carry the operator and a request id.
func MCPToolCallMiddleware(authn OperatorAuthenticator, requiredRole string) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if method != methodToolsCall {
				return next(ctx, method, req)
			}

			toolName, err := extractToolName(req)
			if err != nil {
				return createErrorResult(fmt.Sprintf("invalid request: %v", err)), nil
			}

			op, reason := authorize(authn, requestCredential(ctx, req), requiredRole)
			if reason != "" {
				slog.Warn("mcp tool call rejected", "tool", toolName, "reason", reason)
				return createErrorResult(reason), nil
			}

			ctx = auth.WithOperator(ctx, op)
			if audit.RequestID(ctx) == "" {
				ctx = audit.WithRequestID(ctx, uuid.NewString())
			}
			return next(ctx, method, req)
		}
	}
}

// authorize resolves key to an operator holding role. A non-empty reason
// means the call is rejected.
func authorize(authn OperatorAuthenticator, key, role string) (*auth.Operator, string) {
	op, err := authn.Authenticate(key)
	if err == nil && op == nil {
		err = auth.ErrInvalidAPIKey
	}
	if err != nil {
		return nil, "authentication failed: " + err.Error()
	}
	if role != "" && !op.HasRole(role) {
		return nil, fmt.Sprintf("not authorized: %s role required (operator %s)", role, op.Name)
	}
	return op, ""
}

// requestCredential prefers the credential the HTTP layer stored in the
// context over the transport headers.
func requestCredential(ctx context.Context, req mcp.Request) string {
	if token := auth.GetToken(ctx); token != "" {
		return token
	}
	if req == nil {
		return ""
	}
	if extra := req.GetExtra(); extra != nil && extra.Header != nil {
		return auth.APIKeyFromHeader(extra.Header)
	}
	return ""
}

func extractToolName(req mcp.Request) (string, error) {
	if req == nil {
		return "", errMissingParams
	}
	// A typed nil pointer survives the assertion, so check it too.
	callParams, ok := req.GetParams().(*mcp.CallToolParamsRaw)
	switch {
	case !ok && req.GetParams() != nil:
		return "", fmt.Errorf("unexpected params type: %T", req.GetParams())
	case callParams == nil:
		return "", errMissingParams
	case callParams.Name == "":
		return "", errMissingToolName
	}
	return callParams.Name, nil
}

func createErrorResult(msg string) mcp.Result {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
