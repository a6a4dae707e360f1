package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/storefront/pkg/audit"
	"github.com/txn2/storefront/pkg/auth"
)

// mcpTestAuthenticator implements OperatorAuthenticator for testing.
type mcpTestAuthenticator struct {
	op      *auth.Operator
	err     error
	lastKey string
}

func (m *mcpTestAuthenticator) Authenticate(key string) (*auth.Operator, error) {
	m.lastKey = key
	if m.err != nil {
		return nil, m.err
	}
	return m.op, nil
}

// Verify interface compliance.
var _ OperatorAuthenticator = (*auth.APIKeyAuthenticator)(nil)

// mcpTestRequest wraps ServerRequest for testing
type mcpTestRequest struct {
	mcp.ServerRequest[*mcp.CallToolParamsRaw]
}

func newMCPTestRequest(toolName string) *mcpTestRequest {
	return &mcpTestRequest{
		ServerRequest: mcp.ServerRequest[*mcp.CallToolParamsRaw]{
			Params: &mcp.CallToolParamsRaw{
				Name: toolName,
			},
		},
	}
}

func assertErrorResult(t *testing.T, result mcp.Result, contains string) {
	t.Helper()
	toolResult, ok := result.(*mcp.CallToolResult)
	if !ok {
		t.Fatalf("expected CallToolResult, got %T", result)
	}
	if !toolResult.IsError {
		t.Error("expected IsError to be true")
	}
	if msg := extractErrorMessage(toolResult); !strings.Contains(msg, contains) {
		t.Errorf("message %q does not contain %q", msg, contains)
	}
}

func TestMCPToolCallMiddleware_AuthenticationFailure(t *testing.T) {
	authn := &mcpTestAuthenticator{err: auth.ErrInvalidAPIKey}

	next := func(_ context.Context, _ string, _ mcp.Request) (mcp.Result, error) {
		t.Fatal("next should not be called on auth failure")
		return nil, nil
	}

	ctx := auth.WithToken(context.Background(), "bad-key")
	result, err := MCPToolCallMiddleware(authn, auth.RoleAdmin)(next)(ctx, methodToolsCall, newMCPTestRequest("list_regions"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorResult(t, result, "authentication failed")
	if authn.lastKey != "bad-key" {
		t.Errorf("expected credential from context, got %q", authn.lastKey)
	}
}

func TestMCPToolCallMiddleware_RoleRequired(t *testing.T) {
	authn := &mcpTestAuthenticator{op: &auth.Operator{Name: "viewer", Roles: []string{"viewer"}}}

	next := func(_ context.Context, _ string, _ mcp.Request) (mcp.Result, error) {
		t.Fatal("next should not be called without the role")
		return nil, nil
	}

	result, err := MCPToolCallMiddleware(authn, auth.RoleAdmin)(next)(context.Background(), methodToolsCall, newMCPTestRequest("invalidate_regions"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorResult(t, result, "admin role required")
}

func TestMCPToolCallMiddleware_Success(t *testing.T) {
	authn := &mcpTestAuthenticator{op: &auth.Operator{Name: "ops", Roles: []string{auth.RoleAdmin}}}

	var gotOp *auth.Operator
	var gotRequestID string
	next := func(ctx context.Context, _ string, _ mcp.Request) (mcp.Result, error) {
		gotOp = auth.GetOperator(ctx)
		gotRequestID = audit.RequestID(ctx)
		return &mcp.CallToolResult{}, nil
	}

	_, err := MCPToolCallMiddleware(authn, auth.RoleAdmin)(next)(context.Background(), methodToolsCall, newMCPTestRequest("list_regions"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotOp == nil || gotOp.Name != "ops" {
		t.Errorf("expected operator in context, got %+v", gotOp)
	}
	if gotRequestID == "" {
		t.Error("expected a request id in context")
	}
}

func TestMCPToolCallMiddleware_KeepsRequestID(t *testing.T) {
	authn := &mcpTestAuthenticator{op: &auth.Operator{Name: "ops", Roles: []string{auth.RoleAdmin}}}

	var gotRequestID string
	next := func(ctx context.Context, _ string, _ mcp.Request) (mcp.Result, error) {
		gotRequestID = audit.RequestID(ctx)
		return &mcp.CallToolResult{}, nil
	}

	ctx := audit.WithRequestID(context.Background(), "req-http")
	if _, err := MCPToolCallMiddleware(authn, auth.RoleAdmin)(next)(ctx, methodToolsCall, newMCPTestRequest("list_regions")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotRequestID != "req-http" {
		t.Errorf("expected inbound request id, got %q", gotRequestID)
	}
}

func TestMCPToolCallMiddleware_NonToolCallPassesThrough(t *testing.T) {
	authn := &mcpTestAuthenticator{err: errors.New("must not be called")}
	called := false
	next := func(_ context.Context, _ string, _ mcp.Request) (mcp.Result, error) {
		called = true
		return &mcp.ListToolsResult{}, nil
	}

	if _, err := MCPToolCallMiddleware(authn, auth.RoleAdmin)(next)(context.Background(), "tools/list", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected next to be called")
	}
	if authn.lastKey != "" {
		t.Error("authenticator should not run for tools/list")
	}
}

func TestMCPToolCallMiddleware_InvalidRequest(t *testing.T) {
	authn := &mcpTestAuthenticator{}
	next := func(_ context.Context, _ string, _ mcp.Request) (mcp.Result, error) {
		t.Fatal("next should not be called")
		return nil, nil
	}

	result, err := MCPToolCallMiddleware(authn, auth.RoleAdmin)(next)(context.Background(), methodToolsCall, newMCPTestRequest(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorResult(t, result, "missing tool name")
}

func TestExtractToolName(t *testing.T) {
	if _, err := extractToolName(nil); err == nil {
		t.Error("expected error for nil request")
	}
	nilParams := &mcpTestRequest{}
	if _, err := extractToolName(nilParams); err == nil {
		t.Error("expected error for nil params")
	}
	name, err := extractToolName(newMCPTestRequest("query_cart_events"))
	if err != nil || name != "query_cart_events" {
		t.Errorf("got %q, %v", name, err)
	}
}

func TestMCPLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	tests := []struct {
		name   string
		result mcp.Result
		err    error
		want   string
	}{
		{name: "success", result: &mcp.CallToolResult{}, want: `msg="mcp tool call"`},
		{name: "error result", result: createErrorResult("no such region"), want: `error="no such region"`},
		{name: "handler error", err: errors.New("boom"), want: "level=WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			next := func(_ context.Context, _ string, _ mcp.Request) (mcp.Result, error) {
				return tt.result, tt.err
			}
			ctx := auth.WithOperator(context.Background(), &auth.Operator{Name: "ops"})

			result, err := MCPLoggingMiddleware()(next)(ctx, methodToolsCall, newMCPTestRequest("list_regions"))
			if result != tt.result || !errors.Is(err, tt.err) {
				t.Error("middleware must return the handler's result unchanged")
			}
			out := buf.String()
			if !strings.Contains(out, tt.want) || !strings.Contains(out, "tool=list_regions") || !strings.Contains(out, "operator=ops") {
				t.Errorf("unexpected log output %q", out)
			}
		})
	}

	buf.Reset()
	next := func(_ context.Context, _ string, _ mcp.Request) (mcp.Result, error) { return nil, nil }
	_, _ = MCPLoggingMiddleware()(next)(context.Background(), "tools/list", nil)
	if buf.Len() != 0 {
		t.Errorf("non tool calls are not logged, got %q", buf.String())
	}
}

func TestRequestCredential(t *testing.T) {
	ctx := auth.WithToken(context.Background(), "ctx-key")
	if got := requestCredential(ctx, newMCPTestRequest("x")); got != "ctx-key" {
		t.Errorf("got %q, want ctx-key", got)
	}

	req := newMCPTestRequest("x")
	req.Extra = &mcp.RequestExtra{Header: http.Header{"X-Api-Key": []string{"header-key"}}}
	if got := requestCredential(context.Background(), req); got != "header-key" {
		t.Errorf("got %q, want header-key", got)
	}

	if got := requestCredential(context.Background(), nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
