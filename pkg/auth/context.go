package auth

import (
	"context"
	"slices"
)

// contextKey is a private type for context keys.
type contextKey int

const (
	operatorContextKey contextKey = iota
	tokenContextKey
)

// Operator is an authenticated admin or MCP caller.
type Operator struct {
	Name     string   `json:"name"`
	Roles    []string `json:"roles,omitempty"`
	AuthType string   `json:"auth_type"`
}

// WithOperator adds the operator to the context.
func WithOperator(ctx context.Context, op *Operator) context.Context {
	return context.WithValue(ctx, operatorContextKey, op)
}

// GetOperator retrieves the operator from the context.
func GetOperator(ctx context.Context) *Operator {
	if op, ok := ctx.Value(operatorContextKey).(*Operator); ok {
		return op
	}
	return nil
}

// WithToken adds the raw operator credential to the context.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// GetToken retrieves the raw operator credential from the context.
func GetToken(ctx context.Context) string {
	if token, ok := ctx.Value(tokenContextKey).(string); ok {
		return token
	}
	return ""
}

// HasRole checks if the operator has a specific role.
func (o *Operator) HasRole(role string) bool {
	return slices.Contains(o.Roles, role)
}

// HasAnyRole checks if the operator has any of the specified roles.
func (o *Operator) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if o.HasRole(role) {
			return true
		}
	}
	return false
}
