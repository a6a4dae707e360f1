package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// CustomerClaims are the claims the commerce backend puts in customer tokens.
type CustomerClaims struct {
	ActorID        string         `json:"actor_id"`
	ActorType      string         `json:"actor_type"`
	AuthIdentityID string         `json:"auth_identity_id"`
	AppMetadata    map[string]any `json:"app_metadata,omitempty"`
	jwt.RegisteredClaims
}

// ParseCustomerToken decodes a customer token without verifying its
// signature. The backend verifies tokens; the claims are only used to
// attribute audit records and logs.
func ParseCustomerToken(token string) (*CustomerClaims, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}

	claims := &CustomerClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parsing customer token: %w", err)
	}
	if claims.ActorID == "" {
		claims.ActorID = claims.Subject
	}
	return claims, nil
}

// CustomerID returns the customer id carried in token, or "" when the token
// is absent or unreadable.
func CustomerID(token string) string {
	claims, err := ParseCustomerToken(token)
	if err != nil {
		return ""
	}
	return claims.ActorID
}
