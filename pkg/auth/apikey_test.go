package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	apiKeyTestValue = "sk_live_operator"
	apiKeyTestName  = "ops"
)

func testHash(t *testing.T, key string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newTestAuthenticator(t *testing.T) *APIKeyAuthenticator {
	t.Helper()
	a, err := NewAPIKeyAuthenticator(APIKeyConfig{Keys: []APIKey{
		{Name: apiKeyTestName, Hash: testHash(t, apiKeyTestValue), Roles: []string{RoleAdmin}},
		{Name: "viewer", Hash: testHash(t, "viewer-key"), Roles: []string{"viewer"}},
	}})
	require.NoError(t, err)
	return a
}

func TestAPIKeyAuthenticator_Authenticate(t *testing.T) {
	a := newTestAuthenticator(t)

	op, err := a.Authenticate(apiKeyTestValue)
	require.NoError(t, err)
	assert.Equal(t, apiKeyTestName, op.Name)
	assert.True(t, op.HasRole(RoleAdmin))
	assert.Equal(t, "apikey", op.AuthType)

	op, err = a.Authenticate("viewer-key")
	require.NoError(t, err)
	assert.False(t, op.HasRole(RoleAdmin))

	_, err = a.Authenticate("wrong")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)

	_, err = a.Authenticate("")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestAPIKeyAuthenticator_RejectsPlaintextHash(t *testing.T) {
	_, err := NewAPIKeyAuthenticator(APIKeyConfig{Keys: []APIKey{{Name: "bad", Hash: "plaintext"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `api key "bad"`)
}

func TestAPIKeyAuthenticator_AddRemove(t *testing.T) {
	a, err := NewAPIKeyAuthenticator(APIKeyConfig{})
	require.NoError(t, err)

	hash, err := HashAPIKey("runtime-key")
	require.NoError(t, err)
	require.NoError(t, a.AddKey(APIKey{Name: "runtime", Hash: hash}))

	_, err = a.Authenticate("runtime-key")
	require.NoError(t, err)

	assert.True(t, a.RemoveKey("runtime"))
	assert.False(t, a.RemoveKey("runtime"))

	_, err = a.Authenticate("runtime-key")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
		want   string
	}{
		{name: "x-api-key", header: "X-API-Key", value: "k1", want: "k1"},
		{name: "bearer", header: "Authorization", value: "Bearer k2", want: "k2"},
		{name: "basic ignored", header: "Authorization", value: "Basic abc", want: ""},
		{name: "none", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set(tt.header, tt.value)
			}
			assert.Equal(t, tt.want, ExtractAPIKey(r))
		})
	}
}

func TestAPIKeyAuthenticator_AuthenticateRequest(t *testing.T) {
	a := newTestAuthenticator(t)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+apiKeyTestValue)

	op, err := a.AuthenticateRequest(r)
	require.NoError(t, err)
	assert.Equal(t, apiKeyTestName, op.Name)
}
