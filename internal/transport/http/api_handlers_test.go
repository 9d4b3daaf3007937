package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doJSON(t *testing.T, ts *testServer, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func registerAndLogin(t *testing.T, ts *testServer, login, nick string) string {
	t.Helper()

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/register", "", RegisterRequest{Login: login, Password: "secret1", Nick: nick})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, data := doJSON(t, ts, http.MethodPost, "/api/login", "", LoginRequest{Login: login, Password: "secret1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out AuthResponse
	require.NoError(t, json.Unmarshal(data, &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t)

	resp, data := doJSON(t, ts, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(data))
}

func TestRegisterEndpoint(t *testing.T) {
	ts := startTestServer(t)

	resp, data := doJSON(t, ts, http.MethodPost, "/api/register", "", RegisterRequest{Login: "alice", Password: "secret1", Nick: "Alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var user UserResponse
	require.NoError(t, json.Unmarshal(data, &user))
	assert.Equal(t, "alice", user.Login)
	assert.Equal(t, "Alice", user.Nick)
	assert.NotZero(t, user.ID)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"duplicate login", RegisterRequest{Login: "alice", Password: "secret1", Nick: "Other"}, http.StatusConflict},
		{"duplicate nick", RegisterRequest{Login: "alice2", Password: "secret1", Nick: "Alice"}, http.StatusConflict},
		{"short password", RegisterRequest{Login: "bob", Password: "123", Nick: "Bob"}, http.StatusBadRequest},
		{"nick with space", RegisterRequest{Login: "bob", Password: "secret1", Nick: "B ob"}, http.StatusBadRequest},
		{"missing fields", map[string]string{"login": "bob"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doJSON(t, ts, http.MethodPost, "/api/register", "", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestLoginEndpoint(t *testing.T) {
	ts := startTestServer(t)

	token := registerAndLogin(t, ts, "alice", "Alice")
	claims, err := ts.auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Login)

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/login", "", LoginRequest{Login: "alice", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/login", "", LoginRequest{Login: "nobody", Password: "secret1"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOnlineRequiresToken(t *testing.T) {
	ts := startTestServer(t)

	resp, _ := doJSON(t, ts, http.MethodGet, "/api/online", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodGet, "/api/online", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/online", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Token abc")
	raw, err := ts.Client().Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, raw.StatusCode)

	token := registerAndLogin(t, ts, "alice", "Alice")
	resp, data := doJSON(t, ts, http.MethodGet, "/api/online", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var online OnlineResponse
	require.NoError(t, json.Unmarshal(data, &online))
	assert.Zero(t, online.Count)
	assert.Empty(t, online.Nicks)
}
