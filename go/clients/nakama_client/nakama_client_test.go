package nakama_client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lila-games/xoxo/go/clients"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testToken(t *testing.T, uid, usn string, exp int64) string {
	t.Helper()
	claims, err := json.Marshal(map[string]any{"uid": uid, "usn": usn, "exp": exp})
	require.NoError(t, err)
	return "eyJhbGciOiJIUzI1NiJ9." + base64.RawURLEncoding.EncodeToString(claims) + ".sig"
}

func TestAuthenticateDevice(t *testing.T) {
	token := testToken(t, "user-1", "alice", 1700003600)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, AuthenticateDeviceEndpoint, r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("create"))
		assert.Equal(t, "alice", r.URL.Query().Get("username"))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "secret", user)
		assert.Equal(t, "", pass)

		var req authenticateDeviceRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "device-1", req.ID)
		assert.Equal(t, "alice", req.Vars["name"])

		w.Write([]byte(`{"created":true,"token":"` + token + `","refresh_token":"r"}`))
	}))
	defer srv.Close()

	c := NewNakamaClientWithBaseURL(srv.URL, "secret")
	session, err := c.AuthenticateDevice(context.Background(), "device-1", "alice", true)
	require.NoError(t, err)

	assert.Equal(t, token, session.Token)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, "alice", session.Username)
	assert.True(t, session.Created)
	assert.Equal(t, time.Unix(1700003600, 0), session.ExpiresAt)
	assert.True(t, session.Expired(time.Unix(1700003600, 0)))
	assert.False(t, session.Expired(time.Unix(1700000000, 0)))
}

func TestAuthenticateDevice_Conflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"Username is already in use.","code":6}`))
	}))
	defer srv.Close()

	c := NewNakamaClientWithBaseURL(srv.URL, "secret")
	_, err := c.AuthenticateDevice(context.Background(), "device-1", "alice", true)
	require.Error(t, err)

	var statusErr *clients.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusConflict, statusErr.StatusCode)
}

func TestAuthenticateDevice_BadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":"not-a-jwt"}`))
	}))
	defer srv.Close()

	c := NewNakamaClientWithBaseURL(srv.URL, "secret")
	_, err := c.AuthenticateDevice(context.Background(), "device-1", "alice", true)
	assert.Error(t, err)
}

func TestFindMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, RPCEndpoint+FindMatchRPC, r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		raw, _ := io.ReadAll(r.Body)
		var inner string
		assert.NoError(t, json.Unmarshal(raw, &inner))
		assert.JSONEq(t, `{"ai":true}`, inner)

		w.Write([]byte(`{"id":"find_match","payload":"{\"matchIds\":[\"match-1.nakama\"]}"}`))
	}))
	defer srv.Close()

	c := NewNakamaClientWithBaseURL(srv.URL, "secret")
	id, err := c.FindMatch(context.Background(), &Session{Token: "tok"}, true)
	require.NoError(t, err)
	assert.Equal(t, "match-1.nakama", id)
}

func TestFindMatch_NoneAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"find_match","payload":"{\"matchIds\":[]}"}`))
	}))
	defer srv.Close()

	c := NewNakamaClientWithBaseURL(srv.URL, "secret")
	_, err := c.FindMatch(context.Background(), &Session{Token: "tok"}, false)
	assert.ErrorIs(t, err, ErrNoMatchAvailable)
}

func TestListLeaderboard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, LeaderboardEndpoint+GlobalLeaderboardID, r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"records":[
			{"owner_id":"u1","username":"alice","score":"30","rank":"1"},
			{"owner_id":"u2","username":"bob","score":"10","rank":"2"}
		]}`))
	}))
	defer srv.Close()

	c := NewNakamaClientWithBaseURL(srv.URL, "secret")
	records, err := c.ListLeaderboard(context.Background(), &Session{Token: "tok"}, GlobalLeaderboardID, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "alice", records[0].Username)
	assert.Equal(t, json.Number("30"), records[0].Score)
	assert.Equal(t, json.Number("2"), records[1].Rank)
}

func TestSocketURL(t *testing.T) {
	c := NewNakamaClient(Config{ServerKey: "k", Host: "example.com", Port: 7350, SSL: true})
	u := c.SocketURL("a.b.c")
	assert.True(t, strings.HasPrefix(u, "wss://example.com:7350/ws?"))
	assert.Contains(t, u, "token=a.b.c")

	c = NewNakamaClient(DefaultConfig())
	assert.True(t, strings.HasPrefix(c.SocketURL("t"), "ws://127.0.0.1:7350/ws?"))
}
