package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userJSON() json.RawMessage {
	return json.RawMessage(`{
		"uid": "u1",
		"name": "ivan",
		"phone": "+79990000000",
		"email": "ivan@example.com",
		"active_subscriptions": [
			{"plan_name": "class-math", "status": "active"}
		]
	}`)
}

func TestClient_Login_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ivan", body["username"])

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"token":   "backend-token",
			"user":    userJSON(),
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	token, snap, err := c.Login(context.Background(), "ivan", "secret")

	require.NoError(t, err)
	assert.Equal(t, "backend-token", token)
	require.NotNil(t, snap)
	assert.Equal(t, "u1", snap.UID)
	assert.Len(t, snap.ActiveSubscriptions, 1)
}

func TestClient_Login_InvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, _, err := c.Login(context.Background(), "ivan", "wrong")

	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_WhoAmI_SendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer backend-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"user":    userJSON(),
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	snap, err := c.WhoAmI(context.Background(), "backend-token")

	require.NoError(t, err)
	assert.Equal(t, "ivan", snap.Name)
}

func TestClient_WhoAmI_RejectedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.WhoAmI(context.Background(), "stale-token")

	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_WhoAmI_ServerErrorIsNotUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.WhoAmI(context.Background(), "backend-token")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestClient_WhoAmI_BackendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(srv.URL)
	_, err := c.WhoAmI(context.Background(), "backend-token")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestClient_VerifyOTP_NewUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/otp/verify", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"success":     true,
			"token":       "backend-token",
			"is_new_user": true,
			"user":        userJSON(),
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	token, snap, isNew, err := c.VerifyOTP(context.Background(), "+79990000000", "123456")

	require.NoError(t, err)
	assert.Equal(t, "backend-token", token)
	assert.True(t, isNew)
	require.NotNil(t, snap)
}

func TestClient_UnsuccessfulEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "phone not registered",
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.SendOTP(context.Background(), "+79990000000")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "phone not registered")
}
