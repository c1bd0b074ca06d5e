package login

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/session-guard/internal/lib/jwt"
	"github.com/studyhub/session-guard/internal/models"
)

type SessionServiceMock struct {
	mock.Mock
}

func (m *SessionServiceMock) Login(ctx context.Context, username, password string) (*models.UserSnapshot, models.Result) {
	args := m.Called(ctx, username, password)
	snap, _ := args.Get(0).(*models.UserSnapshot)
	return snap, args.Get(1).(models.Result)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestLoginHandler_ServeHTTP(t *testing.T) {
	serviceMock := new(SessionServiceMock)
	maker := jwt.NewMaker("test_secret_key", 15*time.Minute)
	handler := New(newNoopLogger(), serviceMock, maker)

	snapshot := &models.UserSnapshot{UID: "u1", Name: "user1"}

	tests := []struct {
		name           string
		requestBody    interface{}
		mockSnap       *models.UserSnapshot
		mockResult     models.Result
		wantStatusCode int
		wantStatus     string
		wantError      string
	}{
		{
			name:           "valid login",
			requestBody:    Request{Username: "user1", Password: "password123"},
			mockSnap:       snapshot,
			mockResult:     models.OK(),
			wantStatusCode: http.StatusOK,
			wantStatus:     "OK",
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			wantStatusCode: http.StatusBadRequest,
			wantStatus:     "Error",
			wantError:      "invalid request body",
		},
		{
			name:           "validation error - missing password",
			requestBody:    Request{Username: "user1"},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantStatus:     "Error",
			wantError:      "field Password is a required field",
		},
		{
			name:           "invalid credentials",
			requestBody:    Request{Username: "user1", Password: "password123"},
			mockSnap:       nil,
			mockResult:     models.Fail("invalid credentials"),
			wantStatusCode: http.StatusUnauthorized,
			wantStatus:     "Error",
			wantError:      "invalid credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serviceMock.ExpectedCalls = nil
			serviceMock.Calls = nil

			if req, ok := tt.requestBody.(Request); ok && req.Password != "" {
				serviceMock.On("Login", mock.Anything, req.Username, req.Password).
					Return(tt.mockSnap, tt.mockResult).Once()
			}

			var bodyBytes []byte
			switch v := tt.requestBody.(type) {
			case string:
				bodyBytes = []byte(v)
			default:
				var err error
				bodyBytes, err = json.Marshal(tt.requestBody)
				require.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/login", bytes.NewReader(bodyBytes))
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatusCode, rr.Code)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp["status"])
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, resp["error"])
			}

			if tt.wantStatusCode == http.StatusOK {
				data, ok := resp["data"].(map[string]any)
				require.True(t, ok)

				sessionToken, _ := data["session_token"].(string)
				require.NotEmpty(t, sessionToken)

				claims, err := maker.ParseToken(sessionToken)
				require.NoError(t, err)
				assert.Equal(t, "user1", claims.Username)
				assert.Equal(t, "u1", claims.UserUID)
			}

			serviceMock.AssertExpectations(t)
		})
	}
}
