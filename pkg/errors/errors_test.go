package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeInvalidCredentials, http.StatusUnauthorized},
		{ErrCodeInactiveAccount, http.StatusForbidden},
		{ErrCodeTokenInvalid, http.StatusUnauthorized},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeTokenRevoked, http.StatusUnauthorized},
		{ErrCodeTokenOwnerMismatch, http.StatusUnauthorized},
		{ErrCodeInvalidOrUsedToken, http.StatusBadRequest},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeUpstreamTimeout, http.StatusGatewayTimeout},
		{ErrCodeUpstreamUnavailable, http.StatusBadGateway},
		{ErrCodePersistence, http.StatusInternalServerError},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, MapErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Wrap(cause, ErrCodePersistence, "internal server error")

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsCode(err, ErrCodePersistence))
	assert.Equal(t, ErrCodeInternal, GetCode(cause))
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "unused"))

	outer := fmt.Errorf("login: %w", err)
	assert.Equal(t, ErrCodePersistence, GetCode(outer))
}

func TestIsTokenFailure(t *testing.T) {
	assert.True(t, IsTokenFailure(New(ErrCodeTokenExpired, "expired")))
	assert.True(t, IsTokenFailure(New(ErrCodeTokenRevoked, "revoked")))
	assert.False(t, IsTokenFailure(New(ErrCodeForbidden, "nope")))
}

func TestWriteJSONHidesCause(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrorCode
		wantMsg    string
	}{
		{
			name:       "structured",
			err:        Wrap(fmt.Errorf("pq: duplicate key"), ErrCodeConflict, "email already registered"),
			wantStatus: http.StatusConflict,
			wantCode:   ErrCodeConflict,
			wantMsg:    "email already registered",
		},
		{
			name:       "plain error",
			err:        fmt.Errorf("secret internal detail"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrCodeInternal,
			wantMsg:    "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/x", nil)
			w := httptest.NewRecorder()

			WriteJSON(w, r, tt.err)

			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatus, res.StatusCode)

			raw, err := io.ReadAll(res.Body)
			require.NoError(t, err)
			assert.NotContains(t, string(raw), "secret internal detail")
			assert.NotContains(t, string(raw), "duplicate key")

			var body Response
			require.NoError(t, json.Unmarshal(raw, &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMsg, body.Message)
		})
	}
}

func TestWriteJSONSetsBearerChallenge(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	w := httptest.NewRecorder()

	WriteJSON(w, r, New(ErrCodeTokenInvalid, "invalid token"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
}
