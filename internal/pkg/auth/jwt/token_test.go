package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestSessionToken_RoundTrip(t *testing.T) {
	token, err := IssueSessionToken("sess-1", testSecret, time.Minute)
	require.NoError(t, err)

	claims, err := ParseSessionToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, TokenIssuer, claims.Issuer)
}

func TestParseSessionToken_Rejects(t *testing.T) {
	good, err := IssueSessionToken("sess-1", testSecret, time.Minute)
	require.NoError(t, err)

	expired, err := IssueSessionToken("sess-1", testSecret, -time.Minute)
	require.NoError(t, err)

	empty, err := IssueSessionToken("", testSecret, time.Minute)
	require.NoError(t, err)

	_, err = ParseSessionToken(good, "other-secret")
	assert.Error(t, err, "wrong secret")

	_, err = ParseSessionToken(expired, testSecret)
	assert.Error(t, err, "expired")

	_, err = ParseSessionToken(empty, testSecret)
	assert.ErrorIs(t, err, ErrMissingSessionID)

	_, err = ParseSessionToken("garbage", testSecret)
	assert.Error(t, err)
}

func TestSessionExtractorMiddleware(t *testing.T) {
	token, err := IssueSessionToken("sess-9", testSecret, time.Minute)
	require.NoError(t, err)

	var got *SessionClaims
	h := SessionExtractorMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = SessionFromContext(r.Context())
	}))

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		wantSID string
	}{
		{"no token", func(r *http.Request) {}, ""},
		{"query token", func(r *http.Request) {
			q := r.URL.Query()
			q.Set(SessionQueryParam, token)
			r.URL.RawQuery = q.Encode()
		}, "sess-9"},
		{"bearer token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, "sess-9"},
		{"invalid token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			tt.prepare(r)

			h.ServeHTTP(httptest.NewRecorder(), r)

			if tt.wantSID == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantSID, got.SessionID)
		})
	}
}
