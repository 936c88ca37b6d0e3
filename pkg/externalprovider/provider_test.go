package externalprovider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-access/pkg/config"
	apperrors "github.com/tendant/simple-access/pkg/errors"
	"golang.org/x/oauth2"
)

func newIdP(t *testing.T, userinfo http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"idp-access","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", userinfo)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testEndpoint(srv *httptest.Server) oauth2.Endpoint {
	return oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams}
}

func TestGoogleProviderFlow(t *testing.T) {
	srv := newIdP(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer idp-access", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"g-1","email":"ana@example.com","verified_email":true,"name":"Ana"}`))
	})
	p := NewGoogleProvider(config.GoogleConfig{ClientID: "cid", ClientSecret: "secret", RedirectURL: "http://app/cb"},
		WithEndpoint(testEndpoint(srv)), WithUserInfoURL(srv.URL+"/userinfo"))

	authURL, err := url.Parse(p.AuthCodeURL("st"))
	require.NoError(t, err)
	assert.Equal(t, "st", authURL.Query().Get("state"))
	assert.Equal(t, "offline", authURL.Query().Get("access_type"))
	assert.Equal(t, "consent", authURL.Query().Get("prompt"))
	assert.Equal(t, "http://app/cb", authURL.Query().Get("redirect_uri"))

	tok, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	info, err := p.UserInfo(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, UserInfo{ExternalID: "g-1", Email: "ana@example.com", Name: "Ana", VerifiedEmail: true}, *info)
}

func TestExchangeRejectedIsUnavailable(t *testing.T) {
	srv := newIdP(t, func(w http.ResponseWriter, r *http.Request) {})
	p := NewGoogleProvider(config.GoogleConfig{ClientID: "cid", ClientSecret: "secret"}, WithEndpoint(testEndpoint(srv)))

	_, err := p.Exchange(context.Background(), "bad-code")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUpstreamUnavailable))
}

func TestUserInfoErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
		code    apperrors.ErrorCode
	}{
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			code:    apperrors.ErrCodeUpstreamUnavailable,
		},
		{
			name: "slow idp",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			timeout: 50 * time.Millisecond,
			code:    apperrors.ErrCodeUpstreamTimeout,
		},
		{
			name:    "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html>")) },
			code:    apperrors.ErrCodeUpstreamUnavailable,
		},
		{
			name:    "profile without email",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"id":"g-1"}`)) },
			code:    apperrors.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newIdP(t, tt.handler)
			opts := []ProviderOption{WithEndpoint(testEndpoint(srv)), WithUserInfoURL(srv.URL + "/userinfo")}
			if tt.timeout > 0 {
				opts = append(opts, WithHTTPClient(&http.Client{Timeout: tt.timeout}))
			}
			p := NewGoogleProvider(config.GoogleConfig{ClientID: "cid", ClientSecret: "secret"}, opts...)

			_, err := p.UserInfo(context.Background(), &oauth2.Token{AccessToken: "idp-access", TokenType: "Bearer"})
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.GetCode(err))
		})
	}
}

func TestMicrosoftProfileEmailFallback(t *testing.T) {
	info, err := decodeMicrosoftUser([]byte(`{"id":"m-1","displayName":"Ana","mail":null,"userPrincipalName":"ana@tenant.example"}`))
	require.NoError(t, err)
	assert.Equal(t, "ana@tenant.example", info.Email)
	assert.True(t, info.VerifiedEmail)

	info, err = decodeMicrosoftUser([]byte(`{"id":"m-1","mail":"ana@example.com","userPrincipalName":"ana@tenant.example"}`))
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", info.Email)

	_, err = decodeMicrosoftUser([]byte(`{"id":"m-1"}`))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestMicrosoftProviderTenantEndpoint(t *testing.T) {
	p := NewMicrosoftProvider(config.MicrosoftConfig{ClientID: "cid", ClientSecret: "secret", TenantID: "contoso"})

	authURL, err := url.Parse(p.AuthCodeURL("st"))
	require.NoError(t, err)
	assert.Equal(t, "login.microsoftonline.com", authURL.Host)
	assert.Contains(t, authURL.Path, "/contoso/")
	assert.Equal(t, ProviderMicrosoft, p.Name())
}
