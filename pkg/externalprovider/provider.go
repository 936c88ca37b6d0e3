package externalprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/tendant/simple-access/pkg/config"
	apperrors "github.com/tendant/simple-access/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

const (
	ProviderGoogle    = "google"
	ProviderMicrosoft = "microsoft"

	googleUserInfoURL    = "https://www.googleapis.com/oauth2/v2/userinfo"
	microsoftUserInfoURL = "https://graph.microsoft.com/v1.0/me"

	defaultUpstreamTimeout = 10 * time.Second
	maxUserInfoBytes       = 1 << 20
)

// UserInfo is the identity asserted by an IdP, normalized across providers.
type UserInfo struct {
	ExternalID    string
	Email         string
	Name          string
	VerifiedEmail bool
}

// Provider runs the authorization code flow against one IdP.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	UserInfo(ctx context.Context, tok *oauth2.Token) (*UserInfo, error)
}

// OAuthProvider is a Provider backed by golang.org/x/oauth2.
type OAuthProvider struct {
	name        string
	conf        *oauth2.Config
	authOptions []oauth2.AuthCodeOption
	userInfoURL string
	decode      func(body []byte) (*UserInfo, error)
	httpClient  *http.Client
}

type ProviderOption func(*OAuthProvider)

// WithHTTPClient sets the client used for both the token exchange and the
// profile fetch. Its Timeout bounds each call.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *OAuthProvider) {
		p.httpClient = client
	}
}

// WithEndpoint overrides the IdP authorization and token URLs.
func WithEndpoint(endpoint oauth2.Endpoint) ProviderOption {
	return func(p *OAuthProvider) {
		p.conf.Endpoint = endpoint
	}
}

func WithUserInfoURL(url string) ProviderOption {
	return func(p *OAuthProvider) {
		p.userInfoURL = url
	}
}

func newOAuthProvider(name string, conf *oauth2.Config, userInfoURL string, decode func([]byte) (*UserInfo, error), opts []ProviderOption) *OAuthProvider {
	p := &OAuthProvider{
		name:        name,
		conf:        conf,
		userInfoURL: userInfoURL,
		decode:      decode,
		httpClient:  &http.Client{Timeout: defaultUpstreamTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewGoogleProvider builds the Google provider from its client settings.
func NewGoogleProvider(cfg config.GoogleConfig, opts ...ProviderOption) *OAuthProvider {
	p := newOAuthProvider(ProviderGoogle, &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{"email", "profile"},
		Endpoint:     google.Endpoint,
	}, googleUserInfoURL, decodeGoogleUser, opts)
	p.authOptions = []oauth2.AuthCodeOption{oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")}
	return p
}

// NewMicrosoftProvider builds the Entra ID provider for the configured tenant.
func NewMicrosoftProvider(cfg config.MicrosoftConfig, opts ...ProviderOption) *OAuthProvider {
	return newOAuthProvider(ProviderMicrosoft, &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{"openid", "profile", "email", "User.Read"},
		Endpoint:     microsoft.AzureADEndpoint(cfg.TenantID),
	}, microsoftUserInfoURL, decodeMicrosoftUser, opts)
}

func (p *OAuthProvider) Name() string { return p.name }

func (p *OAuthProvider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state, p.authOptions...)
}

func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return nil, upstreamError(p.name, err)
	}
	return tok, nil
}

func (p *OAuthProvider) UserInfo(ctx context.Context, tok *oauth2.Token) (*UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build userinfo request: %w", err)
	}
	tok.SetAuthHeader(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, upstreamError(p.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return nil, upstreamError(p.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamError(p.name, fmt.Errorf("userinfo returned status %d", resp.StatusCode))
	}
	return p.decode(body)
}

func upstreamError(provider string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.Wrap(err, apperrors.ErrCodeUpstreamTimeout, provider+" did not respond in time")
	}
	return apperrors.Wrap(err, apperrors.ErrCodeUpstreamUnavailable, provider+" is unavailable")
}

type googleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func decodeGoogleUser(body []byte) (*UserInfo, error) {
	var u googleUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUpstreamUnavailable, "google returned an unreadable profile")
	}
	if u.ID == "" || u.Email == "" {
		return nil, apperrors.Validation("google profile has no id or email")
	}
	return &UserInfo{ExternalID: u.ID, Email: u.Email, Name: u.Name, VerifiedEmail: u.VerifiedEmail}, nil
}

type microsoftUser struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// Graph has no verified flag. The tenant vouches for mail and
// userPrincipalName, so either one counts as verified.
func decodeMicrosoftUser(body []byte) (*UserInfo, error) {
	var u microsoftUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUpstreamUnavailable, "microsoft returned an unreadable profile")
	}
	email := u.Mail
	if email == "" {
		email = u.UserPrincipalName
	}
	if u.ID == "" || email == "" {
		return nil, apperrors.Validation("microsoft profile has no id or email")
	}
	return &UserInfo{ExternalID: u.ID, Email: email, Name: u.DisplayName, VerifiedEmail: true}, nil
}
