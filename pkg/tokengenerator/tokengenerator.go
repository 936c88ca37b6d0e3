package tokengenerator

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/tendant/simple-access/pkg/errors"
	"github.com/tendant/simple-access/pkg/hasher"
)

// Default token expiry durations
const (
	DefaultAccessTokenExpiry  = 30 * time.Minute
	DefaultRefreshTokenExpiry = 7 * 24 * time.Hour
	DefaultResetTokenExpiry   = 15 * time.Minute
)

// TokenType discriminates the three kinds of token sharing one signing key.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
	TokenTypeReset   TokenType = "reset_password"
)

func (t TokenType) valid() bool {
	switch t {
	case TokenTypeAccess, TokenTypeRefresh, TokenTypeReset:
		return true
	}
	return false
}

// RoleClaim is the role snapshot embedded in access tokens at issuance.
type RoleClaim struct {
	ID            int64   `json:"id_rol"`
	Name          string  `json:"nombre"`
	Description   *string `json:"descripcion"`
	PublicKey     *string `json:"key_publico"`
	ApplicationID int64   `json:"id_aplicacion"`
}

// Claims struct for JWT claims
type Claims struct {
	TokenType TokenType   `json:"token_type"`
	Roles     []RoleClaim `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// AccountID parses the subject claim.
func (c *Claims) AccountID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// RoleNames returns the names of the embedded roles.
func (c *Claims) RoleNames() []string {
	names := make([]string, 0, len(c.Roles))
	for _, r := range c.Roles {
		names = append(names, r.Name)
	}
	return names
}

// IssuedToken is a freshly signed token with the identifiers stored alongside it.
type IssuedToken struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// JwtTokenGenerator signs and verifies HS256 tokens.
type JwtTokenGenerator struct {
	secret        []byte
	issuer        string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	resetExpiry   time.Duration
	now           func() time.Time
	hasher        hasher.PasswordHasher
}

// Option configures a JwtTokenGenerator
type Option func(*JwtTokenGenerator)

func WithAccessTokenExpiry(d time.Duration) Option {
	return func(g *JwtTokenGenerator) { g.accessExpiry = d }
}

func WithRefreshTokenExpiry(d time.Duration) Option {
	return func(g *JwtTokenGenerator) { g.refreshExpiry = d }
}

func WithResetTokenExpiry(d time.Duration) Option {
	return func(g *JwtTokenGenerator) { g.resetExpiry = d }
}

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(g *JwtTokenGenerator) { g.now = now }
}

// WithHasher sets the hasher used for the at-rest copy of tokens.
func WithHasher(h hasher.PasswordHasher) Option {
	return func(g *JwtTokenGenerator) { g.hasher = h }
}

// NewJwtTokenGenerator creates a new JwtTokenGenerator
func NewJwtTokenGenerator(secret, issuer string, opts ...Option) *JwtTokenGenerator {
	g := &JwtTokenGenerator{
		secret:        []byte(secret),
		issuer:        issuer,
		accessExpiry:  DefaultAccessTokenExpiry,
		refreshExpiry: DefaultRefreshTokenExpiry,
		resetExpiry:   DefaultResetTokenExpiry,
		now:           time.Now,
		hasher:        hasher.NewBcryptHasher(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RefreshTokenExpiry is used for the refresh cookie max-age.
func (g *JwtTokenGenerator) RefreshTokenExpiry() time.Duration {
	return g.refreshExpiry
}

// CreateAccessToken issues a short lived bearer token carrying roles.
func (g *JwtTokenGenerator) CreateAccessToken(accountID int64, roles []RoleClaim) (IssuedToken, error) {
	if roles == nil {
		roles = []RoleClaim{}
	}
	return g.issue(accountID, TokenTypeAccess, g.accessExpiry, roles)
}

// CreateRefreshToken issues a long lived token redeemable once at the refresh endpoint.
func (g *JwtTokenGenerator) CreateRefreshToken(accountID int64) (IssuedToken, error) {
	return g.issue(accountID, TokenTypeRefresh, g.refreshExpiry, nil)
}

// CreateResetToken issues a single-use password reset token.
func (g *JwtTokenGenerator) CreateResetToken(accountID int64) (IssuedToken, error) {
	return g.issue(accountID, TokenTypeReset, g.resetExpiry, nil)
}

func (g *JwtTokenGenerator) issue(accountID int64, tokenType TokenType, expiry time.Duration, roles []RoleClaim) (IssuedToken, error) {
	now := g.now().UTC()
	claims := Claims{
		TokenType: tokenType,
		Roles:     roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.FormatInt(accountID, 10),
			Issuer:    g.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(g.secret)
	if err != nil {
		slog.Error("Failed sign JWT claim string", "token_type", tokenType, "err", err)
		return IssuedToken{}, err
	}
	return IssuedToken{Token: ss, JTI: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify checks signature, issuer, expiry and the presence of every required
// claim. Expired tokens fail with ErrCodeTokenExpired, everything else with
// ErrCodeTokenInvalid.
func (g *JwtTokenGenerator) Verify(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(g.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(g.now),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return g.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeTokenExpired, "token expired")
		}
		slog.Debug("Failed parse JWT string", "err", err)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeTokenInvalid, "invalid token")
	}

	if claims.Subject == "" || claims.ID == "" || claims.IssuedAt == nil || !claims.TokenType.valid() {
		return nil, apperrors.New(apperrors.ErrCodeTokenInvalid, "invalid token")
	}
	if _, err := claims.AccountID(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeTokenInvalid, "invalid token")
	}
	return claims, nil
}

// VerifyType is Verify plus a check of the token_type discriminator.
func (g *JwtTokenGenerator) VerifyType(tokenStr string, want TokenType) (*Claims, error) {
	claims, err := g.Verify(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != want {
		return nil, apperrors.New(apperrors.ErrCodeTokenInvalid, "invalid token")
	}
	return claims, nil
}
