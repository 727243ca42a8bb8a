package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the fixed iss claim checked on every decode.
const Issuer = "Bunsho"

// Decode failure modes. The HTTP layer maps all of them to 401 with
// distinct messages.
var (
	ErrTokenMalformed   = errors.New("token could not be decoded")
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenBadIssuer   = errors.New("invalid token issuer")
	ErrTokenBlacklisted = errors.New("token has been invalidated")
)

// Blacklist answers whether a token issued at iat for a subject has been
// revoked by a later logout-all call.
type Blacklist interface {
	IsRevoked(username string, issuedAt int64) bool
}

// Engine issues and verifies the two token kinds. Access and refresh
// tokens are signed with distinct HS256 keys so one can never be
// presented in place of the other.
type Engine struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	blacklist     Blacklist

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine constructs a token engine with the configured secrets and
// lifetimes.
func NewEngine(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, bl Blacklist) *Engine {
	return &Engine{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		blacklist:     bl,
		now:           time.Now,
	}
}

// IssueAccess mints a short-lived access token carrying the user's full
// authorization claims.
func (e *Engine) IssueAccess(username string, locations LocationSet, perms Permissions) (string, error) {
	now := e.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(e.accessTTL)),
		},
		Username:            username,
		AuthorizedLocations: &locations,
		Permissions:         &perms,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(e.accessSecret)
}

// IssueRefresh mints a long-lived refresh token carrying identity only,
// and returns it with its expiry.
func (e *Engine) IssueRefresh(username string) (string, time.Time, error) {
	now := e.now()
	expiry := now.Add(e.refreshTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
		Username: username,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(e.refreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, expiry, nil
}

// DecodeAccess verifies an access token and returns its claims.
func (e *Engine) DecodeAccess(token string) (*Claims, error) {
	return e.decode(token, e.accessSecret)
}

// DecodeRefresh verifies a refresh token and returns its claims.
func (e *Engine) DecodeRefresh(token string) (*Claims, error) {
	return e.decode(token, e.refreshSecret)
}

// decode parses and verifies a token, then applies the blacklist check:
// a cryptographically valid token is still rejected when its subject
// revoked all sessions at or after the token's issue time.
func (e *Engine) decode(token string, secret []byte) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(e.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, ErrTokenMalformed
		}
	}
	if claims.RegisteredClaims.Issuer != Issuer {
		return nil, ErrTokenBadIssuer
	}
	if e.blacklist != nil && e.blacklist.IsRevoked(claims.Username, claims.IssuedAtUnix()) {
		return nil, ErrTokenBlacklisted
	}
	return &claims, nil
}
