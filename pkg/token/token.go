// Package token issues and verifies the signed JWT pair used for
// authentication: a short-lived access token carrying a few profile
// claims and a long-lived refresh token carrying only the subject id.
// Access and refresh tokens are signed with independent secrets.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMalformed = errors.New("malformed token")
	ErrExpired   = errors.New("token expired")
	ErrSignature = errors.New("invalid token signature")
)

// Config carries the signing material and lifetimes for both token
// kinds. It is built once at startup and handed to New; the codec has
// no other state.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Claims are the decoded contents of either token kind. Refresh tokens
// carry only UserID; the profile fields stay empty.
type Claims struct {
	jwt.RegisteredClaims
	UserID   uint   `json:"uid"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"fullName,omitempty"`
}

// Profile is the non-sensitive claim set embedded in access tokens.
type Profile struct {
	Username string
	Email    string
	FullName string
}

type Codec struct {
	cfg Config
}

func New(cfg Config) *Codec {
	return &Codec{cfg: cfg}
}

// IssueAccess signs a short-lived access token for the given subject.
func (c *Codec) IssueAccess(userID uint, p Profile) (string, error) {
	return c.sign(userID, p, c.cfg.AccessTTL, c.cfg.AccessSecret)
}

// IssueRefresh signs a long-lived refresh token carrying only the
// subject id.
func (c *Codec) IssueRefresh(userID uint) (string, error) {
	return c.sign(userID, Profile{}, c.cfg.RefreshTTL, c.cfg.RefreshSecret)
}

func (c *Codec) sign(userID uint, p Profile, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			// A random jti makes every issued token distinct, even two
			// issued for the same subject within the same second. Rotation
			// and revocation compare token bytes, so uniqueness is load-bearing.
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:   userID,
		Username: p.Username,
		Email:    p.Email,
		FullName: p.FullName,
	})
	return tok.SignedString(secret)
}

// VerifyAccess parses and validates an access token.
func (c *Codec) VerifyAccess(tokenString string) (*Claims, error) {
	return verify(tokenString, c.cfg.AccessSecret)
}

// VerifyRefresh parses and validates a refresh token.
func (c *Codec) VerifyRefresh(tokenString string) (*Claims, error) {
	return verify(tokenString, c.cfg.RefreshSecret)
}

func verify(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrSignature
		default:
			return nil, ErrMalformed
		}
	}
	if !tok.Valid {
		return nil, ErrMalformed
	}
	return claims, nil
}
