package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
)

type Role string

const (
	RoleMember    Role = "member"
	RoleLibrarian Role = "librarian"
	RoleAdmin     Role = "admin"
)

type Config struct {
	Secret   string        `envconfig:"AUTH_SECRET" required:"true" json:"-"`
	TokenTTL time.Duration `envconfig:"AUTH_TOKEN_TTL" default:"12h"`
}

type Profile struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

type Claims struct {
	jwt.RegisteredClaims
	Profile Profile `json:"profile"`
}

var (
	ErrInvalidToken = errors.New("invalid token")
	// ErrEmptySecret is returned for an empty HMAC key, which would verify any forged token.
	ErrEmptySecret = errors.New("empty signing secret")
)

type ctxKey struct{}

func SetAuthContext(ctx context.Context, username string, role Role) context.Context {
	return context.WithValue(ctx, ctxKey{}, Profile{Username: username, Role: role})
}

func FromContext(ctx context.Context) (Profile, bool) {
	p, ok := ctx.Value(ctxKey{}).(Profile)
	return p, ok
}

// HasRole reports whether the caller holds one of roles. Admin passes every check.
func HasRole(ctx context.Context, roles ...Role) bool {
	p, ok := FromContext(ctx)
	if !ok {
		return false
	}
	if p.Role == RoleAdmin {
		return true
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

func IsAdmin(ctx context.Context) bool {
	p, ok := FromContext(ctx)
	return ok && p.Role == RoleAdmin
}

func NewToken(secret []byte, profile Profile, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profile.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Profile: profile,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func ParseToken(secret []byte, tokenStr string) (*Claims, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Profile.Username == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
