package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frahmantamala/admin-dashboard/internal/core/user"
)

const DefaultTokenTTL = 24 * time.Hour

// Claims carry identity only. Authorization is always recomputed from the
// stored user, so a stale role in a token grants nothing.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type TokenCodec interface {
	Encode(u *user.User) (string, time.Time, error)
	Decode(token string) *Claims
}

type JWTCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

type CodecOption func(*JWTCodec)

func WithCodecClock(now func() time.Time) CodecOption {
	return func(c *JWTCodec) {
		c.now = now
	}
}

func NewJWTCodec(secret, issuer string, ttl time.Duration, opts ...CodecOption) *JWTCodec {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	c := &JWTCodec{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *JWTCodec) TTL() time.Duration {
	return c.ttl
}

func (c *JWTCodec) Encode(u *user.User) (string, time.Time, error) {
	now := c.now().UTC()
	expiresAt := now.Add(c.ttl)

	claims := &Claims{
		UserID:   u.UserID,
		Username: u.Username,
		Role:     string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.UserID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Decode returns nil for anything that is not a well formed, unexpired HS256
// token signed with this codec's secret.
func (c *JWTCodec) Decode(tokenString string) *Claims {
	if tokenString == "" {
		return nil
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	claims := &Claims{}
	token, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil
	}
	return claims
}
