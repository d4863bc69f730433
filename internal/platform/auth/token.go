package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the fixed lifetime of an issued token. There is no refresh flow.
const TokenTTL = time.Hour

// TokenIssuer signs HS256 tokens carrying the user's id, email and role.
type TokenIssuer struct {
	key      []byte
	issuer   string
	audience string
	now      func() time.Time
}

func NewTokenIssuer(key []byte, issuer, audience string) *TokenIssuer {
	return &TokenIssuer{key: key, issuer: issuer, audience: audience, now: time.Now}
}

// Issue returns a signed token and its expiry.
func (i *TokenIssuer) Issue(userID int64, email, role string) (string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(TokenTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: email,
		Role:  role,
	}
	if i.audience != "" {
		claims.Audience = jwt.ClaimStrings{i.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Config returns the verifier settings matching this issuer.
func (i *TokenIssuer) Config() JWTConfig {
	return JWTConfig{Issuer: i.issuer, Audience: i.audience, SigningKey: i.key}
}
