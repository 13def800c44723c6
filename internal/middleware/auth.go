// Package middleware provides the request pipeline pieces shared by every
// route: token handling, structured logging, rate limiting, tracing and metrics.
package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gatehouse/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenConfig carries the HMAC secret and the expected issuer and audience.
type TokenConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// TokenConfigFrom extracts token settings from the application config.
func TokenConfigFrom(c *config.Config) TokenConfig {
	return TokenConfig{Secret: c.JWTSecret, Issuer: c.JWTIssuer, Audience: c.JWTAudience}
}

// AccessClaims is what the API needs from a verified token.
type AccessClaims struct {
	UserID    uint
	JTI       string
	ExpiresAt time.Time
}

var (
	ErrMissingToken = errors.New("authorization header required")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", fmt.Errorf("invalid authorization header format: %w", ErrInvalidToken)
	}
	return parts[1], nil
}

// IssueAccessToken signs an HS256 token for userID.
func IssueAccessToken(tc TokenConfig, userID uint, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"jti": uuid.NewString(),
	}
	if tc.Issuer != "" {
		claims["iss"] = tc.Issuer
	}
	if tc.Audience != "" {
		claims["aud"] = tc.Audience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(tc.Secret))
}

// ParseAccessToken verifies signature, expiry, issuer and audience and
// returns the subject.
func ParseAccessToken(tc TokenConfig, raw string) (AccessClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if tc.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(tc.Issuer))
	}
	if tc.Audience != "" {
		opts = append(opts, jwt.WithAudience(tc.Audience))
	}

	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(tc.Secret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return AccessClaims{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return AccessClaims{}, ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return AccessClaims{}, fmt.Errorf("missing subject: %w", ErrInvalidToken)
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return AccessClaims{}, fmt.Errorf("invalid subject: %w", ErrInvalidToken)
	}

	out := AccessClaims{UserID: uint(userID)}
	if jti, ok := claims["jti"].(string); ok {
		out.JTI = jti
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}
