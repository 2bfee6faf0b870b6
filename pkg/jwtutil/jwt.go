package jwtutil

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoKey is returned when neither a signing key nor a public key is configured.
var ErrNoKey = errors.New("no JWT verification key configured")

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey      string
	PublicKeyPEM    string
	Issuer          string
	ExpirationHours int
}

// Claims are the identity-provider claims the API relies on.
type Claims struct {
	Email     string   `json:"email,omitempty"`
	Username  string   `json:"cognito:username,omitempty"`
	Groups    []string `json:"cognito:groups,omitempty"`
	CompanyID string   `json:"custom:companyId,omitempty"`
	jwt.RegisteredClaims
}

// HasGroup reports whether the claims carry the given group
func (c *Claims) HasGroup(group string) bool {
	for _, g := range c.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// JWTUtil is a utility for JWT token operations
type JWTUtil struct {
	config    *JWTConfig
	publicKey *rsa.PublicKey
}

// NewJWTUtil creates a new JWT utility. An invalid public key PEM is an error.
func NewJWTUtil(config *JWTConfig) (*JWTUtil, error) {
	if config == nil {
		return nil, errors.New("JWT configuration not provided")
	}
	j := &JWTUtil{config: config}
	if config.PublicKeyPEM != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(config.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse JWT public key: %w", err)
		}
		j.publicKey = key
	}
	return j, nil
}

// GenerateToken signs claims with the HMAC key. Used by local tooling and tests;
// production tokens are issued by the identity provider.
func (j *JWTUtil) GenerateToken(subject string, claims Claims) (string, error) {
	if j.config.SigningKey == "" {
		return "", ErrNoKey
	}

	now := time.Now()
	claims.Subject = subject
	claims.IssuedAt = jwt.NewNumericDate(now)
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(time.Duration(j.config.ExpirationHours) * time.Hour))
	}
	if claims.Issuer == "" {
		claims.Issuer = j.config.Issuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.config.SigningKey))
}

// ValidateToken validates and parses the JWT token
func (j *JWTUtil) ValidateToken(tokenString string) (*Claims, error) {
	if j.config.SigningKey == "" && j.publicKey == nil {
		return nil, ErrNoKey
	}

	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if j.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, j.keyFunc, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func (j *JWTUtil) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if j.config.SigningKey == "" {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(j.config.SigningKey), nil
	case *jwt.SigningMethodRSA:
		if j.publicKey == nil {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.publicKey, nil
	default:
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
}
