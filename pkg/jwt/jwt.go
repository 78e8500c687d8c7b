package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Claims are the access-token claims issued by the auth provider.
type Claims struct {
	gojwt.RegisteredClaims
	Email        string         `json:"email,omitempty"`
	Role         string         `json:"role,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// Expiry returns the exp claim, or the zero time when absent.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Service signs and verifies HS256 tokens with the project secret.
// A Service without a secret can only read tokens, never trust them.
type Service struct {
	signingKey []byte
	parser     *gojwt.Parser
}

// New creates a verifying service.
func New(signingKey []byte) (*Service, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}

	return &Service{
		signingKey: signingKey,
		parser:     gojwt.NewParser(gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()})),
	}, nil
}

// NewFromString is New for string secrets.
func NewFromString(signingKey string) (*Service, error) {
	return New([]byte(signingKey))
}

// Generate signs claims with HS256.
func (s *Service) Generate(claims *Claims) (string, error) {
	if claims == nil {
		return "", ErrMissingClaims
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}
	return token, nil
}

// Parse verifies the signature and registered claims of token.
func (s *Service) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(token, claims, func(t *gojwt.Token) (any, error) {
		return s.signingKey, nil
	})
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, gojwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case errors.Is(err, gojwt.ErrTokenSignatureInvalid):
		return nil, ErrInvalidSignature
	case errors.Is(err, gojwt.ErrTokenUnverifiable):
		return nil, ErrUnexpectedSigningMethod
	default:
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
}

// ParseUnverified decodes claims without checking the signature. Clients
// use it to read the expiry of a token they received over TLS from the
// issuer; it must never gate server-side access.
func ParseUnverified(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := gojwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}
