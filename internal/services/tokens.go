package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/animx/internal/shared"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the login token claims.
type Claims struct {
	VIP bool `json:"vip"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 login tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenService creates a token service; ttl defaults to 24 hours.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, issuer: "animx", now: time.Now}
}

// Issue signs a token for username.
func (s *TokenService) Issue(username string, vip bool) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("%w: jwt secret", shared.ErrMissingConfig)
	}

	now := s.now()
	claims := &Claims{
		VIP: vip,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses tokenString and returns its claims.
//
// Every failure, including expiry, is reported as [shared.ErrNotAuthenticated].
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: missing token", shared.ErrNotAuthenticated)
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", shared.ErrNotAuthenticated)
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: invalid token", shared.ErrNotAuthenticated)
	}
	return claims, nil
}
