package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// ResetClaims identify the account a password reset link was issued for.
type ResetClaims struct {
	SubDomain string `json:"subDomain"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// ResetTokens signs and verifies password reset tokens.
type ResetTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewResetTokens creates a reset token service.
func NewResetTokens(secret string, ttl time.Duration) *ResetTokens {
	return &ResetTokens{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock overrides the time source.
func (s *ResetTokens) WithClock(now func() time.Time) *ResetTokens {
	s.now = now
	return s
}

// Issue signs a token for the user with the given email in the tenant with the given subdomain.
func (s *ResetTokens) Issue(subDomain, email string) (string, error) {
	now := s.now()
	claims := ResetClaims{
		SubDomain: subDomain,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses a token. It returns ErrTokenExpired for a well-signed token past its expiry
// and ErrInvalidToken for anything else.
func (s *ResetTokens) Verify(tokenString string) (*ResetClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	token, err := parser.ParseWithClaims(tokenString, &ResetClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*ResetClaims)
	if !ok || !token.Valid || claims.SubDomain == "" || claims.Email == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
