package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session modes.
const (
	SessionModeCognito = "cognito"
	SessionModeHMAC    = "hmac"
	SessionModeHeader  = "header"
)

// Headers trusted in header mode, set by the gateway after it validated the caller.
const (
	HeaderTenantID = "X-Tenant-Id"
	HeaderUserID   = "X-User-Id"
)

// ErrNoSession is returned when the request carries no usable session claims.
var ErrNoSession = errors.New("missing or invalid session")

// Session holds the two claims every authenticated request carries.
type Session struct {
	TenantID string
	UserID   string
}

// SessionClaims are the custom attributes of an identity pool ID token.
type SessionClaims struct {
	TenantID string `json:"custom:tenantId"`
	UserID   string `json:"custom:userId"`
	TokenUse string `json:"token_use,omitempty"`
	jwt.RegisteredClaims
}

// SessionVerifier extracts the session from a request.
type SessionVerifier interface {
	Verify(ctx context.Context, r *http.Request) (*Session, error)
}

// NewSessionVerifier builds the verifier for mode.
func NewSessionVerifier(mode, secret, region, userPoolID string) (SessionVerifier, error) {
	switch mode {
	case SessionModeCognito:
		if userPoolID == "" {
			return nil, errors.New("cognito session mode requires a user pool id")
		}
		return NewCognitoSessions(region, userPoolID, http.DefaultClient), nil
	case SessionModeHMAC:
		if secret == "" {
			return nil, errors.New("hmac session mode requires a secret")
		}
		return NewHMACSessions(secret), nil
	case SessionModeHeader:
		return HeaderSessions{}, nil
	default:
		return nil, fmt.Errorf("unknown session mode %q", mode)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1], true
	}
	// API gateway authorizers pass the raw ID token.
	return header, true
}

func sessionFromClaims(c *SessionClaims) (*Session, error) {
	if c.TenantID == "" || c.UserID == "" {
		return nil, ErrNoSession
	}
	return &Session{TenantID: c.TenantID, UserID: c.UserID}, nil
}

// HeaderSessions trusts the tenant and user headers.
type HeaderSessions struct{}

// Verify reads the headers.
func (HeaderSessions) Verify(_ context.Context, r *http.Request) (*Session, error) {
	tenantID := r.Header.Get(HeaderTenantID)
	userID := r.Header.Get(HeaderUserID)
	if tenantID == "" || userID == "" {
		return nil, ErrNoSession
	}
	return &Session{TenantID: tenantID, UserID: userID}, nil
}

// HMACSessions verifies HS256 session tokens signed with a shared secret.
type HMACSessions struct {
	secret []byte
}

// NewHMACSessions creates an HMAC session verifier.
func NewHMACSessions(secret string) *HMACSessions {
	return &HMACSessions{secret: []byte(secret)}
}

// Issue signs a session token. Used by local tooling and tests.
func (s *HMACSessions) Issue(tenantID, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		TenantID: tenantID,
		UserID:   userID,
		TokenUse: "id",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify validates the bearer token.
func (s *HMACSessions) Verify(_ context.Context, r *http.Request) (*Session, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return nil, ErrNoSession
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	var claims SessionClaims
	if _, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}); err != nil {
		return nil, ErrNoSession
	}
	return sessionFromClaims(&claims)
}

const (
	jwksRefreshInterval    = time.Hour
	jwksMinRefreshInterval = time.Minute
)

// CognitoSessions verifies RS256 ID tokens issued by a user pool. Signing keys come from the
// pool's JWKS document and are cached. An unknown kid triggers a refresh, at most once per
// jwksMinRefreshInterval.
type CognitoSessions struct {
	issuer  string
	jwksURL string
	client  *http.Client
	now     func() time.Time

	refreshMu sync.Mutex
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewCognitoSessions creates a verifier for the pool.
func NewCognitoSessions(region, userPoolID string, client *http.Client) *CognitoSessions {
	issuer := fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
	return &CognitoSessions{
		issuer:  issuer,
		jwksURL: issuer + "/.well-known/jwks.json",
		client:  client,
		now:     time.Now,
		keys:    make(map[string]*rsa.PublicKey),
	}
}

// Verify validates the ID token.
func (s *CognitoSessions) Verify(ctx context.Context, r *http.Request) (*Session, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return nil, ErrNoSession
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	var claims SessionClaims
	_, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		return s.key(ctx, kid)
	})
	if err != nil || claims.TokenUse != "id" {
		return nil, ErrNoSession
	}
	return sessionFromClaims(&claims)
}

func (s *CognitoSessions) cached(kid string) (*rsa.PublicKey, bool, time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[kid]
	return k, ok, s.now().Sub(s.fetchedAt), !s.fetchedAt.IsZero()
}

func (s *CognitoSessions) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	k, ok, age, fetched := s.cached(kid)
	if ok && age < jwksRefreshInterval {
		return k, nil
	}
	if !ok && fetched && age < jwksMinRefreshInterval {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	// Another request may have refreshed while this one waited.
	k, ok, age, fetched = s.cached(kid)
	if !fetched || age >= jwksMinRefreshInterval {
		if err := s.refresh(ctx); err != nil {
			if ok {
				return k, nil
			}
			return nil, err
		}
		k, ok, _, _ = s.cached(kid)
	}
	if ok {
		return k, nil
	}
	return nil, fmt.Errorf("unknown kid %q", kid)
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (s *CognitoSessions) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("create jwks request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}
	var set struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := rsaKey(k)
		if err != nil {
			return fmt.Errorf("parse jwk %q: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}
	s.mu.Lock()
	s.keys = keys
	s.fetchedAt = s.now()
	s.mu.Unlock()
	return nil
}

func rsaKey(k jwk) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: int(new(big.Int).SetBytes(eb).Int64()),
	}, nil
}
