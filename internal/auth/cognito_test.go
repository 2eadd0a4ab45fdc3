package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jwksServer struct {
	key     *rsa.PrivateKey
	kid     string
	fetches atomic.Int32
	srv     *httptest.Server
}

func newJWKSServer(t *testing.T) *jwksServer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	js := &jwksServer{key: key, kid: "kid-1"}
	js.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		js.fetches.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []jwk{{
			Kty: "RSA",
			Kid: js.kid,
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	t.Cleanup(js.srv.Close)
	return js
}

func (js *jwksServer) sign(t *testing.T, kid string, claims SessionClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	raw, err := tok.SignedString(js.key)
	require.NoError(t, err)
	return raw
}

func TestCognitoSessions(t *testing.T) {
	js := newJWKSServer(t)
	sessions := NewCognitoSessions("us-east-1", "us-east-1_pool", js.srv.Client())
	sessions.jwksURL = js.srv.URL

	claims := func(use string) SessionClaims {
		return SessionClaims{
			TenantID: "t1",
			UserID:   "u1",
			TokenUse: use,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    sessions.issuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
	}
	verify := func(raw string) (*Session, error) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", raw)
		return sessions.Verify(context.Background(), req)
	}

	s, err := verify(js.sign(t, js.kid, claims("id")))
	require.NoError(t, err)
	assert.Equal(t, &Session{TenantID: "t1", UserID: "u1"}, s)

	_, err = verify(js.sign(t, js.kid, claims("id")))
	require.NoError(t, err)
	assert.Equal(t, int32(1), js.fetches.Load(), "keys are cached")

	_, err = verify(js.sign(t, js.kid, claims("access")))
	assert.ErrorIs(t, err, ErrNoSession)

	wrongIssuer := claims("id")
	wrongIssuer.Issuer = "https://elsewhere"
	_, err = verify(js.sign(t, js.kid, wrongIssuer))
	assert.ErrorIs(t, err, ErrNoSession)

	for i := 0; i < 5; i++ {
		_, err = verify(js.sign(t, "kid-unknown", claims("id")))
		assert.ErrorIs(t, err, ErrNoSession)
	}
	assert.Equal(t, int32(1), js.fetches.Load(), "unknown kids do not refetch within the minimum interval")
}

func TestCognitoSessions_KeyRotation(t *testing.T) {
	js := newJWKSServer(t)
	sessions := NewCognitoSessions("us-east-1", "us-east-1_pool", js.srv.Client())
	sessions.jwksURL = js.srv.URL
	clock := time.Now()
	sessions.now = func() time.Time { return clock }

	verify := func(kid string) error {
		raw := js.sign(t, kid, SessionClaims{
			TenantID: "t1",
			UserID:   "u1",
			TokenUse: "id",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    sessions.issuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+raw)
		_, err := sessions.Verify(context.Background(), req)
		return err
	}

	require.NoError(t, verify("kid-1"))
	js.kid = "kid-2"
	assert.ErrorIs(t, verify("kid-2"), ErrNoSession)
	assert.Equal(t, int32(1), js.fetches.Load())

	clock = clock.Add(2 * time.Minute)
	require.NoError(t, verify("kid-2"), "rotated key is picked up once the interval passed")
	assert.Equal(t, int32(2), js.fetches.Load())

	assert.ErrorIs(t, verify("kid-3"), ErrNoSession)
	assert.Equal(t, int32(2), js.fetches.Load())
}
