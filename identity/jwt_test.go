package identity

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
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func testClaims(sub string, ttl time.Duration) *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Audience:  jwt.ClaimStrings{AuthenticatedAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email: "editor@msc.edu.vn",
		Role:  "authenticated",
	}
}

func signHS256(t *testing.T, claims jwt.Claims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestJWTVerifier_HS256(t *testing.T) {
	ctx := context.Background()
	verifier := NewJWTVerifier(JWTConfig{Secret: testSecret})
	sub := uuid.New().String()

	t.Run("valid token", func(t *testing.T) {
		user, err := verifier.GetUser(ctx, signHS256(t, testClaims(sub, time.Hour), testSecret))
		require.NoError(t, err)
		assert.Equal(t, sub, user.ID)
		assert.Equal(t, "editor@msc.edu.vn", user.Email)
	})

	t.Run("expired token", func(t *testing.T) {
		_, err := verifier.GetUser(ctx, signHS256(t, testClaims(sub, -time.Minute), testSecret))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := verifier.GetUser(ctx, signHS256(t, testClaims(sub, time.Hour), "another-secret-another-secret-another"))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		claims := testClaims(sub, time.Hour)
		claims.Audience = jwt.ClaimStrings{"anon"}
		_, err := verifier.GetUser(ctx, signHS256(t, claims, testSecret))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing expiry", func(t *testing.T) {
		claims := testClaims(sub, time.Hour)
		claims.ExpiresAt = nil
		_, err := verifier.GetUser(ctx, signHS256(t, claims, testSecret))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing subject", func(t *testing.T) {
		_, err := verifier.GetUser(ctx, signHS256(t, testClaims("", time.Hour), testSecret))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := verifier.GetUser(ctx, "not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned token rejected", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, testClaims(sub, time.Hour)).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = verifier.GetUser(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("no secret configured", func(t *testing.T) {
		_, err := NewJWTVerifier(JWTConfig{}).GetUser(ctx, signHS256(t, testClaims(sub, time.Hour), testSecret))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func newJWKSServer(t *testing.T, pub *rsa.PublicKey, kid string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		jwks := JWKS{Keys: []JWK{{
			Kid: kid,
			Kty: "RSA",
			Alg: "RS256",
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestJWTVerifier_RS256(t *testing.T) {
	ctx := context.Background()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var hits int32
	srv := newJWKSServer(t, &privateKey.PublicKey, "key-1", &hits)
	verifier := NewJWTVerifier(JWTConfig{JWKSURL: srv.URL})
	sub := uuid.New().String()

	sign := func(kid string) string {
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, testClaims(sub, time.Hour))
		token.Header["kid"] = kid
		s, err := token.SignedString(privateKey)
		require.NoError(t, err)
		return s
	}

	t.Run("valid token and key cache", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			user, err := verifier.GetUser(ctx, sign("key-1"))
			require.NoError(t, err)
			assert.Equal(t, sub, user.ID)
		}
		assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	})

	t.Run("unknown kid", func(t *testing.T) {
		verifier.InvalidateCache()
		_, err := verifier.GetUser(ctx, sign("key-2"))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("no JWKS url", func(t *testing.T) {
		_, err := NewJWTVerifier(JWTConfig{Secret: testSecret}).GetUser(ctx, sign("key-1"))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestJWTVerifier_FetchJWKSFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewJWTVerifier(JWTConfig{JWKSURL: srv.URL}).FetchJWKS(context.Background())
	assert.ErrorIs(t, err, ErrJWKSFetchFailed)
}

func TestJWKToRSAPublicKey(t *testing.T) {
	_, err := jwkToRSAPublicKey(&JWK{Kty: "EC"})
	assert.Error(t, err)

	_, err = jwkToRSAPublicKey(&JWK{Kty: "RSA", N: "!!", E: "AQAB"})
	assert.Error(t, err)

	key, err := jwkToRSAPublicKey(&JWK{Kty: "RSA", N: "AQAB", E: "AQAB"})
	require.NoError(t, err)
	assert.Equal(t, 65537, key.E)
}
