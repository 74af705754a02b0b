package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const testSecret = "test-secret-key-for-unit-tests"

func claimsFor(issuer string, ttl time.Duration, roles ...string) Claims {
	now := time.Now()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "batch-runner",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles: roles,
	}
}

func signHS256(t *testing.T, c Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func newHMACVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(JWTConfig{Secret: testSecret, Issuer: "gateway"})
	require.NoError(t, err)
	return v
}

func TestVerifier_HMAC(t *testing.T) {
	v := newHMACVerifier(t)
	assert.False(t, v.UsesRSA())

	claims, err := v.Verify(signHS256(t, claimsFor("gateway", time.Minute, RoleImporter)))
	require.NoError(t, err)
	assert.Equal(t, "batch-runner", claims.Subject)
	assert.True(t, claims.HasAnyRole(RoleAdmin, RoleImporter))
	assert.False(t, claims.HasAnyRole(RoleAdmin))

	for name, token := range map[string]string{
		"expired":      signHS256(t, claimsFor("gateway", -time.Minute)),
		"wrong issuer": signHS256(t, claimsFor("someone-else", time.Minute)),
		"no expiry":    signHS256(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "gateway"}}),
		"garbage":      "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.Error(t, err)
		})
	}
}

func TestVerifier_Leeway(t *testing.T) {
	v, err := NewVerifier(JWTConfig{Secret: testSecret, Leeway: time.Minute})
	require.NoError(t, err)

	_, err = v.Verify(signHS256(t, claimsFor("", -10*time.Second)))
	assert.NoError(t, err)
}

func TestVerifier_RSA(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	path := filepath.Join(t.TempDir(), "jwt.pub")
	require.NoError(t, os.WriteFile(path, pubPEM, 0o600))
	loaded, err := LoadKeyFromFile(path)
	require.NoError(t, err)

	v, err := NewVerifier(JWTConfig{PublicKeyPEM: string(loaded), Secret: testSecret, Issuer: "gateway"})
	require.NoError(t, err)
	assert.True(t, v.UsesRSA())

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claimsFor("gateway", time.Minute, RoleAdmin)).SignedString(key)
	require.NoError(t, err)
	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.True(t, claims.HasAnyRole(RoleAdmin))

	// An HMAC token signed with the configured secret must not pass once an RSA key is set.
	_, err = v.Verify(signHS256(t, claimsFor("gateway", time.Minute, RoleAdmin)))
	assert.Error(t, err)
}

func TestNewVerifier_Errors(t *testing.T) {
	_, err := NewVerifier(JWTConfig{Issuer: "gateway"})
	assert.ErrorIs(t, err, ErrNoKeyMaterial)

	_, err = NewVerifier(JWTConfig{PublicKeyPEM: "not pem"})
	assert.Error(t, err)

	_, err = LoadKeyFromFile(filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)
}

func TestAuthorize(t *testing.T) {
	v := newHMACVerifier(t)
	interceptor := Authorize(v, []string{"/grpc.health.v1.Health/Check"}, RoleImporter, RoleAdmin)
	info := &grpc.UnaryServerInfo{FullMethod: "/contas.v1.ImportService/ImportAccounts"}

	var seen *Claims
	handler := func(ctx context.Context, _ any) (any, error) {
		seen, _ = ClaimsFromContext(ctx)
		return "ok", nil
	}
	withAuth := func(value string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", value))
	}

	for _, tc := range []struct {
		name string
		ctx  context.Context
		want codes.Code
	}{
		{"missing metadata", context.Background(), codes.Unauthenticated},
		{"missing header", metadata.NewIncomingContext(context.Background(), metadata.MD{}), codes.Unauthenticated},
		{"not a bearer token", withAuth("Basic abc"), codes.Unauthenticated},
		{"bad token", withAuth("Bearer nope"), codes.Unauthenticated},
		{"auditor denied", withAuth("Bearer " + signHS256(t, claimsFor("gateway", time.Minute, RoleAuditor))), codes.PermissionDenied},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := interceptor(tc.ctx, nil, info, handler)
			assert.Equal(t, tc.want, status.Code(err))
		})
	}

	t.Run("importer passes with claims attached", func(t *testing.T) {
		seen = nil
		resp, err := interceptor(withAuth("bearer "+signHS256(t, claimsFor("gateway", time.Minute, RoleImporter))), nil, info, handler)
		require.NoError(t, err)
		assert.Equal(t, "ok", resp)
		require.NotNil(t, seen)
		assert.Equal(t, "batch-runner", seen.Subject)
	})

	t.Run("public methods skip checks", func(t *testing.T) {
		resp, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, handler)
		require.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})
}
