package api

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/redis/go-redis/v9"

	"taskboard-api/domain"
)

var testUser = domain.User{ID: "u1", Email: "alice@example.com", Name: "Alice"}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	auth := NewAuth([]byte("secret"), nil, "", "", nil)
	token, err := auth.Issue(testUser)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claim, err := auth.ClaimFromToken(context.Background(), []byte(token))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claim.UserID != "u1" || claim.Email != "alice@example.com" {
		t.Fatalf("unexpected claim: %+v", claim)
	}
	if claim.TokenID == "" {
		t.Fatal("expected a token id for revocation")
	}
	remaining := time.Until(claim.ExpiresAt)
	if remaining < SessionTTL-time.Minute || remaining > SessionTTL {
		t.Fatalf("expected ~7 day expiry, got %v", remaining)
	}
}

func TestValidateRejectsMissingAndGarbage(t *testing.T) {
	auth := NewAuth([]byte("secret"), nil, "", "", nil)
	if _, err := auth.ClaimFromToken(context.Background(), nil); err == nil {
		t.Fatal("empty token must fail")
	}
	if _, err := auth.ClaimFromToken(context.Background(), []byte("not.a.jwt")); err == nil {
		t.Fatal("garbage token must fail")
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer := NewAuth([]byte("secret-a"), nil, "", "", nil)
	verifier := NewAuth([]byte("secret-b"), nil, "", "", nil)
	token, err := issuer.Issue(testUser)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.ClaimFromToken(context.Background(), []byte(token)); err == nil {
		t.Fatal("token signed with another secret must fail")
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"iat": time.Now().Add(-8 * 24 * time.Hour).Unix(),
		"exp": time.Now().Add(-24 * time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	auth := NewAuth(secret, nil, "", "", nil)
	if _, err := auth.ClaimFromToken(context.Background(), []byte(signed)); err == nil {
		t.Fatal("expired token must fail")
	}
}

func TestValidateRejectsMissingExpiry(t *testing.T) {
	secret := []byte("secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	auth := NewAuth(secret, nil, "", "", nil)
	if _, err := auth.ClaimFromToken(context.Background(), []byte(signed)); err == nil {
		t.Fatal("token without expiry must fail")
	}
}

func newRedisRevoker(t *testing.T) *RedisRevoker {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRevoker(client)
}

func TestRevokedTokenIsRejected(t *testing.T) {
	revoker := newRedisRevoker(t)
	auth := NewAuth([]byte("secret"), nil, "", "", revoker)

	token, err := auth.Issue(testUser)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	ctx := context.Background()
	claim, err := auth.ClaimFromToken(ctx, []byte(token))
	if err != nil {
		t.Fatalf("validate before revocation: %v", err)
	}

	if err := auth.Revoke(ctx, claim); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := auth.ClaimFromToken(ctx, []byte(token)); err == nil {
		t.Fatal("revoked token must fail validation")
	}
}

func TestRevokeExpiredClaimIsNoop(t *testing.T) {
	revoker := newRedisRevoker(t)
	auth := NewAuth([]byte("secret"), nil, "", "", revoker)
	claim := Claim{TokenID: "jti-old", ExpiresAt: time.Now().Add(-time.Hour)}
	if err := auth.Revoke(context.Background(), claim); err != nil {
		t.Fatalf("revoking an already expired claim should not error: %v", err)
	}
	revoked, err := revoker.IsRevoked(context.Background(), "jti-old")
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if revoked {
		t.Fatal("expired claims need no revocation entry")
	}
}
