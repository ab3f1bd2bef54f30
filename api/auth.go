package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"taskboard-api/domain"
)

// SessionTTL bounds both the token expiry claim and the cookie max-age.
const SessionTTL = 7 * 24 * time.Hour

const defaultKeyCacheTTL = 15 * time.Minute

var (
	errMissingToken = errors.New("missing session token")
	errBadToken     = errors.New("invalid session token")
)

// Claim is the identity recovered from a validated session token.
type Claim struct {
	UserID  string
	Email   string
	TokenID string
	// ExpiresAt is the token expiry; logout revokes the token for exactly
	// this remaining window.
	ExpiresAt time.Time
}

// Auth issues and validates session tokens. Self-issued tokens are HS256
// signed with the configured secret. When a JWKS is configured, RS256 tokens
// minted by an external identity provider are accepted as well.
type Auth struct {
	secret   []byte
	jwks     *keyfunc.JWKS
	audience string
	issuer   string
	revoker  Revoker

	hsParser    *jwt.Parser
	rsParser    *jwt.Parser
	keyCache    sync.Map
	keyCacheTTL time.Duration
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

// NewAuth creates an Auth signing with secret. jwks, audience and issuer are
// optional and enable the external-provider validation path; revoker is
// optional and enables logout revocation.
func NewAuth(secret []byte, jwks *keyfunc.JWKS, audience, issuer string, revoker Revoker) *Auth {
	if len(secret) == 0 {
		panic("api.NewAuth: session secret must not be empty")
	}
	return &Auth{
		secret:      secret,
		jwks:        jwks,
		audience:    audience,
		issuer:      issuer,
		revoker:     revoker,
		hsParser:    jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
		rsParser:    jwt.NewParser(jwt.WithValidMethods([]string{"RS256"})),
		keyCacheTTL: defaultKeyCacheTTL,
	}
}

// Issue signs a session token for the given user.
func (a *Auth) Issue(user domain.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(SessionTTL).Unix(),
	})
	return token.SignedString(a.secret)
}

// ClaimFromToken verifies the token's signature, expiry and revocation state
// and returns the embedded identity. Every protected handler goes through
// here; nothing downstream trusts a client-supplied identity field.
func (a *Auth) ClaimFromToken(ctx context.Context, token []byte) (Claim, error) {
	if len(token) == 0 {
		return Claim{}, errMissingToken
	}
	tokenStr := readOnlyString(token)

	parsed, err := a.hsParser.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return a.secret, nil
	})
	if err != nil && a.jwks != nil {
		parsed, err = a.rsParser.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			return a.keyForToken(t)
		})
	}
	if err != nil {
		return Claim{}, errBadToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claim{}, errBadToken
	}

	now := time.Now().Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return Claim{}, errBadToken
	}
	if !claims.VerifyNotBefore(now, false) {
		return Claim{}, errBadToken
	}
	if a.audience != "" && !claims.VerifyAudience(a.audience, false) {
		return Claim{}, errBadToken
	}
	if a.issuer != "" && !claims.VerifyIssuer(a.issuer, false) {
		return Claim{}, errBadToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Claim{}, errBadToken
	}
	claim := Claim{UserID: sub}
	if email, ok := claims["email"].(string); ok {
		claim.Email = email
	}
	if jti, ok := claims["jti"].(string); ok {
		claim.TokenID = jti
	}
	if exp, ok := claims["exp"].(float64); ok {
		claim.ExpiresAt = time.Unix(int64(exp), 0)
	}

	if a.revoker != nil && claim.TokenID != "" {
		revoked, err := a.revoker.IsRevoked(ctx, claim.TokenID)
		if err != nil {
			return Claim{}, err
		}
		if revoked {
			return Claim{}, errBadToken
		}
	}
	return claim, nil
}

// Revoke marks the token id as dead for the token's remaining lifetime.
func (a *Auth) Revoke(ctx context.Context, claim Claim) error {
	if a.revoker == nil || claim.TokenID == "" {
		return nil
	}
	ttl := time.Until(claim.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return a.revoker.Revoke(ctx, claim.TokenID, ttl)
}

func (a *Auth) keyForToken(token *jwt.Token) (any, error) {
	if a.jwks == nil {
		return nil, errors.New("jwks not configured")
	}

	kid, _ := token.Header["kid"].(string)
	if kid != "" && a.keyCacheTTL > 0 {
		if cached, ok := a.keyCache.Load(kid); ok {
			entry := cached.(cachedKey)
			if time.Now().Before(entry.expiresAt) {
				return entry.key, nil
			}
			a.keyCache.Delete(kid)
		}
	}

	key, err := a.jwks.Keyfunc(token)
	if err != nil {
		return nil, err
	}

	if kid != "" && a.keyCacheTTL > 0 {
		a.keyCache.Store(kid, cachedKey{key: key, expiresAt: time.Now().Add(a.keyCacheTTL)})
	}
	return key, nil
}
