package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sensor-dashboard/internal/nonce"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidNonce     = errors.New("invalid nonce")
	ErrNonValidToken    = errors.New("token did not pass validation")
	ErrInvalidClaimType = errors.New("invalid claim type")
	ErrMissingSecret    = errors.New("signing secret is empty")
)

var tokenSignatureAlg = jwt.SigningMethodHS256

// Nonces outlive their token slightly to allow for clock skew.
const nonceSkew = 10 * time.Second

// SessionClaim identifies a logged-in user. The registered ID is a nonce;
// the session is valid only while the nonce is held in the store.
type SessionClaim struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	nonces nonce.NonceStoreInterface
}

func NewIssuer(secret string, ttl time.Duration, nonces nonce.NonceStoreInterface) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		nonces: nonces,
	}
}

func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue creates a signed session token for userID.
func (i *Issuer) Issue(ctx context.Context, userID string) (string, *SessionClaim, error) {
	if i.ttl <= 0 {
		return "", nil, fmt.Errorf("invalid token TTL %s", i.ttl)
	}

	id, err := nonce.New(ctx, i.nonces, i.ttl+nonceSkew)
	if err != nil {
		return "", nil, err
	}

	now := time.Now().UTC()
	claim := &SessionClaim{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token, err := i.sign(claim)
	if err != nil {
		return "", nil, err
	}
	return token, claim, nil
}

// Verify decodes a session token and checks its nonce has not been revoked.
func (i *Issuer) Verify(ctx context.Context, token string) (*SessionClaim, error) {
	claim, err := decodeJWT(i.secret, token, &SessionClaim{})
	if err != nil {
		return nil, err
	}
	if claim.UserID == "" {
		return nil, ErrNonValidToken
	}
	if !i.nonces.Exists(ctx, claim.ID) {
		return nil, ErrInvalidNonce
	}
	return claim, nil
}

// Revoke invalidates the session by consuming its nonce.
func (i *Issuer) Revoke(ctx context.Context, claim *SessionClaim) error {
	if ok, err := i.nonces.Consume(ctx, claim.ID); err != nil {
		return err
	} else if !ok {
		return ErrInvalidNonce
	}
	return nil
}

// NeedsRenewal reports whether less than half of the token lifetime remains.
func (i *Issuer) NeedsRenewal(claim *SessionClaim) bool {
	if claim.ExpiresAt == nil {
		return true
	}
	return time.Until(claim.ExpiresAt.Time) < i.ttl/2
}

func (i *Issuer) sign(claims jwt.Claims) (string, error) {
	if len(i.secret) == 0 {
		return "", ErrMissingSecret
	}
	token := jwt.NewWithClaims(tokenSignatureAlg, claims)
	return token.SignedString(i.secret)
}

func decodeJWT[T jwt.Claims](secret []byte, tokenString string, claimsType T) (T, error) {
	var zero T

	parsedToken, err := jwt.ParseWithClaims(tokenString, claimsType, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{tokenSignatureAlg.Alg()}))

	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrNonValidToken, err)
	} else if parsedToken == nil || !parsedToken.Valid {
		return zero, ErrNonValidToken
	} else if claims, ok := parsedToken.Claims.(T); ok {
		return claims, nil
	}

	return zero, ErrInvalidClaimType
}
