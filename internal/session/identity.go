// Package session authenticates callers and keeps their rotating
// anti-forgery tokens.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingBearer = errors.New("authorization header required")
	ErrInvalidBearer = errors.New("invalid bearer token")
)

// Identity is the authenticated caller behind a request.
type Identity struct {
	UserID    uint
	SessionID string
}

// Issuer signs and verifies the HS256 tokens that identify a user session.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates a JWT issuer signing with secret.
func NewIssuer(secret, issuer string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue starts a new session for userID.
func (i *Issuer) Issue(userID uint) (string, Identity, error) {
	if userID == 0 {
		return "", Identity{}, errors.New("user id must be positive")
	}

	now := i.now()
	id := Identity{UserID: userID, SessionID: uuid.NewString()}
	claims := jwt.RegisteredClaims{
		Issuer:    i.issuer,
		Subject:   strconv.FormatUint(uint64(userID), 10),
		ID:        id.SessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", Identity{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, id, nil
}

// Parse verifies tokenString and returns the identity it carries.
func (i *Issuer) Parse(tokenString string) (Identity, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidBearer, err)
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return Identity{}, fmt.Errorf("%w: bad subject %q", ErrInvalidBearer, claims.Subject)
	}
	if claims.ID == "" {
		return Identity{}, fmt.Errorf("%w: missing session id", ErrInvalidBearer)
	}

	return Identity{UserID: uint(userID), SessionID: claims.ID}, nil
}

// FromRequest authenticates the Authorization bearer header of r.
func (i *Issuer) FromRequest(r *http.Request) (Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Identity{}, ErrMissingBearer
	}

	const bearerPrefix = "Bearer"
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != bearerPrefix || parts[1] == "" {
		return Identity{}, ErrInvalidBearer
	}
	return i.Parse(parts[1])
}
