// Package authz defines the caller capability passed to mutating service calls
// and the JWT claims that carry it.
package authz

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/nft-farm/internal/errs"
)

// Role is a capability granted on top of plain account access.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleOracle Role = "oracle"
)

// Principal is the authenticated caller of a service operation.
type Principal struct {
	Address common.Address
	Roles   []Role
}

// Has reports whether the principal holds role r.
func (p Principal) Has(r Role) bool { return slices.Contains(p.Roles, r) }

// Require returns errs.ErrUnauthorized unless the principal holds role r.
func (p Principal) Require(r Role) error {
	if !p.Has(r) {
		return fmt.Errorf("%s role required: %w", r, errs.ErrUnauthorized)
	}
	return nil
}

// Anonymous reports whether the principal carries no address.
func (p Principal) Anonymous() bool { return p.Address == (common.Address{}) }

// Claims is the access-token payload: subject is the checksummed address.
type Claims struct {
	Roles []Role `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs an HS256 access token for the principal.
func Issue(p Principal, key []byte, ttl time.Duration, now time.Time) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := Claims{
		Roles: p.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Address.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	return signed, exp, err
}

// Parse verifies an HS256 token and returns the principal it carries.
func Parse(token string, key []byte) (Principal, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil || !parsed.Valid {
		return Principal{}, fmt.Errorf("invalid token: %w", errs.ErrUnauthorized)
	}
	if !common.IsHexAddress(claims.Subject) {
		return Principal{}, fmt.Errorf("bad subject: %w", errs.ErrUnauthorized)
	}
	return Principal{Address: common.HexToAddress(claims.Subject), Roles: claims.Roles}, nil
}
