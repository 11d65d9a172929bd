// Package service contains the application services of the staking ledger:
// collection registry, staking, harvest, funding and authentication.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/and161185/nft-farm/internal/authz"
	pkgcrypto "github.com/and161185/nft-farm/internal/crypto"
	"github.com/and161185/nft-farm/internal/errs"
	"github.com/and161185/nft-farm/internal/limiter"
	"github.com/and161185/nft-farm/internal/model"
	"github.com/and161185/nft-farm/internal/repository"
)

// AuthService defines account registration and login.
type AuthService interface {
	// Register creates an account for a wallet that signed the registration message.
	Register(ctx context.Context, addr common.Address, password string, signature []byte) error
	// Login applies rate-limiting and authenticates the account.
	Login(ctx context.Context, addr common.Address, password, ip string) (model.Tokens, authz.Principal, error)
}

// Roles maps addresses to the capabilities granted at login.
type Roles struct {
	Admins []common.Address
	Oracle common.Address
}

func (r Roles) of(addr common.Address) []authz.Role {
	var out []authz.Role
	if slices.Contains(r.Admins, addr) {
		out = append(out, authz.RoleAdmin)
	}
	if r.Oracle != (common.Address{}) && r.Oracle == addr {
		out = append(out, authz.RoleOracle)
	}
	return out
}

type AuthServiceImpl struct {
	accounts  repository.AccountRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
	roles     Roles
	clock     Clock
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(accounts repository.AccountRepository, signKey []byte, accessTTL time.Duration, lim limiter.Limiter, roles Roles, clock Clock) *AuthServiceImpl {
	return &AuthServiceImpl{accounts: accounts, signKey: signKey, accessTTL: accessTTL, lim: lim, roles: roles, clock: clock}
}

// Register verifies proof of address control and stores a salted password hash.
func (s *AuthServiceImpl) Register(ctx context.Context, addr common.Address, password string, signature []byte) error {
	if addr == (common.Address{}) || password == "" {
		return fmt.Errorf("empty address/password: %w", errs.ErrInvalidArgument)
	}
	if err := pkgcrypto.VerifyText(addr, pkgcrypto.RegistrationMessage(addr), signature); err != nil {
		return fmt.Errorf("%v: %w", err, errs.ErrUnauthorized)
	}
	ph, err := pkgcrypto.NewPasswordHash(password)
	if err != nil {
		return err
	}
	return s.accounts.Create(ctx, &model.Account{
		Address:   addr,
		PwdHash:   ph.Hash,
		Salt:      ph.Salt,
		CreatedAt: s.clock.Now().UTC(),
	})
}

// Login authenticates with rate limiting by (address, ip).
func (s *AuthServiceImpl) Login(ctx context.Context, addr common.Address, password, ip string) (model.Tokens, authz.Principal, error) {
	key := addr.Hex()
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, key, ipHash)
	if err != nil {
		return model.Tokens{}, authz.Principal{}, err
	}
	if !allowed {
		return model.Tokens{}, authz.Principal{}, errs.ErrRateLimited
	}

	acc, err := s.accounts.GetByAddress(ctx, addr)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, authz.Principal{}, err
	}
	if err != nil || !(pkgcrypto.PasswordHash{Hash: acc.PwdHash, Salt: acc.Salt}).Matches(password) {
		if blocked, _, ferr := s.lim.Failure(ctx, key, ipHash); ferr == nil && blocked {
			return model.Tokens{}, authz.Principal{}, errs.ErrRateLimited
		}
		// unknown account and wrong password look the same
		return model.Tokens{}, authz.Principal{}, errs.ErrUnauthorized
	}

	_ = s.lim.Success(ctx, key, ipHash)

	p := authz.Principal{Address: addr, Roles: s.roles.of(addr)}
	access, exp, err := authz.Issue(p, s.signKey, s.accessTTL, s.clock.Now())
	if err != nil {
		return model.Tokens{}, authz.Principal{}, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, p, nil
}
