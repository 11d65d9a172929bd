package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/nft-farm/internal/errs"
	"github.com/and161185/nft-farm/internal/model"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

// Create inserts a new account row.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	const q = `INSERT INTO accounts (address, pwd_hash, salt) VALUES ($1, $2, $3)`
	_, err := r.db.Pool.Exec(ctx, q, a.Address.Bytes(), a.PwdHash, a.Salt)
	if isUniqueViolation(err) {
		return fmt.Errorf("account %s: %w", a.Address.Hex(), errs.ErrAlreadyExists)
	}
	return err
}

// GetByAddress selects an account by wallet address.
func (r *AccountRepo) GetByAddress(ctx context.Context, addr common.Address) (*model.Account, error) {
	const q = `SELECT pwd_hash, salt, created_at FROM accounts WHERE address=$1`
	a := model.Account{Address: addr}
	if err := r.db.Pool.QueryRow(ctx, q, addr.Bytes()).Scan(&a.PwdHash, &a.Salt, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", addr.Hex(), errs.ErrNotFound)
		}
		return nil, err
	}
	return &a, nil
}
