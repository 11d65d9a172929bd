package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/and161185/nft-farm/internal/authz"
	"github.com/and161185/nft-farm/internal/errs"
	"github.com/and161185/nft-farm/internal/model"
	"github.com/and161185/nft-farm/internal/repository"
)

// RegistryService manages per-collection staking configuration.
type RegistryService interface {
	// RegisterOrUpdateCollection stores cfg, assigning the next cid to a new address.
	RegisterOrUpdateCollection(ctx context.Context, p authz.Principal, cfg model.CollectionConfig) (cid uint64, created bool, err error)
	// GetConfig returns the config of cid.
	GetConfig(ctx context.Context, cid uint64) (model.CollectionConfig, error)
	// ListCollections returns all configs ordered by cid.
	ListCollections(ctx context.Context) ([]model.CollectionConfig, error)
}

type RegistryServiceImpl struct {
	store repository.Ledger
	cache *expirable.LRU[uint64, model.CollectionConfig]
	clock Clock
	log   *zap.Logger
}

// NewRegistryService constructs RegistryService with a read-through config cache.
func NewRegistryService(store repository.Ledger, clock Clock, cacheSize int, cacheTTL time.Duration, log *zap.Logger) *RegistryServiceImpl {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	return &RegistryServiceImpl{
		store: store,
		cache: expirable.NewLRU[uint64, model.CollectionConfig](cacheSize, nil, cacheTTL),
		clock: clock,
		log:   log,
	}
}

// RegisterOrUpdateCollection validates cfg and upserts it by collection address.
// The cid of a known address never changes.
func (s *RegistryServiceImpl) RegisterOrUpdateCollection(ctx context.Context, p authz.Principal, cfg model.CollectionConfig) (cid uint64, created bool, err error) {
	defer func() { observe("register_collection", err) }()
	if err = p.Require(authz.RoleAdmin); err != nil {
		return 0, false, err
	}
	if cfg.CollectionAddress == (common.Address{}) {
		return 0, false, fmt.Errorf("zero collection address: %w", errs.ErrInvalidConfig)
	}
	if cfg.StakingLimit == 0 {
		return 0, false, fmt.Errorf("staking limit must be positive: %w", errs.ErrInvalidConfig)
	}
	cfg.UpdatedAt = ledgerNow(s.clock)

	err = s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		existing, err := tx.CollectionByAddress(ctx, cfg.CollectionAddress)
		switch {
		case errors.Is(err, errs.ErrNotFound):
			cid, err = tx.CreateCollection(ctx, cfg)
			created = true
			return err
		case err != nil:
			return err
		}
		cid = existing.Cid
		cfg.Cid = cid
		return tx.UpdateCollection(ctx, cfg)
	})
	if err != nil {
		return 0, false, err
	}
	s.cache.Remove(cid)
	s.log.Info("collection configured",
		zap.Uint64("cid", cid),
		zap.Bool("created", created),
		zap.String("address", cfg.CollectionAddress.Hex()),
		zap.Bool("stakable", cfg.IsStakable),
	)
	return cid, created, nil
}

// GetConfig serves cid from the cache, loading it on a miss.
func (s *RegistryServiceImpl) GetConfig(ctx context.Context, cid uint64) (model.CollectionConfig, error) {
	if cfg, ok := s.cache.Get(cid); ok {
		return cfg, nil
	}
	var cfg model.CollectionConfig
	err := s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		cfg, err = tx.Collection(ctx, cid)
		return err
	})
	if err != nil {
		return model.CollectionConfig{}, err
	}
	s.cache.Add(cid, cfg)
	return cfg, nil
}

// ListCollections returns every registered config.
func (s *RegistryServiceImpl) ListCollections(ctx context.Context) ([]model.CollectionConfig, error) {
	var out []model.CollectionConfig
	err := s.store.WithinTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		out, err = tx.ListCollections(ctx)
		return err
	})
	return out, err
}
