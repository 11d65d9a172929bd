package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/and161185/nft-farm/internal/authz"
	"github.com/and161185/nft-farm/internal/chain/devnet"
	"github.com/and161185/nft-farm/internal/chain/evm"
	"github.com/and161185/nft-farm/internal/config"
	"github.com/and161185/nft-farm/internal/limiter"
	"github.com/and161185/nft-farm/internal/migrate"
	"github.com/and161185/nft-farm/internal/repository"
	"github.com/and161185/nft-farm/internal/repository/memory"
	"github.com/and161185/nft-farm/internal/repository/postgres"
	"github.com/and161185/nft-farm/internal/server/httpapi"
	"github.com/and161185/nft-farm/internal/service"
	"github.com/and161185/nft-farm/internal/worker"
)

// Dev-mode fixtures.
var (
	devCustody    = common.HexToAddress("0x000000000000000000000000000000000000c057")
	devCollection = common.HexToAddress("0x00000000000000000000000000000000000c0ffe")
	devOracle     = common.HexToAddress("0x000000000000000000000000000000000000000c")
)

const devTokensPerAdmin = 10

type backends struct {
	ledger   repository.Ledger
	outbox   repository.Outbox
	accounts repository.AccountRepository
	limiter  limiter.Limiter
	pruner   worker.Pruner // nil when entries expire in memory
	chain    service.Chain
	ready    httpapi.Pinger
	closers  []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func u256(v uint64) uint256.Int { return *uint256.NewInt(v) }

func rolesFrom(cfg *config.Config) (service.Roles, authz.Principal) {
	var roles service.Roles
	for _, a := range cfg.Admins {
		roles.Admins = append(roles.Admins, common.HexToAddress(a))
	}
	roles.Oracle = devOracle
	if cfg.Oracle != "" {
		roles.Oracle = common.HexToAddress(cfg.Oracle)
	}
	return roles, authz.Principal{Address: roles.Oracle, Roles: []authz.Role{authz.RoleOracle}}
}

func openBackends(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backends, error) {
	if cfg.Dev {
		return devBackends(cfg, log), nil
	}
	b := &backends{}

	if err := migrate.Up(ctx, cfg.DSN, log.Named("migrate")); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	b.closers = append(b.closers, pool.Close)

	db := &postgres.DB{Pool: pool}
	ledger := postgres.NewLedger(db)
	b.ledger, b.outbox = ledger, ledger
	b.accounts = postgres.NewAccountRepo(db)
	pg := limiter.NewPG(pool, cfg.LoginWindow, cfg.LoginMaxFails, cfg.LoginBlock)
	b.limiter, b.pruner = pg, pg
	b.ready = pool

	client, err := evm.Dial(ctx, cfg.RPCURL, cfg.CustodyKey, log.Named("evm"))
	if err != nil {
		b.close()
		return nil, err
	}
	b.closers = append(b.closers, client.Close)
	reward, err := evm.NewToken(client, common.HexToAddress(cfg.RewardToken))
	if err != nil {
		b.close()
		return nil, fmt.Errorf("reward token: %w", err)
	}
	funds, err := evm.NewToken(client, common.HexToAddress(cfg.FundsToken))
	if err != nil {
		b.close()
		return nil, fmt.Errorf("funds token: %w", err)
	}
	b.chain = service.Chain{
		Collections: evm.NewCollections(client),
		Reward:      reward,
		Funds:       funds,
		Custody:     client.Custody(),
	}
	return b, nil
}

// devBackends keeps everything in memory. Each admin starts with fee currency
// and devTokensPerAdmin NFTs of a demo collection approved for custody.
func devBackends(cfg *config.Config, log *zap.Logger) *backends {
	store := memory.New()
	dn := devnet.New(devCustody)
	col := dn.Deploy(devCollection)
	for i, a := range cfg.Admins {
		addr := common.HexToAddress(a)
		dn.Fund(addr, 1_000_000)
		for id := 1; id <= devTokensPerAdmin; id++ {
			col.MintNFT(addr, uint64(i*devTokensPerAdmin+id))
		}
		col.SetApprovalForAll(addr, devCustody, true)
	}
	log.Info("devnet ready",
		zap.String("custody", devCustody.Hex()),
		zap.String("collection", devCollection.Hex()),
		zap.Int("funded", len(cfg.Admins)),
	)
	return &backends{
		ledger:   store,
		outbox:   store,
		accounts: store,
		limiter:  limiter.NewMemory(1024, cfg.LoginWindow, cfg.LoginMaxFails, cfg.LoginBlock),
		chain:    service.Chain{Collections: dn, Reward: dn, Funds: dn, Custody: dn.Custody()},
	}
}
