// Package evm implements the chain collaborators against an EVM JSON-RPC
// endpoint with go-ethereum bound contracts. Every state-changing call is
// sent from the ledger's custody key and waits for a successful receipt.
package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ssgreg/repeat"
	"go.uber.org/zap"

	"github.com/and161185/nft-farm/internal/errs"
)

// Client is a connected custody account.
type Client struct {
	eth          *ethclient.Client
	key          *ecdsa.PrivateKey
	from         common.Address
	chainID      *big.Int
	receiptTries int
	log          *zap.Logger
}

// Dial connects to rpcURL and loads the hex-encoded custody key.
func Dial(ctx context.Context, rpcURL, keyHex string, log *zap.Logger) (*Client, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("custody key: %w", err)
	}
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	return &Client{
		eth:          eth,
		key:          key,
		from:         crypto.PubkeyToAddress(key.PublicKey),
		chainID:      chainID,
		receiptTries: 60,
		log:          log,
	}, nil
}

// Custody is the address that holds staked NFTs and fees.
func (c *Client) Custody() common.Address { return c.from }

// Close releases the RPC connection.
func (c *Client) Close() { c.eth.Close() }

func (c *Client) bind(addr common.Address, def string) (*bind.BoundContract, error) {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	return bind.NewBoundContract(addr, parsed, c.eth, c.eth, c.eth), nil
}

func (c *Client) opts(ctx context.Context) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, err
	}
	auth.Context = ctx
	return auth, nil
}

// transact sends method on contract and waits until it is mined successfully.
// Any failure is reported as errs.ErrTransferFailed.
func (c *Client) transact(ctx context.Context, contract *bind.BoundContract, method string, args ...any) error {
	auth, err := c.opts(ctx)
	if err != nil {
		return fmt.Errorf("%s: %v: %w", method, err, errs.ErrTransferFailed)
	}
	tx, err := contract.Transact(auth, method, args...)
	if err != nil {
		return fmt.Errorf("%s: %v: %w", method, err, errs.ErrTransferFailed)
	}
	receipt, err := c.waitMined(ctx, tx)
	if err != nil {
		return fmt.Errorf("%s %s: %v: %w", method, tx.Hash().Hex(), err, errs.ErrTransferFailed)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%s %s reverted: %w", method, tx.Hash().Hex(), errs.ErrTransferFailed)
	}
	c.log.Debug("tx mined",
		zap.String("method", method),
		zap.String("tx", tx.Hash().Hex()),
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
	)
	return nil
}

var errNotMined = errors.New("receipt not available yet")

func (c *Client) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := repeat.Repeat(
		repeat.Fn(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := c.eth.TransactionReceipt(ctx, tx.Hash())
			if err != nil {
				return repeat.HintTemporary(errNotMined)
			}
			receipt = r
			return nil
		}),
		repeat.StopOnSuccess(),
		repeat.LimitMaxTries(c.receiptTries),
		repeat.WithDelay(
			repeat.SetContextHintStop(),
			(&repeat.FullJitterBackoffBuilder{
				BaseDelay: 500 * time.Millisecond,
				MaxDelay:  5 * time.Second,
			}).Set(),
		),
	)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}
