package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/and161185/nft-farm/internal/authz"
	"github.com/and161185/nft-farm/internal/model"
)

// ResultHandler accepts oracle answers; implemented by service.HarvestService.
type ResultHandler interface {
	OnOracleResult(ctx context.Context, p authz.Principal, queryID string, rarity uint256.Int) (model.HarvestRequest, error)
}

// Loopback answers every query in-process with a fixed rarity. Used in dev mode.
type Loopback struct {
	rarity  uint256.Int
	as      authz.Principal
	results ResultHandler
}

// NewLoopback returns a gateway that resolves queries through results,
// acting as the oracle principal as.
func NewLoopback(rarity uint256.Int, as authz.Principal, results ResultHandler) *Loopback {
	return &Loopback{rarity: rarity, as: as, results: results}
}

// Deliver decodes the payload and applies the fixed rarity.
func (l *Loopback) Deliver(ctx context.Context, q model.OracleQuery) error {
	var pl model.OraclePayload
	if err := json.Unmarshal(q.Payload, &pl); err != nil {
		return fmt.Errorf("decode payload: %w: %w", err, ErrRejected)
	}
	if pl.QueryID != q.QueryID {
		return fmt.Errorf("payload for %q under %q: %w", pl.QueryID, q.QueryID, ErrRejected)
	}
	_, err := l.results.OnOracleResult(ctx, l.as, q.QueryID, l.rarity)
	return err
}
