package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/and161185/nft-farm/internal/errs"
	"github.com/and161185/nft-farm/internal/model"
)

func errNotFound(what string) error      { return fmt.Errorf("%s: %w", what, errs.ErrNotFound) }
func errAlreadyExists(what string) error { return fmt.Errorf("%s: %w", what, errs.ErrAlreadyExists) }

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) Collection(_ context.Context, cid uint64) (model.CollectionConfig, error) {
	if cid >= uint64(len(t.st.collections)) {
		return model.CollectionConfig{}, fmt.Errorf("cid %d: %w", cid, errs.ErrUnknownCollection)
	}
	return t.st.collections[cid], nil
}

func (t *tx) CollectionByAddress(_ context.Context, addr common.Address) (model.CollectionConfig, error) {
	for _, c := range t.st.collections {
		if c.CollectionAddress == addr {
			return c, nil
		}
	}
	return model.CollectionConfig{}, errNotFound("collection " + addr.Hex())
}

func (t *tx) CreateCollection(_ context.Context, cfg model.CollectionConfig) (uint64, error) {
	for _, c := range t.st.collections {
		if c.CollectionAddress == cfg.CollectionAddress {
			return 0, errAlreadyExists("collection " + cfg.CollectionAddress.Hex())
		}
	}
	cfg.Cid = uint64(len(t.st.collections))
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = t.now()
	}
	t.st.collections = append(t.st.collections, cfg)
	return cfg.Cid, nil
}

func (t *tx) UpdateCollection(_ context.Context, cfg model.CollectionConfig) error {
	if cfg.Cid >= uint64(len(t.st.collections)) {
		return fmt.Errorf("cid %d: %w", cfg.Cid, errs.ErrUnknownCollection)
	}
	cfg.CollectionAddress = t.st.collections[cfg.Cid].CollectionAddress
	t.st.collections[cfg.Cid] = cfg
	return nil
}

func (t *tx) ListCollections(_ context.Context) ([]model.CollectionConfig, error) {
	return append([]model.CollectionConfig(nil), t.st.collections...), nil
}

func (t *tx) Position(_ context.Context, user common.Address, cid uint64) (model.Position, error) {
	p, ok := t.st.positions[posKey{user, cid}]
	if !ok {
		return model.Position{User: user, Cid: cid}, nil
	}
	return p.Clone(), nil
}

func (t *tx) PositionView(ctx context.Context, user common.Address, cid uint64) (model.Position, error) {
	return t.Position(ctx, user, cid)
}

func (t *tx) PutPosition(_ context.Context, p model.Position) error {
	k := posKey{p.User, p.Cid}
	cur := t.st.positions[k]
	p.TokenIDs = cur.TokenIDs
	t.st.positions[k] = p
	return nil
}

func (t *tx) AddTokens(_ context.Context, user common.Address, cid uint64, ids []uint256.Int, _ time.Time) error {
	batch := append([]uint256.Int(nil), ids...)
	sortTokens(batch)
	for _, id := range batch {
		if _, taken := t.st.staked[tokenKey{cid, id}]; taken {
			return fmt.Errorf("token %s already staked: %w", id.Dec(), errs.ErrTransferFailed)
		}
	}
	k := posKey{user, cid}
	p, ok := t.st.positions[k]
	if !ok {
		p = model.Position{User: user, Cid: cid}
	}
	for _, id := range batch {
		t.st.staked[tokenKey{cid, id}] = user
		p.TokenIDs = append(p.TokenIDs, id)
	}
	t.st.positions[k] = p
	return nil
}

func (t *tx) RemoveTokens(_ context.Context, user common.Address, cid uint64, ids []uint256.Int) error {
	k := posKey{user, cid}
	p := t.st.positions[k]
	drop := make(map[uint256.Int]struct{}, len(ids))
	for _, id := range ids {
		if owner, ok := t.st.staked[tokenKey{cid, id}]; !ok || owner != user {
			return fmt.Errorf("token %s: %w", id.Dec(), errs.ErrNotOwner)
		}
		drop[id] = struct{}{}
	}
	kept := p.TokenIDs[:0:0]
	for _, id := range p.TokenIDs {
		if _, ok := drop[id]; ok {
			delete(t.st.staked, tokenKey{cid, id})
			continue
		}
		kept = append(kept, id)
	}
	p.TokenIDs = kept
	t.st.positions[k] = p
	return nil
}

func (t *tx) Pool(_ context.Context, cid uint64) (model.PoolAggregate, error) {
	p, ok := t.st.pools[cid]
	if !ok {
		return model.PoolAggregate{Cid: cid}, nil
	}
	return p, nil
}

func (t *tx) PoolView(ctx context.Context, cid uint64) (model.PoolAggregate, error) {
	return t.Pool(ctx, cid)
}

func (t *tx) PutPool(_ context.Context, p model.PoolAggregate) error {
	t.st.pools[p.Cid] = p
	return nil
}

func (t *tx) Funding(_ context.Context) (model.Funding, error) { return t.st.funding, nil }

func (t *tx) PutFunding(_ context.Context, f model.Funding) error {
	t.st.funding = f
	return nil
}

func (t *tx) PendingRequest(_ context.Context, user common.Address, cid uint64) (model.HarvestRequest, bool, error) {
	for _, r := range t.st.requests {
		if r.Requester == user && r.Cid == cid && r.Status == model.RequestPending {
			return r, true, nil
		}
	}
	return model.HarvestRequest{}, false, nil
}

func (t *tx) CreateRequest(ctx context.Context, r model.HarvestRequest) error {
	if _, pending, _ := t.PendingRequest(ctx, r.Requester, r.Cid); pending {
		return errs.ErrRequestPending
	}
	if _, ok := t.st.requests[r.QueryID]; ok {
		return errAlreadyExists("request " + r.QueryID)
	}
	r.TokenIDs = append([]uint256.Int(nil), r.TokenIDs...)
	t.st.requests[r.QueryID] = r
	return nil
}

func (t *tx) Request(_ context.Context, queryID string) (model.HarvestRequest, error) {
	r, ok := t.st.requests[queryID]
	if !ok {
		return model.HarvestRequest{}, fmt.Errorf("query %s: %w", queryID, errs.ErrUnknownRequest)
	}
	r.TokenIDs = append([]uint256.Int(nil), r.TokenIDs...)
	return r, nil
}

func (t *tx) CompleteRequest(_ context.Context, r model.HarvestRequest) error {
	cur, ok := t.st.requests[r.QueryID]
	if !ok {
		return fmt.Errorf("query %s: %w", r.QueryID, errs.ErrUnknownRequest)
	}
	cur.Status, cur.Rarity, cur.Reward, cur.CompletedAt = r.Status, r.Rarity, r.Reward, r.CompletedAt
	t.st.requests[r.QueryID] = cur
	return nil
}

func (t *tx) StaleRequests(_ context.Context, now time.Time, limit int) ([]model.HarvestRequest, error) {
	if limit <= 0 {
		return nil, nil
	}
	var out []model.HarvestRequest
	for _, r := range t.st.requests {
		if r.Status == model.RequestPending && !r.ExpiresAt.After(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *tx) EnqueueQuery(_ context.Context, q model.OracleQuery) error {
	if _, ok := t.st.queries[q.QueryID]; ok {
		return errAlreadyExists("query " + q.QueryID)
	}
	if q.Status == "" {
		q.Status = model.QueryPending
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = t.now()
	}
	t.st.queries[q.QueryID] = &queryRow{OracleQuery: q}
	t.st.queryOrder = append(t.st.queryOrder, q.QueryID)
	return nil
}
