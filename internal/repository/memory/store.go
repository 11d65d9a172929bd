// Package memory is an in-process implementation of the repository interfaces
// used by dev mode and service tests. One mutex serialises units of work; each
// unit runs against a private copy of the state that replaces the live state
// only when the unit succeeds.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/and161185/nft-farm/internal/model"
	"github.com/and161185/nft-farm/internal/repository"
)

type posKey struct {
	user common.Address
	cid  uint64
}

type tokenKey struct {
	cid uint64
	id  uint256.Int
}

type queryRow struct {
	model.OracleQuery
	leaseOwner string
	leaseUntil time.Time
}

type state struct {
	collections []model.CollectionConfig // index is cid
	positions   map[posKey]model.Position
	staked      map[tokenKey]common.Address
	pools       map[uint64]model.PoolAggregate
	funding     model.Funding
	requests    map[string]model.HarvestRequest
	queries     map[string]*queryRow
	queryOrder  []string
	accounts    map[common.Address]model.Account
}

func newState() *state {
	return &state{
		positions: map[posKey]model.Position{},
		staked:    map[tokenKey]common.Address{},
		pools:     map[uint64]model.PoolAggregate{},
		requests:  map[string]model.HarvestRequest{},
		queries:   map[string]*queryRow{},
		accounts:  map[common.Address]model.Account{},
	}
}

func (s *state) clone() *state {
	c := newState()
	c.collections = append([]model.CollectionConfig(nil), s.collections...)
	for k, v := range s.positions {
		c.positions[k] = v.Clone()
	}
	for k, v := range s.staked {
		c.staked[k] = v
	}
	for k, v := range s.pools {
		c.pools[k] = v
	}
	c.funding = s.funding
	for k, v := range s.requests {
		v.TokenIDs = append([]uint256.Int(nil), v.TokenIDs...)
		c.requests[k] = v
	}
	for k, v := range s.queries {
		row := *v
		c.queries[k] = &row
	}
	c.queryOrder = append([]string(nil), s.queryOrder...)
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	return c
}

// Store keeps the whole ledger in memory.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var (
	_ repository.Ledger            = (*Store)(nil)
	_ repository.Outbox            = (*Store)(nil)
	_ repository.AccountRepository = (*Store)(nil)
)

// New returns an empty store.
func New() *Store { return &Store{st: newState(), now: time.Now} }

// WithinTx runs fn against a private copy of the state and publishes it when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&tx{st: work, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// ClaimQueries leases due pending queries in creation order.
func (s *Store) ClaimQueries(_ context.Context, now time.Time, limit int, owner string, leaseUntil time.Time) ([]model.OracleQuery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.OracleQuery
	for _, id := range s.st.queryOrder {
		if len(out) >= limit {
			break
		}
		q := s.st.queries[id]
		if q.Status != model.QueryPending || q.NextAttemptAt.After(now) || q.leaseUntil.After(now) {
			continue
		}
		q.leaseOwner, q.leaseUntil = owner, leaseUntil
		out = append(out, q.OracleQuery)
	}
	return out, nil
}

func (s *Store) leased(queryID, owner string) (*queryRow, bool) {
	q, ok := s.st.queries[queryID]
	if !ok || q.Status != model.QueryPending || (q.leaseOwner != "" && q.leaseOwner != owner) {
		return nil, false
	}
	return q, true
}

// MarkSent records a successful delivery.
func (s *Store) MarkSent(_ context.Context, queryID, owner string, attempts int, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.leased(queryID, owner)
	if !ok {
		return false, nil
	}
	q.Status, q.Attempts, q.LastError = model.QuerySent, attempts, ""
	q.leaseOwner, q.leaseUntil = "", time.Time{}
	return true, nil
}

// MarkRetry releases the lease and schedules another attempt.
func (s *Store) MarkRetry(_ context.Context, queryID, owner string, attempts int, next time.Time, lastErr string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.leased(queryID, owner)
	if !ok {
		return false, nil
	}
	q.Attempts, q.NextAttemptAt, q.LastError = attempts, next, lastErr
	q.leaseOwner, q.leaseUntil = "", time.Time{}
	return true, nil
}

// MarkFailed gives up on the query.
func (s *Store) MarkFailed(_ context.Context, queryID, owner string, attempts int, lastErr string, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.leased(queryID, owner)
	if !ok {
		return false, nil
	}
	q.Status, q.Attempts, q.LastError = model.QueryFailed, attempts, lastErr
	q.leaseOwner, q.leaseUntil = "", time.Time{}
	return true, nil
}

// Query loads one outbox row.
func (s *Store) Query(_ context.Context, queryID string) (model.OracleQuery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.st.queries[queryID]
	if !ok {
		return model.OracleQuery{}, errNotFound("query " + queryID)
	}
	return q.OracleQuery, nil
}

// Create inserts a new account.
func (s *Store) Create(_ context.Context, a *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.accounts[a.Address]; ok {
		return errAlreadyExists("account " + a.Address.Hex())
	}
	acc := *a
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = s.now()
	}
	s.st.accounts[a.Address] = acc
	return nil
}

// GetByAddress loads an account.
func (s *Store) GetByAddress(_ context.Context, addr common.Address) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.st.accounts[addr]
	if !ok {
		return nil, errNotFound("account " + addr.Hex())
	}
	return &a, nil
}

func sortTokens(ids []uint256.Int) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Lt(&ids[j]) })
}
