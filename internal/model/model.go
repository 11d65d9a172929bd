// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Tokens collects an issued access token.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// Account is a registered wallet address allowed to log in.
type Account struct {
	Address   common.Address
	PwdHash   []byte // Argon2id(password, Salt)
	Salt      []byte
	CreatedAt time.Time
}

// CollectionConfig is the admin-managed staking configuration of one NFT collection.
type CollectionConfig struct {
	Cid               uint64 // assigned sequentially on first registration, never reused
	IsStakable        bool
	CollectionAddress common.Address
	StakingFee        uint256.Int // per token
	HarvestingFee     uint256.Int
	Multiplier        uint256.Int
	MaturityPeriod    uint64 // seconds between the last stake and the first eligible harvest
	MaxDaysForStaking uint64 // cap on credited days
	StakingLimit      uint64 // max tokens per user
	UpdatedAt         time.Time
}

// Position is one user's stake in one collection.
type Position struct {
	User           common.Address
	Cid            uint64
	TokenIDs       []uint256.Int // ordered by stake time, then id
	StakeTimestamp time.Time     // last stake event; zero when nothing is staked
	RewardAccrued  uint256.Int   // running total credited by oracle callbacks
}

// AmountStaked is the number of tokens currently held for the position.
func (p Position) AmountStaked() uint64 { return uint64(len(p.TokenIDs)) }

// Holds reports whether id is part of the position.
func (p Position) Holds(id uint256.Int) bool {
	for i := range p.TokenIDs {
		if p.TokenIDs[i] == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to mutate.
func (p Position) Clone() Position {
	p.TokenIDs = append([]uint256.Int(nil), p.TokenIDs...)
	return p
}

// PoolAggregate holds per-collection staking totals.
type PoolAggregate struct {
	Cid                uint64
	AmountOfStakers    uint64 // positions with at least one token
	AmountStakedInPool uint64
}

// RequestStatus is the lifecycle state of a harvest request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestExpired   RequestStatus = "expired"
	RequestCancelled RequestStatus = "cancelled"
)

// HarvestRequest is an in-flight or completed oracle query together with
// the ledger snapshot taken when it was issued.
type HarvestRequest struct {
	QueryID           string
	Requester         common.Address
	Cid               uint64
	CollectionAddress common.Address
	TokenIDs          []uint256.Int
	DaysStaked        uint64
	Multiplier        uint256.Int
	AmountOfStakers   uint64
	StakeTimestamp    time.Time
	Status            RequestStatus
	Rarity            uint256.Int
	Reward            uint256.Int
	CreatedAt         time.Time
	ExpiresAt         time.Time
	CompletedAt       time.Time // zero while pending
}

// Fulfilled reports whether the oracle result has been applied.
func (r HarvestRequest) Fulfilled() bool { return r.Status == RequestFulfilled }

// Funding is the fee-currency balance that pays for oracle queries.
type Funding struct {
	Balance       uint256.Int
	CollectedFees uint256.Int
	OracleSpend   uint256.Int
	Withdrawn     uint256.Int
}

// QueryStatus is the delivery state of an outbox query.
type QueryStatus string

const (
	QueryPending QueryStatus = "pending"
	QuerySent    QueryStatus = "sent"
	QueryFailed  QueryStatus = "failed"
)

// OracleQuery is an outbox row delivered to the oracle by the dispatcher.
type OracleQuery struct {
	QueryID       string
	Payload       []byte // JSON encoded OraclePayload
	Status        QueryStatus
	Attempts      int
	MaxAttempts   int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
}

// OraclePayload is the body sent to the oracle for a harvest request.
type OraclePayload struct {
	QueryID           string   `json:"query_id"`
	Requester         string   `json:"requester"`
	CollectionAddress string   `json:"collection_address"`
	Cid               uint64   `json:"cid"`
	TokenIDs          []string `json:"token_ids"`
	DaysStaked        uint64   `json:"days_staked"`
	Multiplier        string   `json:"multiplier"`
	AmountOfStakers   uint64   `json:"amount_of_stakers"`
	Callback          string   `json:"callback,omitempty"`
}

// CollectionInfo is a config together with its pool totals.
type CollectionInfo struct {
	Config CollectionConfig
	Pool   PoolAggregate
}

// UserInfo is a position with its derived day count.
type UserInfo struct {
	Position   Position
	DaysStaked uint64
}
