// Package farmv1 defines the wire messages of the farm.v1.Farm gRPC service,
// its JSON codec, service descriptor and client.
//
// 256-bit quantities (fees, token ids, rewards) travel as base-10 strings and
// addresses as 0x-prefixed hex.
package farmv1

import "time"

type Empty struct{}

type RegisterRequest struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	Signature string `json:"signature"` // 0x-hex personal_sign over the registration message
}

type LoginRequest struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Roles       []string  `json:"roles,omitempty"`
}

type CollectionConfig struct {
	Cid               uint64    `json:"cid"`
	IsStakable        bool      `json:"is_stakable"`
	CollectionAddress string    `json:"collection_address"`
	StakingFee        string    `json:"staking_fee"`
	HarvestingFee     string    `json:"harvesting_fee"`
	Multiplier        string    `json:"multiplier"`
	MaturityPeriod    uint64    `json:"maturity_period"`
	MaxDaysForStaking uint64    `json:"max_days_for_staking"`
	StakingLimit      uint64    `json:"staking_limit"`
	UpdatedAt         time.Time `json:"updated_at,omitzero"`
}

type RegisterCollectionRequest struct {
	Config CollectionConfig `json:"config"`
}

type RegisterCollectionResponse struct {
	Cid     uint64 `json:"cid"`
	Created bool   `json:"created"`
}

// CidRequest addresses one collection.
type CidRequest struct {
	Cid uint64 `json:"cid"`
}

type ListCollectionsResponse struct {
	Collections []CollectionConfig `json:"collections"`
}

type StakeRequest struct {
	Cid     uint64 `json:"cid"`
	TokenID string `json:"token_id"`
	Payment string `json:"payment"`
}

type BatchStakeRequest struct {
	Cid      uint64   `json:"cid"`
	TokenIDs []string `json:"token_ids"`
	Payment  string   `json:"payment"`
}

type UnstakeRequest struct {
	Cid     uint64 `json:"cid"`
	TokenID string `json:"token_id"`
}

type BatchUnstakeRequest struct {
	Cid      uint64   `json:"cid"`
	TokenIDs []string `json:"token_ids"`
}

type AmountOfStakersResponse struct {
	AmountOfStakers uint64 `json:"amount_of_stakers"`
}

type CollectionInfo struct {
	Config             CollectionConfig `json:"config"`
	AmountOfStakers    uint64           `json:"amount_of_stakers"`
	AmountStakedInPool uint64           `json:"amount_staked_in_pool"`
}

type GetUserRequest struct {
	User string `json:"user"`
	Cid  uint64 `json:"cid"`
}

type UserInfo struct {
	User           string    `json:"user"`
	Cid            uint64    `json:"cid"`
	TokenIDs       []string  `json:"token_ids"`
	AmountStaked   uint64    `json:"amount_staked"`
	StakeTimestamp time.Time `json:"stake_timestamp,omitzero"`
	RewardAccrued  string    `json:"reward_accrued"`
	DaysStaked     uint64    `json:"days_staked"`
}

type HarvestRequest struct {
	Cid     uint64 `json:"cid"`
	Payment string `json:"payment"`
}

type HarvestResponse struct {
	QueryID string `json:"query_id"`
}

// QueryRequest addresses one harvest request by its oracle query id.
type QueryRequest struct {
	QueryID string `json:"query_id"`
}

type OracleResultRequest struct {
	QueryID string `json:"query_id"`
	Rarity  string `json:"rarity"`
}

// RequestInfo is a harvest request with its snapshot and outcome.
type RequestInfo struct {
	QueryID           string    `json:"query_id"`
	Requester         string    `json:"requester"`
	Cid               uint64    `json:"cid"`
	CollectionAddress string    `json:"collection_address"`
	TokenIDs          []string  `json:"token_ids"`
	DaysStaked        uint64    `json:"days_staked"`
	Multiplier        string    `json:"multiplier"`
	AmountOfStakers   uint64    `json:"amount_of_stakers"`
	Status            string    `json:"status"`
	Rarity            string    `json:"rarity"`
	Reward            string    `json:"reward"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	CompletedAt       time.Time `json:"completed_at,omitzero"`
}

type AmountRequest struct {
	Amount string `json:"amount"`
}

type Funding struct {
	Balance       string `json:"balance"`
	CollectedFees string `json:"collected_fees"`
	OracleSpend   string `json:"oracle_spend"`
	Withdrawn     string `json:"withdrawn"`
}
