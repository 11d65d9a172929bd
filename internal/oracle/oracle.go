// Package oracle delivers queued harvest queries to the rarity oracle and
// verifies the signed results it posts back.
package oracle

import (
	"context"
	"errors"

	"github.com/and161185/nft-farm/internal/model"
)

// ErrRejected marks a query the oracle refused; retrying will not help.
var ErrRejected = errors.New("oracle rejected query")

// Gateway sends one outbox query to the oracle.
type Gateway interface {
	Deliver(ctx context.Context, q model.OracleQuery) error
}

func isRejected(err error) bool { return errors.Is(err, ErrRejected) }
