package oracle

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/and161185/nft-farm/internal/errs"
)

// Headers carried by signed oracle traffic in both directions.
const (
	HeaderTimestamp = "X-Farm-Timestamp"
	HeaderSignature = "X-Farm-Signature"
)

// Sign returns hex(HMAC-SHA256(secret, "<unix ts>.<body>")).
func Sign(secret []byte, ts time.Time, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(ts.Unix(), 10)))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the timestamp and signature headers of a signed body.
// Timestamps further than skew from now are rejected.
func Verify(secret []byte, tsHeader, sigHeader string, body []byte, now time.Time, skew time.Duration) error {
	unix, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return fmt.Errorf("bad %s: %w", HeaderTimestamp, errs.ErrUnauthorized)
	}
	ts := time.Unix(unix, 0)
	if d := now.Sub(ts); d > skew || d < -skew {
		return fmt.Errorf("stale %s: %w", HeaderTimestamp, errs.ErrUnauthorized)
	}
	got, err := hex.DecodeString(sigHeader)
	if err != nil {
		return fmt.Errorf("bad %s: %w", HeaderSignature, errs.ErrUnauthorized)
	}
	want, _ := hex.DecodeString(Sign(secret, ts, body))
	if !hmac.Equal(got, want) {
		return fmt.Errorf("signature mismatch: %w", errs.ErrUnauthorized)
	}
	return nil
}
