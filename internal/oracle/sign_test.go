package oracle

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/nft-farm/internal/errs"
)

func TestSignVerify(t *testing.T) {
	secret := []byte("s3cret")
	body := []byte(`{"query_id":"q1"}`)
	now := time.Unix(1_700_000_000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := Sign(secret, now, body)

	require.NoError(t, Verify(secret, ts, sig, body, now.Add(30*time.Second), time.Minute))

	cases := []struct {
		name   string
		secret []byte
		ts     string
		sig    string
		body   []byte
		now    time.Time
	}{
		{"tampered body", secret, ts, sig, []byte(`{"query_id":"q2"}`), now},
		{"wrong secret", []byte("other"), ts, sig, body, now},
		{"stale", secret, ts, sig, body, now.Add(2 * time.Minute)},
		{"future", secret, ts, sig, body, now.Add(-2 * time.Minute)},
		{"bad timestamp", secret, "yesterday", sig, body, now},
		{"bad signature", secret, ts, "zz", body, now},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Verify(tc.secret, tc.ts, tc.sig, tc.body, tc.now, time.Minute)
			require.ErrorIs(t, err, errs.ErrUnauthorized)
		})
	}
}
