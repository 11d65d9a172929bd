package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/nft-farm/internal/authz"
	"github.com/and161185/nft-farm/internal/errs"
	"github.com/and161185/nft-farm/internal/model"
	"github.com/and161185/nft-farm/internal/oracle"
)

type fakeResults struct {
	calls  int
	as     authz.Principal
	rarity uint256.Int
	err    error
}

func (f *fakeResults) OnOracleResult(_ context.Context, p authz.Principal, queryID string, rarity uint256.Int) (model.HarvestRequest, error) {
	f.calls++
	f.as, f.rarity = p, rarity
	if f.err != nil {
		return model.HarvestRequest{}, f.err
	}
	return model.HarvestRequest{QueryID: queryID, Status: model.RequestFulfilled, Reward: *uint256.NewInt(200)}, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

var (
	secret  = []byte("shared")
	now     = time.Unix(1_700_000_000, 0)
	oracleP = authz.Principal{Address: common.HexToAddress("0x0c"), Roles: []authz.Role{authz.RoleOracle}}
)

func newRouter(t *testing.T, res *fakeResults, ready Pinger) http.Handler {
	t.Helper()
	return NewRouter(Options{
		OracleSecret: secret,
		Oracle:       oracleP,
		Results:      res,
		Ready:        ready,
		Now:          func() time.Time { return now },
	}, zaptest.NewLogger(t))
}

func signedCallback(body string, ts time.Time, key []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/oracle/callback", strings.NewReader(body))
	req.Header.Set(oracle.HeaderTimestamp, strconv.FormatInt(ts.Unix(), 10))
	req.Header.Set(oracle.HeaderSignature, oracle.Sign(key, ts, []byte(body)))
	return req
}

func TestHealthAndMetrics(t *testing.T) {
	h := newRouter(t, &fakeResults{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestReadyz(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(t, &fakeResults{}, fakePinger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	newRouter(t, &fakeResults{}, fakePinger{err: errors.New("down")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOracleCallback_Applies(t *testing.T) {
	res := &fakeResults{}
	h := newRouter(t, res, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedCallback(`{"query_id":"q1","rarity":"100"}`, now, secret))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.JSONEq(t, `{"query_id":"q1","status":"fulfilled","reward":"200"}`, rec.Body.String())
	require.Equal(t, 1, res.calls)
	require.True(t, res.as.Has(authz.RoleOracle))
	require.Equal(t, uint64(100), res.rarity.Uint64())
}

func TestOracleCallback_Rejects(t *testing.T) {
	tests := []struct {
		name string
		req  *http.Request
		err  error
		code int
	}{
		{"wrong key", signedCallback(`{"query_id":"q1","rarity":"1"}`, now, []byte("other")), nil, http.StatusUnauthorized},
		{"stale timestamp", signedCallback(`{"query_id":"q1","rarity":"1"}`, now.Add(-time.Hour), secret), nil, http.StatusUnauthorized},
		{"malformed", signedCallback(`{"query_id":`, now, secret), nil, http.StatusBadRequest},
		{"missing id", signedCallback(`{"rarity":"1"}`, now, secret), nil, http.StatusBadRequest},
		{"bad rarity", signedCallback(`{"query_id":"q1","rarity":"-1"}`, now, secret), nil, http.StatusBadRequest},
		{"unknown request", signedCallback(`{"query_id":"q1","rarity":"1"}`, now, secret), fmt.Errorf("q1: %w", errs.ErrUnknownRequest), http.StatusNotFound},
		{"overflow", signedCallback(`{"query_id":"q1","rarity":"1"}`, now, secret), errs.ErrInvalidArgument, http.StatusUnprocessableEntity},
		{"mint failed", signedCallback(`{"query_id":"q1","rarity":"1"}`, now, secret), errs.ErrTransferFailed, http.StatusServiceUnavailable},
		{"store down", signedCallback(`{"query_id":"q1","rarity":"1"}`, now, secret), errors.New("db"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newRouter(t, &fakeResults{err: tt.err}, nil).ServeHTTP(rec, tt.req)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestOracleCallback_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(t, &fakeResults{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oracle/callback", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
