package oracle

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/nft-farm/internal/model"
)

func newGateway(t *testing.T, url string) *HTTPGateway {
	t.Helper()
	return NewHTTPGateway(HTTPOptions{
		URL:       url,
		Secret:    []byte("k"),
		Tries:     3,
		BaseDelay: time.Millisecond,
		MaxDelay:  2 * time.Millisecond,
	}, zaptest.NewLogger(t))
}

func TestHTTPGateway_SignsPayload(t *testing.T) {
	payload := []byte(`{"query_id":"q1"}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := Verify([]byte("k"), r.Header.Get(HeaderTimestamp), r.Header.Get(HeaderSignature), body, time.Now(), time.Minute); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := newGateway(t, srv.URL).Deliver(context.Background(), model.OracleQuery{QueryID: "q1", Payload: payload})
	require.NoError(t, err)
}

func TestHTTPGateway_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newGateway(t, srv.URL).Deliver(context.Background(), model.OracleQuery{QueryID: "q1", Payload: []byte(`{}`)})
	require.NoError(t, err)
	require.Equal(t, int32(3), hits.Load())
}

func TestHTTPGateway_GivesUpAfterTries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := newGateway(t, srv.URL).Deliver(context.Background(), model.OracleQuery{QueryID: "q1", Payload: []byte(`{}`)})
	require.Error(t, err)
	require.Equal(t, int32(3), hits.Load())
}

func TestHTTPGateway_DoesNotRetryRejections(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "unknown collection", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := newGateway(t, srv.URL).Deliver(context.Background(), model.OracleQuery{QueryID: "q1", Payload: []byte(`{}`)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "400")
	require.Equal(t, int32(1), hits.Load())
}
