// Package httpapi serves the operational HTTP surface: health probes,
// Prometheus metrics and the signed oracle callback.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/and161185/nft-farm/internal/authz"
	"github.com/and161185/nft-farm/internal/convert"
	"github.com/and161185/nft-farm/internal/errs"
	"github.com/and161185/nft-farm/internal/oracle"
)

const maxCallbackBody = 1 << 16

// Pinger reports backend readiness; *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the router.
type Options struct {
	OracleSecret []byte
	Oracle       authz.Principal // principal the callback acts as
	Results      oracle.ResultHandler
	Ready        Pinger // nil means always ready
	MaxSkew      time.Duration
	Now          func() time.Time
}

// NewRouter builds the chi router.
func NewRouter(opts Options, log *zap.Logger) http.Handler {
	if opts.MaxSkew <= 0 {
		opts.MaxSkew = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", handleReadyz(opts.Ready, log))
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/oracle/callback", handleOracleCallback(opts, log))
	return r
}

func handleReadyz(p Pinger, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				log.Warn("readiness check failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// CallbackRequest is the body the oracle POSTs with its answer.
type CallbackRequest struct {
	QueryID string `json:"query_id"`
	Rarity  string `json:"rarity"`
}

// CallbackResponse acknowledges an applied answer.
type CallbackResponse struct {
	QueryID string `json:"query_id"`
	Status  string `json:"status"`
	Reward  string `json:"reward"`
}

func handleOracleCallback(opts Options, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBody))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "body too large")
			return
		}
		if err := oracle.Verify(opts.OracleSecret, r.Header.Get(oracle.HeaderTimestamp),
			r.Header.Get(oracle.HeaderSignature), body, opts.Now(), opts.MaxSkew); err != nil {
			log.Warn("oracle callback rejected", zap.Error(err), zap.String("remote", r.RemoteAddr))
			writeError(w, http.StatusUnauthorized, "bad signature")
			return
		}

		var in CallbackRequest
		if err := json.Unmarshal(body, &in); err != nil || in.QueryID == "" {
			writeError(w, http.StatusBadRequest, "malformed body")
			return
		}
		rarity, err := convert.ParseAmount("rarity", in.Rarity)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		req, err := opts.Results.OnOracleResult(r.Context(), opts.Oracle, in.QueryID, rarity)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, CallbackResponse{QueryID: req.QueryID, Status: string(req.Status), Reward: req.Reward.Dec()})
		case errors.Is(err, errs.ErrUnknownRequest):
			writeError(w, http.StatusNotFound, errs.ErrUnknownRequest.Error())
		case errors.Is(err, errs.ErrInvalidArgument):
			writeError(w, http.StatusUnprocessableEntity, errs.ErrInvalidArgument.Error())
		case errors.Is(err, errs.ErrTransferFailed):
			// request stays pending; the oracle may retry
			writeError(w, http.StatusServiceUnavailable, errs.ErrTransferFailed.Error())
		default:
			log.Error("oracle callback failed", zap.String("query_id", in.QueryID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal")
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func loggingMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/healthz") || strings.HasPrefix(r.URL.Path, "/metrics") {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("dur", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
			)
		})
	}
}
