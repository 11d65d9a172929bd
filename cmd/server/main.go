// Command nf-server runs the NFT farm ledger: the gRPC API, the ops/oracle
// HTTP endpoint and the background oracle dispatch and expiry workers.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	farmv1 "github.com/and161185/nft-farm/api/farmv1"
	"github.com/and161185/nft-farm/internal/config"
	"github.com/and161185/nft-farm/internal/oracle"
	grpcserver "github.com/and161185/nft-farm/internal/server/grpc"
	"github.com/and161185/nft-farm/internal/server/httpapi"
	"github.com/and161185/nft-farm/internal/service"
	"github.com/and161185/nft-farm/internal/worker"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var logger *zap.Logger
	if cfg.Dev {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.GRPCAddr),
		zap.String("http", cfg.HTTPAddr),
		zap.Bool("dev", cfg.Dev),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// run wires backends and services and blocks until ctx is cancelled or a
// component fails.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	clock := service.SystemClock()
	roles, oraclePrincipal := rolesFrom(cfg)

	authSvc := service.NewAuthService(b.accounts, []byte(cfg.JWTKey), cfg.AccessTTL, b.limiter, roles, clock)
	registrySvc := service.NewRegistryService(b.ledger, clock, 256, cfg.ConfigCacheTTL, logger.Named("registry"))
	stakingSvc := service.NewStakingService(b.ledger, b.chain, clock, cfg.MaxBatch, logger.Named("staking"))
	harvestSvc := service.NewHarvestService(b.ledger, b.chain, clock, service.HarvestOptions{
		OracleQueryCost:  u256(cfg.OracleQueryCost),
		RequestTTL:       cfg.RequestTTL,
		QueryMaxAttempts: cfg.QueryMaxAttempts,
		CallbackURL:      cfg.OracleCallback,
	}, logger.Named("harvest"))
	fundingSvc := service.NewFundingService(b.ledger, b.chain, logger.Named("funding"))

	var gw oracle.Gateway
	if cfg.Dev {
		gw = oracle.NewLoopback(u256(cfg.DevRarity), oraclePrincipal, harvestSvc)
	} else {
		gw = oracle.NewHTTPGateway(oracle.HTTPOptions{URL: cfg.OracleURL, Secret: []byte(cfg.OracleSecret)}, logger.Named("oracle"))
	}
	host, _ := os.Hostname()
	dispatcher := oracle.NewDispatcher(b.outbox, gw, oracle.DispatcherOptions{
		Owner: fmt.Sprintf("%s-%d", host, os.Getpid()),
	}, logger.Named("dispatcher"))

	// gRPC server with interceptors
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.AuthUnary([]byte(cfg.JWTKey)),
			grpcserver.MetricsUnary(),
			grpcserver.LoggingUnary(logger),
		),
	}
	if cfg.TLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("load TLS cert/key: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	} else {
		logger.Warn("gRPC without TLS")
	}
	gs := grpc.NewServer(opts...)
	farmv1.RegisterFarmServer(gs, grpcserver.New(grpcserver.Services{
		Auth:     authSvc,
		Registry: registrySvc,
		Staking:  stakingSvc,
		Harvest:  harvestSvc,
		Funding:  fundingSvc,
	}))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	if cfg.Dev {
		reflection.Register(gs)
	}

	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Options{
			OracleSecret: []byte(cfg.OracleSecret),
			Oracle:       oraclePrincipal,
			Results:      harvestSvc,
			Ready:        b.ready,
		}, logger.Named("http")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening (gRPC)", zap.String("addr", cfg.GRPCAddr))
		return gs.Serve(lis)
	})
	g.Go(func() error {
		logger.Info("listening (HTTP)", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return worker.NewDispatchWorker(dispatcher, cfg.DispatchInterval, logger).Run(gctx)
	})
	g.Go(func() error {
		return worker.NewExpiryWorker(harvestSvc, cfg.ExpiryInterval, 100, logger).Run(gctx)
	})
	if b.pruner != nil {
		retain := max(cfg.LoginWindow, cfg.LoginBlock)
		g.Go(func() error {
			return worker.NewPruneWorker(b.pruner, time.Hour, retain, time.Now, logger).Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		hs.Shutdown()

		// graceful shutdown
		done := make(chan struct{})
		go func() {
			gs.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(shutdownTimeout):
			gs.Stop()
		}

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})
	return g.Wait()
}
