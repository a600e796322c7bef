// Command ek-server starts the expense-keeper gRPC and HTTP servers.
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

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	v1 "github.com/and161185/expense-keeper/internal/api/expensesv1"
	"github.com/and161185/expense-keeper/internal/auth"
	"github.com/and161185/expense-keeper/internal/config"
	pkgcrypto "github.com/and161185/expense-keeper/internal/crypto"
	"github.com/and161185/expense-keeper/internal/limiter"
	"github.com/and161185/expense-keeper/internal/migrate"
	"github.com/and161185/expense-keeper/internal/realtime"
	"github.com/and161185/expense-keeper/internal/repository"
	"github.com/and161185/expense-keeper/internal/repository/memory"
	"github.com/and161185/expense-keeper/internal/repository/postgres"
	"github.com/and161185/expense-keeper/internal/rules"
	grpcserver "github.com/and161185/expense-keeper/internal/server/grpc"
	httpserver "github.com/and161185/expense-keeper/internal/server/http"
	"github.com/and161185/expense-keeper/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

// relay is a cross-instance change feed.
type relay interface {
	realtime.Publisher
	Run(ctx context.Context) error
}

// main loads configuration, prepares storage and starts both servers.
func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	logger, _ := zap.NewProduction()
	if cfg.Dev {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("grpc", cfg.GRPCAddr),
		zap.String("http", cfg.HTTPAddr),
		zap.String("storage", cfg.Storage),
		zap.String("realtime", cfg.Realtime.Mode),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	var (
		users    repository.UserRepository
		expenses repository.ExpenseRepository
		lim      limiter.Limiter
	)
	limits := limiter.Settings{Window: cfg.Limiter.Window, MaxFails: cfg.Limiter.MaxFails, BlockFor: cfg.Limiter.BlockFor}
	switch cfg.Storage {
	case config.StoragePostgres:
		applied, err := migrate.Up(ctx, cfg.DSN, logger)
		if err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
		logger.Info("migrations applied", zap.Int64("version", applied))

		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			logger.Fatal("pgxpool.New", zap.Error(err))
		}
		defer db.Close()
		users = postgres.NewUserRepo(db)
		expenses = postgres.NewExpenseRepo(db)
		lim = limiter.NewPG(db.Pool, limits)
	default:
		logger.Warn("in-memory storage: data is lost on restart")
		users = memory.NewUserRepo()
		expenses = memory.NewExpenseRepo()
		lim = limiter.NewMemory(limits)
	}

	// Realtime fan-out
	hub := realtime.NewHub()
	var pub realtime.Publisher = hub
	var feed relay
	switch cfg.Realtime.Mode {
	case config.RealtimeRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Realtime.RedisAddr,
			Password: cfg.Realtime.RedisPassword,
			DB:       cfg.Realtime.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		feed = realtime.NewRedisRelay(rdb, cfg.Realtime.Channel, hub, logger)
	case config.RealtimePostgres:
		// the table trigger always notifies on the default channel
		feed = realtime.NewPGRelay(cfg.DSN, realtime.DefaultChannel, hub, logger)
	}
	if feed != nil {
		pub = feed
		go func() {
			if err := feed.Run(ctx); err != nil {
				logger.Error("realtime relay stopped", zap.Error(err))
			}
		}()
	}

	// Rules
	ruleOpts := []rules.Option{rules.WithDisjointACL(cfg.Policy.EnforceACLDisjoint), rules.WithLogger(logger)}
	if cfg.Policy.File != "" {
		src, err := os.ReadFile(cfg.Policy.File)
		if err != nil {
			logger.Fatal("read policy", zap.Error(err))
		}
		p, err := rules.ParsePolicy(src)
		if err != nil {
			logger.Fatal("parse policy", zap.Error(err))
		}
		ruleOpts = append(ruleOpts, rules.WithPolicy(p))
	}
	engine, err := rules.New(ruleOpts...)
	if err != nil {
		logger.Fatal("compile rules", zap.Error(err))
	}

	// Services
	tokens := auth.NewManager([]byte(cfg.JWTKey), cfg.AccessTTL)
	authSvc := service.NewAuthService(users, tokens, pkgcrypto.NewHasher(pkgcrypto.DefaultArgon2), lim)
	expenseSvc := service.NewExpenseService(expenses, engine, pub, hub,
		service.Limits{MaxPageSize: cfg.Limits.MaxPageSize, MaxIDLength: cfg.Limits.MaxIDLength}, logger)

	// gRPC server with interceptors
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			grpcserver.AuthUnary(tokens),
		),
		grpc.ChainStreamInterceptor(
			grpcserver.RecoverStream(logger),
			grpcserver.LoggingStream(logger),
			grpcserver.AuthStream(tokens),
		),
	}
	if cfg.TLS() {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		opts = append(opts, grpc.Creds(creds))
	} else {
		logger.Warn("serving without TLS (dev)")
	}
	s := grpc.NewServer(opts...)
	v1.RegisterExpenseKeeperServer(s, grpcserver.New(authSvc, expenseSvc, logger))

	// Health & reflection (dev)
	hs := health.NewServer()
	hs.SetServingStatus(v1.ExpenseKeeper_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	if cfg.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("grpc listening", zap.String("addr", cfg.GRPCAddr), zap.Bool("tls", cfg.TLS()))
		errCh <- s.Serve(lis)
	}()

	var hsrv *http.Server
	if cfg.HTTPAddr != "" {
		hsrv = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           httpserver.New(expenseSvc, tokens, logger).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.Bool("tls", cfg.TLS()))
			var err error
			if cfg.TLS() {
				err = hsrv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
			} else {
				err = hsrv.ListenAndServe()
			}
			if !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	// Wait for stop
	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	// graceful shutdown
	stop()
	hs.Shutdown()
	if hsrv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := hsrv.Shutdown(sctx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
		cancel()
	}
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		s.Stop()
	}

	logger.Info("shutdown complete")
}
