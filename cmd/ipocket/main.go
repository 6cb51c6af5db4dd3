package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ipocket/ipocket/internal/auth"
	"github.com/ipocket/ipocket/internal/config"
	"github.com/ipocket/ipocket/internal/connectors"
	"github.com/ipocket/ipocket/internal/export"
	"github.com/ipocket/ipocket/internal/imports"
	"github.com/ipocket/ipocket/internal/inventory"
	"github.com/ipocket/ipocket/internal/server"
	"github.com/ipocket/ipocket/internal/store"
	"github.com/ipocket/ipocket/internal/version"
)

func main() {
	// Subcommand dispatch (before flag.Parse).
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "backup":
			runBackup(os.Args[2:])
			return
		case "restore":
			runRestore(os.Args[2:])
			return
		case "seed":
			runSeed(os.Args[2:])
			return
		case "version":
			fmt.Println(version.Info())
			return
		}
	}

	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration before the logger, so log level/format apply.
	v, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("ipocket server starting", zap.String("version", version.Short()))

	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f))
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"))
	}

	dbPath := v.GetString("database.path")
	db, err := store.New(dbPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.Migrate(ctx, "inventory", inventory.Migrations()); err != nil {
		logger.Fatal("inventory migrations failed", zap.Error(err))
	}
	if err := db.Migrate(ctx, "auth", auth.Migrations()); err != nil {
		logger.Fatal("auth migrations failed", zap.Error(err))
	}
	logger.Info("database initialized",
		zap.String("component", "database"),
		zap.String("path", dbPath))

	inventoryStore := inventory.NewStore(db.DB())

	// Auth service. A missing JWT secret gets an ephemeral one; sessions
	// then die with the process.
	jwtSecret := v.GetString("auth.jwt_secret")
	if jwtSecret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			logger.Fatal("failed to generate JWT secret", zap.Error(err))
		}
		jwtSecret = hex.EncodeToString(b)
		logger.Info("using auto-generated JWT secret (set auth.jwt_secret in config to persist sessions across restarts)",
			zap.String("component", "auth"))
	}
	accessTTL := v.GetDuration("auth.access_token_ttl")
	if accessTTL == 0 {
		accessTTL = 12 * time.Hour
	}
	tokens := auth.NewTokenService([]byte(jwtSecret), accessTTL)
	authService := auth.NewService(auth.NewUserStore(db.DB()), tokens, logger.Named("auth"))

	bootstrapUser := v.GetString("auth.bootstrap_admin")
	bootstrapPassword := v.GetString("auth.bootstrap_password")
	if err := authService.Bootstrap(ctx, bootstrapUser, bootstrapPassword); err != nil {
		logger.Fatal("failed to bootstrap admin user", zap.Error(err))
	}

	authHandler := auth.NewHandler(authService, logger.Named("auth"))
	inventoryHandler := inventory.NewHandler(inventoryStore, logger.Named("inventory"))
	importsHandler := imports.NewHandler(inventoryStore, logger.Named("imports"))
	exportHandler := export.NewHandler(export.NewBuilder(inventoryStore), logger.Named("export"))
	connectorsHandler := connectors.NewHandler(inventoryStore, v, logger.Named("connectors"))

	addr := fmt.Sprintf("%s:%d", v.GetString("server.host"), v.GetInt("server.port"))
	ready := server.ReadinessChecker(func(ctx context.Context) error {
		return db.DB().PingContext(ctx)
	})
	srv := server.New(server.Options{
		Addr:           addr,
		RateLimitRPS:   v.GetFloat64("server.rate_limit.rps"),
		RateLimitBurst: v.GetInt("server.rate_limit.burst"),
	}, logger.Named("server"), ready, auth.Middleware(authService), inventoryStore,
		authHandler, inventoryHandler, importsHandler, exportHandler, connectorsHandler)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()
	logger.Info("ipocket server ready", zap.String("addr", addr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("ipocket server stopped")
}
