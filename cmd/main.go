package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"

	"github.com/dtroode/gophdate-session/internal/api/control"
	grpcclient "github.com/dtroode/gophdate-session/internal/api/grpc/client"
	"github.com/dtroode/gophdate-session/internal/api/grpc/middleware"
	"github.com/dtroode/gophdate-session/internal/api/rest"
	"github.com/dtroode/gophdate-session/internal/config"
	"github.com/dtroode/gophdate-session/internal/credential"
	"github.com/dtroode/gophdate-session/internal/logger"
	"github.com/dtroode/gophdate-session/internal/metrics"
	"github.com/dtroode/gophdate-session/internal/model"
	"github.com/dtroode/gophdate-session/internal/netwatch"
	"github.com/dtroode/gophdate-session/internal/server"
	"github.com/dtroode/gophdate-session/internal/service"
	"github.com/dtroode/gophdate-session/internal/session"
	"github.com/dtroode/gophdate-session/internal/state"
	"github.com/dtroode/gophdate-session/internal/storage/cookie"
	"github.com/dtroode/gophdate-session/internal/storage/memory"
	storage "github.com/dtroode/gophdate-session/internal/storage/minio"
	"github.com/dtroode/gophdate-session/internal/storage/postgres"
	redisstore "github.com/dtroode/gophdate-session/internal/storage/redis"
	"github.com/dtroode/gophdate-session/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	jar, err := cookie.NewJar()
	if err != nil {
		logger.Fatal("failed to create cookie jar", "error", err)
	}
	cookies, err := cookie.New(jar, cfg.Auth.Origin, cfg.Cookie.TTL)
	if err != nil {
		logger.Fatal("failed to create cookie backing", "error", err)
	}

	durable, closeDurable, err := openDurableBacking(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize durable storage", "driver", cfg.Storage.Driver, "error", err)
	}
	defer closeDurable()

	store := credential.NewStore(durable, cookies, logger.Named("credential"))
	backend := rest.New(cfg.Auth.BaseURL, jar, logger.Named("rest"))
	detector := token.NewDetector()

	manager := session.NewManager(session.Config{
		CheckInterval:     cfg.Session.CheckInterval,
		Buffer:            cfg.Session.ExpiryBuffer,
		ReconcileInterval: cfg.Session.ReconcileInterval,
		OnFailure: func(err error) {
			logger.Warn("session refresh failed, retrying on next check", "error", err.Error())
		},
	}, backend, store, detector, m, logger)

	uiState := state.NewStore()
	unsubscribe := manager.Subscribe(uiState.OnTokensRefreshed)
	defer unsubscribe()
	if err := uiState.Seed(ctx, store); err != nil {
		logger.Warn("failed to seed session state", "error", err.Error())
	}
	auth := service.NewAuth(backend, store, uiState, logger.Named("auth"))

	conn, err := dialBackend(cfg, manager, logger)
	if err != nil {
		logger.Fatal("failed to create grpc client", "error", err)
	}
	defer conn.Close()

	if err := manager.Start(ctx); err != nil {
		logger.Fatal("failed to start session manager", "error", err)
	}

	var wg sync.WaitGroup

	if cfg.Netwatch.Enabled {
		watcher, err := newWatcher(cfg, conn, manager, logger)
		if err != nil {
			logger.Fatal("failed to create connectivity watcher", "error", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			watcher.Run(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		forwardForegroundSignals(ctx, manager, logger)
	}()

	var controlServer model.Server
	if cfg.Control.Enabled {
		controlServer = control.NewServer(cfg.Control.Address, manager, auth, detector, registry, logger.Named("control"))
		sl := server.NewSecurityLayer(cfg.Security)

		wg.Add(1)
		go func(s model.Server) {
			defer wg.Done()
			logger.Info("Starting control server on", "address", s.Address())
			if err := s.Start(sl); err != nil {
				logger.Error("failed to start control server", "error", err)
			}
		}(controlServer)
	}

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if controlServer != nil {
		if err := controlServer.Stop(shutdownCtx); err != nil {
			logger.Error("error during server shutdown", "error", err, "address", controlServer.Address())
		}
	}
	manager.Stop()

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}

func openDurableBacking(ctx context.Context, cfg *config.Config) (model.Backing, func(), error) {
	noop := func() {}

	switch cfg.Storage.Driver {
	case config.DriverRedis:
		client, err := redisstore.NewClient(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, noop, err
		}
		return redisstore.NewBacking(client, cfg.Redis.Prefix, cfg.Storage.Namespace), closer(client), nil

	case config.DriverPostgres:
		db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, noop, err
		}
		return postgres.NewBacking(db.DB, cfg.Storage.Namespace), closer(db), nil

	case config.DriverMinio:
		client, err := minio.New(cfg.Minio.Endpoint, &minio.Options{
			Creds:  miniocreds.NewStaticV4(cfg.Minio.AccessKey, cfg.Minio.SecretKey, ""),
			Secure: cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create minio client: %w", err)
		}
		backing, err := storage.NewBacking(ctx, client, cfg.Minio.Bucket, cfg.Storage.Namespace)
		if err != nil {
			return nil, noop, err
		}
		return backing, noop, nil

	default:
		return memory.New("memory"), noop, nil
	}
}

func closer(c io.Closer) func() {
	return func() { _ = c.Close() }
}

func dialBackend(cfg *config.Config, manager *session.Manager, logger *logger.Logger) (*grpc.ClientConn, error) {
	creds, err := server.ClientCredentials(cfg.Auth.GRPCInsecure, cfg.Auth.GRPCCAFile)
	if err != nil {
		return nil, err
	}
	authenticate := middleware.NewAuthenticate(manager, manager, logger.Named("grpc"))
	return grpcclient.New(cfg.Auth.GRPCTarget, creds, authenticate, logger.Named("grpc"))
}

func newWatcher(cfg *config.Config, conn *grpc.ClientConn, manager *session.Manager, logger *logger.Logger) (*netwatch.Watcher, error) {
	var prober netwatch.Prober
	if cfg.Netwatch.Probe == config.ProbeGRPC {
		prober = netwatch.NewGRPCProber(conn, "")
	} else {
		addr, err := cfg.ProbeAddress()
		if err != nil {
			return nil, err
		}
		prober = netwatch.NewTCPProber(addr)
	}

	return netwatch.NewWatcher(prober, cfg.Netwatch.Interval, cfg.Netwatch.Timeout, manager.CheckNow, logger.Named("netwatch")), nil
}

// SIGUSR1 is the application-foreground signal.
func forwardForegroundSignals(ctx context.Context, manager *session.Manager, logger *logger.Logger) {
	foreground := make(chan os.Signal, 1)
	signal.Notify(foreground, syscall.SIGUSR1)
	defer signal.Stop(foreground)

	for {
		select {
		case <-ctx.Done():
			return
		case <-foreground:
			logger.Debug("foreground signal received, checking session")
			manager.CheckNow()
		}
	}
}
