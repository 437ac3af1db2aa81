// Package server initializes and runs the credential core: key material,
// storage backends, the token and lifecycle services, the authentication
// gate, and the gRPC front. It also owns graceful shutdown and the
// periodic denylist sweep.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/confideapp/confide/internal/cryptox"
	"github.com/confideapp/confide/internal/logging"
	"github.com/confideapp/confide/internal/server/config"
	"github.com/confideapp/confide/internal/server/gate"
	gs "github.com/confideapp/confide/internal/server/grpc"
	"github.com/confideapp/confide/internal/server/keys"
	"github.com/confideapp/confide/internal/server/repositories/repomanager"
	"github.com/confideapp/confide/internal/server/repositories/revoked"
	"github.com/confideapp/confide/internal/server/services"
	"github.com/confideapp/confide/internal/server/token"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	denylist    revoked.Repository
	credentials *services.CredentialService
	grpcServer  *gs.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	var logger logging.Logger
	if cfg.Env == "local" {
		logger = logging.NewConsoleLogger()
	} else {
		logger = logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	km, err := keys.Load(cfg)
	if err != nil {
		return nil, fmt.Errorf("key material error: %w", err)
	}

	// Redis offloads the per-request revocation lookup from Postgres when
	// an address is configured; either backend satisfies the same contract.
	var denylist revoked.Repository
	if cfg.RedisAddr != "" {
		denylist = revoked.NewRedisRepository(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), "")
	} else {
		denylist = revoked.NewPostgresRepository(db)
	}

	tokens := token.NewService(km, cfg.TokenIssuer, cfg.TokenAudience,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL, denylist)

	hasher := cryptox.NewHasher(cfg.BcryptCost, cfg.HashWorkers)

	credentials := services.NewCredentialService(db, rm, tokens, hasher,
		services.NoopNotifier{}, logger, cfg)

	g := gate.New(tokens, rm.Principals(db))
	grpcServer := gs.NewServer(cfg.EndpointAddrGRPC, g, logger)

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		denylist:    denylist,
		credentials: credentials,
		grpcServer:  grpcServer,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// runSweep garbage-collects expired denylist records. Revocation
// correctness relies on read-time expiry only; this keeps the table small.
func (app *App) runSweep(ctx context.Context) {
	if app.config.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(app.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.denylist.DeleteExpired(ctx)
			if err != nil {
				app.logger.Warn(ctx, "denylist sweep failed", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "denylist sweep", "removed", n)
			}
		}
	}
}

// Credentials exposes the lifecycle service to embedding hosts.
func (app *App) Credentials() *services.CredentialService {
	return app.credentials
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runSweep(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.grpcServer.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close failed", "error", err)
	}
}
