package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/niallclarke-spec/couponpro-sub002/internal/audit"
	"github.com/niallclarke-spec/couponpro-sub002/internal/config"
	"github.com/niallclarke-spec/couponpro-sub002/internal/dbhealth"
	"github.com/niallclarke-spec/couponpro-sub002/internal/directory"
	"github.com/niallclarke-spec/couponpro-sub002/internal/dispatch"
	"github.com/niallclarke-spec/couponpro-sub002/internal/gate"
	"github.com/niallclarke-spec/couponpro-sub002/internal/handler"
	httptransport "github.com/niallclarke-spec/couponpro-sub002/internal/http"
	"github.com/niallclarke-spec/couponpro-sub002/internal/identity"
	"github.com/niallclarke-spec/couponpro-sub002/internal/middleware"
	"github.com/niallclarke-spec/couponpro-sub002/internal/routes"
	"github.com/niallclarke-spec/couponpro-sub002/internal/server"
	"github.com/niallclarke-spec/couponpro-sub002/internal/telemetry"
	"github.com/niallclarke-spec/couponpro-sub002/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newRedisClient,
			newDBChecker,
			newVerifier,
			newDirectory,
			newSessionStore,
			newResolver,
			newGatePolicy,
			newAuditRing,
			newGate,
			newHandlers,
			newRouteTable,
			newDispatcher,
			newRateLimiter,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	// No Ping here: the gateway must come up and serve 503s while the
	// database is down. The health checker owns availability.
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newDBChecker(lc fx.Lifecycle, cfg config.Config, pool *pgxpool.Pool, logger *zap.Logger) *dbhealth.Checker {
	checker := dbhealth.NewChecker(pool, cfg.DBPingInterval, logger)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			checker.Start(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			checker.Stop()
			return nil
		},
	})
	return checker
}

func newVerifier(cfg config.Config, logger *zap.Logger) token.Verifier {
	return token.NewJWKSVerifier(token.JWKSConfig{
		URL:             cfg.JWKSURL,
		Issuer:          cfg.TokenIssuer,
		Audience:        cfg.TokenAudience,
		RefreshInterval: cfg.JWKSRefresh,
	}, logger)
}

func newDirectory(cfg config.Config, pool *pgxpool.Pool, client redis.UniversalClient) *directory.CachedDirectory {
	return directory.NewCachedDirectory(directory.NewPostgresDirectory(pool), client, cfg.SetupStatusTTL)
}

func newSessionStore(client redis.UniversalClient) identity.LegacySessions {
	return identity.NewRedisSessionStore(client)
}

func newResolver(verifier token.Verifier, dir *directory.CachedDirectory, sessions identity.LegacySessions, cfg config.Config, logger *zap.Logger) *identity.Resolver {
	return identity.NewResolver(verifier, dir, sessions, cfg.AdminEmails, logger)
}

func newGatePolicy(cfg config.Config) (*gate.Policy, error) {
	return gate.LoadPolicy(cfg.GatePolicyFile)
}

func newAuditRing(cfg config.Config, node *snowflake.Node, logger *zap.Logger) *audit.Ring {
	return audit.NewRing(cfg.AuditRingSize, node, logger)
}

func newGate(policy *gate.Policy, resolver *identity.Resolver, dir *directory.CachedDirectory, ring *audit.Ring, logger *zap.Logger) *gate.Gate {
	return gate.New(policy, resolver, dir, ring, logger)
}

func newHandlers(cfg config.Config, dir *directory.CachedDirectory, ring *audit.Ring, logger *zap.Logger) *handler.Handlers {
	return handler.New(cfg, dir, ring, logger)
}

func newRouteTable(handlers *handler.Handlers) (*routes.Table, error) {
	return routes.NewTable(routes.DefaultRoutes(), handlers.Registry())
}

func newDispatcher(table *routes.Table, g *gate.Gate, checker *dbhealth.Checker, logger *zap.Logger) *dispatch.Dispatcher {
	return dispatch.New(table, g, checker, logger)
}

func newRateLimiter(cfg config.Config) *middleware.RateLimiter {
	return middleware.NewRateLimiter(cfg.RateLimitRPM)
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
