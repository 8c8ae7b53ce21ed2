package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/limitorder/internal/blob/s3"
	"github.com/alanyoungcy/limitorder/internal/cache/redis"
	"github.com/alanyoungcy/limitorder/internal/calldata"
	"github.com/alanyoungcy/limitorder/internal/config"
	"github.com/alanyoungcy/limitorder/internal/crypto"
	"github.com/alanyoungcy/limitorder/internal/domain"
	"github.com/alanyoungcy/limitorder/internal/limitorder"
	"github.com/alanyoungcy/limitorder/internal/server/handler"
	"github.com/alanyoungcy/limitorder/internal/service"
	"github.com/alanyoungcy/limitorder/internal/store/postgres"
)

// Dependencies bundles what the run modes need. Optional backends are nil
// when disabled in the configuration.
type Dependencies struct {
	Wallet  string
	Builder *limitorder.Builder
	Orders  *service.OrderService

	// Optional backends
	AuditStore  domain.AuditStore
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	BlobWriter  domain.BlobWriter

	// HealthChecks probes every enabled backend.
	HealthChecks map[string]handler.HealthCheck
}

// Wire constructs the signer, builder, optional backends and the order
// service from cfg. The returned cleanup releases everything it opened.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{HealthChecks: make(map[string]handler.HealthCheck)}

	// --- Signer ---
	var signer limitorder.Signer
	switch cfg.Signer.Kind {
	case "rpc":
		rpcSigner, err := crypto.DialRPCSigner(ctx, cfg.Signer.RPCURL, logger)
		if err != nil {
			return fail(fmt.Errorf("wire: rpc signer: %w", err))
		}
		closers = append(closers, rpcSigner.Close)
		signer = rpcSigner
		deps.Wallet = cfg.Wallet.Address
	default:
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
			Mnemonic:         cfg.Wallet.Mnemonic,
			DerivationPath:   cfg.Wallet.DerivationPath,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: load key: %w", err))
		}
		local, err := crypto.NewSigner(keyHex, logger)
		if err != nil {
			return fail(fmt.Errorf("wire: signer: %w", err))
		}
		signer = local
		deps.Wallet = local.Address().Hex()
	}

	// --- Redis ---
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		var err error
		redisClient, err = redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.HealthChecks["redis"] = redisClient.Ping
	}

	// --- Builder ---
	opts := []limitorder.Option{limitorder.WithLogger(logger)}
	if cfg.Salt.Registry && redisClient != nil {
		registry := redis.NewSaltRegistry(redisClient, limitorder.SaltFunc(limitorder.GenerateOrderSalt),
			cfg.Salt.TTL.Duration, cfg.Salt.MaxAttempts)
		opts = append(opts, limitorder.WithSaltGenerator(registry))
	}
	builder, err := limitorder.NewBuilder(limitorder.Config{
		ContractAddress: cfg.Protocol.ContractAddress,
		ChainID:         cfg.Protocol.ChainID,
		Name:            cfg.Protocol.Name,
		Version:         cfg.Protocol.Version,
	}, calldata.NewABIEncoder(), signer, opts...)
	if err != nil {
		return fail(fmt.Errorf("wire: builder: %w", err))
	}
	deps.Builder = builder

	// --- PostgreSQL ---
	if cfg.Database.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.AuditStore = postgres.NewAuditStore(pgClient.Pool())
		deps.HealthChecks["postgres"] = pgClient.Ping
	}

	// --- S3 ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.HealthChecks["s3"] = s3Client.Health
	}

	// --- Service ---
	orders := service.NewOrderService(builder, deps.Wallet, logger)
	if deps.AuditStore != nil {
		orders.WithAuditStore(deps.AuditStore)
	}
	if deps.BlobWriter != nil {
		orders.WithArchive(deps.BlobWriter)
	}
	if redisClient != nil {
		orders.WithSignalBus(deps.SignalBus).WithRFQIDs(redis.NewRFQIDs(redisClient))
	}
	deps.Orders = orders

	return deps, cleanup, nil
}
