package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/acc"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/audit"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/auth"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/config"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/subject"
	apphttp "github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/http"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/http/handler"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/infra/cache"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/infra/postgres"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/infra/s3"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/lock"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/reconcile"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/sealed"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/store"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/metrics"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	startupTimeout = 10 * time.Second
	accRetryCount  = 3
)

// InitializeService wires up all dependencies and returns a configured Service
func InitializeService() (*Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	s := &Service{config: cfg}
	ok := false
	defer func() {
		if !ok {
			s.closeResources()
		}
	}()

	// Postgres is shared by the document store and the audit log
	if cfg.Database.URL != "" {
		s.pool, err = postgres.NewPool(ctx, cfg.Database.URL, int32(cfg.Database.MaxConns))
		if err != nil {
			return nil, err
		}
	}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		s.redis = redis.NewClient(opts)
		if err := s.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	documents, err := newDocumentStore(ctx, cfg, s.pool)
	if err != nil {
		return nil, err
	}

	// The client without a token is the template every request copies
	client := acc.New(acc.Options{
		BaseURL:           cfg.APS.BaseURL,
		Timeout:           cfg.APS.HTTPTimeout,
		RequestsPerSecond: cfg.APS.RequestsPerSecond,
		Burst:             cfg.APS.Burst,
		UsersPageSize:     cfg.APS.UsersPageSize,
		RetryCount:        accRetryCount,
	})
	apiFactory := func(token string) handler.ProjectAPI {
		return client.WithToken(token)
	}

	var (
		guard      reconcile.Guard
		identities auth.IdentityCache
	)
	if s.redis != nil {
		guard = lock.NewRedisWithClient(s.redis, cfg.Redis.LockTTL)
		identities = auth.NewRedisIdentityCache(cache.NewRedisCache(s.redis), log.Default())
		log.Println("Sync guard and identity cache: redis")
	} else {
		guard = lock.NewMemory()
		s.identities = auth.NewMemoryIdentityCache(cache.NewTTL[auth.Operator]())
		identities = s.identities
		log.Println("Sync guard and identity cache: in-memory")
	}

	serviceOpts := []reconcile.ServiceOption{
		reconcile.WithConcurrency(cfg.Sync.Concurrency),
	}
	if cfg.AuditEnabled() {
		auditLogger := audit.NewLogger(s.pool)
		if err := auditLogger.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		serviceOpts = append(serviceOpts, reconcile.WithAuditor(auditLogger))
		log.Println("Sync audit log enabled")
	}
	syncService := reconcile.NewService(reconcile.NewEngine(log.Default()), documents, guard, serviceOpts...)

	resolver := auth.NewResolver(auth.ProfileFromClient(client), identities, cfg.APS.IdentityCacheTTL)

	s.server = apphttp.NewServer(&apphttp.ServerDependencies{
		Config:         cfg,
		API:            apiFactory,
		Documents:      documents,
		Sync:           syncService,
		AuthMiddleware: auth.NewMiddleware(resolver),
		Metrics:        metrics.GetMetrics(),
		UsersCache:     cache.NewTTL[[]subject.ProjectUser](),
		Logger:         log.Default(),
	})

	ok = true
	return s, nil
}

// newDocumentStore builds the document store for the configured backend.
// Persistent backends seal documents with the store secret.
func newDocumentStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (store.Store, error) {
	if cfg.Store.Backend == config.BackendMemory {
		log.Println("Document store: in-memory")
		return store.NewMemoryStore(), nil
	}

	sealer, err := sealed.New(cfg.Store.EncryptionSecret, cfg.Store.ScryptWorkFactor)
	if err != nil {
		return nil, fmt.Errorf("failed to create document sealer: %w", err)
	}

	switch cfg.Store.Backend {
	case config.BackendS3:
		s3Client, err := s3.NewClient(s3.Config{
			Bucket:          cfg.AWS.Bucket,
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Endpoint:        cfg.AWS.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		log.Printf("Document store: s3 bucket %s", cfg.AWS.Bucket)
		return store.New(store.NewS3Blobs(s3Client), sealer), nil

	case config.BackendPostgres:
		blobs := store.NewPostgresBlobs(pool)
		if err := blobs.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		log.Println("Document store: postgres")
		return store.New(blobs, sealer), nil
	}

	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// OpenDocumentStore opens the configured document store on its own, for
// tools that do not run the HTTP service. The returned func releases it.
func OpenDocumentStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	var pool *pgxpool.Pool
	if cfg.Store.Backend == config.BackendPostgres {
		var err error
		pool, err = postgres.NewPool(ctx, cfg.Database.URL, int32(cfg.Database.MaxConns))
		if err != nil {
			return nil, nil, err
		}
	}
	release := func() {
		if pool != nil {
			pool.Close()
		}
	}

	docs, err := newDocumentStore(ctx, cfg, pool)
	if err != nil {
		release()
		return nil, nil, err
	}
	return docs, release, nil
}
