package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/auth"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/config"
	apphttp "github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/http"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const cacheCleanupInterval = 5 * time.Minute

// Service is the permission admin service: the HTTP API and the resources
// it holds open.
type Service struct {
	config     *config.Config
	server     *apphttp.Server
	pool       *pgxpool.Pool
	redis      *redis.Client
	identities *auth.MemoryIdentityCache
	stop       chan struct{}
}

// NewService creates and initializes a new Service instance
func NewService() (*Service, error) {
	return InitializeService()
}

// Start runs the HTTP server until it is shut down.
func (s *Service) Start() error {
	s.stop = make(chan struct{})
	go s.startCacheCleanup()

	address := ":" + s.config.Server.Port
	log.Printf("Starting ACC permission service on %s", address)
	if err := s.server.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// startCacheCleanup runs a background task to clear expired cache entries
func (s *Service) startCacheCleanup() {
	ticker := time.NewTicker(cacheCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.server.ClearCaches()
			if s.identities != nil {
				s.identities.Clear()
			}
		case <-s.stop:
			return
		}
	}
}

// Shutdown stops the server, then closes the database and redis clients.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.stop != nil {
		close(s.stop)
	}
	err := s.server.Shutdown(ctx)
	s.closeResources()
	return err
}

// ShutdownTimeout is how long Shutdown may wait for in-flight requests.
func (s *Service) ShutdownTimeout() time.Duration {
	return s.config.Server.ShutdownTimeout
}

func (s *Service) closeResources() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Printf("Failed to close redis client: %v", err)
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
