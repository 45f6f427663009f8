package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"github.com/davidbz/modelarena/internal/adapter/anthropic"
	"github.com/davidbz/modelarena/internal/adapter/openai"
	"github.com/davidbz/modelarena/internal/adapter/registry"
	"github.com/davidbz/modelarena/internal/adapter/xai"
	"github.com/davidbz/modelarena/internal/config"
	"github.com/davidbz/modelarena/internal/domain"
	"github.com/davidbz/modelarena/internal/events"
	"github.com/davidbz/modelarena/internal/history"
	"github.com/davidbz/modelarena/internal/http"
	"github.com/davidbz/modelarena/internal/http/middleware"
	"github.com/davidbz/modelarena/internal/observability"
	redisstore "github.com/davidbz/modelarena/internal/storage/redis"
	"github.com/davidbz/modelarena/internal/storage/sqlite"
	"github.com/davidbz/modelarena/internal/tokens"
	"github.com/davidbz/modelarena/internal/ws"
)

func main() {
	container := buildContainer()

	err := container.Invoke(func(server *http.Server) {
		if err := server.Start(); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}

	// Token counting
	if err := container.Provide(tokens.NewCounter); err != nil {
		log.Fatalf("Failed to provide token counter: %v", err)
	}

	// Provider adapters
	if err := container.Provide(openai.NewAdapter); err != nil {
		log.Fatalf("Failed to provide OpenAI adapter: %v", err)
	}
	if err := container.Provide(anthropic.NewAdapter); err != nil {
		log.Fatalf("Failed to provide Anthropic adapter: %v", err)
	}
	if err := container.Provide(xai.NewAdapter); err != nil {
		log.Fatalf("Failed to provide xAI adapter: %v", err)
	}

	// Adapter registry
	if err := container.Provide(registry.NewRegistry); err != nil {
		log.Fatalf("Failed to provide registry: %v", err)
	}
	if err := container.Provide(func(reg *registry.Registry) domain.AdapterRegistry {
		return reg
	}); err != nil {
		log.Fatalf("Failed to provide adapter registry: %v", err)
	}

	// Register adapters with registry (invoked for side effects)
	if err := container.Invoke(func(
		reg *registry.Registry,
		openaiAdapter *openai.Adapter,
		anthropicAdapter *anthropic.Adapter,
		xaiAdapter *xai.Adapter,
	) error {
		ctx := context.Background()
		for _, adapter := range []domain.Adapter{openaiAdapter, anthropicAdapter, xaiAdapter} {
			if err := reg.Register(ctx, adapter); err != nil {
				return fmt.Errorf("failed to register adapter: %w", err)
			}
		}
		return nil
	}); err != nil {
		log.Fatalf("Failed to register adapters: %v", err)
	}

	// Event hub
	if err := container.Provide(events.NewHub); err != nil {
		log.Fatalf("Failed to provide event hub: %v", err)
	}
	if err := container.Provide(func(hub *events.Hub) domain.SessionEvents {
		return hub
	}); err != nil {
		log.Fatalf("Failed to provide session events: %v", err)
	}

	// Storage
	if err := container.Provide(func(cfg *config.StorageConfig) (domain.ComparisonStore, error) {
		return sqlite.New(cfg.SQLitePath)
	}); err != nil {
		log.Fatalf("Failed to provide comparison store: %v", err)
	}
	if err := container.Provide(func(cfg *config.StorageConfig) domain.SessionStore {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return redisstore.NewSessionStore(client, time.Duration(cfg.SessionTTLHours)*time.Hour)
	}); err != nil {
		log.Fatalf("Failed to provide session store: %v", err)
	}

	// Domain Services
	if err := container.Provide(domain.NewComparisonService); err != nil {
		log.Fatalf("Failed to provide comparison service: %v", err)
	}
	if err := container.Provide(history.NewService); err != nil {
		log.Fatalf("Failed to provide history service: %v", err)
	}

	// WebSocket gateway
	if err := container.Provide(ws.NewGateway); err != nil {
		log.Fatalf("Failed to provide WebSocket gateway: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(middleware.BuildMiddlewareChain); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(http.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(http.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}
