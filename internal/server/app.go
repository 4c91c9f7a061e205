package server

import (
	"context"
	"fmt"

	"taskboard/internal/auth"
	"taskboard/internal/cache"
	"taskboard/internal/config"
	"taskboard/internal/database"
	"taskboard/internal/handlers"
	"taskboard/internal/monitoring"
	"taskboard/internal/repositories"
	"taskboard/internal/services"
	"taskboard/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// App holds the wired services behind the HTTP router.
type App struct {
	Router  *gin.Engine
	Monitor *monitoring.Monitor
	Tasks   *services.CachedTaskService
	// Worker is nil when redis is disabled; cleanup then runs inline.
	Worker *worker.Worker
}

// NewApp wires repositories, services and handlers. redisClient may be nil.
func NewApp(cfg *config.Config, db *database.DatabasePool, redisClient *redis.Client) (*App, error) {
	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create token manager: %w", err)
	}
	hasher := auth.NewPasswordHasher(cfg.Auth.BCryptCost)

	userRepo := repositories.NewUserRepository(db.DB)
	taskRepo := repositories.NewTaskRepository(db.DB)

	var redisCache *cache.RedisCache
	var queue *worker.JobQueue
	if redisClient != nil {
		redisCache = cache.NewRedisCache(redisClient)
		queue = worker.NewJobQueue(redisClient)
	}

	taskCache := cache.NewMultiLevelCache(redisCache, cache.DefaultMultiLevelConfig())
	taskService := services.NewCachedTaskService(
		services.NewTaskService(taskRepo, userRepo, cfg.Tasks.EnforceOwnership),
		taskCache,
		cfg.Tasks.CacheTTL,
	)

	userService := services.NewUserService(userRepo, hasher, worker.NewCleanupScheduler(queue, taskService))
	authService := services.NewAuthService(userRepo, hasher, tokens)

	app := &App{
		Monitor: monitoring.NewMonitor(),
		Tasks:   taskService,
	}

	if redisClient != nil {
		app.Worker = worker.NewWorker(worker.WorkerConfig{
			RedisClient:  redisClient,
			PollInterval: cfg.Worker.PollInterval,
			Queues:       cfg.Worker.Queues,
		})
		app.Worker.RegisterHandler(worker.JobTypeUserTasksCleanup, worker.NewUserTasksCleanupHandler(taskService))

		app.Monitor.RegisterHealthCheck("redis", taskCache.Health)
		app.Monitor.RegisterStats("worker", func() map[string]interface{} {
			stats := make(map[string]interface{})
			for _, name := range []string{worker.DefaultQueue, worker.DeadQueue} {
				size, err := queue.GetQueueSize(context.Background(), name)
				if err != nil {
					stats[name] = err.Error()
					continue
				}
				stats[name] = size
			}
			return stats
		})
	}

	app.Monitor.RegisterHealthCheck("database", db.HealthContext)
	app.Monitor.RegisterStats("database", db.Stats)
	app.Monitor.RegisterStats("cache", taskService.GetCacheStats)

	app.Router = NewRouter(cfg, Handlers{
		Auth: handlers.NewAuthHandler(authService, handlers.CookieConfig{
			Name:   cfg.Auth.CookieName,
			TTL:    tokens.TTL(),
			Secure: cfg.Auth.CookieSecure,
		}),
		Users: handlers.NewUserHandler(userService),
		Tasks: handlers.NewTaskHandler(taskService),
	}, tokens, app.Monitor)

	return app, nil
}
