package services

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"taskboard/internal/cache"
	"taskboard/internal/models"

	"github.com/gofrs/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	allTasksKey = "all_tasks"
	loadTimeout = 10 * time.Second
)

func taskCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("task:%s", id.String())
}

// CachedTaskService decorates a TaskService with read-through caching of
// single tasks and the full list. Every successful write invalidates the
// affected task and the list. Cache errors are logged, never returned.
// Concurrent misses for the same key share one load. A load that overlaps a
// write never leaves its result in the cache.
type CachedTaskService struct {
	taskService TaskService
	cache       *cache.MultiLevelCache
	ttl         time.Duration
	loads       singleflight.Group
	// generation is bumped by every invalidation.
	generation atomic.Uint64
}

func NewCachedTaskService(taskService TaskService, cacheInstance *cache.MultiLevelCache, ttl time.Duration) *CachedTaskService {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &CachedTaskService{
		taskService: taskService,
		cache:       cacheInstance,
		ttl:         ttl,
	}
}

func (s *CachedTaskService) CreateTask(ctx context.Context, ownerID uuid.UUID, input CreateTaskInput) (*models.Task, error) {
	task, err := s.taskService.CreateTask(ctx, ownerID, input)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.store(ctx, taskCacheKey(task.ID), task)
	return task, nil
}

func (s *CachedTaskService) FindAll(ctx context.Context) ([]models.Task, error) {
	var cached []models.Task
	if err := s.cache.Get(ctx, allTasksKey, &cached); err == nil {
		return cached, nil
	}

	loaded, err := s.load(ctx, allTasksKey, func(ctx context.Context) (interface{}, error) {
		return s.taskService.FindAll(ctx)
	})
	if err != nil {
		return nil, err
	}
	return loaded.([]models.Task), nil
}

func (s *CachedTaskService) FindTaskByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	key := taskCacheKey(id)

	var cached models.Task
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	loaded, err := s.load(ctx, key, func(ctx context.Context) (interface{}, error) {
		return s.taskService.FindTaskByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return loaded.(*models.Task), nil
}

// load runs fetch once per key across concurrent callers and caches the
// result. The shared fetch is detached from the caller that started it, so a
// cancelled request only ends its own wait.
func (s *CachedTaskService) load(ctx context.Context, key string, fetch func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := s.loads.DoChan(key, func() (interface{}, error) {
		generation := s.generation.Load()

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		value, err := fetch(loadCtx)
		if err != nil {
			return nil, err
		}

		s.store(loadCtx, key, value)
		if s.generation.Load() != generation {
			if err := s.cache.Delete(loadCtx, key); err != nil {
				log.Printf("Task cache: failed to drop stale %s: %v", key, err)
			}
		}
		return value, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-ch:
		return result.Val, result.Err
	}
}

func (s *CachedTaskService) UpdateTask(ctx context.Context, callerID, id uuid.UUID, update models.TaskUpdate) (*models.Task, error) {
	task, err := s.taskService.UpdateTask(ctx, callerID, id, update)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, taskCacheKey(id))
	return task, nil
}

func (s *CachedTaskService) RemoveTask(ctx context.Context, callerID, id uuid.UUID) error {
	if err := s.taskService.RemoveTask(ctx, callerID, id); err != nil {
		return err
	}

	s.invalidate(ctx, taskCacheKey(id))
	return nil
}

func (s *CachedTaskService) AdvanceStatus(ctx context.Context, callerID, id uuid.UUID) (*models.Task, bool, error) {
	task, advanced, err := s.taskService.AdvanceStatus(ctx, callerID, id)
	if err != nil {
		return nil, false, err
	}

	if advanced {
		s.invalidate(ctx, taskCacheKey(id))
	}
	return task, advanced, nil
}

func (s *CachedTaskService) DeleteTasksByOwner(ctx context.Context, userID uuid.UUID) (int64, error) {
	deleted, err := s.taskService.DeleteTasksByOwner(ctx, userID)
	if err != nil {
		return deleted, err
	}

	if deleted > 0 {
		s.generation.Add(1)
		if err := s.cache.DeletePattern(ctx, "task:*"); err != nil {
			log.Printf("Task cache: failed to drop task entries: %v", err)
		}
		s.invalidate(ctx)
	}
	return deleted, nil
}

// Warm preloads the task list so the first GET /tasks after startup is served
// from cache.
func (s *CachedTaskService) Warm(ctx context.Context) error {
	tasks, err := s.taskService.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to warm task cache: %w", err)
	}

	s.store(ctx, allTasksKey, tasks)
	log.Printf("Task cache warmed with %d tasks", len(tasks))
	return nil
}

func (s *CachedTaskService) GetCacheStats() map[string]interface{} {
	return s.cache.Stats()
}

func (s *CachedTaskService) store(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		log.Printf("Task cache: failed to store %s: %v", key, err)
	}
}

// invalidate bumps the generation before deleting, so a load that read the
// store before this write either sees the bump or has its entry deleted here.
func (s *CachedTaskService) invalidate(ctx context.Context, keys ...string) {
	keys = append(keys, allTasksKey)
	s.generation.Add(1)
	if err := s.cache.Delete(ctx, keys...); err != nil {
		log.Printf("Task cache: failed to invalidate %v: %v", keys, err)
	}
	for _, key := range keys {
		s.loads.Forget(key)
	}
}
