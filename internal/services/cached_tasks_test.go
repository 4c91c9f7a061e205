package services_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"taskboard/internal/cache"
	"taskboard/internal/models"
	"taskboard/internal/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTaskService is an in-memory TaskService that counts store reads.
type fakeTaskService struct {
	tasks map[uuid.UUID]models.Task
	order []uuid.UUID
	reads int
}

func newFakeTaskService() *fakeTaskService {
	return &fakeTaskService{tasks: map[uuid.UUID]models.Task{}}
}

func (f *fakeTaskService) CreateTask(ctx context.Context, ownerID uuid.UUID, input services.CreateTaskInput) (*models.Task, error) {
	task := models.Task{ID: uuid.Must(uuid.NewV4()), Title: input.Title, Description: input.Description, Status: models.TaskStatusPending, UserID: ownerID}
	f.tasks[task.ID] = task
	f.order = append(f.order, task.ID)
	return &task, nil
}

func (f *fakeTaskService) FindAll(ctx context.Context) ([]models.Task, error) {
	f.reads++
	all := []models.Task{}
	for _, id := range f.order {
		if task, ok := f.tasks[id]; ok {
			all = append(all, task)
		}
	}
	return all, nil
}

func (f *fakeTaskService) FindTaskByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	f.reads++
	task, ok := f.tasks[id]
	if !ok {
		return nil, services.ErrTaskNotFound
	}
	return &task, nil
}

func (f *fakeTaskService) UpdateTask(ctx context.Context, callerID, id uuid.UUID, update models.TaskUpdate) (*models.Task, error) {
	task, ok := f.tasks[id]
	if !ok {
		return nil, services.ErrTaskNotFound
	}
	if update.Title != nil {
		task.Title = *update.Title
	}
	if update.Status != nil {
		task.Status = *update.Status
	}
	f.tasks[id] = task
	return &task, nil
}

func (f *fakeTaskService) RemoveTask(ctx context.Context, callerID, id uuid.UUID) error {
	if _, ok := f.tasks[id]; !ok {
		return services.ErrTaskNotFound
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeTaskService) AdvanceStatus(ctx context.Context, callerID, id uuid.UUID) (*models.Task, bool, error) {
	task, ok := f.tasks[id]
	if !ok {
		return nil, false, services.ErrTaskNotFound
	}
	next, ok := task.Status.Next()
	if !ok {
		return &task, false, nil
	}
	task.Status = next
	f.tasks[id] = task
	return &task, true, nil
}

func (f *fakeTaskService) DeleteTasksByOwner(ctx context.Context, userID uuid.UUID) (int64, error) {
	var deleted int64
	for id, task := range f.tasks {
		if task.UserID == userID {
			delete(f.tasks, id)
			deleted++
		}
	}
	return deleted, nil
}

func newCachedService(t *testing.T, withRedis bool) (*services.CachedTaskService, *fakeTaskService) {
	t.Helper()

	var redisCache *cache.RedisCache
	if withRedis {
		mr := miniredis.RunT(t)
		client := cache.NewRedisClient(&cache.CacheConfig{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		redisCache = cache.NewRedisCache(client)
	}

	inner := newFakeTaskService()
	return services.NewCachedTaskService(inner, cache.NewMultiLevelCache(redisCache, nil), time.Minute), inner
}

func TestCachedTaskService_ReadThrough(t *testing.T) {
	for _, withRedis := range []bool{false, true} {
		cached, inner := newCachedService(t, withRedis)
		ctx := context.Background()
		owner := uuid.Must(uuid.NewV4())

		created, err := cached.CreateTask(ctx, owner, services.CreateTaskInput{Title: "X"})
		require.NoError(t, err)

		first, err := cached.FindTaskByID(ctx, created.ID)
		require.NoError(t, err)
		second, err := cached.FindTaskByID(ctx, created.ID)
		require.NoError(t, err)

		assert.Equal(t, first.Title, second.Title)
		assert.Equal(t, 0, inner.reads, "created task should already be cached")

		_, err = cached.FindAll(ctx)
		require.NoError(t, err)
		_, err = cached.FindAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, inner.reads, "second list should be served from cache")
	}
}

func TestCachedTaskService_WritesInvalidate(t *testing.T) {
	cached, _ := newCachedService(t, true)
	ctx := context.Background()
	owner := uuid.Must(uuid.NewV4())

	created, err := cached.CreateTask(ctx, owner, services.CreateTaskInput{Title: "X"})
	require.NoError(t, err)

	list, err := cached.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	title := "Y"
	_, err = cached.UpdateTask(ctx, owner, created.ID, models.TaskUpdate{Title: &title})
	require.NoError(t, err)

	found, err := cached.FindTaskByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Y", found.Title)

	list, err = cached.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Y", list[0].Title)

	advanced, changed, err := cached.AdvanceStatus(ctx, owner, created.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	found, err = cached.FindTaskByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, advanced.Status, found.Status)

	require.NoError(t, cached.RemoveTask(ctx, owner, created.ID))
	_, err = cached.FindTaskByID(ctx, created.ID)
	assert.ErrorIs(t, err, services.ErrTaskNotFound)

	list, err = cached.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCachedTaskService_DeleteByOwnerInvalidates(t *testing.T) {
	cached, _ := newCachedService(t, false)
	ctx := context.Background()
	owner := uuid.Must(uuid.NewV4())

	created, err := cached.CreateTask(ctx, owner, services.CreateTaskInput{Title: "X"})
	require.NoError(t, err)
	_, err = cached.FindAll(ctx)
	require.NoError(t, err)

	deleted, err := cached.DeleteTasksByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = cached.FindTaskByID(ctx, created.ID)
	assert.ErrorIs(t, err, services.ErrTaskNotFound)

	list, err := cached.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCachedTaskService_Warm(t *testing.T) {
	cached, inner := newCachedService(t, false)
	ctx := context.Background()

	_, err := inner.CreateTask(ctx, uuid.Must(uuid.NewV4()), services.CreateTaskInput{Title: "X"})
	require.NoError(t, err)

	require.NoError(t, cached.Warm(ctx))
	reads := inner.reads

	list, err := cached.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, reads, inner.reads)
	assert.NotEmpty(t, cached.GetCacheStats())
}

// gatedTaskService blocks reads until release is closed. A read reports the
// state the task had when the read started.
type gatedTaskService struct {
	services.TaskService
	entered chan struct{}
	release chan struct{}
	loads   int32
	once    sync.Once
	removed atomic.Bool
	title   atomic.Value
}

func newGatedTaskService() *gatedTaskService {
	g := &gatedTaskService{entered: make(chan struct{}), release: make(chan struct{})}
	g.title.Store("shared")
	return g
}

func (g *gatedTaskService) FindTaskByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	atomic.AddInt32(&g.loads, 1)
	removed, title := g.removed.Load(), g.title.Load().(string)
	g.once.Do(func() { close(g.entered) })

	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if removed {
		return nil, services.ErrTaskNotFound
	}
	return &models.Task{ID: id, Title: title, Status: models.TaskStatusPending}, nil
}

func (g *gatedTaskService) FindAll(ctx context.Context) ([]models.Task, error) {
	task, err := g.FindTaskByID(ctx, uuid.Nil)
	if err != nil {
		return []models.Task{}, nil
	}
	return []models.Task{*task}, nil
}

func (g *gatedTaskService) RemoveTask(ctx context.Context, callerID, id uuid.UUID) error {
	g.removed.Store(true)
	return nil
}

func (g *gatedTaskService) UpdateTask(ctx context.Context, callerID, id uuid.UUID, update models.TaskUpdate) (*models.Task, error) {
	if update.Title != nil {
		g.title.Store(*update.Title)
	}
	return &models.Task{ID: id, Title: g.title.Load().(string), Status: models.TaskStatusPending}, nil
}

func newGatedCachedService() (*services.CachedTaskService, *gatedTaskService) {
	inner := newGatedTaskService()
	return services.NewCachedTaskService(inner, cache.NewMultiLevelCache(nil, nil), time.Minute), inner
}

func TestCachedTaskService_ConcurrentMissesShareLoad(t *testing.T) {
	cached, inner := newGatedCachedService()
	id := uuid.Must(uuid.NewV4())

	var wg sync.WaitGroup
	results := make([]*models.Task, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			task, err := cached.FindTaskByID(context.Background(), id)
			assert.NoError(t, err)
			results[i] = task
		}(i)
	}

	<-inner.entered
	time.Sleep(50 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.loads))
	for _, task := range results {
		require.NotNil(t, task)
		assert.Equal(t, "shared", task.Title)
	}
}

func TestCachedTaskService_ReadOverlappingDeleteIsNotCached(t *testing.T) {
	cached, inner := newGatedCachedService()
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	done := make(chan error, 1)
	go func() {
		_, err := cached.FindTaskByID(ctx, id)
		done <- err
	}()

	<-inner.entered
	require.NoError(t, cached.RemoveTask(ctx, uuid.Nil, id))
	close(inner.release)
	require.NoError(t, <-done)

	_, err := cached.FindTaskByID(ctx, id)
	assert.ErrorIs(t, err, services.ErrTaskNotFound)
}

func TestCachedTaskService_ListOverlappingUpdateIsNotCached(t *testing.T) {
	cached, inner := newGatedCachedService()
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := cached.FindAll(ctx)
		done <- err
	}()

	<-inner.entered
	title := "renamed"
	_, err := cached.UpdateTask(ctx, uuid.Nil, uuid.Nil, models.TaskUpdate{Title: &title})
	require.NoError(t, err)
	close(inner.release)
	require.NoError(t, <-done)

	list, err := cached.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "renamed", list[0].Title)
}

func TestCachedTaskService_CancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	cached, inner := newGatedCachedService()
	id := uuid.Must(uuid.NewV4())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()

	firstErr := make(chan error, 1)
	go func() {
		_, err := cached.FindTaskByID(firstCtx, id)
		firstErr <- err
	}()
	<-inner.entered

	type result struct {
		task *models.Task
		err  error
	}
	second := make(chan result, 1)
	go func() {
		task, err := cached.FindTaskByID(context.Background(), id)
		second <- result{task, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(inner.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "shared", got.task.Title)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.loads))
}
