package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"taskboard/internal/auth"
	"taskboard/internal/database"
	"taskboard/internal/models"
	"taskboard/internal/repositories"
	"taskboard/internal/services"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm/logger"
)

const strongPassword = "Aa123456789_"

// countingTaskRepository records how many writes reach the store.
type countingTaskRepository struct {
	repositories.TaskRepository
	mu      sync.Mutex
	updates int
}

func (r *countingTaskRepository) Update(ctx context.Context, id uuid.UUID, update models.TaskUpdate) (*models.Task, error) {
	r.mu.Lock()
	r.updates++
	r.mu.Unlock()
	return r.TaskRepository.Update(ctx, id, update)
}

func (r *countingTaskRepository) Updates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}

type recordingScheduler struct {
	scheduled []uuid.UUID
}

func (s *recordingScheduler) ScheduleUserTasksCleanup(ctx context.Context, userID uuid.UUID) error {
	s.scheduled = append(s.scheduled, userID)
	return nil
}

type ServicesTestSuite struct {
	suite.Suite
	pool      *database.DatabasePool
	userRepo  repositories.UserRepository
	taskRepo  *countingTaskRepository
	tokens    *auth.TokenManager
	scheduler *recordingScheduler

	authService services.AuthService
	userService services.UserService
	taskService services.TaskService
}

func (suite *ServicesTestSuite) SetupTest() {
	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:   database.DriverSQLite,
		DSN:      ":memory:",
		LogLevel: logger.Silent,
	})
	suite.Require().NoError(err)
	suite.Require().NoError(pool.Migrate())
	suite.pool = pool

	suite.userRepo = repositories.NewUserRepository(pool.DB)
	suite.taskRepo = &countingTaskRepository{TaskRepository: repositories.NewTaskRepository(pool.DB)}

	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	suite.Require().NoError(err)
	suite.tokens = tokens

	hasher := auth.NewPasswordHasher(4)
	suite.scheduler = &recordingScheduler{}
	suite.authService = services.NewAuthService(suite.userRepo, hasher, tokens)
	suite.userService = services.NewUserService(suite.userRepo, hasher, suite.scheduler)
	suite.taskService = services.NewTaskService(suite.taskRepo, suite.userRepo, false)
}

func (suite *ServicesTestSuite) TearDownTest() {
	suite.NoError(suite.pool.Close())
}

func (suite *ServicesTestSuite) register(email string) *models.User {
	user, err := suite.userService.CreateUser(context.Background(), email, strongPassword)
	suite.Require().NoError(err)
	return user
}

func (suite *ServicesTestSuite) TestCreateUser_HashesPassword() {
	user := suite.register("user@example.com")

	suite.NotEqual(uuid.Nil, user.ID)
	suite.NotEqual(strongPassword, user.PasswordHash)
	suite.Contains(user.PasswordHash, "$2a$")
}

func (suite *ServicesTestSuite) TestCreateUser_DuplicateEmail() {
	suite.register("dup@example.com")

	_, err := suite.userService.CreateUser(context.Background(), "dup@example.com", strongPassword)
	suite.ErrorIs(err, services.ErrEmailAlreadyInUse)
}

func (suite *ServicesTestSuite) TestValidateCredentials() {
	ctx := context.Background()
	registered := suite.register("user@example.com")

	user, err := suite.authService.ValidateCredentials(ctx, "user@example.com", strongPassword)
	suite.Require().NoError(err)
	suite.Equal(registered.ID, user.ID)

	user, err = suite.authService.ValidateCredentials(ctx, "user@example.com", "Wrong123456_")
	suite.Nil(user)
	suite.ErrorIs(err, services.ErrInvalidCredentials)

	user, err = suite.authService.ValidateCredentials(ctx, "nobody@example.com", strongPassword)
	suite.Nil(user)
	suite.ErrorIs(err, services.ErrInvalidCredentials)
}

func (suite *ServicesTestSuite) TestLogin_IssuesTokenForUser() {
	registered := suite.register("user@example.com")

	token, user, err := suite.authService.Login(context.Background(), "user@example.com", strongPassword)
	suite.Require().NoError(err)
	suite.Equal(registered.ID, user.ID)

	claims, err := suite.tokens.Verify(token)
	suite.Require().NoError(err)
	suite.Equal(registered.ID.String(), claims.UserID)
	suite.Equal("user@example.com", claims.Email)
}

func (suite *ServicesTestSuite) TestLogin_RejectsWrongPasswordWhenCalledDirectly() {
	suite.register("user@example.com")

	token, user, err := suite.authService.Login(context.Background(), "user@example.com", "Wrong123456_")
	suite.ErrorIs(err, services.ErrInvalidCredentials)
	suite.Empty(token)
	suite.Nil(user)
}

func (suite *ServicesTestSuite) TestLogin_UnknownEmail() {
	_, _, err := suite.authService.Login(context.Background(), "nobody@example.com", strongPassword)
	suite.ErrorIs(err, services.ErrInvalidCredentials)
}

func (suite *ServicesTestSuite) TestChangePassword() {
	ctx := context.Background()
	user := suite.register("user@example.com")

	err := suite.userService.ChangePassword(ctx, user.ID, "Wrong123456_", "NewPass123!")
	suite.ErrorIs(err, services.ErrOldPasswordIncorrect)

	suite.Require().NoError(suite.userService.ChangePassword(ctx, user.ID, strongPassword, "NewPass123!"))

	_, err = suite.authService.ValidateCredentials(ctx, "user@example.com", strongPassword)
	suite.ErrorIs(err, services.ErrInvalidCredentials)

	_, err = suite.authService.ValidateCredentials(ctx, "user@example.com", "NewPass123!")
	suite.NoError(err)

	err = suite.userService.ChangePassword(ctx, uuid.Must(uuid.NewV4()), strongPassword, "NewPass123!")
	suite.ErrorIs(err, services.ErrUserNotFound)
}

func (suite *ServicesTestSuite) TestFindUser() {
	ctx := context.Background()
	user := suite.register("user@example.com")

	found, err := suite.userService.FindUserByID(ctx, user.ID)
	suite.Require().NoError(err)
	suite.Equal("user@example.com", found.Email)

	found, err = suite.userService.FindUserByEmail(ctx, "user@example.com")
	suite.Require().NoError(err)
	suite.Equal(user.ID, found.ID)

	_, err = suite.userService.FindUserByID(ctx, uuid.Must(uuid.NewV4()))
	suite.ErrorIs(err, services.ErrUserNotFound)
}

func (suite *ServicesTestSuite) TestRemoveUser_SchedulesCleanup() {
	ctx := context.Background()
	user := suite.register("user@example.com")

	suite.Require().NoError(suite.userService.RemoveUser(ctx, user.ID))
	suite.Equal([]uuid.UUID{user.ID}, suite.scheduler.scheduled)

	_, err := suite.userService.FindUserByID(ctx, user.ID)
	suite.ErrorIs(err, services.ErrUserNotFound)

	suite.ErrorIs(suite.userService.RemoveUser(ctx, user.ID), services.ErrUserNotFound)
	suite.Len(suite.scheduler.scheduled, 1)
}

func (suite *ServicesTestSuite) TestCreateTask() {
	ctx := context.Background()
	owner := suite.register("owner@example.com")

	task, err := suite.taskService.CreateTask(ctx, owner.ID, services.CreateTaskInput{Title: "X"})
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusPending, task.Status)
	suite.Equal(owner.ID, task.UserID)

	_, err = suite.taskService.CreateTask(ctx, uuid.Must(uuid.NewV4()), services.CreateTaskInput{Title: "X"})
	suite.ErrorIs(err, services.ErrUserNotFound)
}

func (suite *ServicesTestSuite) TestFindTaskByID_Repeatable() {
	ctx := context.Background()
	owner := suite.register("owner@example.com")
	task, err := suite.taskService.CreateTask(ctx, owner.ID, services.CreateTaskInput{Title: "X", Description: "d"})
	suite.Require().NoError(err)

	first, err := suite.taskService.FindTaskByID(ctx, task.ID)
	suite.Require().NoError(err)
	second, err := suite.taskService.FindTaskByID(ctx, task.ID)
	suite.Require().NoError(err)
	suite.Equal(first.Title, second.Title)
	suite.Equal(first.Status, second.Status)
	suite.True(first.UpdatedAt.Equal(second.UpdatedAt))

	_, err = suite.taskService.FindTaskByID(ctx, uuid.Must(uuid.NewV4()))
	suite.ErrorIs(err, services.ErrTaskNotFound)
}

func (suite *ServicesTestSuite) TestUpdateTask_Partial() {
	ctx := context.Background()
	owner := suite.register("owner@example.com")
	task, err := suite.taskService.CreateTask(ctx, owner.ID, services.CreateTaskInput{Title: "X", Description: "keep"})
	suite.Require().NoError(err)

	title := "Y"
	updated, err := suite.taskService.UpdateTask(ctx, owner.ID, task.ID, models.TaskUpdate{Title: &title})
	suite.Require().NoError(err)
	suite.Equal("Y", updated.Title)
	suite.Equal("keep", updated.Description)
	suite.Equal(models.TaskStatusPending, updated.Status)

	bogus := models.TaskStatus("archived")
	_, err = suite.taskService.UpdateTask(ctx, owner.ID, task.ID, models.TaskUpdate{Status: &bogus})
	suite.ErrorIs(err, services.ErrInvalidTaskStatus)

	_, err = suite.taskService.UpdateTask(ctx, owner.ID, uuid.Must(uuid.NewV4()), models.TaskUpdate{Title: &title})
	suite.ErrorIs(err, services.ErrTaskNotFound)
}

func (suite *ServicesTestSuite) TestUpdateAndRemove_AreOwnerAgnosticByDefault() {
	ctx := context.Background()
	owner := suite.register("owner@example.com")
	other := suite.register("other@example.com")
	task, err := suite.taskService.CreateTask(ctx, owner.ID, services.CreateTaskInput{Title: "X"})
	suite.Require().NoError(err)

	status := models.TaskStatusCompleted
	updated, err := suite.taskService.UpdateTask(ctx, other.ID, task.ID, models.TaskUpdate{Status: &status})
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusCompleted, updated.Status)

	suite.NoError(suite.taskService.RemoveTask(ctx, other.ID, task.ID))
	suite.ErrorIs(suite.taskService.RemoveTask(ctx, other.ID, task.ID), services.ErrTaskNotFound)
}

func (suite *ServicesTestSuite) TestOwnershipEnforcement() {
	ctx := context.Background()
	strict := services.NewTaskService(suite.taskRepo, suite.userRepo, true)
	owner := suite.register("owner@example.com")
	other := suite.register("other@example.com")
	task, err := strict.CreateTask(ctx, owner.ID, services.CreateTaskInput{Title: "X"})
	suite.Require().NoError(err)

	title := "stolen"
	_, err = strict.UpdateTask(ctx, other.ID, task.ID, models.TaskUpdate{Title: &title})
	suite.ErrorIs(err, services.ErrTaskForbidden)
	suite.ErrorIs(strict.RemoveTask(ctx, other.ID, task.ID), services.ErrTaskForbidden)
	_, _, err = strict.AdvanceStatus(ctx, other.ID, task.ID)
	suite.ErrorIs(err, services.ErrTaskForbidden)

	_, err = strict.UpdateTask(ctx, owner.ID, task.ID, models.TaskUpdate{Title: &title})
	suite.NoError(err)
}

func (suite *ServicesTestSuite) TestAdvanceStatus() {
	ctx := context.Background()
	owner := suite.register("owner@example.com")
	task, err := suite.taskService.CreateTask(ctx, owner.ID, services.CreateTaskInput{Title: "X"})
	suite.Require().NoError(err)

	advanced, changed, err := suite.taskService.AdvanceStatus(ctx, owner.ID, task.ID)
	suite.Require().NoError(err)
	suite.True(changed)
	suite.Equal(models.TaskStatusInProgress, advanced.Status)

	advanced, changed, err = suite.taskService.AdvanceStatus(ctx, owner.ID, task.ID)
	suite.Require().NoError(err)
	suite.True(changed)
	suite.Equal(models.TaskStatusCompleted, advanced.Status)

	writes := suite.taskRepo.Updates()
	advanced, changed, err = suite.taskService.AdvanceStatus(ctx, owner.ID, task.ID)
	suite.Require().NoError(err)
	suite.False(changed)
	suite.Equal(models.TaskStatusCompleted, advanced.Status)
	suite.Equal(writes, suite.taskRepo.Updates(), "advancing a completed task must not write")
}

func (suite *ServicesTestSuite) TestFindAllAndDeleteByOwner() {
	ctx := context.Background()
	alice := suite.register("alice@example.com")
	bob := suite.register("bob@example.com")

	all, err := suite.taskService.FindAll(ctx)
	suite.Require().NoError(err)
	suite.Empty(all)

	for _, owner := range []uuid.UUID{alice.ID, bob.ID, alice.ID} {
		_, err := suite.taskService.CreateTask(ctx, owner, services.CreateTaskInput{Title: "t"})
		suite.Require().NoError(err)
	}

	all, err = suite.taskService.FindAll(ctx)
	suite.Require().NoError(err)
	suite.Len(all, 3)

	deleted, err := suite.taskService.DeleteTasksByOwner(ctx, alice.ID)
	suite.Require().NoError(err)
	suite.Equal(int64(2), deleted)
}

func TestServicesTestSuite(t *testing.T) {
	suite.Run(t, new(ServicesTestSuite))
}
