package handlers

import (
	"net/http"

	"taskboard/internal/models"
	"taskboard/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type TaskHandler struct {
	taskService services.TaskService
}

type CreateTaskRequest struct {
	Title       string `json:"title" validate:"required,notblank,max=255"`
	Description string `json:"description" validate:"max=2000"`
}

// UpdateTaskRequest is a partial update: only supplied fields change.
type UpdateTaskRequest struct {
	Title       *string `json:"title" validate:"omitnil,notblank,max=255"`
	Description *string `json:"description" validate:"omitnil,max=2000"`
	Status      *string `json:"status" validate:"omitnil,taskstatus"`
}

func (r UpdateTaskRequest) toUpdate() models.TaskUpdate {
	update := models.TaskUpdate{Title: r.Title, Description: r.Description}
	if r.Status != nil {
		status := models.TaskStatus(*r.Status)
		update.Status = &status
	}
	return update
}

func NewTaskHandler(taskService services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

func taskIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		respondError(c, services.ErrTaskNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	tasks, err := h.taskService.FindAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"statusCode": http.StatusOK,
		"data":       tasks,
	})
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if !bindAndValidate(c, &req) {
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), identity.UserID, services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"statusCode": http.StatusCreated,
		"message":    "Create task successfully",
		"data":       task,
	})
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	id, ok := taskIDParam(c)
	if !ok {
		return
	}

	task, err := h.taskService.FindTaskByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"statusCode": http.StatusOK,
		"data":       task,
	})
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	id, ok := taskIDParam(c)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if !bindAndValidate(c, &req) {
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), identity.UserID, id, req.toUpdate())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"statusCode": http.StatusOK,
		"message":    "Update task successfully",
		"data":       task,
	})
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	id, ok := taskIDParam(c)
	if !ok {
		return
	}

	if err := h.taskService.RemoveTask(c.Request.Context(), identity.UserID, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"statusCode": http.StatusOK,
		"message":    "Delete task successfully",
	})
}

// AdvanceTask moves the task to its next status. A completed task is
// returned as is.
func (h *TaskHandler) AdvanceTask(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	id, ok := taskIDParam(c)
	if !ok {
		return
	}

	task, advanced, err := h.taskService.AdvanceStatus(c.Request.Context(), identity.UserID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Update task successfully"
	if !advanced {
		message = "Task already completed"
	}

	c.JSON(http.StatusOK, gin.H{
		"statusCode": http.StatusOK,
		"message":    message,
		"data":       task,
	})
}
