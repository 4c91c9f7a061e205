package handlers

import (
	"errors"
	"log"
	"net/http"

	"taskboard/internal/middleware"
	"taskboard/internal/services"
	"taskboard/internal/validation"

	"github.com/gin-gonic/gin"
)

// respondError is the single place where service errors become HTTP
// responses. Unknown errors are logged and reported as a bare 500.
func respondError(c *gin.Context, err error) {
	status, message := http.StatusInternalServerError, "Internal server error"

	switch {
	case errors.Is(err, services.ErrUserNotFound):
		status, message = http.StatusNotFound, "User not found"
	case errors.Is(err, services.ErrTaskNotFound):
		status, message = http.StatusNotFound, "Task not found"
	case errors.Is(err, services.ErrEmailAlreadyInUse):
		status, message = http.StatusBadRequest, "Email already in use"
	case errors.Is(err, services.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, "Email not found or password is incorrect"
	case errors.Is(err, services.ErrOldPasswordIncorrect):
		status, message = http.StatusUnauthorized, "Old password is incorrect"
	case errors.Is(err, services.ErrTaskForbidden):
		status, message = http.StatusForbidden, "You do not have access to this task"
	case errors.Is(err, services.ErrInvalidTaskStatus):
		status, message = http.StatusBadRequest, "Invalid task status"
	default:
		log.Printf("Unhandled error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}

	c.JSON(status, gin.H{
		"statusCode": status,
		"message":    message,
		"error":      http.StatusText(status),
	})
}

// bindAndValidate decodes the JSON body into dest and runs the validation
// schema. It writes the 400 response itself and returns false on failure.
func bindAndValidate(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"statusCode": http.StatusBadRequest,
			"message":    "Invalid request body",
			"error":      http.StatusText(http.StatusBadRequest),
		})
		return false
	}

	if fieldErrors := validation.Validate(dest); fieldErrors != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"statusCode": http.StatusBadRequest,
			"message":    "Validation failed",
			"errors":     fieldErrors,
		})
		return false
	}
	return true
}

// currentIdentity writes a 401 when the auth middleware did not run.
func currentIdentity(c *gin.Context) (middleware.Identity, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"statusCode": http.StatusUnauthorized,
			"message":    "Unauthorized",
			"error":      http.StatusText(http.StatusUnauthorized),
		})
	}
	return identity, ok
}
