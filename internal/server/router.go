package server

import (
	"net/http"
	"time"

	"taskboard/internal/auth"
	"taskboard/internal/config"
	"taskboard/internal/handlers"
	"taskboard/internal/middleware"
	"taskboard/internal/monitoring"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Auth  *handlers.AuthHandler
	Users *handlers.UserHandler
	Tasks *handlers.TaskHandler
}

// NewRouter mounts the public auth and sign-up routes, the cookie-protected
// user and task routes and the health endpoints.
func NewRouter(cfg *config.Config, h Handlers, verifier auth.TokenVerifier, monitor *monitoring.Monitor) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RecoveryWithLog())
	router.Use(gin.Logger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(monitor.Middleware())

	monitor.RegisterRoutes(router)

	router.POST("/auth/login", h.Auth.Login)
	router.POST("/auth/logout", h.Auth.Logout)
	router.POST("/users", h.Users.CreateUser)

	protected := router.Group("/")
	protected.Use(middleware.CookieAuth(verifier, cfg.Auth.CookieName))
	{
		protected.GET("/users/me", h.Users.GetCurrentUser)
		protected.PATCH("/users", h.Users.ChangePassword)
		protected.GET("/users/:id", h.Users.GetUserByID)
		protected.DELETE("/users/:id", h.Users.DeleteUser)

		protected.GET("/tasks", h.Tasks.GetTasks)
		protected.POST("/tasks", h.Tasks.CreateTask)
		protected.GET("/tasks/:id", h.Tasks.GetTaskByID)
		protected.PATCH("/tasks/:id", h.Tasks.UpdateTask)
		protected.DELETE("/tasks/:id", h.Tasks.DeleteTask)
		protected.POST("/tasks/:id/advance", h.Tasks.AdvanceTask)
	}

	return router
}
