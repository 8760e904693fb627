package router

import (
	"github.com/fasthttp/router"

	apiHandler "github.com/remindly/backend/api/handler"
	"github.com/remindly/backend/internal/middleware"
)

type Handlers struct {
	Reminder *apiHandler.ReminderHandler
	Health   *apiHandler.HealthHandler
}

func New(handlers Handlers) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	actor := middleware.ResolveActor

	r.POST("/api/v1/reminders/from-text", actor(handlers.Reminder.CreateFromText))
	r.POST("/api/v1/reminders", actor(handlers.Reminder.Create))
	r.GET("/api/v1/reminders", actor(handlers.Reminder.List))
	r.GET("/api/v1/reminders/upcoming", actor(handlers.Reminder.Upcoming))
	r.GET("/api/v1/reminders/{id}", actor(handlers.Reminder.Get))
	r.PUT("/api/v1/reminders/{id}", actor(handlers.Reminder.Update))
	r.DELETE("/api/v1/reminders/{id}", actor(handlers.Reminder.Cancel))

	return r
}
