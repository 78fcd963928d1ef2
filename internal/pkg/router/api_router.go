package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/yuu19/SubTrack/app/controllers"
	"github.com/yuu19/SubTrack/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())

	// Push endpoint registration; key lookup is public, mutation requires
	// a session.
	api.Get("/push-subscriptions/key", controllers.HandlePushPublicKey)
	api.Post("/push-subscriptions", middleware.RequireAPISessionAuth, controllers.HandlePushEndpointRegister)
	api.Delete("/push-subscriptions", middleware.RequireAPISessionAuth, controllers.HandlePushEndpointUnsubscribe)

	// Periodic reminder trigger, credentialed by shared secret.
	api.Post("/notifications/dispatch", controllers.HandleNotificationDispatch)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
