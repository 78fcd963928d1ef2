package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/yuu19/SubTrack/app/controllers"
	"github.com/yuu19/SubTrack/internal/pkg/middleware"
	"github.com/yuu19/SubTrack/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	// Subscription CRUD; create is the submission endpoint the offline
	// sync client replays against.
	app.Get("/subscriptions", controllers.HandleSubscriptionList)
	app.Post("/subscriptions", controllers.HandleSubscriptionCreate)
	app.Post("/subscriptions/update/:id", controllers.HandleSubscriptionUpdate)
	app.Post("/subscriptions/delete/:id", controllers.HandleSubscriptionDelete)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
