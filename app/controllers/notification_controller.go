package controllers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/yuu19/SubTrack/app/repository"
	"github.com/yuu19/SubTrack/internal/pkg/env"
	"github.com/yuu19/SubTrack/internal/pkg/metrics/counter"
	"github.com/yuu19/SubTrack/internal/pkg/notify"
	"github.com/yuu19/SubTrack/internal/pkg/push"
)

// HandleNotificationDispatch is the periodic trigger for payment reminders.
// It is credentialed with a shared secret rather than a user session because
// the caller is a scheduler, not a person. Safe to invoke any number of
// times per day; the per-subscription watermark absorbs repeats.
func HandleNotificationDispatch(c *fiber.Ctx) error {
	secret := env.GetEnv("PUSH_CRON_SECRET", "")
	if secret == "" {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "PUSH_CRON_SECRET is not configured"})
	}

	sender := push.NewWebPushSender()
	if !sender.KeysConfigured() {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "VAPID keys are not configured"})
	}

	if bearerToken(c.Get(fiber.HeaderAuthorization)) != secret {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "unauthorized request"})
	}

	factory := repository.GetGlobalFactory()
	dispatcher := notify.NewDispatcher(
		factory.GetSubscriptionRepository(),
		factory.GetPushEndpointRepository(),
		sender,
	)

	result, err := dispatcher.Dispatch(c.Context())
	if err != nil {
		log.Printf("notifications: dispatch: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "dispatch failed"})
	}

	if err := counter.AddDispatch(time.Now(), result.Sent, result.Failed, result.Removed); err != nil {
		log.Printf("notifications: counters: %v", err)
	}

	return c.JSON(result)
}
