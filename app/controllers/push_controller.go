package controllers

import (
	"encoding/json"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/yuu19/SubTrack/app/models"
	"github.com/yuu19/SubTrack/app/repository"
	"github.com/yuu19/SubTrack/internal/pkg/push"
	"github.com/yuu19/SubTrack/internal/pkg/usercontext"
)

// pushEndpointPayload mirrors the browser PushSubscription JSON shape.
type pushEndpointPayload struct {
	Endpoint       string `json:"endpoint"`
	ExpirationTime *int64 `json:"expirationTime"`
	Keys           struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// decodePushPayload fails closed: anything that is not a well-formed
// endpoint/key tuple comes back as not-ok instead of an error to branch on.
func decodePushPayload(body []byte) (pushEndpointPayload, bool) {
	var payload pushEndpointPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return pushEndpointPayload{}, false
	}
	if payload.Endpoint == "" || payload.Keys.P256dh == "" || payload.Keys.Auth == "" {
		return pushEndpointPayload{}, false
	}
	return payload, true
}

// HandlePushEndpointRegister upserts a push endpoint for the session user,
// keyed by (user, endpoint) so re-registering refreshes the key material.
func HandlePushEndpointRegister(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "login required"})
	}

	payload, ok := decodePushPayload(c.Body())
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid subscription payload"})
	}

	endpoint := &models.PushEndpoint{
		UserID:         userCtx.UserID,
		Endpoint:       payload.Endpoint,
		P256dh:         payload.Keys.P256dh,
		Auth:           payload.Keys.Auth,
		ExpirationTime: payload.ExpirationTime,
		UserAgent:      c.Get(fiber.HeaderUserAgent),
	}

	repo := repository.GetGlobalFactory().GetPushEndpointRepository()
	if err := repo.Upsert(endpoint); err != nil {
		log.Printf("push: register endpoint for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "failed to store endpoint"})
	}

	return c.JSON(fiber.Map{"ok": true})
}

// HandlePushEndpointUnsubscribe removes the session user's endpoint.
func HandlePushEndpointUnsubscribe(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "login required"})
	}

	var payload struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.Unmarshal(c.Body(), &payload); err != nil || payload.Endpoint == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid subscription payload"})
	}

	repo := repository.GetGlobalFactory().GetPushEndpointRepository()
	if err := repo.DeleteByUserEndpoint(userCtx.UserID, payload.Endpoint); err != nil {
		log.Printf("push: unsubscribe endpoint for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "failed to remove endpoint"})
	}

	return c.JSON(fiber.Map{"ok": true})
}

// HandlePushPublicKey exposes the VAPID public key clients subscribe with,
// plus whether the session user already has an endpoint registered.
func HandlePushPublicKey(c *fiber.Ctx) error {
	sender := push.NewWebPushSender()

	registered := false
	userCtx := usercontext.GetUserContext(c)
	if userCtx.IsLoggedIn {
		repo := repository.GetGlobalFactory().GetPushEndpointRepository()
		if count, err := repo.CountByUserID(userCtx.UserID); err == nil {
			registered = count > 0
		}
	}

	return c.JSON(fiber.Map{
		"public_key": sender.PublicKey(),
		"registered": registered,
	})
}
