package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/yuu19/SubTrack/app/models"
	"github.com/yuu19/SubTrack/app/repository"
	"github.com/yuu19/SubTrack/internal/pkg/billing"
)

// successEnvelope wraps a subscription list in the submission response
// contract consumed by the offline sync client.
func successEnvelope(subscriptions []models.Subscription) fiber.Map {
	if subscriptions == nil {
		subscriptions = []models.Subscription{}
	}
	return fiber.Map{
		"type": "success",
		"data": fiber.Map{
			"subscriptions": subscriptions,
		},
	}
}

func errorEnvelope(message string) fiber.Map {
	return fiber.Map{
		"type":    "error",
		"message": message,
	}
}

// bearerToken extracts the credential from an Authorization header, or
// returns empty when the header is absent or not a bearer scheme.
func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return header[len(prefix):]
}

// refreshBillingFields recomputes the derived billing fields of each
// subscription and persists any drift, so stored values self-correct on
// every load.
func refreshBillingFields(repo repository.SubscriptionRepository, c *fiber.Ctx, subs []models.Subscription) error {
	for i := range subs {
		computed := billing.ComputeNextBilling(subs[i].FirstPaymentDate, subs[i].Cycle)
		if computed.NextBillingAt == subs[i].NextBillingAt && computed.DaysUntilNextBilling == subs[i].DaysUntilNextBilling {
			continue
		}
		if err := repo.UpdateBilling(c.Context(), subs[i].ID, computed.NextBillingAt, computed.DaysUntilNextBilling); err != nil {
			return err
		}
		subs[i].NextBillingAt = computed.NextBillingAt
		subs[i].DaysUntilNextBilling = computed.DaysUntilNextBilling
	}
	return nil
}
