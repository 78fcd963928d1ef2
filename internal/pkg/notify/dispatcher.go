// Package notify fans subscription payment reminders out to the owners'
// registered web-push endpoints. Dispatch is safe to invoke repeatedly: the
// per-subscription same-day watermark suppresses duplicate sends.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/yuu19/SubTrack/app/models"
	"github.com/yuu19/SubTrack/internal/pkg/billing"
)

// Outcome classifies a single delivery attempt.
type Outcome int

const (
	OutcomeSent Outcome = iota
	// OutcomeGone means the push service reported the endpoint as expired
	// or unknown (404/410); the endpoint record is pruned.
	OutcomeGone
	OutcomeFailed
)

// Sender delivers one signed message to one endpoint.
type Sender interface {
	Send(ctx context.Context, endpoint models.PushEndpoint, payload []byte) Outcome
}

// SubscriptionStore is the slice of the subscription repository the
// dispatcher needs.
type SubscriptionStore interface {
	GetAll(ctx context.Context) ([]models.Subscription, error)
	UpdateBilling(ctx context.Context, id uint, nextBillingAt string, daysUntil int) error
	StampNotified(ctx context.Context, id uint, at time.Time) error
}

// EndpointStore loads and prunes push endpoints.
type EndpointStore interface {
	GetByUserIDs(ctx context.Context, userIDs []uint) ([]models.PushEndpoint, error)
	Delete(ctx context.Context, id uint) error
}

// Result carries the six dispatch counters. Per-item failures are absorbed
// here; only store unavailability surfaces as an error.
type Result struct {
	Evaluated int `json:"evaluated"`
	Due       int `json:"due"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Removed   int `json:"removed"`
	Updated   int `json:"updated"`
}

// Payload is the web-push wire message.
type Payload struct {
	Title string      `json:"title"`
	Body  string      `json:"body"`
	Icon  string      `json:"icon"`
	Tag   string      `json:"tag"`
	Data  PayloadData `json:"data"`
}

type PayloadData struct {
	URL            string `json:"url"`
	SubscriptionID uint   `json:"subscriptionId"`
}

type Dispatcher struct {
	subscriptions SubscriptionStore
	endpoints     EndpointStore
	sender        Sender
	now           func() time.Time
}

func NewDispatcher(subscriptions SubscriptionStore, endpoints EndpointStore, sender Sender) *Dispatcher {
	return &Dispatcher{
		subscriptions: subscriptions,
		endpoints:     endpoints,
		sender:        sender,
		now:           time.Now,
	}
}

// WithClock replaces the dispatcher's clock. Used by tests.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Dispatch evaluates every owned subscription, self-corrects stale billing
// fields, and sends one reminder per due subscription to each of its owner's
// endpoints. A subscription is due iff its day count equals its notice
// window exactly and it has not been notified today.
func (d *Dispatcher) Dispatch(ctx context.Context) (Result, error) {
	now := d.now()
	today := billing.StartOfDay(now)

	subscriptions, err := d.subscriptions.GetAll(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load subscriptions: %w", err)
	}

	result := Result{Evaluated: len(subscriptions)}

	var due []models.Subscription
	for i := range subscriptions {
		sub := &subscriptions[i]
		if sub.UserID == 0 {
			continue
		}

		computed := billing.ComputeNextBillingAt(sub.FirstPaymentDate, sub.Cycle, now)
		if computed.NextBillingAt != sub.NextBillingAt || computed.DaysUntilNextBilling != sub.DaysUntilNextBilling {
			if err := d.subscriptions.UpdateBilling(ctx, sub.ID, computed.NextBillingAt, computed.DaysUntilNextBilling); err != nil {
				return result, fmt.Errorf("refresh billing for subscription %d: %w", sub.ID, err)
			}
			sub.NextBillingAt = computed.NextBillingAt
			sub.DaysUntilNextBilling = computed.DaysUntilNextBilling
			result.Updated++
		}

		if sub.NotifyDaysBefore < 0 {
			continue
		}
		if computed.DaysUntilNextBilling != sub.NotifyDaysBefore {
			continue
		}
		if sub.NotifiedOn(today) {
			continue
		}

		due = append(due, *sub)
	}

	result.Due = len(due)
	if len(due) == 0 {
		return result, nil
	}

	endpointsByUser, err := d.loadEndpoints(ctx, due)
	if err != nil {
		return result, err
	}

	for _, sub := range due {
		endpoints := endpointsByUser[sub.UserID]
		if len(endpoints) == 0 {
			// No endpoint, no watermark: the subscription stays eligible
			// until the owner registers one.
			continue
		}

		payload, err := json.Marshal(buildPayload(sub, today))
		if err != nil {
			result.Failed += len(endpoints)
			log.Printf("notify: encode payload for subscription %d: %v", sub.ID, err)
			continue
		}

		for _, endpoint := range endpoints {
			switch d.sender.Send(ctx, endpoint, payload) {
			case OutcomeSent:
				result.Sent++
			case OutcomeGone:
				if err := d.endpoints.Delete(ctx, endpoint.ID); err != nil {
					log.Printf("notify: prune endpoint %d: %v", endpoint.ID, err)
					result.Failed++
					continue
				}
				result.Removed++
			default:
				result.Failed++
			}
		}

		// Stamped once per subscription regardless of individual outcomes;
		// delivery is attempted at most once per endpoint per day.
		if err := d.subscriptions.StampNotified(ctx, sub.ID, now); err != nil {
			return result, fmt.Errorf("stamp subscription %d: %w", sub.ID, err)
		}
	}

	return result, nil
}

// loadEndpoints fetches all endpoints for the due set's owners in one query.
func (d *Dispatcher) loadEndpoints(ctx context.Context, due []models.Subscription) (map[uint][]models.PushEndpoint, error) {
	seen := make(map[uint]struct{}, len(due))
	userIDs := make([]uint, 0, len(due))
	for _, sub := range due {
		if _, ok := seen[sub.UserID]; ok {
			continue
		}
		seen[sub.UserID] = struct{}{}
		userIDs = append(userIDs, sub.UserID)
	}

	endpoints, err := d.endpoints.GetByUserIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("load push endpoints: %w", err)
	}

	byUser := make(map[uint][]models.PushEndpoint, len(userIDs))
	for _, endpoint := range endpoints {
		byUser[endpoint.UserID] = append(byUser[endpoint.UserID], endpoint)
	}
	return byUser, nil
}

func buildPayload(sub models.Subscription, today time.Time) Payload {
	when := fmt.Sprintf("payment due in %d days", sub.NotifyDaysBefore)
	if sub.NotifyDaysBefore == 1 {
		when = "payment due in 1 day"
	}
	if sub.NotifyDaysBefore == 0 {
		when = "payment due today"
	}

	return Payload{
		Title: "Subscription payment reminder",
		Body:  fmt.Sprintf("%s: %s.", sub.ServiceName, when),
		Icon:  "/favicon.png",
		Tag:   fmt.Sprintf("subscription-%d-%s", sub.ID, today.Format("2006-01-02")),
		Data: PayloadData{
			URL:            "/subscriptions",
			SubscriptionID: sub.ID,
		},
	}
}
