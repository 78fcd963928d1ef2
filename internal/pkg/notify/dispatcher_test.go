package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/yuu19/SubTrack/app/models"
	"github.com/yuu19/SubTrack/internal/pkg/billing"
)

type fakeSubscriptionStore struct {
	subs    map[uint]*models.Subscription
	failAll bool
}

func newFakeSubscriptionStore(subs ...models.Subscription) *fakeSubscriptionStore {
	s := &fakeSubscriptionStore{subs: make(map[uint]*models.Subscription)}
	for i := range subs {
		sub := subs[i]
		s.subs[sub.ID] = &sub
	}
	return s
}

func (s *fakeSubscriptionStore) GetAll(ctx context.Context) ([]models.Subscription, error) {
	if s.failAll {
		return nil, fmt.Errorf("store unavailable")
	}
	out := make([]models.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, *sub)
	}
	return out, nil
}

func (s *fakeSubscriptionStore) UpdateBilling(ctx context.Context, id uint, nextBillingAt string, daysUntil int) error {
	sub, ok := s.subs[id]
	if !ok {
		return fmt.Errorf("subscription %d not found", id)
	}
	sub.NextBillingAt = nextBillingAt
	sub.DaysUntilNextBilling = daysUntil
	return nil
}

func (s *fakeSubscriptionStore) StampNotified(ctx context.Context, id uint, at time.Time) error {
	sub, ok := s.subs[id]
	if !ok {
		return fmt.Errorf("subscription %d not found", id)
	}
	stamp := at
	sub.LastNotifiedAt = &stamp
	return nil
}

type fakeEndpointStore struct {
	endpoints map[uint]models.PushEndpoint
}

func newFakeEndpointStore(endpoints ...models.PushEndpoint) *fakeEndpointStore {
	s := &fakeEndpointStore{endpoints: make(map[uint]models.PushEndpoint)}
	for _, ep := range endpoints {
		s.endpoints[ep.ID] = ep
	}
	return s
}

func (s *fakeEndpointStore) GetByUserIDs(ctx context.Context, userIDs []uint) ([]models.PushEndpoint, error) {
	var out []models.PushEndpoint
	for _, userID := range userIDs {
		for _, ep := range s.endpoints {
			if ep.UserID == userID {
				out = append(out, ep)
			}
		}
	}
	return out, nil
}

func (s *fakeEndpointStore) Delete(ctx context.Context, id uint) error {
	delete(s.endpoints, id)
	return nil
}

type fakeSender struct {
	outcomes map[string]Outcome // by endpoint URL, default OutcomeSent
	sent     []string
	payloads [][]byte
}

func (s *fakeSender) Send(ctx context.Context, endpoint models.PushEndpoint, payload []byte) Outcome {
	s.sent = append(s.sent, endpoint.Endpoint)
	s.payloads = append(s.payloads, payload)
	if outcome, ok := s.outcomes[endpoint.Endpoint]; ok {
		return outcome
	}
	return OutcomeSent
}

var testToday = time.Date(2024, 3, 20, 9, 30, 0, 0, time.UTC)

func testClock() time.Time { return testToday }

// dueSubscription is due on testToday with a one day notice window.
func dueSubscription(id, userID uint) models.Subscription {
	info := billing.ComputeNextBillingAt("2024-01-21", "monthly", testToday)
	return models.Subscription{
		ID:                   id,
		UserID:               userID,
		ServiceName:          "Streamflix",
		Cycle:                "monthly",
		FirstPaymentDate:     "2024-01-21",
		NextBillingAt:        info.NextBillingAt,
		DaysUntilNextBilling: info.DaysUntilNextBilling,
		NotifyDaysBefore:     1,
	}
}

func TestDispatchSendsOncePerEndpoint(t *testing.T) {
	subs := newFakeSubscriptionStore(dueSubscription(1, 7))
	endpoints := newFakeEndpointStore(
		models.PushEndpoint{ID: 1, UserID: 7, Endpoint: "https://push.example/a"},
		models.PushEndpoint{ID: 2, UserID: 7, Endpoint: "https://push.example/b"},
	)
	sender := &fakeSender{}
	d := NewDispatcher(subs, endpoints, sender).WithClock(testClock)

	result, err := d.Dispatch(context.Background())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.Evaluated != 1 || result.Due != 1 || result.Sent != 2 || result.Failed != 0 || result.Removed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(sender.sent))
	}

	// Second run the same day: watermark suppresses everything.
	result, err = d.Dispatch(context.Background())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.Due != 0 || result.Sent != 0 {
		t.Fatalf("second run should send nothing, got %+v", result)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("second run added sends: %d total", len(sender.sent))
	}
}

func TestDispatchDueTodayZeroNoticeWindow(t *testing.T) {
	info := billing.ComputeNextBillingAt("2024-01-20", "monthly", testToday)
	if info.DaysUntilNextBilling != 0 {
		t.Fatalf("fixture expects a due-today subscription, got %d days", info.DaysUntilNextBilling)
	}

	sub := dueSubscription(1, 7)
	sub.FirstPaymentDate = "2024-01-20"
	sub.NextBillingAt = info.NextBillingAt
	sub.DaysUntilNextBilling = 0
	sub.NotifyDaysBefore = 0

	subs := newFakeSubscriptionStore(sub)
	endpoints := newFakeEndpointStore(models.PushEndpoint{ID: 1, UserID: 7, Endpoint: "https://push.example/a"})
	sender := &fakeSender{}
	d := NewDispatcher(subs, endpoints, sender).WithClock(testClock)

	result, err := d.Dispatch(context.Background())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.Due != 1 || result.Sent != 1 {
		t.Fatalf("unexpected result %+v", result)
	}

	var payload Payload
	if err := json.Unmarshal(sender.payloads[0], &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Body != "Streamflix: payment due today." {
		t.Fatalf("unexpected body %q", payload.Body)
	}
	if want := "subscription-1-2024-03-20"; payload.Tag != want {
		t.Fatalf("tag = %q, want %q", payload.Tag, want)
	}
	if payload.Data.SubscriptionID != 1 || payload.Data.URL != "/subscriptions" {
		t.Fatalf("unexpected data %+v", payload.Data)
	}

	result, err = d.Dispatch(context.Background())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.Due != 0 {
		t.Fatalf("stamped subscription came back due: %+v", result)
	}
}

func TestDispatchExactMatchOnly(t *testing.T) {
	// Two days out with a one day window: not due, only refreshed.
	info := billing.ComputeNextBillingAt("2024-01-22", "monthly", testToday)
	sub := models.Subscription{
		ID: 1, UserID: 7, ServiceName: "Streamflix", Cycle: "monthly",
		FirstPaymentDate: "2024-01-22", NotifyDaysBefore: 1,
		NextBillingAt: info.NextBillingAt, DaysUntilNextBilling: info.DaysUntilNextBilling,
	}
	subs := newFakeSubscriptionStore(sub)
	sender := &fakeSender{}
	d := NewDispatcher(subs, newFakeEndpointStore(), sender).WithClock(testClock)

	result, err := d.Dispatch(context.Background())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.Due != 0 || len(sender.sent) != 0 {
		t.Fatalf("subscription two days out must not be due: %+v", result)
	}
}

func TestDispatchPrunesGoneEndpoint(t *testing.T) {
	subs := newFakeSubscriptionStore(dueSubscription(1, 7))
	endpoints := newFakeEndpointStore(
		models.PushEndpoint{ID: 1, UserID: 7, Endpoint: "https://push.example/dead"},
		models.PushEndpoint{ID: 2, UserID: 7, Endpoint: "https://push.example/alive"},
	)
	sender := &fakeSender{outcomes: map[string]Outcome{"https://push.example/dead": OutcomeGone}}
	d := NewDispatcher(subs, endpoints, sender).WithClock(testClock)

	result, err := d.Dispatch(context.Background())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.Removed != 1 || result.Sent != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, ok := endpoints.endpoints[1]; ok {
		t.Fatalf("gone endpoint was not pruned")
	}
	if _, ok := endpoints.endpoints[2]; !ok {
		t.Fatalf("sibling endpoint was pruned")
	}
}

func TestDispatchFailureDoesNotAbortSiblings(t *testing.T) {
	subs := newFakeSubscriptionStore(dueSubscription(1, 7))
	endpoints := newFakeEndpointStore(
		models.PushEndpoint{ID: 1, UserID: 7, Endpoint: "https://push.example/flaky"},
		models.PushEndpoint{ID: 2, UserID: 7, Endpoint: "https://push.example/ok"},
	)
	sender := &fakeSender{outcomes: map[string]Outcome{"https://push.example/flaky": OutcomeFailed}}
	d := NewDispatcher(subs, endpoints, sender).WithClock(testClock)

	result, err := d.Dispatch(context.Background())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.Failed != 1 || result.Sent != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	// Stamped despite the partial failure: one attempt per cycle.
	if subs.subs[1].LastNotifiedAt == nil {
		t.Fatalf("subscription was not stamped")
	}
}

func TestDispatchSkipsOwnerWithoutEndpoints(t *testing.T) {
	subs := newFakeSubscriptionStore(dueSubscription(1, 7))
	sender := &fakeSender{}
	d := NewDispatcher(subs, newFakeEndpointStore(), sender).WithClock(testClock)

	result, err := d.Dispatch(context.Background())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.Due != 1 || result.Sent != 0 || result.Failed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	// Never stamped: stays eligible until an endpoint exists.
	if subs.subs[1].LastNotifiedAt != nil {
		t.Fatalf("endpointless subscription must not be stamped")
	}
}

func TestDispatchRefreshesStaleBilling(t *testing.T) {
	sub := dueSubscription(1, 7)
	sub.NextBillingAt = "2024-02-21T00:00:00Z" // stale by one cycle
	sub.DaysUntilNextBilling = 99
	subs := newFakeSubscriptionStore(sub)
	d := NewDispatcher(subs, newFakeEndpointStore(), &fakeSender{}).WithClock(testClock)

	result, err := d.Dispatch(context.Background())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.Updated != 1 {
		t.Fatalf("expected one refresh, got %+v", result)
	}
	if subs.subs[1].NextBillingAt != "2024-03-21T00:00:00Z" || subs.subs[1].DaysUntilNextBilling != 1 {
		t.Fatalf("billing fields not corrected: %+v", subs.subs[1])
	}
}

func TestDispatchSkipsOwnerlessSubscriptions(t *testing.T) {
	sub := dueSubscription(1, 0)
	subs := newFakeSubscriptionStore(sub)
	d := NewDispatcher(subs, newFakeEndpointStore(), &fakeSender{}).WithClock(testClock)

	result, err := d.Dispatch(context.Background())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.Evaluated != 1 || result.Due != 0 || result.Updated != 0 {
		t.Fatalf("ownerless subscription must be skipped entirely: %+v", result)
	}
}

func TestDispatchStoreUnavailable(t *testing.T) {
	subs := newFakeSubscriptionStore()
	subs.failAll = true
	d := NewDispatcher(subs, newFakeEndpointStore(), &fakeSender{}).WithClock(testClock)

	if _, err := d.Dispatch(context.Background()); err == nil {
		t.Fatalf("expected error when the store is unavailable")
	}
}
