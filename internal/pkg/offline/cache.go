package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yuu19/SubTrack/app/models"
	"github.com/yuu19/SubTrack/internal/pkg/billing"
)

// SyncResult reports one queue replay: the final cached list and how many
// queued mutations were applied before the first failure, if any.
type SyncResult struct {
	Subscriptions []LocalRecord `json:"subscriptions"`
	Synced        int           `json:"synced"`
	Failed        int           `json:"failed"`
}

// envelope is the submission endpoint's JSON response.
type envelope struct {
	Type string `json:"type"`
	Data struct {
		Subscriptions []models.Subscription `json:"subscriptions"`
	} `json:"data"`
}

// Cache is the disconnected-tolerant client view of a user's subscriptions.
// Adds succeed locally and are queued; Sync replays the queue when the
// server is reachable. All operations are serialized internally because sync
// is a multi-step read-modify-write against the local store.
type Cache struct {
	mu    sync.Mutex
	store Store
	http  *http.Client
	now   func() time.Time
}

func NewCache(store Store) *Cache {
	return &Cache{
		store: store,
		http:  http.DefaultClient,
		now:   time.Now,
	}
}

func (c *Cache) WithHTTPClient(client *http.Client) *Cache {
	c.http = client
	return c
}

func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Cached returns every locally known record, confirmed and pending, with day
// counts recomputed against the current date, newest-created-first.
func (c *Cache) Cached(ctx context.Context) ([]LocalRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cached(ctx)
}

// AddPending optimistically inserts a record under a fresh client id and
// queues the matching "add" mutation. It never touches the network; the
// returned list lets the caller render immediately.
func (c *Cache) AddPending(ctx context.Context, payload SubscriptionPayload) ([]LocalRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	clientID := clientIDPrefix + uuid.NewString()
	now := c.now()
	info := billing.ComputeNextBillingAt(payload.FirstPaymentDate, payload.Cycle, now)

	record := LocalRecord{
		ID:                   ClientID(clientID),
		ServiceName:          payload.ServiceName,
		Cycle:                payload.Cycle,
		Amount:               payload.Amount,
		FirstPaymentDate:     payload.FirstPaymentDate,
		NextBillingAt:        info.NextBillingAt,
		DaysUntilNextBilling: info.DaysUntilNextBilling,
		NotifyDaysBefore:     payload.NotifyDaysBefore,
		Tags:                 payload.Tags,
		CreatedAt:            now,
		UpdatedAt:            now,
		Pending:              true,
		ClientID:             clientID,
	}

	if err := c.store.PutRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("store pending record: %w", err)
	}
	if _, err := c.store.AppendMutation(ctx, Mutation{
		Action:    ActionAdd,
		ClientID:  clientID,
		Payload:   payload,
		CreatedAt: now.UnixMilli(),
	}); err != nil {
		return nil, fmt.Errorf("queue mutation: %w", err)
	}

	return c.cached(ctx)
}

// ReplaceFromServer reconciles the server-authoritative list into the local
// view. Pending records are invisible to the server, so there is no
// field-level merge: the confirmed view is cleared and rebuilt, then the
// preserved pending subset is unioned back on top.
func (c *Cache) ReplaceFromServer(ctx context.Context, subscriptions []models.Subscription) ([]LocalRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.replaceFromServer(ctx, subscriptions); err != nil {
		return nil, err
	}
	return c.cached(ctx)
}

// Sync replays the mutation queue in FIFO order against the submission
// endpoint. The first failure stops the replay so a later add can never be
// applied before an earlier stuck one; unapplied entries stay queued
// untouched for the next call. Only local-store errors are returned.
func (c *Cache) Sync(ctx context.Context, endpoint string) (SyncResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mutations, err := c.store.Mutations(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("read mutation queue: %w", err)
	}

	var result SyncResult
	for _, m := range mutations {
		if m.Action != ActionAdd {
			continue
		}

		confirmed, ok := c.submit(ctx, endpoint, m.Payload)
		if !ok {
			result.Failed++
			break
		}

		if err := c.store.DeleteMutation(ctx, m.Key); err != nil {
			return result, fmt.Errorf("drop mutation %d: %w", m.Key, err)
		}
		if err := c.store.DeleteRecord(ctx, ClientID(m.ClientID)); err != nil {
			return result, fmt.Errorf("drop pending record %s: %w", m.ClientID, err)
		}
		if len(confirmed) > 0 {
			if err := c.replaceFromServer(ctx, confirmed); err != nil {
				return result, err
			}
		}
		result.Synced++
	}

	result.Subscriptions, err = c.cached(ctx)
	if err != nil {
		return result, err
	}
	return result, nil
}

// submit posts one queued payload. Any transport error, non-2xx status,
// undecodable body, or application-level error envelope is a failure.
func (c *Cache) submit(ctx context.Context, endpoint string, payload SubscriptionPayload) ([]models.Subscription, bool) {
	form := url.Values{}
	form.Set("service_name", payload.ServiceName)
	form.Set("cycle", payload.Cycle)
	form.Set("amount", payload.Amount.String())
	form.Set("first_payment_date", payload.FirstPaymentDate)
	form.Set("notify_days_before", strconv.Itoa(payload.NotifyDaysBefore))
	for _, tag := range payload.Tags {
		form.Add("tags", tag)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		log.Printf("offline: build submission request: %v", err)
		return nil, false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("offline: submit queued add: %v", err)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("offline: submission endpoint returned %d", resp.StatusCode)
		return nil, false
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		log.Printf("offline: decode submission response: %v", err)
		return nil, false
	}
	if env.Type != "success" {
		return nil, false
	}
	return env.Data.Subscriptions, true
}

func (c *Cache) replaceFromServer(ctx context.Context, subscriptions []models.Subscription) error {
	existing, err := c.store.Records(ctx)
	if err != nil {
		return fmt.Errorf("read local records: %w", err)
	}
	var pending []LocalRecord
	for _, record := range existing {
		if record.Pending {
			pending = append(pending, record)
		}
	}

	if err := c.store.ClearRecords(ctx); err != nil {
		return fmt.Errorf("clear confirmed view: %w", err)
	}
	for _, sub := range subscriptions {
		if err := c.store.PutRecord(ctx, fromServer(sub)); err != nil {
			return fmt.Errorf("store confirmed record %d: %w", sub.ID, err)
		}
	}
	for _, record := range pending {
		if err := c.store.PutRecord(ctx, record); err != nil {
			return fmt.Errorf("restore pending record %s: %w", record.ClientID, err)
		}
	}
	return nil
}

// cached loads, refreshes and sorts the local view. Callers hold c.mu.
func (c *Cache) cached(ctx context.Context) ([]LocalRecord, error) {
	records, err := c.store.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("read local records: %w", err)
	}

	today := billing.StartOfDay(c.now())
	for i := range records {
		next, ok := billing.ParseDate(records[i].NextBillingAt)
		if !ok {
			continue
		}
		days := int(next.Sub(today).Hours() / 24)
		if days == records[i].DaysUntilNextBilling {
			continue
		}
		records[i].DaysUntilNextBilling = days
		if err := c.store.PutRecord(ctx, records[i]); err != nil {
			return nil, fmt.Errorf("refresh record %s: %w", records[i].ID, err)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// fromServer converts a server record into its confirmed local form. The
// server is authoritative: the record loses any pending marker and client id.
func fromServer(sub models.Subscription) LocalRecord {
	return LocalRecord{
		ID:                   ServerID(sub.ID),
		UserID:               sub.UserID,
		ServiceName:          sub.ServiceName,
		Cycle:                sub.Cycle,
		Amount:               sub.Amount,
		FirstPaymentDate:     sub.FirstPaymentDate,
		NextBillingAt:        sub.NextBillingAt,
		DaysUntilNextBilling: sub.DaysUntilNextBilling,
		NotifyDaysBefore:     sub.NotifyDaysBefore,
		Tags:                 sub.Tags,
		CreatedAt:            sub.CreatedAt,
		UpdatedAt:            sub.UpdatedAt,
		Pending:              false,
	}
}
