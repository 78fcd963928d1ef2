// Package offline is the client-side subscription cache. It keeps a
// materialized view of server-confirmed and locally pending subscriptions in
// a durable key-value store, plus an append-only queue of mutations that have
// not reached the server yet.
package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ActionAdd is the only replayable mutation kind today.
const ActionAdd = "add"

// clientIDPrefix keeps the pending id space disjoint from server-assigned
// numeric ids.
const clientIDPrefix = "local-"

// RecordID identifies a cached record in one of two disjoint id spaces:
// server-assigned numeric ids for confirmed records, "local-" prefixed
// correlation ids for pending ones.
type RecordID struct {
	server uint
	client string
}

func ServerID(id uint) RecordID { return RecordID{server: id} }

func ClientID(id string) RecordID { return RecordID{client: id} }

// ParseRecordID reconstructs a RecordID from its stored string form.
func ParseRecordID(value string) (RecordID, error) {
	if strings.HasPrefix(value, clientIDPrefix) {
		return ClientID(value), nil
	}
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return RecordID{}, fmt.Errorf("malformed record id %q", value)
	}
	return ServerID(uint(n)), nil
}

func (id RecordID) IsPending() bool { return id.client != "" }

func (id RecordID) String() string {
	if id.client != "" {
		return id.client
	}
	return strconv.FormatUint(uint64(id.server), 10)
}

func (id RecordID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *RecordID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRecordID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// SubscriptionPayload is the user input captured by an offline add. It is
// replayed verbatim against the submission endpoint during sync.
type SubscriptionPayload struct {
	ServiceName      string          `json:"service_name"`
	Cycle            string          `json:"cycle"`
	Amount           decimal.Decimal `json:"amount"`
	FirstPaymentDate string          `json:"first_payment_date"`
	NotifyDaysBefore int             `json:"notify_days_before"`
	Tags             []string        `json:"tags"`
}

// LocalRecord is one cached subscription, confirmed or pending.
type LocalRecord struct {
	ID                   RecordID        `json:"id"`
	UserID               uint            `json:"user_id,omitempty"`
	ServiceName          string          `json:"service_name"`
	Cycle                string          `json:"cycle"`
	Amount               decimal.Decimal `json:"amount"`
	FirstPaymentDate     string          `json:"first_payment_date"`
	NextBillingAt        string          `json:"next_billing_at"`
	DaysUntilNextBilling int             `json:"days_until_next_billing"`
	NotifyDaysBefore     int             `json:"notify_days_before"`
	Tags                 []string        `json:"tags"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	Pending              bool            `json:"pending"`
	ClientID             string          `json:"client_id,omitempty"`
}

// Mutation is one queued, not-yet-synced user action. Keys are assigned by
// the store in strictly increasing order; replay is FIFO by key.
type Mutation struct {
	Key       uint64              `json:"key"`
	Action    string              `json:"action"`
	ClientID  string              `json:"client_id"`
	Payload   SubscriptionPayload `json:"payload"`
	CreatedAt int64               `json:"created_at"` // unix milliseconds
}

// Store is the local durable backing of the cache: a record collection keyed
// by record id and an auto-incrementing mutation queue. The handle behind an
// implementation is constructed and closed by the caller.
type Store interface {
	PutRecord(ctx context.Context, record LocalRecord) error
	Records(ctx context.Context) ([]LocalRecord, error)
	DeleteRecord(ctx context.Context, id RecordID) error
	ClearRecords(ctx context.Context) error

	AppendMutation(ctx context.Context, m Mutation) (uint64, error)
	Mutations(ctx context.Context) ([]Mutation, error)
	DeleteMutation(ctx context.Context, key uint64) error
}
