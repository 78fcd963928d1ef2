package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

const (
	// StoreName and StoreVersion scope every key the store touches. Bumping
	// the version abandons the old namespace, the analogue of a local schema
	// upgrade.
	StoreName    = "subtrack-offline"
	StoreVersion = 1
)

// RedisStore keeps the record collection and the mutation queue in two
// hashes. The queue key is a monotonically increasing counter so that
// iteration order matches insertion order. The client is injected; its
// lifecycle belongs to the caller.
type RedisStore struct {
	client  *redis.Client
	records string
	pending string
	seq     string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	prefix := fmt.Sprintf("%s:v%d", StoreName, StoreVersion)
	return &RedisStore{
		client:  client,
		records: prefix + ":records",
		pending: prefix + ":pending",
		seq:     prefix + ":pending:seq",
	}
}

func (s *RedisStore) PutRecord(ctx context.Context, record LocalRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", record.ID, err)
	}
	return s.client.HSet(ctx, s.records, record.ID.String(), data).Err()
}

func (s *RedisStore) Records(ctx context.Context) ([]LocalRecord, error) {
	raw, err := s.client.HGetAll(ctx, s.records).Result()
	if err != nil {
		return nil, err
	}
	records := make([]LocalRecord, 0, len(raw))
	for id, data := range raw {
		var record LocalRecord
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", id, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *RedisStore) DeleteRecord(ctx context.Context, id RecordID) error {
	return s.client.HDel(ctx, s.records, id.String()).Err()
}

func (s *RedisStore) ClearRecords(ctx context.Context) error {
	return s.client.Del(ctx, s.records).Err()
}

func (s *RedisStore) AppendMutation(ctx context.Context, m Mutation) (uint64, error) {
	key, err := s.client.Incr(ctx, s.seq).Result()
	if err != nil {
		return 0, err
	}
	m.Key = uint64(key)
	data, err := json.Marshal(m)
	if err != nil {
		return 0, fmt.Errorf("encode mutation %d: %w", m.Key, err)
	}
	if err := s.client.HSet(ctx, s.pending, mutationField(m.Key), data).Err(); err != nil {
		return 0, err
	}
	return m.Key, nil
}

func (s *RedisStore) Mutations(ctx context.Context) ([]Mutation, error) {
	raw, err := s.client.HGetAll(ctx, s.pending).Result()
	if err != nil {
		return nil, err
	}
	mutations := make([]Mutation, 0, len(raw))
	for field, data := range raw {
		var m Mutation
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			return nil, fmt.Errorf("decode mutation %s: %w", field, err)
		}
		mutations = append(mutations, m)
	}
	sort.Slice(mutations, func(i, j int) bool { return mutations[i].Key < mutations[j].Key })
	return mutations, nil
}

func (s *RedisStore) DeleteMutation(ctx context.Context, key uint64) error {
	return s.client.HDel(ctx, s.pending, mutationField(key)).Err()
}

func mutationField(key uint64) string {
	return fmt.Sprintf("%d", key)
}
