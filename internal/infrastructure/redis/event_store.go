package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"event-aggregator/internal/application"
	"event-aggregator/internal/domain"

	"github.com/redis/go-redis/v9"
)

var _ application.EventStore = (*Store)(nil)

// insertScript claims KEYS[1] and indexes it in one atomic script run.
// KEYS: event hash, sequence counter, last stored_at, recency zset, topic zset.
// ARGV: now (unix micros), topic, event_id, occurred_at, source, payload.
// Returns {0} when the event already exists, {1, seq, stored_at} otherwise.
var insertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return {0}
end
local seq = redis.call('INCR', KEYS[2])
local now = tonumber(ARGV[1])
local last = tonumber(redis.call('GET', KEYS[3]) or '0')
if now < last then
  now = last
end
redis.call('SET', KEYS[3], now)
redis.call('HSET', KEYS[1],
  'topic', ARGV[2], 'event_id', ARGV[3], 'occurred_at', ARGV[4],
  'source', ARGV[5], 'payload', ARGV[6], 'stored_at', now, 'sequence_id', seq)
redis.call('ZADD', KEYS[4], seq, KEYS[1])
redis.call('ZADD', KEYS[5], seq, KEYS[1])
return {1, seq, now}
`)

// Store keeps each event in a hash and indexes it by sequence id in a global
// and a per-topic sorted set. All keys share one hash tag so the insert
// script stays single-slot on Redis Cluster.
type Store struct {
	Client *redis.Client
	prefix string
	now    func() time.Time
}

func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "events"
	}
	return &Store{Client: client, prefix: "{" + prefix + "}", now: time.Now}
}

func (s *Store) eventKey(k domain.Key) string {
	// Length-prefixing the topic keeps "a:b"+"c" and "a"+"b:c" apart.
	return s.prefix + ":event:" + strconv.Itoa(len(k.Topic)) + ":" + k.Topic + ":" + k.EventID
}
func (s *Store) seqKey() string { return s.prefix + ":seq" }
func (s *Store) lastKey() string { return s.prefix + ":last_stored_at" }
func (s *Store) recentKey() string { return s.prefix + ":recent" }
func (s *Store) topicKey(topic string) string { return s.prefix + ":topic:" + topic }

func (s *Store) InsertIfAbsent(ctx context.Context, ev domain.Event) (domain.InsertResult, error) {
	keys := []string{s.eventKey(ev.Key()), s.seqKey(), s.lastKey(), s.recentKey(), s.topicKey(ev.Topic)}
	res, err := insertScript.Run(ctx, s.Client, keys,
		s.now().UnixMicro(),
		ev.Topic,
		ev.EventID,
		ev.OccurredAt.UTC().Format(time.RFC3339Nano),
		ev.Source,
		string(ev.Payload),
	).Int64Slice()
	if err != nil {
		return domain.InsertResult{}, fmt.Errorf("insert event: %w: %w", application.ErrStoreUnavailable, err)
	}
	if len(res) == 0 || res[0] == 0 {
		return domain.InsertResult{}, nil
	}
	if len(res) != 3 {
		return domain.InsertResult{}, fmt.Errorf("insert event: %w: unexpected script reply %v", application.ErrStoreUnavailable, res)
	}
	return domain.InsertResult{
		Inserted:   true,
		SequenceID: res[1],
		StoredAt:   time.UnixMicro(res[2]).UTC(),
	}, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.Client.ZCard(ctx, s.recentKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count events: %w: %w", application.ErrStoreUnavailable, err)
	}
	return n, nil
}

// List reads keys from the recency index and loads them in one pipeline.
// stored_at never decreases with sequence id, so sequence order is recency order.
func (s *Store) List(ctx context.Context, q domain.ListQuery) ([]domain.Event, error) {
	index := s.recentKey()
	if q.Topic != "" {
		index = s.topicKey(q.Topic)
	}
	upper := "+inf"
	if q.Before > 0 {
		upper = "(" + strconv.FormatInt(q.Before, 10)
	}
	keys, err := s.Client.ZRevRangeByScore(ctx, index, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   upper,
		Count: int64(q.Limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list events: %w: %w", application.ErrStoreUnavailable, err)
	}
	if len(keys) == 0 {
		return []domain.Event{}, nil
	}

	pipe := s.Client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.HGetAll(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("list events: %w: %w", application.ErrStoreUnavailable, err)
	}

	out := make([]domain.Event, 0, len(keys))
	for _, c := range cmds {
		ev, err := decodeEvent(c.Val())
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping: %w: %w", application.ErrStoreUnavailable, err)
	}
	return nil
}

var errCorruptEvent = errors.New("corrupt event hash")

func decodeEvent(h map[string]string) (domain.Event, error) {
	seq, err1 := strconv.ParseInt(h["sequence_id"], 10, 64)
	storedAt, err2 := strconv.ParseInt(h["stored_at"], 10, 64)
	occurredAt, err3 := time.Parse(time.RFC3339Nano, h["occurred_at"])
	if err := errors.Join(err1, err2, err3); err != nil {
		return domain.Event{}, fmt.Errorf("%w: %w", errCorruptEvent, err)
	}
	return domain.Event{
		Topic:      h["topic"],
		EventID:    h["event_id"],
		OccurredAt: occurredAt.UTC(),
		Source:     h["source"],
		Payload:    json.RawMessage(h["payload"]),
		StoredAt:   time.UnixMicro(storedAt).UTC(),
		SequenceID: seq,
	}, nil
}
