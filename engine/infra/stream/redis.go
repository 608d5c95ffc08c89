package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Druk83/TrainingGround/pkg/config"
)

// Message is a delivered stream entry.
type Message struct {
	ID    string
	Event ChangeEvent
}

type Options struct {
	Name      string
	Group     string
	Consumer  string
	BatchSize int64
	Block     time.Duration
	ClaimIdle time.Duration
	MaxLen    int64
}

func OptionsFromConfig(cfg *config.StreamConfig) Options {
	return Options{
		Name:      cfg.Name,
		Group:     cfg.Group,
		Consumer:  cfg.Consumer,
		BatchSize: cfg.BatchSize,
		Block:     cfg.Block,
		ClaimIdle: cfg.ClaimIdle,
		MaxLen:    cfg.MaxLen,
	}
}

// RedisStream reads and writes change events through a single consumer of a group.
type RedisStream struct {
	client redis.Cmdable
	opts   Options
}

func NewRedisStream(client redis.Cmdable, opts Options) (*RedisStream, error) {
	if client == nil {
		return nil, errors.New("stream: redis client is required")
	}
	if opts.Name == "" || opts.Group == "" || opts.Consumer == "" {
		return nil, errors.New("stream: name, group and consumer are required")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.Block <= 0 {
		opts.Block = 2 * time.Second
	}
	return &RedisStream{client: client, opts: opts}, nil
}

func (s *RedisStream) Name() string {
	return s.opts.Name
}

// EnsureGroup creates the consumer group from the start of the stream. An existing group is not an error.
func (s *RedisStream) EnsureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.opts.Name, s.opts.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("stream: create group %q on %q: %w", s.opts.Group, s.opts.Name, err)
	}
	return nil
}

// Read blocks up to the configured timeout for entries never delivered to the group.
func (s *RedisStream) Read(ctx context.Context) ([]Message, error) {
	res, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.opts.Group,
		Consumer: s.opts.Consumer,
		Streams:  []string{s.opts.Name, ">"},
		Count:    s.opts.BatchSize,
		Block:    s.opts.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stream: read group: %w", err)
	}
	var out []Message
	for _, st := range res {
		out = append(out, toMessages(st.Messages)...)
	}
	return out, nil
}

// Claim takes over pending entries idle longer than the claim interval.
func (s *RedisStream) Claim(ctx context.Context) ([]Message, error) {
	if s.opts.ClaimIdle <= 0 {
		return nil, nil
	}
	msgs, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   s.opts.Name,
		Group:    s.opts.Group,
		Consumer: s.opts.Consumer,
		MinIdle:  s.opts.ClaimIdle,
		Start:    "0-0",
		Count:    s.opts.BatchSize,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stream: autoclaim: %w", err)
	}
	return toMessages(msgs), nil
}

func (s *RedisStream) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.client.XAck(ctx, s.opts.Name, s.opts.Group, ids...).Err(); err != nil {
		return fmt.Errorf("stream: ack: %w", err)
	}
	return nil
}

// Len returns the stream length used as the backlog gauge.
func (s *RedisStream) Len(ctx context.Context) (int64, error) {
	n, err := s.client.XLen(ctx, s.opts.Name).Result()
	if err != nil {
		return 0, fmt.Errorf("stream: length: %w", err)
	}
	return n, nil
}

// Publish appends ev, trimming the stream approximately to MaxLen.
func (s *RedisStream) Publish(ctx context.Context, ev ChangeEvent) (string, error) {
	args := &redis.XAddArgs{Stream: s.opts.Name, Values: ev.Values()}
	if s.opts.MaxLen > 0 {
		args.MaxLen = s.opts.MaxLen
		args.Approx = true
	}
	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("stream: publish %s: %w", ev.Key(), err)
	}
	return id, nil
}

func toMessages(entries []redis.XMessage) []Message {
	out := make([]Message, 0, len(entries))
	for _, m := range entries {
		out = append(out, Message{ID: m.ID, Event: ParseChangeEvent(m.Values)})
	}
	return out
}
