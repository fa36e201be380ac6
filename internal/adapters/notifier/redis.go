package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
	"github.com/vncsmyrnk/pollvoter/internal/core/ports"
)

type RedisConfig struct {
	Client  *redis.Client
	Channel string
	// Location is the time zone used in summary text. Defaults to UTC.
	Location *time.Location
	Now      func() time.Time
}

// RedisNotifier publishes each notification as a JSON Message on a pub/sub
// channel. A relay subscribed to the channel does the actual delivery.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	loc     *time.Location
	now     func() time.Time
}

func NewRedisNotifier(cfg RedisConfig) (*RedisNotifier, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redis notifier: client is required")
	}
	if cfg.Channel == "" {
		return nil, fmt.Errorf("redis notifier: channel is required")
	}
	n := &RedisNotifier{client: cfg.Client, channel: cfg.Channel, loc: cfg.Location, now: cfg.Now}
	if n.now == nil {
		n.now = time.Now
	}
	return n, nil
}

// DialRedis connects to the server at rawURL and checks it answers.
func DialRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

var _ ports.Notifier = (*RedisNotifier)(nil)

func (n *RedisNotifier) NotifyVote(ctx context.Context, notice domain.VoteNotice) error {
	return n.publish(ctx, voteMessage(notice, n.now()))
}

func (n *RedisNotifier) NotifySummary(ctx context.Context, operatorAddress string, s *domain.CycleSummary) error {
	return n.publish(ctx, summaryMessage(operatorAddress, s, n.loc, n.now()))
}

func (n *RedisNotifier) publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis notifier: encode: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis notifier: publish to %s: %w", n.channel, err)
	}
	return nil
}
