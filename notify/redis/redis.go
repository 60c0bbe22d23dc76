// Package redis publishes run completed events on a Redis pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hb9tf/radarlog/notify"
)

const (
	DefaultChannel = "radarlog:run_completed"
	DefaultTimeout = 5 * time.Second
	DefaultRetries = 3
)

// Config configures the Redis notifier.
type Config struct {
	// URL has the form redis://[:password@]host:port[/db].
	URL     string
	Channel string
	// Timeout bounds every single PUBLISH.
	Timeout time.Duration
	// Retries is the number of attempts after the first one.
	Retries int
}

// Notifier publishes events with PUBLISH.
type Notifier struct {
	config Config
	client *goredis.Client
}

func New(cfg Config) (*Notifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis notifier requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis notifier: invalid URL: %w", err)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	return &Notifier{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

func (n *Notifier) Publish(ctx context.Context, event *notify.RunCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	err = notify.Retry(ctx, n.config.Retries, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, n.config.Timeout)
		defer cancel()
		return n.client.Publish(ctx, n.config.Channel, body).Err()
	}, nil)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

func (n *Notifier) Close() error {
	return n.client.Close()
}

var _ notify.Notifier = (*Notifier)(nil)
