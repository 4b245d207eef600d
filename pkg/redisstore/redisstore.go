// Package redisstore keeps consent entries in Redis and publishes consent
// change events to a Redis channel.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-redis/redis/v8"

	"github.com/umputun/consentd/pkg/consent"
	"github.com/umputun/consentd/pkg/domain"
)

// Config for the redis connection
type Config struct {
	Addrs    []string
	Password string
	DB       int
	Prefix   string // key prefix, "consent" by default
	Channel  string // events channel, "consent-changed" by default
}

// NewClient makes a universal client (single node, sentinel or cluster by addresses)
func NewClient(ctx context.Context, cfg Config) (redis.UniversalClient, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis addresses are required")
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Addrs,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %v: %w", cfg.Addrs, err)
	}
	return client, nil
}

// Store keeps consent entries as plain redis keys, "<prefix>:<profile>:<key>"
type Store struct {
	client redis.UniversalClient
	prefix string
}

// NewStore makes a redis consent store
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "consent"
	}
	return &Store{client: client, prefix: prefix}
}

// ForProfile returns a consent.Backend bound to the profile
func (s *Store) ForProfile(profileID string) consent.Backend {
	return &profileBackend{store: s, profileID: profileID}
}

func (s *Store) key(profileID, key string) string {
	return s.prefix + ":" + profileID + ":" + key
}

type profileBackend struct {
	store     *Store
	profileID string
}

func (p *profileBackend) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := p.store.client.Get(ctx, p.store.key(p.profileID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

func (p *profileBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := p.store.client.Set(ctx, p.store.key(p.profileID, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (p *profileBackend) Delete(ctx context.Context, key string) error {
	if err := p.store.client.Del(ctx, p.store.key(p.profileID, key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Publisher sends consent events to a redis channel as JSON
type Publisher struct {
	client  redis.UniversalClient
	channel string
	timeout time.Duration
}

// NewPublisher makes an events publisher
func NewPublisher(client redis.UniversalClient, channel string) *Publisher {
	if channel == "" {
		channel = "consent-changed"
	}
	return &Publisher{client: client, channel: channel, timeout: time.Second}
}

// Publish sends the event, failures are logged only
func (p *Publisher) Publish(e domain.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		lgr.Printf("[WARN] can't marshal consent event: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		lgr.Printf("[WARN] can't publish consent event to %s: %v", p.channel, err)
	}
}

// Subscribe forwards events received on the channel to fn until ctx is canceled
func (p *Publisher) Subscribe(ctx context.Context, fn func(domain.Event)) error {
	sub := p.client.Subscribe(ctx, p.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", p.channel, err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var e domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				lgr.Printf("[WARN] bad consent event on %s: %v", p.channel, err)
				continue
			}
			fn(e)
		}
	}
}
