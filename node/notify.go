// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package node

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	"github.com/go-redis/redis/v7"
	"github.com/valyala/fasthttp"

	"github.com/chratos-system/chratos-sub002/common"
	"github.com/chratos-system/chratos-sub002/log"
)

var notifyLogger = log.NewModuleLogger(log.NodeNotify)

// Confirmation is the payload posted to the callback target and
// published to Kafka whenever a block is confirmed.
type Confirmation struct {
	Account       common.Account `json:"account"`
	Hash          common.Hash    `json:"hash"`
	Amount        common.Balance `json:"amount"`
	Representative common.Account `json:"representative"`
	BlockType     string         `json:"block_type"`
}

// RateLimiter decides whether a notification for key may proceed right
// now. Implementations need not be exact: an occasional false allow or
// false deny under contention is acceptable for a notification path.
type RateLimiter interface {
	Allow(key string) bool
}

// Notifier posts confirmations to an HTTP callback and/or a Kafka
// topic, subject to a pluggable rate limiter. Either sink may be nil,
// in which case that half of the notification is skipped.
type Notifier struct {
	httpClient  *fasthttp.Client
	callbackURL string

	producer sarama.AsyncProducer
	topic    string

	limiter RateLimiter
}

// NewNotifier builds a notifier. callbackURL may be empty to disable
// the HTTP leg; producer may be nil to disable the Kafka leg; limiter
// may be nil to disable rate limiting entirely.
func NewNotifier(callbackURL string, producer sarama.AsyncProducer, topic string, limiter RateLimiter) *Notifier {
	return &Notifier{
		httpClient:  &fasthttp.Client{Name: "chratos-notify"},
		callbackURL: callbackURL,
		producer:    producer,
		topic:       topic,
		limiter:     limiter,
	}
}

// CallbackURL builds the HTTP callback target from a node's address,
// port, and path, the three config fields node_config.hpp names
// separately (callback_address/callback_port/callback_target).
func CallbackURL(address string, port uint16, target string) string {
	if address == "" {
		return ""
	}
	return fmt.Sprintf("http://%s:%d%s", address, port, target)
}

// Notify fires both configured sinks for c, skipping whichever one is
// not configured, and refusing entirely if the rate limiter denies c's
// account.
func (n *Notifier) Notify(c Confirmation) {
	if n.limiter != nil && !n.limiter.Allow(c.Account.Hex()) {
		notifyLogger.Warn("notification dropped: rate-limit exceeded", "account", c.Account.Hex())
		return
	}

	body, err := json.Marshal(c)
	if err != nil {
		notifyLogger.Error("failed to marshal confirmation", "err", err)
		return
	}

	if n.callbackURL != "" {
		go n.postHTTP(body)
	}
	if n.producer != nil {
		n.publishKafka(c.Account, body)
	}
}

func (n *Notifier) postHTTP(body []byte) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(n.callbackURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := n.httpClient.DoTimeout(req, resp, 5*time.Second); err != nil {
		notifyLogger.Warn("callback POST failed", "url", n.callbackURL, "err", err)
		return
	}
	if resp.StatusCode() >= 300 {
		notifyLogger.Warn("callback POST rejected", "url", n.callbackURL, "status", resp.StatusCode())
	}
}

// publishKafka is at-most-once from this node's perspective: a message
// that cannot be enqueued because the producer input is full is logged
// and dropped, never retried or buffered, and delivery errors are not
// read back, matching the fire-and-forget posture of the HTTP leg.
func (n *Notifier) publishKafka(account common.Account, body []byte) {
	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(account.Hex()),
		Value: sarama.ByteEncoder(body),
	}
	select {
	case n.producer.Input() <- msg:
	default:
		notifyLogger.Warn("kafka producer input full, dropping confirmation", "topic", n.topic)
	}
}

// NewKafkaProducer builds an async producer against brokers, matching
// the teacher's own sarama config (local-ack, snappy compression,
// batched flush) for a confirmation-event topic instead of a
// chain-data-export one.
func NewKafkaProducer(brokers []string) (sarama.AsyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 500 * time.Millisecond
	config.Producer.Return.Successes = false
	config.Producer.Return.Errors = false

	producer, err := sarama.NewAsyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}
	return producer, nil
}

// InMemoryLimiter is a sliding-window rate limiter (it keeps each key's
// hit timestamps within the last window) with no external
// dependency, the default when no Redis endpoint is configured.
type InMemoryLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
}

// NewInMemoryLimiter allows at most limit calls per key within window.
func NewInMemoryLimiter(limit int, window time.Duration) *InMemoryLimiter {
	return &InMemoryLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
	}
}

func (l *InMemoryLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.window)
	kept := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= l.limit {
		l.hits[key] = kept
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}

// RedisLimiter is a shared rate limiter backed by Redis, for
// deployments running more than one node process behind the same
// callback target. Grounded on the teacher's go-redis/redis/v7
// dependency, used here for an INCR-with-expiry fixed window instead
// of a cache.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// NewRedisLimiter allows at most limit calls per key within window,
// shared across every process pointed at the same Redis instance.
func NewRedisLimiter(client *redis.Client, limit int64, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(key string) bool {
	count, err := l.client.Incr("ratelimit:" + key).Result()
	if err != nil {
		notifyLogger.Warn("redis rate limiter unavailable, allowing by default", "err", err)
		return true
	}
	if count == 1 {
		l.client.Expire("ratelimit:"+key, l.window)
	}
	return count <= l.limit
}
