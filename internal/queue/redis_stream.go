package queue

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const payloadField = "payload"

// RedisStream delivers jobs through a Redis stream and consumer group. Jobs
// whose handler fails stay pending in the group for inspection.
type RedisStream struct {
	Redis  *redis.Client
	Stream string
	Group  string
	// ConsumerPrefix names the group consumers, one per Consume call.
	ConsumerPrefix string
	Block          time.Duration
	Logger         logrus.FieldLogger

	seq    atomic.Int64
	closed atomic.Bool
}

func NewRedisStream(rdb *redis.Client, log logrus.FieldLogger) *RedisStream {
	return &RedisStream{Redis: rdb, Logger: log}
}

func (q *RedisStream) defaults() {
	if q.Stream == "" {
		q.Stream = "interview:" + DefaultTopic
	}
	if q.Group == "" {
		q.Group = DefaultGroup
	}
	if q.ConsumerPrefix == "" {
		q.ConsumerPrefix = "c-" + uuid.NewString()[:8]
	}
	if q.Block <= 0 {
		q.Block = 5 * time.Second
	}
	if q.Logger == nil {
		q.Logger = logrus.New()
	}
}

func (q *RedisStream) Publish(ctx context.Context, job Job) error {
	if q.closed.Load() {
		return ErrClosed
	}
	q.defaults()
	payload, err := encode(job)
	if err != nil {
		return err
	}
	return q.Redis.XAdd(ctx, &redis.XAddArgs{
		Stream: q.Stream,
		Values: map[string]any{payloadField: string(payload)},
	}).Err()
}

func (q *RedisStream) Consume(ctx context.Context, h Handler) error {
	if q.Redis == nil {
		return errors.New("RedisStream missing dependency: Redis must be set")
	}
	q.defaults()

	_ = q.Redis.XGroupCreateMkStream(ctx, q.Stream, q.Group, "0").Err() // ignore BUSYGROUP

	consumer := q.ConsumerPrefix + "-" + strconv.FormatInt(q.seq.Add(1), 10)
	log := q.Logger.WithField("consumer", consumer)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		res, err := q.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.Group,
			Consumer: consumer,
			Streams:  []string{q.Stream, ">"},
			Count:    1,
			Block:    q.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).Warn("xreadgroup failed")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				q.handleMsg(ctx, log, msg, h)
			}
		}
	}
}

func (q *RedisStream) handleMsg(ctx context.Context, log logrus.FieldLogger, msg redis.XMessage, h Handler) {
	log = log.WithField("redis_id", msg.ID)

	raw, _ := msg.Values[payloadField].(string)
	job, err := decode([]byte(raw))
	if err != nil {
		log.WithError(err).Error("dropping malformed job")
		_ = q.Redis.XAck(ctx, q.Stream, q.Group, msg.ID).Err()
		return
	}

	if err := h(ctx, job); err != nil {
		log.WithError(err).WithField("evaluation_id", job.EvaluationID).Warn("job handler failed; left pending")
		return
	}
	_ = q.Redis.XAck(ctx, q.Stream, q.Group, msg.ID).Err()
}

// Close stops publishing. The client is owned by the caller.
func (q *RedisStream) Close() error {
	q.closed.Store(true)
	return nil
}
