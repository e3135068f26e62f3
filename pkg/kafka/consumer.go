package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"BTCPulse/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Reader is the part of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads registered topics in a consumer group and hands messages to a
// worker pool. Offsets are committed after the handler succeeds or its retries
// are exhausted, so a poison message is logged and skipped.
type Consumer struct {
	cfg       *ConsumerConfig
	log       *logger.Logger
	handlers  map[string]MessageHandler
	newReader func(topic string) Reader
}

type delivery struct {
	reader Reader
	msg    kafka.Message
}

func NewConsumer(l *logger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:    "btcpulse",
		Workers:    1,
		BufferSize: 10,
		RetryMax:   3,
		BackoffMin: 50 * time.Millisecond,
		BackoffMax: 2 * time.Second,
		MinBytes:   1,
		MaxBytes:   1 << 20,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if l == nil {
		l = logger.Nop()
	}

	c := &Consumer{cfg: cfg, log: l, handlers: make(map[string]MessageHandler)}
	c.newReader = func(topic string) Reader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    topic,
			GroupID:  cfg.GroupID,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
		})
	}
	return c, nil
}

// RegisterHandler must be called before Run. A second handler for the same
// topic is ignored.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	if _, ok := c.handlers[h.Topic()]; ok {
		c.log.Warn("kafka handler already registered", logger.String("topic", h.Topic()))
		return
	}
	c.handlers[h.Topic()] = h
}

// Run consumes until ctx is cancelled, then closes the readers and waits for
// in-flight messages.
func (c *Consumer) Run(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return errors.New("no kafka handlers registered")
	}
	queue := make(chan delivery, c.cfg.BufferSize)

	var workers sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for d := range queue {
				c.process(ctx, d)
			}
		}()
	}

	var readers sync.WaitGroup
	for topic := range c.handlers {
		r := c.newReader(topic)
		readers.Add(1)
		go func() {
			defer readers.Done()
			defer r.Close()
			c.fetchLoop(ctx, topic, r, queue)
		}()
		c.log.Info("kafka consumer started", logger.String("topic", topic), logger.String("group", c.cfg.GroupID))
	}

	readers.Wait()
	close(queue)
	workers.Wait()
	c.log.Info("kafka consumer stopped")
	return nil
}

func (c *Consumer) fetchLoop(ctx context.Context, topic string, r Reader, queue chan<- delivery) {
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("kafka fetch failed", logger.String("topic", topic), logger.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.cfg.BackoffMax):
			}
			continue
		}
		if msg.Topic == "" {
			msg.Topic = topic
		}
		select {
		case queue <- delivery{reader: r, msg: msg}:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) process(ctx context.Context, d delivery) {
	topic := d.msg.Topic
	h := c.handlers[topic]
	start := time.Now()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.BackoffMin
	policy.MaxInterval = c.cfg.BackoffMax
	policy.MaxElapsedTime = 0
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.cfg.RetryMax)), ctx)

	err := backoff.Retry(func() error { return c.safeHandle(ctx, h, d.msg.Value) }, retry)
	consumerLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	if err != nil {
		consumerHandled.WithLabelValues(topic, "error").Inc()
		c.log.Error("kafka handler failed, skipping message",
			logger.String("topic", topic),
			logger.Int64("offset", d.msg.Offset),
			logger.Error(err),
		)
		if ctx.Err() != nil {
			return
		}
	} else {
		consumerHandled.WithLabelValues(topic, "ok").Inc()
	}

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := d.reader.CommitMessages(commitCtx, d.msg); err != nil {
		c.log.Warn("kafka commit failed", logger.String("topic", topic), logger.Error(err))
	}
}

func (c *Consumer) safeHandle(ctx context.Context, h MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = backoff.Permanent(fmt.Errorf("handler panic: %v", r))
		}
	}()
	return h.Handle(ctx, data)
}
