// Package broker carries preview warm-up requests over Kafka so uploads
// return before derivatives are rendered.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"photopipe/internal/logger"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Publisher announces newly ingested images.
type Publisher struct {
	w messageWriter
}

func NewPublisher(broker, topic string) *Publisher {
	return &Publisher{w: kafka.NewWriter(kafka.WriterConfig{
		Brokers: []string{broker},
		Topic:   topic,
	})}
}

func (p *Publisher) PublishWarm(ctx context.Context, subjectID string) error {
	const op = "broker.PublishWarm"

	err := p.w.WriteMessages(ctx, kafka.Message{Key: []byte(subjectID), Value: []byte(subjectID)})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *Publisher) Close() error { return p.w.Close() }

// Handler processes one warm-up request.
type Handler func(ctx context.Context, subjectID string) error

type Consumer struct {
	r       messageReader
	log     *logrus.Entry
	backoff time.Duration
}

func NewConsumer(broker, topic, group string, log logrus.FieldLogger) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers: []string{broker},
			Topic:   topic,
			GroupID: group,
		}),
		log:     logger.Component(log, "warmup-consumer"),
		backoff: time.Second,
	}
}

// Run feeds every message to h until ctx is cancelled. Read and handler
// errors are logged; the loop keeps going.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	for {
		msg, err := c.r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.log.WithError(err).Error("error reading message")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		id := string(msg.Value)
		if err := h(ctx, id); err != nil {
			c.log.WithError(err).WithField("subject_id", id).Error("error warming previews")
		}
	}
}

func (c *Consumer) Close() error { return c.r.Close() }
