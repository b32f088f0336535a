package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/config"
)

const contentTypeJSON = "application/json"

// kafkaClient implements Client via kafka-go. Messages are keyed by order so events for
// one order stay on one partition and in order.
type kafkaClient struct {
	writer    *kafka.Writer
	reader    *kafka.Reader
	topic     string
	pollDelay time.Duration
	logger    *zap.Logger
}

func newKafkaClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) *kafkaClient {
	kcfg := cfg.Messaging.Kafka

	writer := &kafka.Writer{
		Addr:         kafka.TCP(kcfg.Brokers...),
		Topic:        kcfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Logger:       kafkaLogger{logger: logger},
		ErrorLogger:  kafkaErrorLogger{logger: logger},
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        kcfg.Brokers,
		GroupID:        cfg.Messaging.ConsumerGroup,
		Topic:          kcfg.Topic,
		MinBytes:       kcfg.MinBytes,
		MaxBytes:       kcfg.MaxBytes,
		CommitInterval: kcfg.CommitInterval,
		Dialer: &kafka.Dialer{
			Timeout:  kcfg.ConnectTimeout,
			ClientID: kcfg.ClientID,
		},
	})

	client := &kafkaClient{
		writer:    writer,
		reader:    reader,
		topic:     kcfg.Topic,
		pollDelay: cfg.Messaging.Workers.PollInterval,
		logger:    logger,
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			logger.Info("closing kafka client")
			return errors.Join(writer.Close(), reader.Close())
		},
	})
	return client
}

func (k *kafkaClient) Publish(ctx context.Context, key []byte, value []byte) error {
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:     key,
		Value:   value,
		Headers: []kafka.Header{{Key: "content-type", Value: []byte(contentTypeJSON)}},
	})
}

func (k *kafkaClient) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			k.logger.Error("kafka fetch failed", zap.Error(err))
			select {
			case <-time.After(k.pollDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if err := handler(ctx, fromKafka(msg)); err != nil {
			k.logger.Error("message handler failed", zap.Error(err), zap.Int64("offset", msg.Offset))
			continue
		}
		if err := k.reader.CommitMessages(ctx, msg); err != nil {
			k.logger.Warn("commit failed", zap.Error(err), zap.Int64("offset", msg.Offset))
		}
	}
}

func (k *kafkaClient) Topic() string { return k.topic }

func fromKafka(msg kafka.Message) Message {
	out := Message{
		Topic:  msg.Topic,
		Key:    append([]byte(nil), msg.Key...),
		Value:  append([]byte(nil), msg.Value...),
		Offset: msg.Offset,
		Time:   msg.Time,
	}
	if len(msg.Headers) > 0 {
		out.Headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			out.Headers[h.Key] = string(h.Value)
		}
	}
	return out
}

type kafkaLogger struct {
	logger *zap.Logger
}

func (k kafkaLogger) Printf(msg string, args ...any) {
	k.logger.Sugar().Debugf(msg, args...)
}

type kafkaErrorLogger struct {
	logger *zap.Logger
}

func (k kafkaErrorLogger) Printf(msg string, args ...any) {
	k.logger.Sugar().Warnf(msg, args...)
}
