package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tradefeed/internal/domain"
	"tradefeed/internal/infrastructure/telemetry"
	"tradefeed/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Producer mirrors classified trades onto per-chain Kafka topics.
type Producer struct {
	writer *kafka.Writer
	prefix string
}

type ProducerConfig struct {
	Brokers     []string
	TopicPrefix string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.TopicPrefix) == "" {
		cfg.TopicPrefix = "tradefeed-trades"
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 500 * time.Millisecond,
	}
	return &Producer{writer: writer, prefix: cfg.TopicPrefix}, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishTrades writes one message per classified transaction, keyed by the
// attributed identity so one user's trades stay ordered within a partition.
func (p *Producer) PublishTrades(ctx context.Context, trades []domain.ClassifiedTransaction) error {
	if len(trades) == 0 {
		return nil
	}
	tracer := otel.Tracer("tradefeed/kafka")
	messages := make([]kafka.Message, 0, len(trades))
	spans := make([]trace.Span, 0, len(trades))
	for _, t := range trades {
		traceCtx, span := tracer.Start(ctx, "firehose.publish_trade", trace.WithSpanKind(trace.SpanKindProducer))
		span.SetAttributes(
			attribute.String("chain", t.Chain),
			attribute.String("tx.hash", t.TxHash),
			attribute.String("action", string(t.Action)),
			attribute.Int64("user.fid", int64(t.User.FID)),
		)

		msg := streaming.FromTrade(t)
		if spanCtx := trace.SpanContextFromContext(traceCtx); spanCtx.HasTraceID() {
			msg.TraceID = spanCtx.TraceID().String()
		}
		payload, err := streaming.Encode(msg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return err
		}
		headers := make([]kafka.Header, 0, 2)
		telemetry.InjectKafkaHeaders(traceCtx, &headers)
		messages = append(messages, kafka.Message{
			Topic:   p.topicForChain(t.Chain),
			Key:     []byte(fmt.Sprintf("fid:%d", t.User.FID)),
			Value:   payload,
			Headers: headers,
		})
		spans = append(spans, span)
	}

	err := p.writer.WriteMessages(ctx, messages...)
	if err != nil {
		for _, span := range spans {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	for _, span := range spans {
		span.End()
	}
	return err
}

func (p *Producer) topicForChain(chain string) string {
	return fmt.Sprintf("%s-%s", p.prefix, chain)
}
