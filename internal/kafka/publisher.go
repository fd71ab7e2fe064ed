package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/VictoriaMetrics/metrics"
	"github.com/segmentio/kafka-go"

	"github.com/pittisunilkumar3/nibog-sub001/internal/logcontext"
	"github.com/pittisunilkumar3/nibog-sub001/internal/message"
)

var (
	publishSuccessCounter = metrics.GetOrCreateCounter(`notification_outcome_publish_total{result="success"}`)
	publishErrorCounter   = metrics.GetOrCreateCounter(`notification_outcome_publish_total{result="publish_failed"}`)
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OutcomePublisher writes notification outcomes keyed by booking reference,
// so all outcomes of one booking land on the same partition.
type OutcomePublisher struct {
	writer messageWriter
	logger *slog.Logger
}

func NewOutcomePublisher(writer *kafka.Writer, logger *slog.Logger) *OutcomePublisher {
	return &OutcomePublisher{writer: writer, logger: logger}
}

func (p *OutcomePublisher) Publish(ctx context.Context, outcome message.NotificationOutcome) error {
	ctx = logcontext.AppendCtx(ctx, slog.String("outcomeId", outcome.ID.String()))

	value, err := json.Marshal(outcome)
	if err != nil {
		publishErrorCounter.Inc()
		return err
	}

	msg := kafka.Message{
		Key:   []byte(outcome.BookingRef),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.ErrorContext(ctx, "Error writing notification outcome to Kafka", "error", err)
		publishErrorCounter.Inc()
		return err
	}

	p.logger.DebugContext(ctx, "Notification outcome published", "channel", outcome.Channel, "outcome", outcome.Outcome)
	publishSuccessCounter.Inc()
	return nil
}
