// Package events publishes transcript events to Kafka for downstream
// consumers (search indexing, the meeting analysis pipeline). Publishing
// is best-effort and never blocks a session's protocol messages.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/damukelp/smart-transcriptor/internal/config"
	"github.com/damukelp/smart-transcriptor/internal/observability/metrics"
)

// Publisher publishes transcript events to separate Kafka topics.
type Publisher struct {
	writerSegments *kafka.Writer
	writerComplete *kafka.Writer
	principal      string
	topicSegments  string
	topicComplete  string
	enabled        bool
	metrics        *metrics.Metrics
}

// New creates a Kafka publisher with separate topics for per-segment
// events and consolidated transcripts. A disabled or broker-less config
// yields a log-only publisher.
func New(cfg config.Kafka) *Publisher {
	m := metrics.DefaultMetrics

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:     cfg.Principal,
			topicSegments: cfg.TopicSegments,
			topicComplete: cfg.TopicComplete,
			enabled:       false,
			metrics:       m,
		}
	}

	// Longer dial timeouts for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writerSegments := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicSegments,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
	writerComplete := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicComplete,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicSegments", cfg.TopicSegments).
		Str("topicComplete", cfg.TopicComplete).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerSegments: writerSegments,
		writerComplete: writerComplete,
		principal:      cfg.Principal,
		topicSegments:  cfg.TopicSegments,
		topicComplete:  cfg.TopicComplete,
		enabled:        true,
		metrics:        m,
	}
}

// PublishSegment publishes a partial segment event keyed by stream id.
func (p *Publisher) PublishSegment(ctx context.Context, streamID string, event any) error {
	return p.publish(ctx, p.writerSegments, p.topicSegments, "segment", streamID, event)
}

// PublishComplete publishes a consolidated transcript event.
func (p *Publisher) PublishComplete(ctx context.Context, streamID string, event any) error {
	return p.publish(ctx, p.writerComplete, p.topicComplete, "transcript_complete", streamID, event)
}

// PublishAnalysis publishes a meeting analysis result to the complete
// topic with its own event type.
func (p *Publisher) PublishAnalysis(ctx context.Context, streamID string, event any) error {
	return p.publish(ctx, p.writerComplete, p.topicComplete, "analysis", streamID, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}
	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerSegments != nil {
		if e := p.writerSegments.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing segments writer")
			err = e
		}
	}
	if p.writerComplete != nil {
		if e := p.writerComplete.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing complete writer")
			err = e
		}
	}
	return err
}
