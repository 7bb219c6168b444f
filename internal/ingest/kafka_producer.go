package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/driver-dispatch/internal/models"
)

// Producer tees driver location samples onto a Kafka topic for downstream
// consumers (analytics, live maps). Best-effort; callers decide whether to
// surface errors.
type Producer struct {
	writer *kafka.Writer
}

// Sample is the wire shape of one teed location update. JobID is empty for
// plain availability heartbeats.
type Sample struct {
	DriverID string       `json:"driver_id"`
	JobID    string       `json:"job_id,omitempty"`
	Loc      models.Coord `json:"loc"`
	At       time.Time    `json:"at"`
}

func NewProducer(brokers []string, topic string) *Producer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &Producer{writer: w}
}

func (p *Producer) PublishSample(s Sample) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, _ := json.Marshal(s)
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(s.DriverID), Value: b})
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
