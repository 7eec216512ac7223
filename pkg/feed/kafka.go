package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/samudaay/portal-chat/pkg/model"
)

// Source yields change-feed events in arrival order.
type Source interface {
	Next(ctx context.Context) (model.Event, error)
	Close() error
}

// KafkaSource reads the change feed with a per-instance consumer group so
// every gateway sees every event.
type KafkaSource struct {
	reader *kafka.Reader
}

func NewKafkaSource(brokers []string, topic, instance string) *KafkaSource {
	return &KafkaSource{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     fmt.Sprintf("gateway-%s-%d", instance, time.Now().UnixNano()),
			StartOffset: kafka.LastOffset,
			MinBytes:    10e3,
			MaxBytes:    10e6,
		}),
	}
}

func (s *KafkaSource) Next(ctx context.Context) (model.Event, error) {
	for {
		m, err := s.reader.ReadMessage(ctx)
		if err != nil {
			return model.Event{}, err
		}
		var ev model.Event
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			log.Printf("Skipping malformed feed event: %v", err)
			continue
		}
		return ev, nil
	}
}

func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
