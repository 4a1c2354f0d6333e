package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Writer publishes the audit stream to a kafka topic, keyed by coin so the
// per position event order is preserved within a partition.
type Writer struct {
	writer *kafka.Writer
	topic  string
}

func NewWriter(brokers []string, topic string) *Writer {
	return &Writer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
		},
		topic: topic,
	}
}

func (w *Writer) Publish(event Event) {
	b, err := json.Marshal(event)
	if err != nil {
		log.Warn().Err(err).Str("type", string(event.Type)).Msg("could not marshal audit event")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = w.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Coin),
		Value: b,
	})
	if err != nil {
		// the stream is observability, a sink failure never stalls the cycle
		log.Error().Err(err).Str("topic", w.topic).Msg("could not publish audit event")
	}
}

func (w *Writer) Close() error {
	return w.writer.Close()
}
