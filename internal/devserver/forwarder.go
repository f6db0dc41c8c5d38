package devserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Forwarder fans accepted records out to Kafka, one async writer per
// topic. Without brokers configured it degrades to a logger, which is
// the usual mode for local SDK work.
type Forwarder struct {
	writers map[string]*kafka.Writer
}

func NewForwarder(cfg KafkaConfig) *Forwarder {
	writers := make(map[string]*kafka.Writer)
	if len(cfg.Brokers) == 0 {
		return &Forwarder{writers: writers}
	}

	for name, topic := range cfg.Topics {
		writers[name] = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchSize:    100,
			BatchTimeout: 100 * time.Millisecond,
			Async:        true,
		}
	}
	return &Forwarder{writers: writers}
}

// Forward publishes record to the named topic stream, keyed by appID
// so one app's records stay ordered within a partition.
func (f *Forwarder) Forward(ctx context.Context, stream, appID string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	w, ok := f.writers[stream]
	if !ok {
		log.Debug().Str("stream", stream).RawJSON("record", data).Msg("No writer, dropping record")
		return nil
	}
	return w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(appID),
		Value: data,
	})
}

func (f *Forwarder) Close() error {
	for _, w := range f.writers {
		w.Close()
	}
	return nil
}
