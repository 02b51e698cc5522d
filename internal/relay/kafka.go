package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"

	"trackgate/internal/event"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka streams accepted records keyed by device id, so one device's
// records stay ordered on one partition.
type Kafka struct {
	sink
	writer messageWriter
}

func NewKafka(brokers []string, topic string, logger *log.Logger) *Kafka {
	return &Kafka{
		sink: newSink("kafka", logger, isAccept),
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    100,
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (k *Kafka) Run(ctx context.Context) error {
	defer k.writer.Close()
	return k.drain(ctx, k.write)
}

func (k *Kafka) write(ctx context.Context, e event.Event) error {
	value, err := json.Marshal(e.Record)
	if err != nil {
		return err
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.DevID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "cmd", Value: []byte(e.Record.Cmd)},
			{Key: "adapter", Value: []byte(e.Info)},
		},
		Time: e.Time,
	})
	if err != nil {
		return fmt.Errorf("write %s record of %s: %w", e.Record.Cmd, e.DevID, err)
	}
	return nil
}
