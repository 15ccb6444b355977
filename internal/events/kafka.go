package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

// MessageWriter is the subset of *kafka.Writer the bridge uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageReader is the subset of *kafka.Reader the bridge uses
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaBridge mirrors invalidations between console instances sharing a topic.
// Local events are stamped with this instance's origin and produced; remote
// events are consumed and republished on the local bus.
type KafkaBridge struct {
	bus     *Bus
	writer  MessageWriter
	reader  MessageReader
	origin  string
	pending chan Invalidated
}

// NewKafkaBridge connects to brokers. Every instance reads with its own group id so each one sees all events.
func NewKafkaBridge(bus *Bus, brokers []string, topic string) *KafkaBridge {
	origin := uuid.New().String()
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     "ec-admin-console-" + origin,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
	})
	return newBridge(bus, writer, reader, origin)
}

func newBridge(bus *Bus, w MessageWriter, r MessageReader, origin string) *KafkaBridge {
	return &KafkaBridge{
		bus:     bus,
		writer:  w,
		reader:  r,
		origin:  origin,
		pending: make(chan Invalidated, 64),
	}
}

// Origin identifies this instance on the topic
func (b *KafkaBridge) Origin() string {
	return b.origin
}

// Run forwards and consumes until ctx is done
func (b *KafkaBridge) Run(ctx context.Context) error {
	unsubscribe := b.bus.Subscribe("", func(e Invalidated) {
		if e.Origin != "" {
			return
		}
		select {
		case b.pending <- e:
		default:
			log.Printf("[Bridge] Dropping invalidation of %s: outbound queue full", e.Resource)
		}
	})
	defer unsubscribe()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.produce(ctx) })
	g.Go(func() error { return b.consume(ctx) })
	return g.Wait()
}

func (b *KafkaBridge) produce(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-b.pending:
			e.Origin = b.origin
			data, err := json.Marshal(e)
			if err != nil {
				log.Printf("[Bridge] Error encoding invalidation: %v", err)
				continue
			}
			err = b.writer.WriteMessages(ctx, kafka.Message{
				Key:   []byte(e.Resource),
				Value: data,
				Time:  e.At,
			})
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("[Bridge] Error publishing invalidation of %s: %v", e.Resource, err)
			}
		}
	}
}

func (b *KafkaBridge) consume(ctx context.Context) error {
	for {
		msg, err := b.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[Bridge] Error reading message: %v", err)
			continue
		}

		var e Invalidated
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			log.Printf("[Bridge] Skipping malformed message at offset %d: %v", msg.Offset, err)
			continue
		}
		if e.Origin == b.origin || e.Resource == "" {
			continue
		}
		if e.Origin == "" {
			e.Origin = "remote"
		}
		b.bus.Publish(e)
	}
}

// Close releases the Kafka writer and reader
func (b *KafkaBridge) Close() error {
	werr := b.writer.Close()
	rerr := b.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
