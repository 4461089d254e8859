package kafkax

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
)

// Event is one domain event bound for Kafka. Type doubles as the topic and Key keeps every
// event of one aggregate on the same partition.
type Event struct {
	ID      string
	Type    string
	Key     string
	Payload []byte
}

// Message builds the Kafka message for evt with its id, type and the W3C trace context of ctx
// as headers.
func Message(ctx context.Context, evt Event) kafka.Message {
	h := headerCarrier{
		{Key: HeaderEventID, Value: []byte(evt.ID)},
		{Key: HeaderEventType, Value: []byte(evt.Type)},
	}
	otel.GetTextMapPropagator().Inject(ctx, &h)
	return kafka.Message{
		Topic:   evt.Type,
		Key:     []byte(evt.Key),
		Value:   evt.Payload,
		Headers: h,
	}
}

type headerCarrier []kafka.Header

func (c *headerCarrier) Get(key string) string {
	return HeaderValue(*c, key)
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, h := range *c {
		keys = append(keys, h.Key)
	}
	return keys
}

// Set replaces an existing header with the same key.
func (c *headerCarrier) Set(key, value string) {
	for i := range *c {
		if (*c)[i].Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)
