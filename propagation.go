package outbox

import "go.opentelemetry.io/otel/propagation"

// HeaderCarrier adapts an Event's headers to the OpenTelemetry
// TextMapCarrier so trace context travels with the message.
type HeaderCarrier struct {
	event *Event
}

var _ propagation.TextMapCarrier = (*HeaderCarrier)(nil)

// NewHeaderCarrier wraps the given event for context propagation.
func NewHeaderCarrier(event *Event) *HeaderCarrier {
	return &HeaderCarrier{event: event}
}

func (c *HeaderCarrier) Get(key string) string {
	return c.event.Headers[key]
}

func (c *HeaderCarrier) Set(key, value string) {
	if c.event.Headers == nil {
		c.event.Headers = make(map[string]string)
	}
	c.event.Headers[key] = value
}

func (c *HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c.event.Headers))
	for k := range c.event.Headers {
		keys = append(keys, k)
	}
	return keys
}
