package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// metadataCarrier adapts job metadata to a propagation.TextMapCarrier.
// Non-string values are ignored on read.
type metadataCarrier map[string]any

var _ propagation.TextMapCarrier = metadataCarrier(nil)

func (c metadataCarrier) Get(key string) string {
	s, _ := c[key].(string)
	return s
}

func (c metadataCarrier) Set(key, value string) {
	c[key] = value
}

func (c metadataCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// InjectMetadata stores the trace context of ctx in md so a queued job can
// continue the trace that enqueued it. md must be non-nil.
func InjectMetadata(ctx context.Context, md map[string]any) {
	otel.GetTextMapPropagator().Inject(ctx, metadataCarrier(md))
}

// ExtractMetadata returns ctx carrying the remote span context stored in md
func ExtractMetadata(ctx context.Context, md map[string]any) context.Context {
	if len(md) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, metadataCarrier(md))
}
