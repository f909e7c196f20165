package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	joins          metric.Int64Counter
	calls          metric.Int64Counter
	leaves         metric.Int64Counter
	rejections     metric.Int64Counter
	loginThrottled metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "queueline"
	}
	meter := provider.Meter(name)

	joins, err := meter.Int64Counter("queueline_queue_joins_total")
	if err != nil {
		return nil, err
	}
	calls, err := meter.Int64Counter("queueline_queue_calls_total")
	if err != nil {
		return nil, err
	}
	leaves, err := meter.Int64Counter("queueline_queue_leaves_total")
	if err != nil {
		return nil, err
	}
	rejections, err := meter.Int64Counter("queueline_queue_rejections_total")
	if err != nil {
		return nil, err
	}
	loginThrottled, err := meter.Int64Counter("queueline_login_throttled_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		joins:          joins,
		calls:          calls,
		leaves:         leaves,
		rejections:     rejections,
		loginThrottled: loginThrottled,
	}, nil
}

// RecordJoin counts a ticket issued for queueType.
func (m *Metrics) RecordJoin(ctx context.Context, queueType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("queue_type", strings.TrimSpace(queueType)))
	m.joins.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCall counts a ticket served by CallNext.
func (m *Metrics) RecordCall(ctx context.Context, queueType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("queue_type", strings.TrimSpace(queueType)))
	m.calls.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLeave counts a ticket cancelled by its owner.
func (m *Metrics) RecordLeave(ctx context.Context, queueType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("queue_type", strings.TrimSpace(queueType)))
	m.leaves.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRejection counts an operation that ended in a domain outcome such as
// already_queued or empty_queue.
func (m *Metrics) RecordRejection(ctx context.Context, operation, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rejections.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLoginThrottled counts login attempts refused by the rate limiter.
func (m *Metrics) RecordLoginThrottled(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.loginThrottled.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"queue_type":  {},
	"operation":   {},
	"reason":      {},
	"endpoint":    {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
