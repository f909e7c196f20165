package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/queueline/internal/lock"
	"gorm.io/gorm"
)

const (
	QueueReasonOK                   = "ok"
	QueueReasonDeadlineExceeded     = "deadline_exceeded"
	QueueReasonLockTimeout          = "lock_timeout"
	QueueReasonDBLockTimeout        = "db_lock_timeout"
	QueueReasonSerializationFailure = "serialization_failure"
	QueueReasonUniqueViolation      = "unique_violation"
	QueueReasonUnknown              = "unknown"
)

// QueueMetrics captures queue health signals scraped from /metrics.
type QueueMetrics struct {
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec
	lockWait          prometheus.Histogram
	lockTimeouts      prometheus.Counter
	waiting           prometheus.Gauge
}

var (
	queueMetricsOnce sync.Once
	queueMetrics     *QueueMetrics
)

// Queue returns the process-wide queue metrics registered on the default registerer.
func Queue(cfg Config) *QueueMetrics {
	queueMetricsOnce.Do(func() {
		queueMetrics = newQueueMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return queueMetrics
}

func newQueueMetrics(registerer prometheus.Registerer, cfg Config) *QueueMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "queueline"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	operationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "queueline_queue_operation_duration_seconds",
		Help:        "Queue operation latency including lock wait and transaction.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	}, []string{"operation"})
	operationErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "queueline_queue_operation_errors_total",
		Help:        "Queue operation failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"operation", "reason"})
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "queueline_queue_lock_wait_seconds",
		Help:        "Time spent waiting for the queue-wide lock.",
		Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	})
	lockTimeouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "queueline_queue_lock_timeouts_total",
		Help:        "Mutations rejected because the queue lock was not acquired in time.",
		ConstLabels: constLabels,
	})
	waiting := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "queueline_queue_waiting_tickets",
		Help:        "Waiting tickets after the last mutation.",
		ConstLabels: constLabels,
	})

	operationDuration = registerCollector(registerer, operationDuration).(*prometheus.HistogramVec)
	operationErrors = registerCollector(registerer, operationErrors).(*prometheus.CounterVec)
	lockWait = registerCollector(registerer, lockWait).(prometheus.Histogram)
	lockTimeouts = registerCollector(registerer, lockTimeouts).(prometheus.Counter)
	waiting = registerCollector(registerer, waiting).(prometheus.Gauge)

	return &QueueMetrics{
		operationDuration: operationDuration,
		operationErrors:   operationErrors,
		lockWait:          lockWait,
		lockTimeouts:      lockTimeouts,
		waiting:           waiting,
	}
}

// registerCollector returns the already registered collector when one exists.
func registerCollector(registerer prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
	}
	return c
}

func (m *QueueMetrics) ObserveOperation(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *QueueMetrics) IncOperationError(operation string, err error) {
	if m == nil || err == nil {
		return
	}
	m.operationErrors.WithLabelValues(operation, ClassifyQueueErrorReason(err)).Inc()
}

func (m *QueueMetrics) ObserveLockWait(duration time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(duration.Seconds())
}

func (m *QueueMetrics) IncLockTimeout() {
	if m == nil {
		return
	}
	m.lockTimeouts.Inc()
}

func (m *QueueMetrics) SetWaiting(count int) {
	if m == nil {
		return
	}
	m.waiting.Set(float64(count))
}

// ClassifyQueueErrorReason maps infrastructure failures to a metric label.
func ClassifyQueueErrorReason(err error) string {
	switch {
	case err == nil:
		return QueueReasonOK
	case errors.Is(err, lock.ErrTimeout):
		return QueueReasonLockTimeout
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return QueueReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return QueueReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return QueueReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return QueueReasonUniqueViolation
	default:
		return QueueReasonUnknown
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
