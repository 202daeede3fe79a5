package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "murmur",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "murmur",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "murmur",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Density metrics
	PingsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "murmur",
		Subsystem: "density",
		Name:      "pings_recorded_total",
		Help:      "Total location pings appended to the location log",
	})

	PingRecordErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "murmur",
		Subsystem: "density",
		Name:      "ping_record_errors_total",
		Help:      "Pings rejected or not stored, by reason",
	}, []string{"reason"})

	DensityQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "murmur",
		Subsystem: "density",
		Name:      "queries_total",
		Help:      "Total density queries, by outcome",
	}, []string{"outcome"})

	DensityQueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "murmur",
		Subsystem: "density",
		Name:      "query_duration_seconds",
		Help:      "Latency of density queries against the location log",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	EventPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "murmur",
		Subsystem: "events",
		Name:      "publish_errors_total",
		Help:      "Ping events that could not be published",
	})

	TrackerSamples = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "murmur",
		Subsystem: "tracker",
		Name:      "samples_total",
		Help:      "Location samples taken by the tracker, by outcome",
	}, []string{"outcome"})

	RetentionPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "murmur",
		Subsystem: "retention",
		Name:      "pings_pruned_total",
		Help:      "Pings removed by the retention worker",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "murmur",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "murmur",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "murmur",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "murmur",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "murmur",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		// Route pattern, not the raw path: /v1/density/:cell stays one series.
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// PoolStat is the subset of pgxpool.Stat the pool gauges need.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics copies pool stats into the db gauges.
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))
}
