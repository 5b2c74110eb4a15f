package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tabletop",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"service", "method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tabletop",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "method", "path", "status"})

	httpInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tabletop",
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests",
	}, []string{"service"})

	// RoomsActive tracks live rooms in the registry.
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tabletop",
		Name:      "relay_rooms_active",
		Help:      "Number of rooms currently registered",
	})

	// SessionsConnected tracks attached websocket sessions.
	SessionsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tabletop",
		Name:      "relay_sessions_connected",
		Help:      "Number of sessions currently connected",
	})

	// RelayedMessages counts relay fan-outs by hook.
	RelayedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tabletop",
		Name:      "relay_messages_total",
		Help:      "Total relay messages broadcast, by hook",
	}, []string{"hook"})

	// Denials counts refused join/start requests by reason code.
	Denials = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tabletop",
		Name:      "relay_denials_total",
		Help:      "Total denied requests, by reason code",
	}, []string{"reason"})

	// DroppedDeliveries counts per-recipient broadcast deliveries that were
	// dropped because the recipient's outbound buffer was full or closed.
	DroppedDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tabletop",
		Name:      "relay_dropped_deliveries_total",
		Help:      "Total broadcast deliveries dropped per recipient",
	})

	// UnknownMessages counts inbound envelopes with an unrecognized hook.
	UnknownMessages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tabletop",
		Name:      "relay_unknown_messages_total",
		Help:      "Total inbound messages dropped for an unknown hook",
	})
)

type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack must be forwarded so websocket upgrades work through the recorder.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("relay metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request metrics with Prometheus labels.
func Middleware(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			httpInFlight.WithLabelValues(service).Inc()
			defer httpInFlight.WithLabelValues(service).Dec()

			next.ServeHTTP(rec, r)

			labels := prometheus.Labels{
				"service": service,
				"method":  r.Method,
				"path":    r.URL.Path,
				"status":  strconv.Itoa(rec.status),
			}

			httpRequests.With(labels).Inc()
			httpLatency.With(labels).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
