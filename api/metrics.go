package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestTotal counts handled requests by route and status code
	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "koyomi_http_requests_total",
		Help: "Total HTTP requests by route and status code",
	}, []string{"route", "code"})

	// updateTotal counts calendar update cycles by result
	updateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "koyomi_update_cycles_total",
		Help: "Total calendar update cycles by result",
	}, []string{"result"})

	// updateDuration tracks update cycle latency including store reads
	updateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "koyomi_update_duration_seconds",
		Help:    "Calendar update cycle duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	})

	// selectionEvents counts selection interactions by kind
	selectionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "koyomi_selection_events_total",
		Help: "Total selection interactions by kind",
	}, []string{"kind"})

	// renderBytes tracks the size of rendered SVG documents
	renderBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "koyomi_render_bytes",
		Help:    "Size of rendered SVG documents in bytes",
		Buckets: prometheus.ExponentialBuckets(1024, 2, 10),
	})
)

// statusRecorder はレスポンスのステータスコードを記録します。
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument はルートごとのリクエスト数を数えるハンドラーを返します。
func instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next(rec, r)
		requestTotal.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
	}
}

// observeUpdate は更新サイクルの結果と所要時間を記録します。
func observeUpdate(start time.Time, err error) {
	updateDuration.Observe(time.Since(start).Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	updateTotal.WithLabelValues(result).Inc()
}
