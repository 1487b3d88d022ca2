package gateway

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/lms-gateway/internal/gateway/health"
	"github.com/nao1215/lms-gateway/pkg/middleware"
)

// serviceLabelLocal は転送せずにGateway自身が応答したリクエストのサービスラベル。
const serviceLabelLocal = "gateway"

// Metrics はGatewayのPrometheusメトリクス。
// プロセス全体のデフォルトレジストリではなく専用のレジストリに登録する。
type Metrics struct {
	// registry はメトリクスの登録先。
	registry *prometheus.Registry
	// requestsTotal はサービス・メソッド・ステータスごとのリクエスト数。
	requestsTotal *prometheus.CounterVec
	// requestDuration はサービスごとの処理時間。
	requestDuration *prometheus.HistogramVec
	// upstreamUp は直近のヘルスチェックでサービスが正常だったか（1/0）。
	upstreamUp *prometheus.GaugeVec
}

// NewMetrics はメトリクスを生成して専用のレジストリに登録する。
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_requests_total",
				Help: "Total number of requests handled by the gateway.",
			},
			[]string{"service", "method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_request_duration_seconds",
				Help:    "Duration of requests handled by the gateway in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		upstreamUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_upstream_up",
				Help: "Whether the upstream service passed its last health check (1) or not (0).",
			},
			[]string{"service"},
		),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.upstreamUp,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveAccess はリクエスト1件の処理結果を記録する。middleware.AccessObserverとして使う。
func (m *Metrics) ObserveAccess(a middleware.Access) {
	service := a.Service
	if service == "" {
		service = serviceLabelLocal
	}
	m.requestsTotal.WithLabelValues(service, a.Method, strconv.Itoa(a.Status)).Inc()
	m.requestDuration.WithLabelValues(service).Observe(a.Latency.Seconds())
}

// ObserveReport はヘルスチェックの結果をサービスごとのゲージに反映する。
func (m *Metrics) ObserveReport(report health.Report) {
	for _, r := range report.Services {
		up := 0.0
		if r.Status == health.StatusHealthy {
			up = 1
		}
		m.upstreamUp.WithLabelValues(r.Service).Set(up)
	}
}

// Handler はメトリクスを公開するhttp.Handlerを返す。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
