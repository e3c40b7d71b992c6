package infra

import (
	"sync"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	imetrics "github.com/pancudaniel7/blockscan-near-lake-service/internal/pkg/metrics"
)

var (
	promOnce     sync.Once
	promRegistry *prometheus.Registry
)

// InitMetricsRegistry installs the service registry and registers every
// collector. It must run before the first metric is touched.
func InitMetricsRegistry() *prometheus.Registry {
	promOnce.Do(func() {
		promRegistry = prometheus.NewRegistry()
		promRegistry.MustRegister(collectors.NewGoCollector())
		promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		bi := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "service_build_info",
			Help:        "build info",
			ConstLabels: prometheus.Labels{"service": "near-lake-relay"},
		}, []string{"version", "rev"})
		promRegistry.MustRegister(bi)
		bi.WithLabelValues("dev", "unknown").Set(1)

		imetrics.UseRegistry(promRegistry)
		_ = imetrics.App()
		_ = imetrics.Process()
		_ = imetrics.Sink()
		_ = imetrics.Source()
		_ = imetrics.Pipeline()
		_ = imetrics.Mirror()
	})
	return promRegistry
}

// InitMetrics mounts /metrics on app.
func InitMetrics(app *fiber.App) {
	if app == nil {
		return
	}
	reg := InitMetricsRegistry()
	h := promhttp.InstrumentMetricHandler(reg, promhttp.HandlerFor(imetrics.Gatherer(), promhttp.HandlerOpts{}))
	app.Get("/metrics", adaptor.HTTPHandler(h))
}
