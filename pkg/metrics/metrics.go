package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HistogramBuckets covers fast API calls through slow outbound-dependent
// requests (checkout session creation, webhook fan-out). Milliseconds.
var HistogramBuckets = []float64{
	25, 50, 75, 100, 150, 200, 300, 400, 500,
	750, 1000, 1500, 2000,
	3000, 5000, 7500, 10000, 15000,
	30000, 60000,
}

type NewPrometheusOptions struct {
	// ReqCntURLLabelMappingFn maps a request to its url label. Use the gin
	// route template rather than the raw path to bound cardinality.
	ReqCntURLLabelMappingFn func(c *gin.Context) string
	Subsystem               string
	Logger                  *zap.SugaredLogger
}

// Prometheus instruments a gin engine and serves /metrics on its own listener.
type Prometheus struct {
	reqCnt        *prometheus.CounterVec
	reqDur        *prometheus.HistogramVec
	listenAddress string
	mapURL        func(c *gin.Context) string
	log           *zap.SugaredLogger
}

func NewPrometheus(opts NewPrometheusOptions) *Prometheus {
	subsystem := opts.Subsystem
	if subsystem == "" {
		subsystem = "http"
	}
	p := &Prometheus{
		reqCnt: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      "requests_total",
				Help:      "Total HTTP requests processed, partitioned by status, method and url.",
			},
			[]string{"code", "method", "url"},
		),
		reqDur: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Subsystem: subsystem,
				Name:      "request_duration_ms",
				Help:      "HTTP request latency in milliseconds.",
				Buckets:   HistogramBuckets,
			},
			[]string{"code", "method", "url"},
		),
		mapURL: opts.ReqCntURLLabelMappingFn,
		log:    opts.Logger,
	}
	if p.mapURL == nil {
		p.mapURL = func(c *gin.Context) string { return c.FullPath() }
	}
	prometheus.MustRegister(p.reqCnt, p.reqDur)
	return p
}

// SetListenAddress sets the dedicated metrics listener address.
func (p *Prometheus) SetListenAddress(addr string) {
	p.listenAddress = addr
}

// Use attaches the middleware to the engine and starts the metrics listener.
func (p *Prometheus) Use(e *gin.Engine) {
	e.Use(p.handlerFunc())
	if p.listenAddress == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(p.listenAddress, mux); err != nil && p.log != nil {
			p.log.Errorw("metrics listener stopped", "err", err)
		}
	}()
}

func (p *Prometheus) handlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		code := strconv.Itoa(c.Writer.Status())
		url := p.mapURL(c)
		elapsed := float64(time.Since(start).Milliseconds())
		p.reqCnt.WithLabelValues(code, c.Request.Method, url).Inc()
		p.reqDur.WithLabelValues(code, c.Request.Method, url).Observe(elapsed)
	}
}
