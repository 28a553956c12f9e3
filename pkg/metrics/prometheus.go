package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var reqCnt = &Metric{
	ID:          "reqCnt",
	Name:        "req_total",
	Description: "How many HTTP requests processed, partitioned by status code and HTTP method.",
	Type:        "counter_vec",
	Args:        []string{"code", "method", "url", "ref"}}

var reqDur = &Metric{
	ID:          "reqDur",
	Name:        "req_dur_ms",
	Description: "The HTTP request latencies in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"code", "method", "url", "ref"},
}

var resSz = &Metric{
	ID:          "resSz",
	Name:        "resp_sz_bytes",
	Description: "The HTTP response sizes in bytes.",
	Type:        "summary_vec",
	Args:        []string{"code", "method", "url", "ref"},
}

var defaultMetricPath = "/metrics"

type Logger interface {
	Errorf(format string, v ...interface{})
}

// URLLabelFn maps a request to the "url" label. The default uses the matched
// route template so path parameters do not explode cardinality.
type URLLabelFn func(c *gin.Context) string

// Prometheus instruments a gin engine and exposes the scrape endpoint.
type Prometheus struct {
	reqCnt *prometheus.CounterVec
	reqDur *prometheus.HistogramVec
	resSz  *prometheus.SummaryVec

	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer

	MetricsPath string
	URLLabelFn  URLLabelFn

	logger Logger
}

type NewPrometheusOptions struct {
	Subsystem   string
	MetricsPath string
	URLLabelFn  URLLabelFn
	Logger      Logger
	// Registry defaults to the global prometheus registry.
	Registry *prometheus.Registry
}

// NewPrometheus generates a new set of HTTP metrics with a certain subsystem name.
func NewPrometheus(options NewPrometheusOptions) *Prometheus {
	p := &Prometheus{
		MetricsPath: options.MetricsPath,
		URLLabelFn:  options.URLLabelFn,
		logger:      options.Logger,
		registerer:  prometheus.DefaultRegisterer,
		gatherer:    prometheus.DefaultGatherer,
	}
	if options.Registry != nil {
		p.registerer = options.Registry
		p.gatherer = options.Registry
	}
	if p.MetricsPath == "" {
		p.MetricsPath = defaultMetricPath
	}
	if p.URLLabelFn == nil {
		p.URLLabelFn = func(c *gin.Context) string {
			if route := c.FullPath(); route != "" {
				return route
			}
			return "unmatched"
		}
	}

	p.reqCnt = p.register(reqCnt, options.Subsystem).(*prometheus.CounterVec)
	p.reqDur = p.register(reqDur, options.Subsystem).(*prometheus.HistogramVec)
	p.resSz = p.register(resSz, options.Subsystem).(*prometheus.SummaryVec)
	return p
}

func (p *Prometheus) register(def *Metric, subsystem string) prometheus.Collector {
	metric := NewMetric(def, subsystem)
	if err := p.registerer.Register(metric); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			metric = are.ExistingCollector
		} else if p.logger != nil {
			p.logger.Errorf("%s could not be registered in Prometheus, err=%v", def.Name, err)
		}
	}
	def.MetricCollector = metric
	return metric
}

// Use adds the middleware and the metrics route to a gin engine.
func (p *Prometheus) Use(e *gin.Engine) {
	e.Use(p.HandlerFunc())
	e.GET(p.MetricsPath, gin.WrapH(p.Handler()))
}

// Handler serves the scrape endpoint for the configured registry.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

// HandlerFunc defines handler function for middleware
func (p *Prometheus) HandlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == p.MetricsPath {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		url := p.URLLabelFn(c)
		ref := c.Request.Header.Get(RefererKey)

		p.reqDur.WithLabelValues(status, c.Request.Method, url, ref).Observe(MillisecondsSince(start))
		p.reqCnt.WithLabelValues(status, c.Request.Method, url, ref).Inc()
		p.resSz.WithLabelValues(status, c.Request.Method, url, ref).Observe(float64(c.Writer.Size()))
	}
}
