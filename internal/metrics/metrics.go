package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tailchart"

// Pipeline holds the collectors updated by the pipeline driver.
type Pipeline struct {
	RecordsReceived prometheus.Counter
	RecordsAccepted prometheus.Counter
	ParseFailures   *prometheus.CounterVec
	RenderFailures  prometheus.Counter
	AggregateSize   prometheus.Gauge
	State           prometheus.Gauge
}

// NewPipeline creates unregistered pipeline collectors.
func NewPipeline() *Pipeline {
	return &Pipeline{
		RecordsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_received_total",
			Help:      "Raw payloads read from the source",
		}),
		RecordsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_accepted_total",
			Help:      "Records folded into the aggregate",
		}),
		ParseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_failures_total",
			Help:      "Payloads dropped by the parser or aggregator",
		}, []string{"kind"}),
		RenderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_failures_total",
			Help:      "Render calls that returned an error",
		}),
		AggregateSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "aggregate_size",
			Help:      "Number of bars or points currently held",
		}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_state",
			Help:      "Driver state (0=initializing, 1=running, 2=draining, 3=interrupted, 4=closed)",
		}),
	}
}

func (p *Pipeline) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		p.RecordsReceived,
		p.RecordsAccepted,
		p.ParseFailures,
		p.RenderFailures,
		p.AggregateSize,
		p.State,
	}
}

// Registry is a private Prometheus registry carrying the pipeline metrics
// and the Go runtime collectors.
type Registry struct {
	reg      *prometheus.Registry
	Pipeline *Pipeline
}

// NewRegistry creates a registry with pipeline and runtime metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	p := NewPipeline()
	reg.MustRegister(p.collectors()...)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{reg: reg, Pipeline: p}
}

// Prometheus returns the underlying registry.
func (r *Registry) Prometheus() *prometheus.Registry { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
