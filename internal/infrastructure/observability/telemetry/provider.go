package telemetry

import (
	"github.com/Zhima-Mochi/orderflow/internal/observability"
)

type provider struct {
	tracer     observability.Tracer
	logger     observability.Logger
	counters   map[string]observability.Counter
	histograms map[string]observability.Histogram
	gauges     map[string]observability.Gauge
}

// New assembles a Telemetry provider backed by the supplied tracer, logger,
// and metric instruments. Nil arguments fall back to no-op implementations.
func New(
	tracer observability.Tracer,
	logger observability.Logger,
	counters map[string]observability.Counter,
	histograms map[string]observability.Histogram,
	gauges map[string]observability.Gauge,
) observability.Telemetry {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	counterCopy := make(map[string]observability.Counter, len(counters))
	for k, v := range counters {
		if v != nil {
			counterCopy[k] = v
		}
	}

	histogramCopy := make(map[string]observability.Histogram, len(histograms))
	for k, v := range histograms {
		if v != nil {
			histogramCopy[k] = v
		}
	}

	gaugeCopy := make(map[string]observability.Gauge, len(gauges))
	for k, v := range gauges {
		if v != nil {
			gaugeCopy[k] = v
		}
	}

	return &provider{
		tracer:     tracer,
		logger:     logger,
		counters:   counterCopy,
		histograms: histogramCopy,
		gauges:     gaugeCopy,
	}
}

func (p *provider) Tracer() observability.Tracer {
	return p.tracer
}

func (p *provider) Counter(name string) observability.Counter {
	return p.counters[name]
}

func (p *provider) Histogram(name string) observability.Histogram {
	return p.histograms[name]
}

func (p *provider) Gauge(name string) observability.Gauge {
	return p.gauges[name]
}

func (p *provider) Logger() observability.Logger {
	return p.logger
}
