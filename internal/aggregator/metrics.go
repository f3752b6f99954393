package aggregator

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/parser"
)

// Metrics exports parse counters to Prometheus.
type Metrics struct {
	lines       prometheus.Counter
	records     *prometheus.CounterVec
	diagnostics *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "time_line",
			Name:      "lines_total",
			Help:      "Log lines parsed.",
		}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "time_line",
			Name:      "records_total",
			Help:      "Records produced, by command type.",
		}, []string{"command_type"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "time_line",
			Name:      "diagnostics_total",
			Help:      "Parse diagnostics, by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.lines, m.records, m.diagnostics)
	return m
}

func (m *Metrics) observe(res parser.Result) {
	if m == nil {
		return
	}
	m.lines.Inc()
	if res.Record != nil {
		m.records.WithLabelValues(string(res.Record.CommandType)).Inc()
	}
	if res.Diagnostic != nil {
		m.diagnostics.WithLabelValues(string(res.Diagnostic.Kind)).Inc()
	}
}
