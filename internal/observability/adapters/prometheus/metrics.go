// Package prometheus adapts the Metrics port to the Prometheus client library.
// Vectors are created lazily per metric name; the label set of a metric is
// fixed by its first sample. Batch runs push the registry to a Pushgateway on Flush.
package prometheus

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"orangebook/internal/observability"
)

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// durationBuckets are in milliseconds; a full Orange Book fetch can take minutes
var durationBuckets = []float64{5, 25, 100, 500, 1000, 5000, 15000, 60000, 300000}

// Options configures NewMetrics
type Options struct {
	Namespace      string
	PushgatewayURL string
	Job            string
	Registry       *prometheus.Registry // defaults to a fresh registry
}

type registry struct {
	mu         sync.Mutex
	namespace  string
	reg        *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
	labels     map[string][]string
	pushURL    string
	job        string
}

// Metrics implements observability.Metrics on a Prometheus registry
type Metrics struct {
	tags map[string]string
	r    *registry
}

// NewMetrics creates a Prometheus-backed metrics adapter
func NewMetrics(opts Options) *Metrics {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	job := opts.Job
	if job == "" {
		job = "orangebook"
	}
	return &Metrics{
		tags: map[string]string{},
		r: &registry{
			namespace:  sanitize(opts.Namespace),
			reg:        reg,
			counters:   make(map[string]*prometheus.CounterVec),
			histograms: make(map[string]*prometheus.HistogramVec),
			gauges:     make(map[string]*prometheus.GaugeVec),
			labels:     make(map[string][]string),
			pushURL:    opts.PushgatewayURL,
			job:        job,
		},
	}
}

// IncrementCounter increments <namespace>_<name>_total
func (m *Metrics) IncrementCounter(name string, tags map[string]string) {
	all := m.combineTags(tags)
	vec, labels := m.r.counter(name, all)
	vec.With(labelValues(labels, all)).Inc()
}

// RecordHistogram observes value in <namespace>_<name>
func (m *Metrics) RecordHistogram(name string, value float64, tags map[string]string) {
	all := m.combineTags(tags)
	vec, labels := m.r.histogram(name, all)
	vec.With(labelValues(labels, all)).Observe(value)
}

// RecordGauge sets <namespace>_<name>
func (m *Metrics) RecordGauge(name string, value float64, tags map[string]string) {
	all := m.combineTags(tags)
	vec, labels := m.r.gauge(name, all)
	vec.With(labelValues(labels, all)).Set(value)
}

// WithTags returns a Metrics sharing the registry with extra default labels
func (m *Metrics) WithTags(tags map[string]string) observability.Metrics {
	return &Metrics{tags: m.combineTags(tags), r: m.r}
}

// Registry exposes the underlying registry for scraping or inspection
func (m *Metrics) Registry() *prometheus.Registry {
	return m.r.reg
}

// Flush pushes all collected metrics to the Pushgateway, if one is configured
func (m *Metrics) Flush() error {
	if m.r.pushURL == "" {
		return nil
	}
	if err := push.New(m.r.pushURL, m.r.job).Gatherer(m.r.reg).Push(); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", m.r.pushURL, err)
	}
	return nil
}

func (m *Metrics) combineTags(tags map[string]string) map[string]string {
	all := make(map[string]string, len(m.tags)+len(tags))
	for k, v := range m.tags {
		all[sanitize(k)] = v
	}
	for k, v := range tags {
		all[sanitize(k)] = v
	}
	return all
}

func (r *registry) counter(name string, tags map[string]string) (*prometheus.CounterVec, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	full := r.fullName(name) + "_total"
	if vec, ok := r.counters[full]; ok {
		return vec, r.labels[full]
	}
	labels := labelNames(tags)
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: full,
		Help: fmt.Sprintf("Counter %s", name),
	}, labels)
	r.counters[full] = register(r.reg, vec).(*prometheus.CounterVec)
	r.labels[full] = labels
	return r.counters[full], labels
}

func (r *registry) histogram(name string, tags map[string]string) (*prometheus.HistogramVec, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	full := r.fullName(name)
	if vec, ok := r.histograms[full]; ok {
		return vec, r.labels[full]
	}
	buckets := prometheus.DefBuckets
	if strings.HasSuffix(name, "_ms") {
		buckets = durationBuckets
	} else if strings.HasSuffix(name, "bytes") {
		buckets = prometheus.ExponentialBuckets(1024, 10, 7)
	}
	labels := labelNames(tags)
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    full,
		Help:    fmt.Sprintf("Histogram %s", name),
		Buckets: buckets,
	}, labels)
	r.histograms[full] = register(r.reg, vec).(*prometheus.HistogramVec)
	r.labels[full] = labels
	return r.histograms[full], labels
}

func (r *registry) gauge(name string, tags map[string]string) (*prometheus.GaugeVec, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	full := r.fullName(name)
	if vec, ok := r.gauges[full]; ok {
		return vec, r.labels[full]
	}
	labels := labelNames(tags)
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: full,
		Help: fmt.Sprintf("Gauge %s", name),
	}, labels)
	r.gauges[full] = register(r.reg, vec).(*prometheus.GaugeVec)
	r.labels[full] = labels
	return r.gauges[full], labels
}

func (r *registry) fullName(name string) string {
	if r.namespace == "" {
		return sanitize(name)
	}
	return r.namespace + "_" + sanitize(name)
}

// register returns the already registered collector when an identical one exists
func register(reg *prometheus.Registry, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for k := range tags {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// labelValues projects tags onto the metric's fixed label set
func labelValues(names []string, tags map[string]string) prometheus.Labels {
	labels := make(prometheus.Labels, len(names))
	for _, n := range names {
		labels[n] = tags[n]
	}
	return labels
}

func sanitize(name string) string {
	return invalidNameChars.ReplaceAllString(name, "_")
}
