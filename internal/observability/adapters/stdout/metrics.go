package stdout

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"orangebook/internal/observability"
)

// store is shared by every Metrics derived through WithTags
type store struct {
	mu         sync.RWMutex
	counters   map[string]int64
	histograms map[string][]float64
	gauges     map[string]float64
}

// Metrics implements observability.Metrics by printing every sample and keeping
// the values in memory for inspection.
type Metrics struct {
	tags   map[string]string
	logger *log.Logger
	json   bool
	store  *store
}

// NewMetrics creates a new stdout metrics instance
func NewMetrics(jsonOutput bool) *Metrics {
	return NewMetricsTo(os.Stdout, jsonOutput)
}

// NewMetricsTo writes samples to out; pass io.Discard to only keep them in memory
func NewMetricsTo(out io.Writer, jsonOutput bool) *Metrics {
	return &Metrics{
		tags:   make(map[string]string),
		logger: log.New(out, "", 0),
		json:   jsonOutput,
		store: &store{
			counters:   make(map[string]int64),
			histograms: make(map[string][]float64),
			gauges:     make(map[string]float64),
		},
	}
}

// IncrementCounter increments a counter metric
func (m *Metrics) IncrementCounter(name string, tags map[string]string) {
	allTags := m.combineTags(tags)
	key := buildKey(name, allTags)

	m.store.mu.Lock()
	m.store.counters[key]++
	value := m.store.counters[key]
	m.store.mu.Unlock()

	m.emit("COUNTER", name, float64(value), allTags)
}

// RecordHistogram records a histogram value
func (m *Metrics) RecordHistogram(name string, value float64, tags map[string]string) {
	allTags := m.combineTags(tags)
	key := buildKey(name, allTags)

	m.store.mu.Lock()
	m.store.histograms[key] = append(m.store.histograms[key], value)
	m.store.mu.Unlock()

	m.emit("HISTOGRAM", name, value, allTags)
}

// RecordGauge records a gauge value
func (m *Metrics) RecordGauge(name string, value float64, tags map[string]string) {
	allTags := m.combineTags(tags)
	key := buildKey(name, allTags)

	m.store.mu.Lock()
	m.store.gauges[key] = value
	m.store.mu.Unlock()

	m.emit("GAUGE", name, value, allTags)
}

// WithTags returns a new Metrics instance with additional tags sharing the same storage
func (m *Metrics) WithTags(tags map[string]string) observability.Metrics {
	return &Metrics{
		tags:   m.combineTags(tags),
		logger: m.logger,
		json:   m.json,
		store:  m.store,
	}
}

// Flush is a no-op; samples are printed as they are recorded.
func (m *Metrics) Flush() error { return nil }

// GetCounter returns the current value of a counter. Tags must include the
// default tags of this instance.
func (m *Metrics) GetCounter(name string, tags map[string]string) int64 {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	return m.store.counters[buildKey(name, m.combineTags(tags))]
}

// GetHistogram returns a copy of the values recorded for a histogram
func (m *Metrics) GetHistogram(name string, tags map[string]string) []float64 {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()

	values := m.store.histograms[buildKey(name, m.combineTags(tags))]
	result := make([]float64, len(values))
	copy(result, values)
	return result
}

// GetGauge returns the current value of a gauge
func (m *Metrics) GetGauge(name string, tags map[string]string) float64 {
	m.store.mu.RLock()
	defer m.store.mu.RUnlock()
	return m.store.gauges[buildKey(name, m.combineTags(tags))]
}

func (m *Metrics) combineTags(tags map[string]string) map[string]string {
	allTags := make(map[string]string, len(m.tags)+len(tags))
	for k, v := range m.tags {
		allTags[k] = v
	}
	for k, v := range tags {
		allTags[k] = v
	}
	return allTags
}

func (m *Metrics) emit(metricType, name string, value float64, tags map[string]string) {
	if m.json {
		entry := map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"type":      "metric",
			"metric":    metricType,
			"name":      name,
			"value":     value,
			"tags":      tags,
		}
		b, err := json.Marshal(entry)
		if err != nil {
			m.logger.Printf("Failed to marshal metric: %v", err)
			return
		}
		m.logger.Println(string(b))
		return
	}

	tagStr := ""
	if len(tags) > 0 {
		tagStr = " " + strings.Join(sortedPairs(tags, "="), " ")
	}
	m.logger.Printf("%s [METRIC] %s %s=%.2f%s",
		time.Now().UTC().Format(time.RFC3339), metricType, name, value, tagStr)
}

// buildKey creates a stable key for a metric with tags
func buildKey(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	return fmt.Sprintf("%s{%s}", name, strings.Join(sortedPairs(tags, ":"), ","))
}

func sortedPairs(tags map[string]string, sep string) []string {
	pairs := make([]string, 0, len(tags))
	for k, v := range tags {
		pairs = append(pairs, k+sep+v)
	}
	sort.Strings(pairs)
	return pairs
}
