package monitoring

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// Series kinds.
const (
	KindCounter = "counter"
	KindSummary = "summary"
)

// Series is one counter or latency summary.
type Series struct {
	Name   string            `json:"name"`
	Kind   string            `json:"kind"`
	Labels map[string]string `json:"labels,omitempty"`
	Count  float64           `json:"count"`
	Sum    float64           `json:"sum,omitempty"`
	Max    float64           `json:"max,omitempty"`
}

// MetricsCollector keeps request and pipeline counters in memory.
type MetricsCollector struct {
	mu        sync.RWMutex
	series    map[string]*Series
	startTime time.Time
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		series:    make(map[string]*Series),
		startTime: time.Now(),
	}
}

// IncrCounter adds value to the counter name{labels}.
func (mc *MetricsCollector) IncrCounter(name string, value float64, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.get(name, KindCounter, labels).Count += value
}

// Observe records one sample of name{labels}, typically a duration in seconds.
func (mc *MetricsCollector) Observe(name string, value float64, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	s := mc.get(name, KindSummary, labels)
	s.Count++
	s.Sum += value
	if value > s.Max {
		s.Max = value
	}
}

func (mc *MetricsCollector) get(name, kind string, labels map[string]string) *Series {
	key := seriesKey(name, labels)
	s, ok := mc.series[key]
	if !ok {
		copied := make(map[string]string, len(labels))
		for k, v := range labels {
			copied[k] = v
		}
		s = &Series{Name: name, Kind: kind, Labels: copied}
		mc.series[key] = s
	}
	return s
}

// Snapshot returns a copy of every series ordered by key.
func (mc *MetricsCollector) Snapshot() []Series {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	keys := make([]string, 0, len(mc.series))
	for k := range mc.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Series, 0, len(keys))
	for _, k := range keys {
		out = append(out, *mc.series[k])
	}
	return out
}

func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

// GetSystemStats reports runtime figures alongside the uptime.
func (mc *MetricsCollector) GetSystemStats() map[string]any {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return map[string]any{
		"uptime_seconds": mc.GetUptime().Seconds(),
		"goroutines":     runtime.NumGoroutine(),
		"heap_alloc":     m.HeapAlloc,
		"num_gc":         m.NumGC,
	}
}

// ExportPrometheus renders the series in the text exposition format.
// Summaries are written as _count, _sum and _max.
func (mc *MetricsCollector) ExportPrometheus() string {
	var b strings.Builder
	for _, s := range mc.Snapshot() {
		labels := formatLabels(s.Labels)
		if s.Kind == KindCounter {
			fmt.Fprintf(&b, "%s%s %g\n", s.Name, labels, s.Count)
			continue
		}
		fmt.Fprintf(&b, "%s_count%s %g\n", s.Name, labels, s.Count)
		fmt.Fprintf(&b, "%s_sum%s %g\n", s.Name, labels, s.Sum)
		fmt.Fprintf(&b, "%s_max%s %g\n", s.Name, labels, s.Max)
	}
	fmt.Fprintf(&b, "process_uptime_seconds %g\n", mc.GetUptime().Seconds())
	return b.String()
}

func seriesKey(name string, labels map[string]string) string {
	return name + formatLabels(labels)
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%q", k, labels[k])
	}
	return "{" + strings.Join(parts, ",") + "}"
}
