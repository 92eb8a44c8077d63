// Package metrics collects process-lifetime scan statistics: run and
// vulnerability counters, per-category and per-tool breakdowns, and
// derived averages. Counters are mirrored into a private Prometheus
// registry so callers can expose them without polluting the global one.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/secureflow/secureflow/finding"
	"github.com/secureflow/secureflow/scan"
)

// Collector accumulates scan statistics for the lifetime of a process.
// All methods are safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	scansPerformed       int
	failedScans          int
	vulnerabilitiesFound int
	totalDuration        time.Duration

	bySeverity map[finding.Severity]int
	byCategory map[scan.Category]int
	byTool     map[string]int

	registry      *prometheus.Registry
	scanCounter   *prometheus.CounterVec
	vulnCounter   *prometheus.CounterVec
	scanDurations prometheus.Histogram
}

// Snapshot is a point-in-time copy of the collected statistics.
type Snapshot struct {
	ScansPerformed       int                      `json:"scans_performed"`
	FailedScans          int                      `json:"failed_scans"`
	VulnerabilitiesFound int                      `json:"vulnerabilities_found"`
	BySeverity           map[finding.Severity]int `json:"by_severity"`
	ByCategory           map[scan.Category]int    `json:"by_category"`
	ByTool               map[string]int           `json:"by_tool"`

	// AverageScanDuration is the mean wall-clock time of one scan.
	AverageScanDuration time.Duration `json:"average_scan_duration"`

	// AverageVulnerabilitiesPerScan is the mean finding count per scan.
	AverageVulnerabilitiesPerScan float64 `json:"average_vulnerabilities_per_scan"`
}

// NewCollector creates an empty collector with its own Prometheus registry.
func NewCollector() *Collector {
	c := &Collector{
		bySeverity: make(map[finding.Severity]int),
		byCategory: make(map[scan.Category]int),
		byTool:     make(map[string]int),
		registry:   prometheus.NewRegistry(),
		scanCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "secureflow",
			Name:      "scans_total",
			Help:      "Number of scans performed, by category, tool and status.",
		}, []string{"category", "tool", "status"}),
		vulnCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "secureflow",
			Name:      "vulnerabilities_total",
			Help:      "Number of vulnerabilities found, by severity.",
		}, []string{"severity"}),
		scanDurations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "secureflow",
			Name:      "scan_duration_seconds",
			Help:      "Wall-clock duration of individual scans.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
	c.registry.MustRegister(c.scanCounter, c.vulnCounter, c.scanDurations)
	return c
}

// RecordResult folds one scan result into the statistics.
func (c *Collector) RecordResult(r *scan.Result) {
	if r == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(r)
}

// record folds one result into the counters. Callers hold c.mu.
func (c *Collector) record(r *scan.Result) {
	c.scansPerformed++
	c.totalDuration += r.Duration
	c.byCategory[r.Category]++
	c.byTool[r.Tool]++

	status := "ok"
	if r.Failed() {
		c.failedScans++
		status = "failed"
	}
	c.scanCounter.WithLabelValues(r.Category.String(), r.Tool, status).Inc()
	c.scanDurations.Observe(r.Duration.Seconds())

	for _, v := range r.Vulnerabilities {
		c.vulnerabilitiesFound++
		c.bySeverity[v.Severity]++
		c.vulnCounter.WithLabelValues(v.Severity.String()).Inc()
	}
}

// Record folds every result of an aggregate into the statistics in one
// step. A concurrent Snapshot sees either none or all of the aggregate,
// never part of it.
func (c *Collector) Record(agg scan.Aggregate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range agg {
		if r == nil {
			continue
		}
		c.record(r)
	}
}

// Snapshot returns a copy of the current statistics with derived averages.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		ScansPerformed:       c.scansPerformed,
		FailedScans:          c.failedScans,
		VulnerabilitiesFound: c.vulnerabilitiesFound,
		BySeverity:           make(map[finding.Severity]int, len(c.bySeverity)),
		ByCategory:           make(map[scan.Category]int, len(c.byCategory)),
		ByTool:               make(map[string]int, len(c.byTool)),
	}
	for k, v := range c.bySeverity {
		s.BySeverity[k] = v
	}
	for k, v := range c.byCategory {
		s.ByCategory[k] = v
	}
	for k, v := range c.byTool {
		s.ByTool[k] = v
	}

	if c.scansPerformed > 0 {
		s.AverageScanDuration = c.totalDuration / time.Duration(c.scansPerformed)
		s.AverageVulnerabilitiesPerScan = float64(c.vulnerabilitiesFound) / float64(c.scansPerformed)
	}
	return s
}

// Reset clears all collected statistics. Prometheus counters are
// monotonic and keep their values.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.scansPerformed = 0
	c.failedScans = 0
	c.vulnerabilitiesFound = 0
	c.totalDuration = 0
	c.bySeverity = make(map[finding.Severity]int)
	c.byCategory = make(map[scan.Category]int)
	c.byTool = make(map[string]int)
}

// Gatherer exposes the collector's private Prometheus registry for
// scraping.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}
