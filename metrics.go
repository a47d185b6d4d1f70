package fastfair

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// stats are process-wide operation counters. They are plain atomics so
// the hot paths pay one uncontended add, with Prometheus reading them
// lazily through the collector below.
var stats struct {
	inserts       atomic.Uint64
	deletes       atomic.Uint64
	searches      atomic.Uint64
	rangeScans    atomic.Uint64
	splits        atomic.Uint64
	merges        atomic.Uint64
	allocs        atomic.Uint64
	flushes       atomic.Uint64
	readerRetries atomic.Uint64
}

// Stats is a snapshot of the package counters.
type Stats struct {
	Inserts       uint64
	Deletes       uint64
	Searches      uint64
	RangeScans    uint64
	Splits        uint64
	Merges        uint64
	Allocs        uint64
	Flushes       uint64
	ReaderRetries uint64
}

// ReadStats returns a snapshot of the operation counters.
func ReadStats() Stats {
	return Stats{
		Inserts:       stats.inserts.Load(),
		Deletes:       stats.deletes.Load(),
		Searches:      stats.searches.Load(),
		RangeScans:    stats.rangeScans.Load(),
		Splits:        stats.splits.Load(),
		Merges:        stats.merges.Load(),
		Allocs:        stats.allocs.Load(),
		Flushes:       stats.flushes.Load(),
		ReaderRetries: stats.readerRetries.Load(),
	}
}

var (
	descInserts       = prometheus.NewDesc("fastfair_inserts_total", "Total insert operations", nil, nil)
	descDeletes       = prometheus.NewDesc("fastfair_deletes_total", "Total delete operations", nil, nil)
	descSearches      = prometheus.NewDesc("fastfair_searches_total", "Total point lookups", nil, nil)
	descRangeScans    = prometheus.NewDesc("fastfair_range_scans_total", "Total range scans", nil, nil)
	descSplits        = prometheus.NewDesc("fastfair_node_splits_total", "Total node splits", nil, nil)
	descMerges        = prometheus.NewDesc("fastfair_node_merges_total", "Total node merges", nil, nil)
	descAllocs        = prometheus.NewDesc("fastfair_node_allocs_total", "Total pool allocations", nil, nil)
	descFlushes       = prometheus.NewDesc("fastfair_clflush_total", "Total cache-line flush calls", nil, nil)
	descReaderRetries = prometheus.NewDesc("fastfair_reader_retries_total", "Total optimistic reader retries", nil, nil)
)

// Collector exposes the package counters as Prometheus metrics.
type Collector struct{}

// NewCollector returns a prometheus.Collector over the tree counters.
// Register it with prometheus.MustRegister.
func NewCollector() *Collector {
	return &Collector{}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descInserts
	ch <- descDeletes
	ch <- descSearches
	ch <- descRangeScans
	ch <- descSplits
	ch <- descMerges
	ch <- descAllocs
	ch <- descFlushes
	ch <- descReaderRetries
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := ReadStats()
	ch <- prometheus.MustNewConstMetric(descInserts, prometheus.CounterValue, float64(s.Inserts))
	ch <- prometheus.MustNewConstMetric(descDeletes, prometheus.CounterValue, float64(s.Deletes))
	ch <- prometheus.MustNewConstMetric(descSearches, prometheus.CounterValue, float64(s.Searches))
	ch <- prometheus.MustNewConstMetric(descRangeScans, prometheus.CounterValue, float64(s.RangeScans))
	ch <- prometheus.MustNewConstMetric(descSplits, prometheus.CounterValue, float64(s.Splits))
	ch <- prometheus.MustNewConstMetric(descMerges, prometheus.CounterValue, float64(s.Merges))
	ch <- prometheus.MustNewConstMetric(descAllocs, prometheus.CounterValue, float64(s.Allocs))
	ch <- prometheus.MustNewConstMetric(descFlushes, prometheus.CounterValue, float64(s.Flushes))
	ch <- prometheus.MustNewConstMetric(descReaderRetries, prometheus.CounterValue, float64(s.ReaderRetries))
}
