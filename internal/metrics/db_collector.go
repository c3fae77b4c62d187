package metrics

import "github.com/prometheus/client_golang/prometheus"

// PoolStats is a snapshot of connection pool usage.
type PoolStats struct {
	Total    int32
	Idle     int32
	Acquired int32
	Max      int32
}

// DBPoolStatFunc samples pool usage without tying this package to pgxpool.
type DBPoolStatFunc func() PoolStats

// dbPoolCollector exposes a pool snapshot as gauges on every scrape.
type dbPoolCollector struct {
	sample DBPoolStatFunc
	descs  [4]*prometheus.Desc
}

// NewDBPoolCollector creates a collector backed by the given sampler.
func NewDBPoolCollector(sample DBPoolStatFunc) prometheus.Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("concours_db_pool_"+name, help, nil, nil)
	}
	return &dbPoolCollector{
		sample: sample,
		descs: [4]*prometheus.Desc{
			desc("total_conns", "Connections currently held by the pool."),
			desc("idle_conns", "Idle connections ready for use."),
			desc("acquired_conns", "Connections checked out by callers."),
			desc("max_conns", "Configured pool size ceiling."),
		},
	}
}

func (c *dbPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

func (c *dbPoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.sample()
	for i, v := range [4]int32{s.Total, s.Idle, s.Acquired, s.Max} {
		ch <- prometheus.MustNewConstMetric(c.descs[i], prometheus.GaugeValue, float64(v))
	}
}
