package manager

import (
	"strconv"
	"time"

	"github.com/cuemby/confsync/pkg/metrics"
)

// MetricsCollector periodically publishes store and Raft gauges
type MetricsCollector struct {
	manager  *Manager
	interval time.Duration
	stopCh   chan struct{}
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(mgr *Manager) *MetricsCollector {
	return &MetricsCollector{
		manager:  mgr,
		interval: 15 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *MetricsCollector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *MetricsCollector) Stop() {
	close(c.stopCh)
}

func (c *MetricsCollector) collect() {
	c.collectConfigurationMetrics()
	c.collectRaftMetrics()
}

func (c *MetricsCollector) collectConfigurationMetrics() {
	cfgs, err := c.manager.ListConfigurations()
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentStorage, false, err.Error())
		return
	}
	metrics.UpdateComponent(metrics.ComponentStorage, true, "")

	type key struct {
		connector string
		enabled   bool
	}
	counts := make(map[key]int)
	pending := make(map[string]int)

	for _, cfg := range cfgs {
		counts[key{cfg.Connector, cfg.Enabled}]++
		if cfg.Pending {
			pending[cfg.Connector]++
		} else if _, ok := pending[cfg.Connector]; !ok {
			pending[cfg.Connector] = 0
		}
	}

	metrics.ConfigurationsTotal.Reset()
	for k, count := range counts {
		metrics.ConfigurationsTotal.WithLabelValues(connectorLabel(k.connector), strconv.FormatBool(k.enabled)).Set(float64(count))
	}

	metrics.ConfigurationsPending.Reset()
	for connector, count := range pending {
		metrics.ConfigurationsPending.WithLabelValues(connectorLabel(connector)).Set(float64(count))
	}
}

func (c *MetricsCollector) collectRaftMetrics() {
	if c.manager.IsLeader() {
		metrics.RaftLeader.Set(1)
		metrics.UpdateComponent(metrics.ComponentRaft, true, "")
	} else {
		metrics.RaftLeader.Set(0)
		metrics.UpdateComponent(metrics.ComponentRaft, false, c.manager.RaftState())
	}

	stats := c.manager.GetRaftStats()
	if stats != nil {
		if lastIndex, ok := stats["last_log_index"].(uint64); ok {
			metrics.RaftLogIndex.Set(float64(lastIndex))
		}
		if appliedIndex, ok := stats["applied_index"].(uint64); ok {
			metrics.RaftAppliedIndex.Set(float64(appliedIndex))
		}
	}
}

func connectorLabel(connector string) string {
	if connector == "" {
		return "local"
	}
	return connector
}
