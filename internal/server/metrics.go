package server

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ipocket/ipocket/internal/inventory"
)

// inventoryCollector exports inventory entity counts as Prometheus gauges.
type inventoryCollector struct {
	store  *inventory.Store
	logger *zap.Logger

	vendors    *prometheus.Desc
	projects   *prometheus.Desc
	hosts      *prometheus.Desc
	ipActive   *prometheus.Desc
	ipArchived *prometheus.Desc
	tags       *prometheus.Desc
}

func newInventoryCollector(store *inventory.Store, logger *zap.Logger) *inventoryCollector {
	return &inventoryCollector{
		store:  store,
		logger: logger,
		vendors: prometheus.NewDesc("ipocket_vendors_total",
			"Number of vendors in the inventory.", nil, nil),
		projects: prometheus.NewDesc("ipocket_projects_total",
			"Number of projects in the inventory.", nil, nil),
		hosts: prometheus.NewDesc("ipocket_hosts_total",
			"Number of hosts in the inventory.", nil, nil),
		ipActive: prometheus.NewDesc("ipocket_ip_assets_active_total",
			"Number of active IP assets.", nil, nil),
		ipArchived: prometheus.NewDesc("ipocket_ip_assets_archived_total",
			"Number of archived IP assets.", nil, nil),
		tags: prometheus.NewDesc("ipocket_tags_total",
			"Number of tags in the inventory.", nil, nil),
	}
}

func (c *inventoryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.vendors
	ch <- c.projects
	ch <- c.hosts
	ch <- c.ipActive
	ch <- c.ipArchived
	ch <- c.tags
}

func (c *inventoryCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	summary, err := c.store.ManagementSummary(ctx)
	if err != nil {
		c.logger.Warn("inventory metrics collection failed", zap.Error(err))
		return
	}
	ch <- prometheus.MustNewConstMetric(c.vendors, prometheus.GaugeValue, float64(summary.Vendors))
	ch <- prometheus.MustNewConstMetric(c.projects, prometheus.GaugeValue, float64(summary.Projects))
	ch <- prometheus.MustNewConstMetric(c.hosts, prometheus.GaugeValue, float64(summary.Hosts))
	ch <- prometheus.MustNewConstMetric(c.ipActive, prometheus.GaugeValue, float64(summary.ActiveIPAssets))
	ch <- prometheus.MustNewConstMetric(c.ipArchived, prometheus.GaugeValue, float64(summary.ArchivedIPAssets))
	ch <- prometheus.MustNewConstMetric(c.tags, prometheus.GaugeValue, float64(summary.Tags))
}
