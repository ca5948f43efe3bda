/* Copyright 2025 Readsync Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package metrics holds the Prometheus collectors of the server
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a set of collectors registered on a private registry
type Metrics struct {
	registry *prometheus.Registry

	EventsAccepted  prometheus.Counter
	EventsDuplicate prometheus.Counter
	EventsRejected  prometheus.Counter
	EventsPulled    prometheus.Counter
	StateUpdates    prometheus.Counter
	WSConnected     prometheus.Counter
	WSDisconnects   prometheus.Counter
	WSActive        prometheus.Gauge
	NoticesDropped  prometheus.Counter

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		EventsAccepted:  counter("sync_events_accepted_total", "Events accepted by append"),
		EventsDuplicate: counter("sync_events_duplicate_total", "Events acknowledged as duplicates"),
		EventsRejected:  counter("sync_events_rejected_total", "Events rejected by append"),
		EventsPulled:    counter("sync_events_pulled_total", "Events returned by pull"),
		StateUpdates:    counter("sync_state_updates_total", "Reading positions written"),
		WSConnected:     counter("sync_ws_connected_total", "Socket connections opened"),
		WSDisconnects:   counter("sync_ws_disconnects_total", "Socket connections closed"),
		NoticesDropped:  counter("sync_ws_notices_dropped_total", "Notices dropped on full socket queues"),
		WSActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sync_ws_active",
			Help: "Open socket connections",
		}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "HTTP request latency in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.EventsAccepted,
		m.EventsDuplicate,
		m.EventsRejected,
		m.EventsPulled,
		m.StateUpdates,
		m.WSConnected,
		m.WSDisconnects,
		m.WSActive,
		m.NoticesDropped,
		m.HTTPRequests,
		m.HTTPDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
