// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vcore

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsSet is the engine's optional Prometheus instrumentation. A nil
// Registerer (Config's default) yields a metricsSet whose methods are
// no-ops, so hot paths never branch on whether metrics are enabled.
type metricsSet struct {
	eventsDropped *prometheus.CounterVec
	queueFull     prometheus.Counter
	actorsAlive   *prometheus.GaugeVec
	mailboxDepth  *prometheus.GaugeVec
}

func newMetricsSet(reg prometheus.Registerer) *metricsSet {
	if reg == nil {
		return &metricsSet{}
	}
	m := &metricsSet{
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vcore_events_dropped_total",
			Help: "Events dropped instead of delivered, by reason.",
		}, []string{"reason"}),
		queueFull: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vcore_queue_full_total",
			Help: "Outbound enqueue attempts that returned ErrWouldBlock.",
		}),
		actorsAlive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vcore_actors_alive",
			Help: "Actors currently hosted, by core.",
		}, []string{"core"}),
		mailboxDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vcore_mailbox_depth",
			Help: "Records pending in a core's inbound mailbox.",
		}, []string{"core"}),
	}
	reg.MustRegister(m.eventsDropped, m.queueFull, m.actorsAlive, m.mailboxDepth)
	return m
}

func (m *metricsSet) observeDropped(core CoreID, reason string) {
	if m == nil || m.eventsDropped == nil {
		return
	}
	m.eventsDropped.WithLabelValues(reason).Inc()
}

func (m *metricsSet) observeQueueFull() {
	if m == nil || m.queueFull == nil {
		return
	}
	m.queueFull.Inc()
}

func (m *metricsSet) setActorsAlive(core CoreID, n int) {
	if m == nil || m.actorsAlive == nil {
		return
	}
	m.actorsAlive.WithLabelValues(coreLabel(core)).Set(float64(n))
}

func (m *metricsSet) setMailboxDepth(core CoreID, n int) {
	if m == nil || m.mailboxDepth == nil {
		return
	}
	m.mailboxDepth.WithLabelValues(coreLabel(core)).Set(float64(n))
}

func coreLabel(core CoreID) string {
	return strconv.Itoa(int(core))
}
