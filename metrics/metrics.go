// Package metrics is the runtime's Prometheus instrumentation surface:
// a handful of counters, a histogram, and a gauge tracking RPC call
// volume/latency/outcome and live instance count, owned by their own
// registry so an embedding application decides how (or whether) to
// expose them.
/*
 * Copyright (c) 2024-2026, exorun authors. All rights reserved.
 */
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Backend labels exorun_rpc_calls_total/exorun_rpc_call_seconds by which
// bind stub kind carried the call.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Outcome labels exorun_rpc_calls_total by whether the call returned
// results or an error (remote failure reasons and local call errors
// alike; distinguishing FailureReason kinds is rpcval's and the log
// line's job, not a metrics label's).
const (
	OutcomeOk  = "ok"
	OutcomeErr = "err"
)

// Metrics holds the runtime's Prometheus collectors, registered against
// a private registry at construction time.
type Metrics struct {
	registry *prometheus.Registry

	CallsTotal          *prometheus.CounterVec
	CallSeconds         *prometheus.HistogramVec
	PumpResetsTotal     prometheus.Counter
	InstancesRegistered prometheus.Gauge
}

// New constructs Metrics with a fresh, private prometheus.Registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		CallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exorun_rpc_calls_total",
			Help: "Total RPC calls dispatched, by backend and outcome.",
		}, []string{"backend", "outcome"}),
		CallSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exorun_rpc_call_seconds",
			Help:    "Latency of peer.Peer.Call round trips, by backend.",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend"}),
		PumpResetsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exorun_pump_resets_total",
			Help: "Number of times a peer's receive pump exited and failed its pending calls.",
		}),
		InstancesRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exorun_instances_registered",
			Help: "Number of local instances currently registered.",
		}),
	}

	reg.MustRegister(m.CallsTotal, m.CallSeconds, m.PumpResetsTotal, m.InstancesRegistered)
	return m
}

// Registry exposes the private prometheus.Registry, e.g. for mounting
// promhttp.HandlerFor on a debug endpoint.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordRemoteCall is called once per peer.Peer.Call round trip: both
// the outcome counter and the latency histogram are labeled "remote".
func (m *Metrics) RecordRemoteCall(err error, seconds float64) {
	m.CallsTotal.WithLabelValues(BackendRemote, outcome(err)).Inc()
	m.CallSeconds.WithLabelValues(BackendRemote).Observe(seconds)
}

// RecordLocalCall is called once per in-process Local stub invocation.
// There is no cross-process round trip to time, so only the counter is
// updated.
func (m *Metrics) RecordLocalCall(err error) {
	m.CallsTotal.WithLabelValues(BackendLocal, outcome(err)).Inc()
}

// PumpReset increments exorun_pump_resets_total; called from failAll,
// reached exactly once per pump exit.
func (m *Metrics) PumpReset() { m.PumpResetsTotal.Inc() }

// InstanceRegistered/InstanceRemoved track the live local instance count.
func (m *Metrics) InstanceRegistered() { m.InstancesRegistered.Inc() }
func (m *Metrics) InstanceRemoved()    { m.InstancesRegistered.Dec() }

func outcome(err error) string {
	if err != nil {
		return OutcomeErr
	}
	return OutcomeOk
}
