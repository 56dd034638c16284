package rtsink

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alexshd/rttest"
)

// metrics are the gauges exported for one session. Each Write uses a
// fresh registry so a file only ever holds one run.
type metrics struct {
	registry   *prometheus.Registry
	latency    *prometheus.GaugeVec
	jitter     *prometheus.GaugeVec
	pagefaults *prometheus.GaugeVec
	missed     *prometheus.GaugeVec
	samples    *prometheus.GaugeVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		latency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rttest_latency_nanoseconds",
			Help: "Wakeup latency statistics of the last run",
		}, []string{"session", "stat"}),
		jitter: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rttest_jitter_nanoseconds",
			Help: "Change in latency between consecutive wakeups",
		}, []string{"session", "stat"}),
		pagefaults: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rttest_pagefaults_total",
			Help: "Pagefaults taken inside the measured loop",
		}, []string{"session", "kind"}),
		missed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rttest_missed_deadlines_total",
			Help: "Wakeups that started after the next slot had begun",
		}, []string{"session"}),
		samples: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rttest_samples",
			Help: "Samples in the run",
		}, []string{"session"}),
	}
	m.registry.MustRegister(m.latency, m.jitter, m.pagefaults, m.missed, m.samples)
	return m
}

func (m *metrics) observe(name string, res rttest.Results) {
	m.latency.WithLabelValues(name, "min").Set(float64(res.MinLatency))
	m.latency.WithLabelValues(name, "max").Set(float64(res.MaxLatency))
	m.latency.WithLabelValues(name, "mean").Set(res.MeanLatency)
	m.latency.WithLabelValues(name, "stddev").Set(res.LatencyStddev)
	m.latency.WithLabelValues(name, "p50").Set(float64(res.LatencyP50))
	m.latency.WithLabelValues(name, "p99").Set(float64(res.LatencyP99))
	m.latency.WithLabelValues(name, "p999").Set(float64(res.LatencyP999))

	m.jitter.WithLabelValues(name, "min").Set(float64(res.MinJitter))
	m.jitter.WithLabelValues(name, "max").Set(float64(res.MaxJitter))
	m.jitter.WithLabelValues(name, "mean").Set(res.MeanJitter)
	m.jitter.WithLabelValues(name, "stddev").Set(res.JitterStddev)

	m.pagefaults.WithLabelValues(name, "minor").Set(float64(res.MinorPagefaults))
	m.pagefaults.WithLabelValues(name, "major").Set(float64(res.MajorPagefaults))

	m.missed.WithLabelValues(name).Set(float64(res.MissedDeadlines))
	m.samples.WithLabelValues(name).Set(float64(res.Samples))
}

// promSink writes a node_exporter textfile-collector file.
type promSink struct {
	path string
}

func (s *promSink) Write(name string, _ []rttest.Sample, res rttest.Results) error {
	if name == "" {
		name = "main"
	}
	m := newMetrics()
	m.observe(name, res)
	if err := prometheus.WriteToTextfile(s.path, m.registry); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}
