// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Maurimura7/localghost/hostloop"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts hostloop.Metrics to Prometheus collectors. A single
// exporter may serve many loops, see ForLoop.
type MetricsExporter struct {
	phaseDurationSeconds *prom.HistogramVec
	callbacksTotal       *prom.CounterVec
	panicTotal           *prom.CounterVec
	queueDepth           *prom.GaugeVec
}

// LoopMetrics is a MetricsExporter bound to a single loop label.
type LoopMetrics struct {
	exporter *MetricsExporter
	loop     string
}

var _ hostloop.Metrics = (*LoopMetrics)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for hostloop.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "hostloop"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.ExponentialBuckets(0.00001, 4, 10)
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "phase_duration_seconds",
		Help:      "Duration of loop phases that ran at least one callback, in seconds.",
		Buckets:   buckets,
	}, []string{"loop", "phase"})
	callbacksVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "callbacks_total",
		Help:      "Total number of callbacks run, per phase.",
	}, []string{"loop", "phase"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "panic_total",
		Help:      "Total number of recovered callback panics.",
	}, []string{"loop", "phase"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Queue depth at the start of the most recent phase.",
	}, []string{"loop", "phase"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if callbacksVec, err = registerCollector(reg, callbacksVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		phaseDurationSeconds: durationVec,
		callbacksTotal:       callbacksVec,
		panicTotal:           panicVec,
		queueDepth:           queueDepthVec,
	}, nil
}

// ForLoop returns a hostloop.Metrics that labels everything with the given
// loop name, for use with hostloop.WithMetrics.
func (m *MetricsExporter) ForLoop(name string) *LoopMetrics {
	return &LoopMetrics{exporter: m, loop: normalizeLabel(name, "default")}
}

// RecordPhase records a phase duration, and the callbacks it ran.
func (m *LoopMetrics) RecordPhase(phase hostloop.Phase, n int, d time.Duration) {
	if m == nil || m.exporter == nil {
		return
	}
	label := phase.String()
	m.exporter.phaseDurationSeconds.WithLabelValues(m.loop, label).Observe(d.Seconds())
	m.exporter.callbacksTotal.WithLabelValues(m.loop, label).Add(float64(n))
}

// RecordPanic records a recovered callback panic.
func (m *LoopMetrics) RecordPanic(phase hostloop.Phase) {
	if m == nil || m.exporter == nil {
		return
	}
	m.exporter.panicTotal.WithLabelValues(m.loop, phase.String()).Inc()
}

// RecordQueueDepth records queue depth.
func (m *LoopMetrics) RecordQueueDepth(phase hostloop.Phase, depth int) {
	if m == nil || m.exporter == nil {
		return
	}
	m.exporter.queueDepth.WithLabelValues(m.loop, phase.String()).Set(float64(depth))
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
