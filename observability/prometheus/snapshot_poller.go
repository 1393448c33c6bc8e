// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Maurimura7/localghost/hostloop"
	prom "github.com/prometheus/client_golang/prometheus"
)

// LoopSnapshotProvider provides current loop stats snapshots, e.g. a
// *hostloop.Loop.
type LoopSnapshotProvider interface {
	Stats() hostloop.Stats
	State() hostloop.LoopState
}

// SnapshotPoller periodically exports loop Stats() snapshots into Prometheus
// gauges. Unlike MetricsExporter, it requires no loop configuration.
type SnapshotPoller struct {
	interval time.Duration

	loopsMu sync.RWMutex
	loops   map[string]LoopSnapshotProvider

	ticks          *prom.GaugeVec
	callbacks      *prom.GaugeVec
	panics         *prom.GaugeVec
	overloads      *prom.GaugeVec
	suppressedLogs *prom.GaugeVec
	running        *prom.GaugeVec

	stateMu sync.Mutex
	active  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	ticks := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "hostloop",
		Name:      "ticks",
		Help:      "Loop tick count snapshot.",
	}, []string{"loop"})
	callbacks := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "hostloop",
		Name:      "callbacks",
		Help:      "Callbacks run per phase (frames, for the frame phase), snapshot.",
	}, []string{"loop", "phase"})
	panics := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "hostloop",
		Name:      "panics",
		Help:      "Recovered callback panic count snapshot.",
	}, []string{"loop"})
	overloads := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "hostloop",
		Name:      "overloads",
		Help:      "Ticks that exhausted the macrotask budget, snapshot.",
	}, []string{"loop"})
	suppressedLogs := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "hostloop",
		Name:      "suppressed_logs",
		Help:      "Error logs dropped by rate limiting, snapshot.",
	}, []string{"loop"})
	running := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "hostloop",
		Name:      "running",
		Help:      "Loop running state (1=running or sleeping, 0=otherwise).",
	}, []string{"loop"})

	var err error
	if ticks, err = registerCollector(reg, ticks); err != nil {
		return nil, err
	}
	if callbacks, err = registerCollector(reg, callbacks); err != nil {
		return nil, err
	}
	if panics, err = registerCollector(reg, panics); err != nil {
		return nil, err
	}
	if overloads, err = registerCollector(reg, overloads); err != nil {
		return nil, err
	}
	if suppressedLogs, err = registerCollector(reg, suppressedLogs); err != nil {
		return nil, err
	}
	if running, err = registerCollector(reg, running); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:       interval,
		loops:          make(map[string]LoopSnapshotProvider),
		ticks:          ticks,
		callbacks:      callbacks,
		panics:         panics,
		overloads:      overloads,
		suppressedLogs: suppressedLogs,
		running:        running,
	}, nil
}

// AddLoop adds or replaces a loop snapshot provider by name.
func (p *SnapshotPoller) AddLoop(name string, provider LoopSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "default")
	p.loopsMu.Lock()
	p.loops[name] = provider
	p.loopsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.active {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.active = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.active {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.active = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.loopsMu.RLock()
	defer p.loopsMu.RUnlock()
	for name, provider := range p.loops {
		stats := provider.Stats()
		p.ticks.WithLabelValues(name).Set(float64(stats.Ticks))
		p.callbacks.WithLabelValues(name, hostloop.PhaseTimers.String()).Set(float64(stats.Timers))
		p.callbacks.WithLabelValues(name, hostloop.PhaseMacrotasks.String()).Set(float64(stats.Macrotasks))
		p.callbacks.WithLabelValues(name, hostloop.PhaseMicrotasks.String()).Set(float64(stats.Microtasks))
		p.callbacks.WithLabelValues(name, hostloop.PhaseFrame.String()).Set(float64(stats.Frames))
		p.callbacks.WithLabelValues(name, hostloop.PhaseIdle.String()).Set(float64(stats.IdleCallbacks))
		p.panics.WithLabelValues(name).Set(float64(stats.Panics))
		p.overloads.WithLabelValues(name).Set(float64(stats.Overloads))
		p.suppressedLogs.WithLabelValues(name).Set(float64(stats.SuppressedLogs))
		switch provider.State() {
		case hostloop.StateRunning, hostloop.StateSleeping:
			p.running.WithLabelValues(name).Set(1)
		default:
			p.running.WithLabelValues(name).Set(0)
		}
	}
}
