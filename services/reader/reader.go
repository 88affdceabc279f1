// Package reader keeps peripheral input state fresh. A Poller refreshes every
// registered peripheral once per cycle, in registration order, and reports cycles
// that finish after their deadline.
package reader

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"

	"spaceteam-go/bus"
	"spaceteam-go/errcode"
	"spaceteam-go/types"
	"spaceteam-go/x/timex"
)

// DefaultPeriod is how often the peripherals should be read.
const DefaultPeriod = 30 * time.Millisecond

const (
	TopicState   bus.Topic = "reader/state"
	TopicOverrun bus.Topic = "reader/overrun"
	TopicError   bus.Topic = "reader/error"
)

type Config struct {
	// Name labels logs and metrics. Default "reader".
	Name string
	// Period is the cycle deadline. Default DefaultPeriod.
	Period time.Duration
	// FixedRate sleeps until the deadline before starting the next cycle.
	// Without it cycles run back to back.
	FixedRate bool
	// Conn, if set, receives state, overrun and refresh error messages.
	Conn *bus.Connection
}

type Poller struct {
	cfg   Config
	prps  []Peripheral
	names []string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	cycles atomic.Uint64

	mCycles   prometheus.Counter
	mOverruns prometheus.Counter
	mDuration prometheus.Observer
	mOver     prometheus.Observer
	mErrors   []prometheus.Counter
}

// New binds a Poller to prps. The slice is copied; its order is the polling order.
func New(prps []Peripheral, cfg Config) *Poller {
	if cfg.Name == "" {
		cfg.Name = "reader"
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	p := &Poller{
		cfg:       cfg,
		prps:      append([]Peripheral(nil), prps...),
		names:     make([]string, len(prps)),
		mCycles:   CyclesTotal.WithLabelValues(cfg.Name),
		mOverruns: OverrunsTotal.WithLabelValues(cfg.Name),
		mDuration: CycleDuration.WithLabelValues(cfg.Name),
		mOver:     OverrunSeconds.WithLabelValues(cfg.Name),
		mErrors:   make([]prometheus.Counter, len(prps)),
	}
	for i, prp := range p.prps {
		p.names[i] = nameOf(i, prp)
		p.mErrors[i] = RefreshErrorsTotal.WithLabelValues(cfg.Name, p.names[i])
	}
	return p
}

func (p *Poller) Period() time.Duration { return p.cfg.Period }

// Cycles returns the number of completed refresh passes.
func (p *Poller) Cycles() uint64 { return p.cycles.Load() }

// Running reports whether the background loop started by Start is alive.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aliveLocked()
}

func (p *Poller) aliveLocked() bool {
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Start runs the loop in a new goroutine until Stop is called or ctx ends.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.aliveLocked() {
		return errcode.AlreadyRunning
	}
	rctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel, p.done = cancel, done
	go func() {
		defer close(done)
		p.Run(rctx)
	}()
	klog.Infof("[%s] started: %d peripherals, period %v", p.cfg.Name, len(p.prps), p.cfg.Period)
	return nil
}

// Stop cancels the loop and waits for it to exit. A refresh in progress is
// allowed to finish. Stop on a Poller that is not running does nothing.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel, p.done = nil, nil
	klog.Infof("[%s] stopped after %d cycles", p.cfg.Name, p.Cycles())
}

// Run executes cycles in the calling goroutine until ctx is done. The context is
// checked once per cycle, never between peripherals. Run must not be used on a
// Poller that has been started.
func (p *Poller) Run(ctx context.Context) {
	var timer *time.Timer
	if p.cfg.FixedRate {
		timer = time.NewTimer(time.Hour)
		defer timer.Stop()
	}

	p.pubState(types.LevelRunning, "")
	defer p.pubState(types.LevelStopped, "context_cancelled")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		start := time.Now()
		deadline := start.Add(p.cfg.Period)
		cycle := p.cycles.Load() + 1

		for i, prp := range p.prps {
			p.refresh(cycle, i, prp)
		}

		end := time.Now()
		p.cycles.Store(cycle)
		p.mCycles.Inc()
		p.mDuration.Observe(end.Sub(start).Seconds())

		if over := end.Sub(deadline); over > 0 {
			p.reportOverrun(cycle, over)
		}

		if timer != nil && !timex.SleepUntil(ctx, timer, deadline) {
			return
		}
	}
}

func (p *Poller) refresh(cycle uint64, i int, prp Peripheral) {
	t0 := time.Now()
	err := prp.RefreshInputs()
	if took := time.Since(t0); took > p.cfg.Period {
		klog.V(2).Infof("[%s] %s took %v to refresh", p.cfg.Name, p.names[i], took)
	}
	if err == nil {
		return
	}

	p.mErrors[i].Inc()
	klog.Errorf("[%s] refresh failed for %s: %v", p.cfg.Name, p.names[i], err)
	p.publish(TopicError, types.RefreshError{
		Cycle:      cycle,
		Index:      i,
		Peripheral: p.names[i],
		Code:       string(errcode.Of(err)),
		Error:      err.Error(),
		TS:         timex.NowMs(),
	}, false)
}

func (p *Poller) reportOverrun(cycle uint64, over time.Duration) {
	p.mOverruns.Inc()
	p.mOver.Observe(over.Seconds())
	klog.Warningf("[%s] cycle %d took %v over deadline to read inputs", p.cfg.Name, cycle, over)
	p.publish(TopicOverrun, types.Overrun{
		Cycle:  cycle,
		Over:   over,
		Period: p.cfg.Period,
		TS:     timex.NowMs(),
	}, false)
}

func (p *Poller) pubState(level, status string) {
	p.publish(TopicState, types.ReaderState{Level: level, Status: status, TS: timex.NowMs()}, true)
}

func (p *Poller) publish(topic bus.Topic, payload any, retained bool) {
	if p.cfg.Conn == nil {
		return
	}
	p.cfg.Conn.Publish(p.cfg.Conn.NewMessage(topic, payload, retained))
}
