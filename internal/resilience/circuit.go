package resilience

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the breaker refuses a call.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is the breaker position.
type State int

const (
	// Closed lets every call through and counts outcomes.
	Closed State = iota
	// Open refuses calls until the cool-off elapses.
	Open
	// HalfOpen lets one probe decide whether to close again.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// window counts outcomes while the breaker is closed.
type window struct {
	ok, failed int
}

func (w window) total() int { return w.ok + w.failed }

func (w window) ratio() float64 {
	if w.total() == 0 {
		return 0
	}
	return float64(w.failed) / float64(w.total())
}

// Breaker trips when the failure ratio reaches a threshold after a minimum
// number of calls. A tripped breaker stays open for openFor, then admits one
// probe.
type Breaker struct {
	mu           sync.Mutex
	state        State
	counts       window
	minRequests  int
	failureRatio float64
	openedAt     time.Time
	openFor      time.Duration
	target       string
	logger       zerolog.Logger
	now          func() time.Time
}

// NewBreaker constructs a closed breaker.
func NewBreaker(minRequests int, failureRatio float64, openFor time.Duration) *Breaker {
	if minRequests <= 0 {
		minRequests = 1
	}
	if failureRatio <= 0 || failureRatio > 1 {
		failureRatio = 0.5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{
		minRequests:  minRequests,
		failureRatio: failureRatio,
		openFor:      openFor,
		logger:       zerolog.Nop(),
		now:          time.Now,
	}
}

// WithTarget names the guarded dependency in metrics and logs.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = strings.TrimSpace(target)
	b.publishLocked()
	return b
}

// WithLogger sets the logger used when the request context carries none.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
	return b
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed. An open breaker past its
// cool-off moves to half-open and admits the caller as the probe.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Open {
		return true
	}
	if b.now().Sub(b.openedAt) < b.openFor {
		return false
	}
	b.moveLocked(ctx, HalfOpen)
	return true
}

// Report records a call outcome.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		return
	case HalfOpen:
		if success {
			b.moveLocked(ctx, Closed)
		} else {
			b.moveLocked(ctx, Open)
		}
		return
	}
	if success {
		b.counts.ok++
	} else {
		b.counts.failed++
	}
	if b.counts.total() < b.minRequests {
		return
	}
	if b.counts.ratio() >= b.failureRatio {
		b.moveLocked(ctx, Open)
		return
	}
	if b.counts.total() > b.minRequests*2 {
		// age old outcomes out
		b.counts = window{ok: (b.counts.ok + 1) / 2, failed: (b.counts.failed + 1) / 2}
	}
}

// Execute runs fn when the breaker allows it and reports the outcome.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !b.Allow(ctx) {
		return ErrOpenCircuit
	}
	err := fn(ctx)
	b.Report(ctx, err == nil)
	return err
}

// Backoff returns base doubled per attempt, spread by jitterPct (0.2 is ±20%).
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base << uint(attempt-1)
	if jitterPct <= 0 {
		return d
	}
	spread := float64(d) * jitterPct
	return d + time.Duration((rand.Float64()*2-1)*spread)
}

func (b *Breaker) moveLocked(ctx context.Context, next State) {
	prev := b.state
	b.state = next
	b.counts = window{}
	switch next {
	case Open:
		b.openedAt = b.now()
	case Closed:
		b.openedAt = time.Time{}
	}
	b.publishLocked()
	if prev == next {
		return
	}
	label := b.label()
	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(label, prev.String(), next.String()).Inc()
	}
	if next == Open && BreakerOpenedTotal != nil {
		BreakerOpenedTotal.WithLabelValues(label).Inc()
	}
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &b.logger
	}
	evt := logger.Info().Str("target", label).Str("from_state", prev.String()).Str("to_state", next.String())
	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		evt = evt.Str("trace_id", span.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) publishLocked() {
	if BreakerState == nil {
		return
	}
	BreakerState.WithLabelValues(b.label()).Set(float64(b.state))
}

func (b *Breaker) label() string {
	if b.target == "" {
		return "default"
	}
	return b.target
}
