package watch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-watch-service/internal/observability"
)

// DefaultRetrySpacing separates attempts in one-shot mode, where the
// configured interval is zero but failed attempts are still retried until the
// first success.
const DefaultRetrySpacing = time.Second

// State is the lifecycle position of a Poller.
type State int32

const (
	// Starting means the background loop has not begun its first tick.
	Starting State = iota
	// AwaitingFirstResult means no successful outcome has been produced yet.
	AwaitingFirstResult
	// Running means the poller delivered a first outcome and repeats forever
	// until stopped.
	Running
	// Stopped is terminal: no further ticks, the background goroutine exited.
	Stopped
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case AwaitingFirstResult:
		return "awaiting_first_result"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Attempter produces one outcome per tick. *Cycle is the production
// implementation.
type Attempter interface {
	Attempt(ctx context.Context) Outcome
}

// Config controls a Poller's schedule.
type Config struct {
	// Interval between ticks. Zero selects one-shot mode: the poller
	// self-terminates after its first successful outcome.
	Interval time.Duration
	// RetrySpacing separates attempts in one-shot mode. DefaultRetrySpacing
	// when zero.
	RetrySpacing time.Duration
	// Logger is optional.
	Logger *zap.Logger
}

// Poller owns one background goroutine that runs an Attempter on a schedule
// and publishes every outcome into its mailbox. Failed ticks never terminate
// the loop; they are delivered as data and the next attempt is scheduled.
// The only shared state between the loop and the consumer is the mailbox.
type Poller struct {
	attempter    Attempter
	mailbox      *Mailbox
	interval     time.Duration
	retrySpacing time.Duration
	logger       *zap.Logger

	state atomic.Int32
	seq   atomic.Uint64

	startMu sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(attempter Attempter, cfg Config) *Poller {
	retrySpacing := cfg.RetrySpacing
	if retrySpacing <= 0 {
		retrySpacing = DefaultRetrySpacing
	}
	p := &Poller{
		attempter:    attempter,
		mailbox:      NewMailbox(),
		interval:     cfg.Interval,
		retrySpacing: retrySpacing,
		logger:       cfg.Logger,
		done:         make(chan struct{}),
	}
	p.state.Store(int32(Starting))
	return p
}

// Start launches the background loop. The first attempt runs immediately;
// before it completes the mailbox holds the sentinel
// Failure(AwaitingFirstResult, "loading...") so an early probe observes a
// well-defined not-ready signal instead of emptiness. Start is a no-op after
// the first call.
func (p *Poller) Start(ctx context.Context) {
	p.startMu.Lock()
	if p.started {
		p.startMu.Unlock()
		return
	}
	p.started = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.startMu.Unlock()

	observability.WatchersActive.Inc()
	go p.run(ctx)
}

// Stop requests cooperative termination: it takes effect before the next
// tick, and an in-flight attempt completes but its outcome is discarded.
// Stop is idempotent and does not wait; use Done to observe exit.
func (p *Poller) Stop() {
	p.startMu.Lock()
	cancel := p.cancel
	p.startMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed when the background goroutine has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// State returns the current lifecycle position.
func (p *Poller) State() State {
	return State(p.state.Load())
}

// TryTake drains the mailbox without blocking; false means nothing new has
// arrived since the last take.
func (p *Poller) TryTake() (Outcome, bool) {
	return p.mailbox.TryTake()
}

// WaitTake suspends the caller until an outcome arrives or ctx is cancelled.
func (p *Poller) WaitTake(ctx context.Context) (Outcome, error) {
	return p.mailbox.WaitTake(ctx)
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)
	defer observability.WatchersActive.Dec()
	defer p.state.Store(int32(Stopped))

	p.state.Store(int32(AwaitingFirstResult))
	p.publish(failure(KindAwaitingFirstResult, 0, Loading))
	p.logDebug("poller started", zap.Duration("interval", p.interval))

	for {
		out := p.attempter.Attempt(ctx)
		if ctx.Err() != nil {
			// Stopped while the attempt was in flight; the outcome is discarded.
			p.logDebug("poller stopped")
			return
		}
		p.publish(out)

		if out.OK() {
			if p.interval == 0 {
				p.logDebug("one-shot poller finished")
				return
			}
			p.state.Store(int32(Running))
		}

		delay := p.interval
		if delay == 0 {
			delay = p.retrySpacing
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logDebug("poller stopped")
			return
		case <-timer.C:
		}
	}
}

// publish assigns the outcome its sequence number and hands it to the
// mailbox. An undrained previous outcome is lost here, by contract.
func (p *Poller) publish(o Outcome) {
	o.Seq = p.seq.Add(1)
	if p.mailbox.Publish(o) {
		observability.PollOutcomesDroppedTotal.Inc()
	}

	result := "success"
	if o.Err != nil {
		result = o.Err.Kind.String()
	}
	observability.PollOutcomesTotal.WithLabelValues(result).Inc()

	if o.Err != nil && o.Err.Kind != KindAwaitingFirstResult {
		p.logDebug("poll attempt failed",
			zap.String("kind", o.Err.Kind.String()),
			zap.Int("status_code", o.Err.StatusCode),
			zap.String("message", o.Err.Message),
		)
	}
}

func (p *Poller) logDebug(msg string, fields ...zap.Field) {
	if p.logger != nil {
		p.logger.Debug(msg, fields...)
	}
}
