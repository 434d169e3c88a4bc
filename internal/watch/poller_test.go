package watch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/weather-watch-service/internal/models"
)

type attemptFunc func(ctx context.Context) Outcome

func (f attemptFunc) Attempt(ctx context.Context) Outcome {
	return f(ctx)
}

func successOutcome(dt int64) Outcome {
	return Outcome{Report: &models.CurrentWeather{Cod: 200, Dt: dt, Name: "London"}}
}

func waitDone(t *testing.T, p *Poller) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not terminate")
	}
}

func TestPoller_PublishesLoadingBeforeFirstTick(t *testing.T) {
	release := make(chan struct{})
	p := New(attemptFunc(func(ctx context.Context) Outcome {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return successOutcome(1)
	}), Config{Interval: time.Minute})
	defer p.Stop()

	p.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := p.WaitTake(ctx)
	if err != nil {
		t.Fatalf("WaitTake() error = %v", err)
	}
	if out.OK() {
		t.Fatal("first outcome is a success, want the not-ready sentinel")
	}
	if out.Err.Kind != KindAwaitingFirstResult {
		t.Errorf("Err.Kind = %v, want KindAwaitingFirstResult", out.Err.Kind)
	}
	if out.Err.Message != Loading {
		t.Errorf("Err.Message = %q, want the stable sentinel %q", out.Err.Message, Loading)
	}
	if p.State() != AwaitingFirstResult {
		t.Errorf("State() = %v, want AwaitingFirstResult", p.State())
	}
	close(release)
}

func TestPoller_OneShot_TerminatesAfterFirstSuccess(t *testing.T) {
	var attempts atomic.Int64
	p := New(attemptFunc(func(ctx context.Context) Outcome {
		attempts.Add(1)
		return successOutcome(attempts.Load())
	}), Config{Interval: 0, RetrySpacing: time.Millisecond})

	p.Start(context.Background())
	waitDone(t, p)

	if p.State() != Stopped {
		t.Errorf("State() = %v, want Stopped", p.State())
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts = %d, want exactly 1 in one-shot mode", got)
	}

	// The mailbox holds the success (it overwrote the undrained loading
	// sentinel); after draining it, no further write can ever appear.
	out, ok := p.TryTake()
	if !ok || !out.OK() {
		t.Fatalf("TryTake() = (%+v, %v), want the successful outcome", out, ok)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := p.TryTake(); ok {
		t.Error("outcome published after one-shot termination")
	}
}

func TestPoller_OneShot_RetriesUntilSuccess(t *testing.T) {
	var attempts atomic.Int64
	p := New(attemptFunc(func(ctx context.Context) Outcome {
		if attempts.Add(1) < 3 {
			return failure(KindTransport, 0, "connection refused")
		}
		return successOutcome(9)
	}), Config{Interval: 0, RetrySpacing: 5 * time.Millisecond})

	p.Start(context.Background())
	waitDone(t, p)

	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3 (retry until first success)", got)
	}
	if p.State() != Stopped {
		t.Errorf("State() = %v, want Stopped", p.State())
	}
}

func TestPoller_OutcomesArriveInTickOrder(t *testing.T) {
	var ticks atomic.Int64
	p := New(attemptFunc(func(ctx context.Context) Outcome {
		return successOutcome(ticks.Add(1))
	}), Config{Interval: 5 * time.Millisecond})
	defer p.Stop()

	p.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var lastSeq uint64
	for i := 0; i < 4; i++ {
		out, err := p.WaitTake(ctx)
		if err != nil {
			t.Fatalf("WaitTake() error = %v", err)
		}
		if out.Seq <= lastSeq {
			t.Fatalf("Seq went from %d to %d, want strictly increasing", lastSeq, out.Seq)
		}
		lastSeq = out.Seq
	}
	if p.State() != Running {
		t.Errorf("State() = %v, want Running", p.State())
	}
}

func TestPoller_SlowConsumerSeesOnlyLatest(t *testing.T) {
	var ticks atomic.Int64
	p := New(attemptFunc(func(ctx context.Context) Outcome {
		return successOutcome(ticks.Add(1))
	}), Config{Interval: 5 * time.Millisecond})
	defer p.Stop()

	p.Start(context.Background())

	// Let several ticks pass without draining; the intermediate outcomes are
	// permanently lost to the overwrite.
	time.Sleep(60 * time.Millisecond)
	p.Stop()
	waitDone(t, p)

	out, ok := p.TryTake()
	if !ok {
		t.Fatal("TryTake() expected the latest outcome")
	}
	if out.Seq < 3 {
		t.Errorf("Seq = %d, want an outcome from a later tick", out.Seq)
	}
	if _, ok := p.TryTake(); ok {
		t.Error("a second outcome surfaced; only the latest may be observable")
	}
}

func TestPoller_StopBeforeNextTick_NoFurtherOutcomes(t *testing.T) {
	var ticks atomic.Int64
	p := New(attemptFunc(func(ctx context.Context) Outcome {
		return successOutcome(ticks.Add(1))
	}), Config{Interval: 50 * time.Millisecond})

	p.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		out, err := p.WaitTake(ctx)
		if err != nil {
			t.Fatalf("WaitTake() error = %v", err)
		}
		if out.OK() {
			break
		}
	}

	p.Stop()
	waitDone(t, p)
	if p.State() != Stopped {
		t.Errorf("State() = %v, want Stopped", p.State())
	}

	time.Sleep(80 * time.Millisecond)
	if out, ok := p.TryTake(); ok {
		t.Errorf("outcome Seq %d published after Stop(), want none", out.Seq)
	}
	if got := ticks.Load(); got != 1 {
		t.Errorf("ticks after stop = %d, want 1", got)
	}
}

func TestPoller_InFlightOutcomeDiscardedOnStop(t *testing.T) {
	inAttempt := make(chan struct{})
	p := New(attemptFunc(func(ctx context.Context) Outcome {
		close(inAttempt)
		<-ctx.Done()
		// The fetch "completes" after cancellation; its outcome must not be
		// delivered.
		return successOutcome(99)
	}), Config{Interval: time.Minute})

	p.Start(context.Background())
	<-inAttempt

	// Drain the loading sentinel, then stop while the attempt is in flight.
	if _, ok := p.TryTake(); !ok {
		t.Fatal("expected the loading sentinel in the mailbox")
	}
	p.Stop()
	waitDone(t, p)

	if out, ok := p.TryTake(); ok {
		t.Errorf("discarded in-flight outcome was delivered: %+v", out)
	}
}

func TestPoller_FailuresKeepLoopAlive(t *testing.T) {
	var ticks atomic.Int64
	p := New(attemptFunc(func(ctx context.Context) Outcome {
		n := ticks.Add(1)
		if n%2 == 0 {
			return successOutcome(n)
		}
		return failure(KindRemoteStatus, 503, "remote status 503 Service Unavailable")
	}), Config{Interval: 5 * time.Millisecond})
	defer p.Stop()

	p.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var sawFailure, sawSuccess bool
	for i := 0; i < 6 && !(sawFailure && sawSuccess); i++ {
		out, err := p.WaitTake(ctx)
		if err != nil {
			t.Fatalf("WaitTake() error = %v", err)
		}
		if out.OK() {
			sawSuccess = true
		} else if out.Err.Kind == KindRemoteStatus {
			sawFailure = true
			if out.Err.StatusCode != 503 {
				t.Errorf("StatusCode = %d, want 503", out.Err.StatusCode)
			}
		}
	}
	if !sawFailure || !sawSuccess {
		t.Errorf("saw failure=%v success=%v, want a steady stream of both", sawFailure, sawSuccess)
	}
}

func TestPoller_StartIsIdempotent(t *testing.T) {
	var ticks atomic.Int64
	release := make(chan struct{})
	p := New(attemptFunc(func(ctx context.Context) Outcome {
		ticks.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return successOutcome(1)
	}), Config{Interval: time.Minute})
	defer p.Stop()

	ctx := context.Background()
	p.Start(ctx)
	p.Start(ctx)
	p.Start(ctx)

	time.Sleep(20 * time.Millisecond)
	if got := ticks.Load(); got != 1 {
		t.Errorf("concurrent loops detected: %d first attempts, want 1", got)
	}
	close(release)
}
