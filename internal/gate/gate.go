// Package gate serializes outbound calls to the workspace API.
//
// A Gate admits one call at a time in strict submission order, paces every
// attempt through a token bucket so that no window of the configured length
// sees more than the configured number of attempts, and retries transient
// failures with exponential backoff. It knows nothing about what the calls do.
package gate

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/stacklok/loresync/internal/otel"
	"github.com/stacklok/loresync/internal/telemetry"
)

const (
	// DefaultRequests is the workspace API's documented average ceiling.
	DefaultRequests = 3
	// DefaultWindow is the window DefaultRequests applies to.
	DefaultWindow = time.Second
	// DefaultCallTimeout bounds a single attempt.
	DefaultCallTimeout = 30 * time.Second
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 5
	// DefaultInitialBackoff is the first retry delay when the server gives no hint.
	DefaultInitialBackoff = 500 * time.Millisecond
	// DefaultMaxBackoff caps the computed retry delay.
	DefaultMaxBackoff = 30 * time.Second
)

// RetryAfterHinter is implemented by errors that carry a server-provided
// retry delay.
type RetryAfterHinter interface {
	RetryAfter() (time.Duration, bool)
}

// Retryabler is implemented by errors that know whether repeating the call
// can succeed.
type Retryabler interface {
	Retryable() bool
}

// Options configures a Gate. Zero values take the package defaults.
type Options struct {
	Requests       int
	Window         time.Duration
	CallTimeout    time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Tracer         trace.Tracer
	Metrics        *telemetry.GateMetrics
}

func (o Options) withDefaults() Options {
	if o.Requests <= 0 {
		o.Requests = DefaultRequests
	}
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = DefaultInitialBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = DefaultMaxBackoff
	}
	return o
}

// Gate is the single serialization point for workspace API traffic.
type Gate struct {
	opts    Options
	limiter *rate.Limiter

	mu      sync.Mutex
	busy    bool
	waiters *list.List // of chan struct{}
}

// New creates a Gate.
func New(opts Options) *Gate {
	opts = opts.withDefaults()
	return &Gate{
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(opts.Window/time.Duration(opts.Requests)), 1),
		waiters: list.New(),
	}
}

// Pending returns the number of calls waiting for admission.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waiters.Len()
}

// Do runs fn through the gate.
func (g *Gate) Do(ctx context.Context, label string, fn func(context.Context) error) error {
	_, err := Call(ctx, g, label, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call runs fn through the gate and returns its result. The gate is held for
// the whole call, retries included, so later submissions cannot overtake it.
func Call[T any](ctx context.Context, g *Gate, label string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	ctx, span := otel.StartSpan(ctx, g.opts.Tracer, "gate.call",
		trace.WithAttributes(attribute.String("gate.label", label)))
	defer span.End()

	queuedAt := time.Now()
	if err := g.acquire(ctx); err != nil {
		return zero, fmt.Errorf("%s: waiting for admission: %w", label, err)
	}
	defer g.release()
	waited := time.Since(queuedAt)

	attempts := 0
	hinted := &hintedBackOff{base: g.newBackOff()}
	op := func() (T, error) {
		attempts++
		if err := g.limiter.Wait(ctx); err != nil {
			return zero, backoff.Permanent(err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.opts.CallTimeout)
		defer cancel()

		v, err := fn(attemptCtx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !shouldRetry(err) {
			return zero, backoff.Permanent(err)
		}
		var h RetryAfterHinter
		if errors.As(err, &h) {
			if d, ok := h.RetryAfter(); ok {
				hinted.hint = d
			}
		}
		return zero, err
	}

	notify := func(err error, next time.Duration) {
		slog.DebugContext(ctx, "Retrying workspace call",
			"label", label,
			"attempt", attempts,
			"delay", next,
			"error", err)
	}

	v, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(hinted),
		backoff.WithMaxTries(uint(g.opts.MaxRetries+1)),
		backoff.WithMaxElapsedTime(g.maxElapsed()),
		backoff.WithNotify(notify),
	)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}

	g.opts.Metrics.RecordCall(ctx, label, attempts, waited, err == nil)
	if err != nil {
		otel.RecordError(span, err)
		return zero, fmt.Errorf("%s: %w", label, err)
	}
	return v, nil
}

func (g *Gate) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.opts.InitialBackoff
	b.MaxInterval = g.opts.MaxBackoff
	return b
}

// maxElapsed is a ceiling large enough that MaxTries is always the binding
// limit.
func (g *Gate) maxElapsed() time.Duration {
	per := g.opts.CallTimeout + g.opts.MaxBackoff + g.opts.Window
	return time.Duration(g.opts.MaxRetries+2) * per * 4
}

// acquire blocks until the caller owns the gate.
func (g *Gate) acquire(ctx context.Context) error {
	g.mu.Lock()
	if !g.busy && g.waiters.Len() == 0 {
		g.busy = true
		g.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	elem := g.waiters.PushBack(ready)
	g.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		g.mu.Lock()
		select {
		case <-ready:
			// Ownership arrived while we were giving up; pass it on.
			g.mu.Unlock()
			g.release()
		default:
			g.waiters.Remove(elem)
			g.mu.Unlock()
		}
		return ctx.Err()
	}
}

// release hands ownership to the oldest waiter, or frees the gate.
func (g *Gate) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	front := g.waiters.Front()
	if front == nil {
		g.busy = false
		return
	}
	g.waiters.Remove(front)
	close(front.Value.(chan struct{}))
}

func shouldRetry(err error) bool {
	var r Retryabler
	if errors.As(err, &r) {
		return r.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// hintedBackOff prefers a server-provided delay for the next retry.
type hintedBackOff struct {
	base backoff.BackOff
	hint time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	if h.hint > 0 {
		d := h.hint
		h.hint = 0
		return d
	}
	return h.base.NextBackOff()
}

func (h *hintedBackOff) Reset() {
	h.hint = 0
	h.base.Reset()
}
