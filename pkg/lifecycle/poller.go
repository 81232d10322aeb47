package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("lifecycle")

// MinInterval is the floor applied to the polling interval.
const MinInterval = 2 * time.Second

// ErrTimeout matches *TimeoutError.
var ErrTimeout = errors.New("timed out waiting for a stable status")

// TimeoutError reports the last status seen before Config.Timeout expired.
type TimeoutError struct {
	ResourceID string
	LastStatus string
	Elapsed    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s to settle, last observed status %q",
		e.Elapsed.Round(time.Second), e.ResourceID, e.LastStatus)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

type Config struct {
	Interval time.Duration `yaml:"interval"`
	// Timeout bounds the whole wait. Zero waits until a stable status or
	// context cancellation.
	Timeout time.Duration `yaml:"timeout"`
}

// Observation is one fetched status.
type Observation struct {
	ResourceID string
	Status     string
	Class      Class
	Attempt    int
	Elapsed    time.Duration
}

type Poller struct {
	cfg      Config
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
	logger   zerolog.Logger
	observer func(Observation)
}

type Option func(*Poller)

// WithSleep replaces the context-aware sleep between fetches.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Poller) {
		p.sleep = sleep
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		p.now = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// WithObserver is called after every fetch, e.g. to drive a progress view.
func WithObserver(observer func(Observation)) Option {
	return func(p *Poller) {
		p.observer = observer
	}
}

func NewPoller(cfg Config, opts ...Option) *Poller {
	p := &Poller{
		cfg:    cfg,
		sleep:  sleepContext,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval is the effective delay between fetches.
func (p *Poller) Interval() time.Duration {
	return max(p.cfg.Interval, MinInterval)
}

// WaitUntilStable re-fetches a resource until its status is no longer
// transitional and returns the last payload as-is. Unrecognized statuses end
// the wait.
func WaitUntilStable[T Stater](ctx context.Context, p *Poller, resourceID string, fetch func(context.Context, string) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, "WaitUntilStable", trace.WithAttributes(
		attribute.String("lifecycle.resource_id", resourceID),
	))
	defer span.End()

	var last T
	var lastStatus string
	interval := p.Interval()
	start := p.now()

	for attempt := 1; ; attempt++ {
		if attempt > 1 && p.cfg.Timeout > 0 && p.now().Sub(start)+interval > p.cfg.Timeout {
			err := &TimeoutError{ResourceID: resourceID, LastStatus: lastStatus, Elapsed: p.now().Sub(start)}
			span.SetStatus(codes.Error, err.Error())
			return last, err
		}

		if err := p.sleep(ctx, interval); err != nil {
			return last, errors.Wrapf(err, "waiting for %s", resourceID)
		}

		current, err := fetch(ctx, resourceID)
		if err != nil {
			span.RecordError(err)
			return last, errors.Wrapf(err, "fetching status of %s", resourceID)
		}
		last = current
		lastStatus = current.State()

		class := Classify(lastStatus)
		elapsed := p.now().Sub(start)
		p.logger.Debug().
			Str("resource", resourceID).
			Str("status", lastStatus).
			Stringer("class", class).
			Int("attempt", attempt).
			Dur("elapsed", elapsed).
			Msg("observed status")
		if p.observer != nil {
			p.observer(Observation{ResourceID: resourceID, Status: lastStatus, Class: class, Attempt: attempt, Elapsed: elapsed})
		}

		switch class {
		case Transitional:
			continue
		case Unrecognized:
			p.logger.Warn().
				Str("resource", resourceID).
				Str("status", lastStatus).
				Msg("unrecognized status, treating as settled")
		}

		span.SetAttributes(
			attribute.String("lifecycle.status", lastStatus),
			attribute.Int("lifecycle.attempts", attempt),
		)
		return last, nil
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
