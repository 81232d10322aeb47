// Package versioncheck runs a once-a-day background check of the published
// version of this module against the running one.
package versioncheck

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the progress of the check for the current day.
type State int

const (
	NotStarted State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	default:
		return "NotStarted"
	}
}

// Result is the cached outcome for one calendar day.
type Result struct {
	DayKey           string
	State            State
	HasLatestVersion *bool
	LatestVersion    string
}

// Advisory is raised once per check when a newer version is published.
type Advisory struct {
	ModuleName     string
	CurrentVersion string
	LatestVersion  string
}

// FetchFunc returns the raw package index response for a module.
type FetchFunc func(ctx context.Context, moduleName string) ([]byte, error)

type Config struct {
	ModuleName     string `yaml:"module_name"`
	CurrentVersion string `yaml:"current_version"`
	// IndexURL is the package index root. Empty disables the check unless a
	// fetcher is supplied.
	IndexURL string `yaml:"index_url" validate:"omitempty,url"`
	Disabled bool   `yaml:"disabled"`
}

type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

func WithFetcher(fetch FetchFunc) Option {
	return func(s *Scheduler) {
		s.fetch = fetch
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithAdvisor replaces the default advisory, a warning log line.
func WithAdvisor(advise func(Advisory)) Option {
	return func(s *Scheduler) {
		s.advise = advise
	}
}

type task struct {
	done   chan struct{}
	body   []byte
	err    error
	cancel context.CancelFunc
}

// Scheduler owns the day-keyed result. It is safe for concurrent use; callers
// never wait on the background fetch unless they call Await.
type Scheduler struct {
	mu     sync.Mutex
	cfg    Config
	now    func() time.Time
	fetch  FetchFunc
	logger zerolog.Logger
	advise func(Advisory)
	result Result
	task   *task
}

func New(cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:    cfg,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetch == nil && cfg.IndexURL != "" {
		s.fetch = NewHTTPFetcher(nil, cfg.IndexURL)
	}
	if s.advise == nil {
		s.advise = s.logAdvisory
	}
	return s
}

func (s *Scheduler) disabled() bool {
	return s.cfg.Disabled || s.fetch == nil || s.cfg.ModuleName == ""
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// CheckIfDue starts today's check if none has run yet and otherwise collects
// a finished background fetch. It returns immediately.
func (s *Scheduler) CheckIfDue(ctx context.Context) {
	s.mu.Lock()
	var advisory *Advisory
	if !s.disabled() {
		if today := dayKey(s.now()); s.result.DayKey != today {
			s.start(ctx, today)
		} else {
			advisory = s.settle()
		}
	}
	s.mu.Unlock()

	s.notify(advisory)
}

// ForceCheck discards today's result and starts a new check.
func (s *Scheduler) ForceCheck(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disabled() {
		return
	}
	s.start(ctx, dayKey(s.now()))
}

// Result returns the current result, collecting a finished fetch first.
func (s *Scheduler) Result() Result {
	s.mu.Lock()
	advisory := s.settle()
	result := s.result
	s.mu.Unlock()

	s.notify(advisory)
	return result
}

// Await blocks until the in-flight fetch, if any, has finished and returns the
// settled result.
func (s *Scheduler) Await(ctx context.Context) (Result, error) {
	s.mu.Lock()
	t := s.task
	s.mu.Unlock()

	if t != nil {
		select {
		case <-t.done:
		case <-ctx.Done():
			return s.Result(), ctx.Err()
		}
	}
	return s.Result(), nil
}

// Close cancels an in-flight fetch.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task != nil {
		s.task.cancel()
	}
}

func (s *Scheduler) start(ctx context.Context, today string) {
	if s.task != nil {
		s.task.cancel()
		s.task = nil
	}
	s.result = Result{DayKey: today, State: NotStarted}

	// The fetch outlives the call that triggered it.
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t := &task{done: make(chan struct{}), cancel: cancel}
	fetch, name := s.fetch, s.cfg.ModuleName
	go func() {
		defer close(t.done)
		defer cancel()
		t.body, t.err = fetch(taskCtx, name)
	}()

	s.task = t
	s.result.State = Running
	s.logger.Debug().Str("day", today).Str("module", name).Msg("version check started")
}

// settle applies a finished fetch. Must be called with mu held.
func (s *Scheduler) settle() *Advisory {
	if s.result.State != Running || s.task == nil {
		return nil
	}
	select {
	case <-s.task.done:
	default:
		return nil
	}

	t := s.task
	s.task = nil
	if t.err != nil {
		s.fail(t.err)
		return nil
	}

	latest, err := LatestVersion(t.body)
	if err != nil {
		s.fail(err)
		return nil
	}
	cmp, err := Compare(s.cfg.CurrentVersion, latest)
	if err != nil {
		s.fail(err)
		return nil
	}

	s.result.State = Completed
	s.result.LatestVersion = latest
	switch {
	case cmp == 0:
		s.result.HasLatestVersion = boolPtr(true)
	case cmp > 0:
		s.result.HasLatestVersion = boolPtr(true)
		s.logger.Info().
			Str("running", s.cfg.CurrentVersion).
			Str("published", latest).
			Msg("running version is newer than the latest published version")
	default:
		s.result.HasLatestVersion = boolPtr(false)
		return &Advisory{
			ModuleName:     s.cfg.ModuleName,
			CurrentVersion: s.cfg.CurrentVersion,
			LatestVersion:  latest,
		}
	}
	return nil
}

// fail records a failed check as up to date so the caller is never nagged.
func (s *Scheduler) fail(err error) {
	s.result.State = Failed
	s.result.HasLatestVersion = boolPtr(true)
	s.logger.Debug().Err(err).Str("day", s.result.DayKey).Msg("version check failed")
}

func (s *Scheduler) notify(advisory *Advisory) {
	if advisory != nil {
		s.advise(*advisory)
	}
}

func (s *Scheduler) logAdvisory(a Advisory) {
	s.logger.Warn().
		Str("module", a.ModuleName).
		Str("running", a.CurrentVersion).
		Str("latest", a.LatestVersion).
		Msgf("a newer version of %s is available: %s (running %s)", a.ModuleName, a.LatestVersion, a.CurrentVersion)
}

func boolPtr(b bool) *bool {
	return &b
}
