// Package pool owns the configured set of provider adapters and mediates
// every call to them: lazy initialization, retry with fixed delay, permanent
// discard on configuration errors, per-provider rate limiting, and the
// pre/post download hooks that wire in the pack cache.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"subscout/internal/language"
	"subscout/internal/logging"
	"subscout/internal/media"
	"subscout/internal/providers"
)

const (
	defaultMaxAttempts  = 3
	defaultRetryDelay   = 2 * time.Second
	defaultQueryTimeout = 45 * time.Second
	// rateLimitBackoff is the wait applied after a 429 before the retry
	// counts against the attempt budget.
	rateLimitBackoff = 5 * time.Second
)

// Hooks are the optional callbacks a pool invokes around provider work.
type Hooks struct {
	// PreDownload runs before the adapter download; the pack cache uses it
	// to inject previously fetched archive bytes into the candidate.
	PreDownload func(ctx context.Context, candidate *providers.Candidate) error
	// PostDownload runs after a successful download; the pack cache uses it
	// to persist new archive bytes and clear the candidate's reference.
	PostDownload func(ctx context.Context, candidate *providers.Candidate) error
	// Throttled is informed whenever a provider hits a rate limit.
	Throttled func(provider string, wait time.Duration)
	// Languages restricts which languages a provider is queried for;
	// returning nil leaves the requested set unchanged.
	Languages func(provider string) []language.Language
}

// Options configures a pool. Providers lists enabled provider names in
// priority order; the order doubles as the selection tie-break.
type Options struct {
	Providers    []string
	Settings     map[string]providers.Settings
	MaxAttempts  int
	RetryDelay   time.Duration
	QueryTimeout time.Duration
	Hooks        Hooks
	Logger       *slog.Logger
}

type entry struct {
	// mu serializes all calls into the adapter: a single adapter instance
	// is not guaranteed reentrant.
	mu          sync.Mutex
	adapter     providers.Adapter
	limiter     *rate.Limiter
	initialized bool
	discarded   bool
}

// Pool fans provider queries out across its adapters.
type Pool struct {
	order   []string
	entries map[string]*entry
	opts    Options
	logger  *slog.Logger
}

// New constructs the adapters for every enabled provider. Unknown provider
// names fail construction; a pool with zero providers is an error.
func New(opts Options) (*Pool, error) {
	if len(opts.Providers) == 0 {
		return nil, errors.New("pool: no providers enabled")
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = defaultQueryTimeout
	}
	logger := logging.NewComponentLogger(opts.Logger, "provider-pool")

	p := &Pool{
		order:   append([]string(nil), opts.Providers...),
		entries: make(map[string]*entry, len(opts.Providers)),
		opts:    opts,
		logger:  logger,
	}
	for _, name := range opts.Providers {
		if _, dup := p.entries[name]; dup {
			return nil, fmt.Errorf("pool: provider %q enabled twice", name)
		}
		settings := opts.Settings[name]
		adapter, err := providers.New(name, settings, opts.Logger)
		if err != nil {
			return nil, err
		}
		p.entries[name] = &entry{
			adapter: adapter,
			limiter: newLimiter(settings.RequestsPerMinute),
		}
	}
	return p, nil
}

func newLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
}

// Position returns the priority index of a provider (lower is better), or a
// large value for unknown names.
func (p *Pool) Position(name string) int {
	for i, candidate := range p.order {
		if candidate == name {
			return i
		}
	}
	return len(p.order)
}

// Discarded lists providers permanently discarded during this run.
func (p *Pool) Discarded() []string {
	var out []string
	for _, name := range p.order {
		e := p.entries[name]
		e.mu.Lock()
		if e.discarded {
			out = append(out, name)
		}
		e.mu.Unlock()
	}
	return out
}

// ListCandidates queries every enabled, not-yet-discarded provider whose
// capability set intersects the requested languages. Providers run
// concurrently; failures are isolated per provider and never abort the call.
func (p *Pool) ListCandidates(ctx context.Context, video *media.Video, langs []language.Language) []*providers.Candidate {
	var (
		mu         sync.Mutex
		candidates []*providers.Candidate
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range p.order {
		name := name
		e := p.entries[name]
		g.Go(func() error {
			found := p.listFrom(ctx, name, e, video, langs)
			if len(found) > 0 {
				mu.Lock()
				candidates = append(candidates, found...)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return candidates
}

func (p *Pool) listFrom(ctx context.Context, name string, e *entry, video *media.Video, langs []language.Language) []*providers.Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !p.ensureInitialized(ctx, name, e) {
		return nil
	}

	wanted := language.Intersect(langs, e.adapter.Languages())
	if hook := p.opts.Hooks.Languages; hook != nil {
		if allowed := hook(name); allowed != nil {
			wanted = language.Intersect(wanted, allowed)
		}
	}
	if len(wanted) == 0 {
		return nil
	}

	var candidates []*providers.Candidate
	err := p.withRetries(ctx, name, "list", func(callCtx context.Context) error {
		found, err := e.adapter.List(callCtx, video, wanted)
		if err != nil {
			return err
		}
		candidates = found
		return nil
	})
	if err != nil {
		if errors.Is(err, providers.ErrConfiguration) {
			p.discard(name, e, err)
		} else if !errors.Is(err, providers.ErrNotFound) {
			p.logger.Warn("provider query abandoned for this video",
				logging.String(logging.FieldProvider, name),
				logging.Int64(logging.FieldVideoID, video.ID),
				logging.Error(err),
			)
		}
		return nil
	}
	for _, c := range candidates {
		c.Provider = name
	}
	return candidates
}

// Download fetches the candidate's content through its provider, invoking
// the pre/post hooks around the adapter call.
func (p *Pool) Download(ctx context.Context, candidate *providers.Candidate) error {
	e, ok := p.entries[candidate.Provider]
	if !ok {
		return providers.Wrap(providers.ErrConfiguration, candidate.Provider, "download", "provider not in pool", nil)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !p.ensureInitialized(ctx, candidate.Provider, e) {
		return providers.Wrap(providers.ErrConfiguration, candidate.Provider, "download", "provider discarded", nil)
	}

	if hook := p.opts.Hooks.PreDownload; hook != nil {
		if err := hook(ctx, candidate); err != nil {
			p.logger.Warn("pre-download hook failed",
				logging.String(logging.FieldProvider, candidate.Provider),
				logging.Error(err),
			)
		}
	}

	err := p.withRetries(ctx, candidate.Provider, "download", func(callCtx context.Context) error {
		return e.adapter.Download(callCtx, candidate)
	})
	if err != nil {
		return err
	}

	if hook := p.opts.Hooks.PostDownload; hook != nil {
		if hookErr := hook(ctx, candidate); hookErr != nil {
			p.logger.Warn("post-download hook failed",
				logging.String(logging.FieldProvider, candidate.Provider),
				logging.Error(hookErr),
			)
		}
	}
	return nil
}

// ensureInitialized lazily initializes the adapter. Configuration errors
// discard the provider permanently; other failures leave it eligible for the
// next call. Caller holds e.mu.
func (p *Pool) ensureInitialized(ctx context.Context, name string, e *entry) bool {
	if e.discarded {
		return false
	}
	if e.initialized {
		return true
	}
	initCtx, cancel := context.WithTimeout(ctx, p.opts.QueryTimeout)
	defer cancel()
	if err := e.adapter.Initialize(initCtx); err != nil {
		if errors.Is(err, providers.ErrConfiguration) {
			p.discard(name, e, err)
		} else {
			p.logger.Warn("provider initialization failed; will retry on next use",
				logging.String(logging.FieldProvider, name),
				logging.Error(err),
			)
		}
		return false
	}
	e.initialized = true
	return true
}

// withRetries runs one provider operation with the pool's retry policy:
// rate limits back off through the throttle hook, transient errors sleep a
// fixed delay, terminal errors return immediately. Caller holds e.mu.
func (p *Pool) withRetries(ctx context.Context, name, operation string, call func(ctx context.Context) error) error {
	e := p.entries[name]
	var lastErr error
	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return providers.Wrap(providers.ErrTransient, name, operation, "rate limiter wait", err)
		}
		callCtx, cancel := context.WithTimeout(ctx, p.opts.QueryTimeout)
		err := call(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		switch {
		case errors.Is(err, providers.ErrConfiguration),
			errors.Is(err, providers.ErrArchiveSelection),
			errors.Is(err, providers.ErrNotFound):
			return err
		case errors.Is(err, providers.ErrRateLimited):
			if hook := p.opts.Hooks.Throttled; hook != nil {
				hook(name, rateLimitBackoff)
			}
			if sleepErr := providers.SleepWithContext(ctx, rateLimitBackoff); sleepErr != nil {
				return providers.Wrap(providers.ErrTransient, name, operation, "cancelled during backoff", sleepErr)
			}
		case providers.IsRetriable(err):
			if sleepErr := providers.SleepWithContext(ctx, p.opts.RetryDelay); sleepErr != nil {
				return providers.Wrap(providers.ErrTransient, name, operation, "cancelled during retry delay", sleepErr)
			}
		default:
			return err
		}
		p.logger.Debug("retrying provider operation",
			logging.String(logging.FieldProvider, name),
			logging.String("operation", operation),
			logging.Int("attempt", attempt),
			logging.Error(err),
		)
	}
	return providers.Wrap(providers.ErrTransient, name, operation,
		fmt.Sprintf("gave up after %d attempts", p.opts.MaxAttempts), lastErr)
}

func (p *Pool) discard(name string, e *entry, err error) {
	e.discarded = true
	p.logger.Warn("provider discarded for the remainder of the run",
		logging.String(logging.FieldProvider, name),
		logging.Error(err),
	)
}

// Close terminates every initialized adapter. Teardown errors are logged and
// swallowed, never fatal.
func (p *Pool) Close() {
	for _, name := range p.order {
		e := p.entries[name]
		e.mu.Lock()
		if e.initialized {
			if err := e.adapter.Terminate(); err != nil {
				p.logger.Warn("provider teardown failed",
					logging.String(logging.FieldProvider, name),
					logging.Error(err),
				)
			}
		}
		e.mu.Unlock()
	}
}
