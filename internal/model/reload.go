package model

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/rs/zerolog/log"
)

// Reloadable holds the model currently in use. It is loaded once at startup
// and swapped whole on Reload; readers never see a partially loaded model.
type Reloadable struct {
	path     string
	attempts uint
	delay    time.Duration

	mu      sync.RWMutex
	current Predictor
	loadErr error
	gen     uint64
}

// ReloadOption configures a Reloadable.
type ReloadOption func(*Reloadable)

// WithRetry sets how many times a load is attempted and the initial backoff
// between attempts.
func WithRetry(attempts uint, delay time.Duration) ReloadOption {
	return func(r *Reloadable) {
		r.attempts = attempts
		r.delay = delay
	}
}

// NewReloadable returns a holder for the artifact at path. An empty path means
// the embedded default model, which is installed immediately.
func NewReloadable(path string, opts ...ReloadOption) *Reloadable {
	r := &Reloadable{
		path:     path,
		attempts: 3,
		delay:    100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	if path == "" {
		r.install(Default())
	}
	return r
}

// install swaps in p and starts a new generation. Callers must not hold mu.
func (r *Reloadable) install(p Predictor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = p
	r.loadErr = nil
	r.gen++
}

// Generation identifies the model in service. It changes on every successful
// load, so predictions keyed by it never outlive their model.
func (r *Reloadable) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gen
}

// Path returns the artifact path, or "" for the embedded model.
func (r *Reloadable) Path() string {
	return r.path
}

// Loaded reports whether a model is available for prediction.
func (r *Reloadable) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current != nil
}

// Reload reads the artifact again. A file caught mid-write fails to parse, so
// loads are retried with backoff. On failure the previously loaded model, if
// any, stays in service.
func (r *Reloadable) Reload(ctx context.Context) error {
	if r.path == "" {
		return nil
	}

	var (
		loaded  *Linear
		lastErr error
	)
	err := retry.Do(
		func() error {
			l, err := Load(r.path)
			if err != nil {
				lastErr = err
				return err
			}
			loaded = l
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.MaxDelay(2*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().Err(err).Uint("attempt", n+1).Str("path", r.path).Msg("Retrying model load")
		}),
	)

	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
		r.mu.Lock()
		if r.current == nil {
			r.loadErr = lastErr
		}
		r.mu.Unlock()
		return fmt.Errorf("load model %s: %w", r.path, lastErr)
	}

	a := loaded.Artifact()
	log.Info().Str("path", r.path).Str("name", a.Name).Str("version", a.Version).Msg("Loaded model")
	r.install(loaded)
	return nil
}

func (r *Reloadable) Predict(f Features) (time.Duration, error) {
	r.mu.RLock()
	p, loadErr := r.current, r.loadErr
	r.mu.RUnlock()

	if p == nil {
		if loadErr != nil {
			return 0, fmt.Errorf("%w: %v", ErrNotLoaded, loadErr)
		}
		return 0, ErrNotLoaded
	}
	return p.Predict(f)
}
