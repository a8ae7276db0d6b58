package main

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"betterrest/internal/bedtime"
	"betterrest/internal/clock"
	"betterrest/internal/config"
	"betterrest/internal/model"
)

// app is the wiring shared by the CLI and web modes. The model is loaded once
// and treated as read-only; nothing else is shared between requests.
type app struct {
	cfg       *config.Config
	loc       *time.Location
	layout    string
	model     *model.Reloadable
	cache     *model.Cache
	estimator *bedtime.Estimator

	reloadMu sync.Mutex
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	loc, err := cfg.Loc()
	if err != nil {
		return nil, err
	}

	m := model.NewReloadable(cfg.ModelPath)
	if err := m.Reload(ctx); err != nil {
		// Every estimate reports the generic failure until a valid artifact appears.
		log.Warn().Err(err).Str("path", cfg.ModelPath).Msg("Failed to load model")
	}

	a := &app{
		cfg:    cfg,
		loc:    loc,
		layout: cfg.Layout(),
		model:  m,
	}

	var p model.Predictor = m
	if cfg.CacheSize > 0 {
		a.cache = model.NewCache(m, cfg.CacheSize)
		p = a.cache
	}
	a.estimator = bedtime.New(p, loc)
	return a, nil
}

// reloadModel re-reads the artifact and drops cached predictions made with the
// previous one. Reloads run one at a time so the last file read is the one kept.
func (a *app) reloadModel(ctx context.Context) {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	if err := a.model.Reload(ctx); err != nil {
		log.Warn().Err(err).Msg("Model reload failed, keeping previous model")
		return
	}
	if a.cache != nil {
		a.cache.Purge()
	}
}

// watchModel reloads the model whenever its artifact changes. It returns a stop
// function, which is a no-op when watching is disabled.
func (a *app) watchModel(ctx context.Context) func() {
	path := a.model.Path()
	if !a.cfg.WatchModel || path == "" {
		return func() {}
	}

	w, err := model.NewWatcher(path, func() { a.reloadModel(ctx) })
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create model watcher")
		return func() {}
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to start model watcher")
		_ = w.Stop()
		return func() {}
	}
	log.Info().Str("path", path).Msg("Model file watcher started")
	return func() { _ = w.Stop() }
}

// estimateResult is the JSON shape shared by --json and POST /api/estimate.
type estimateResult struct {
	bedtime.Alert
	WakeTime           string  `json:"wake_time"`
	SleepAmount        float64 `json:"sleep_amount"`
	CoffeeCups         int     `json:"coffee_cups"`
	Bedtime            string  `json:"bedtime,omitempty"`
	ActualSleepSeconds float64 `json:"actual_sleep_seconds,omitempty"`
}

func (a *app) result(in bedtime.Input, p bedtime.Prediction, err error) estimateResult {
	res := estimateResult{
		Alert:       bedtime.NewAlert(p, err, a.loc, a.layout),
		WakeTime:    clock.Format(in.WakeTime, a.loc, clock.Layout24h),
		SleepAmount: in.SleepAmount,
		CoffeeCups:  in.CoffeeCups,
	}
	if err == nil {
		res.Bedtime = p.Format(a.loc, clock.Layout24h)
		res.ActualSleepSeconds = p.ActualSleep.Seconds()
	}
	return res
}
