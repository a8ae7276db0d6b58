package main

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"betterrest/internal/bedtime"
	"betterrest/internal/clock"
)

// Web form defaults; URL query only includes params that differ from these.
var (
	webDefaultWake   = clock.FormatMinutes(bedtime.DefaultWakeMinute)
	webDefaultSleep  = strconv.FormatFloat(bedtime.DefaultSleep, 'f', -1, 64)
	webDefaultCoffee = strconv.Itoa(bedtime.DefaultCoffee)
)

type PageData struct {
	Wake   string
	Sleep  string
	Coffee string

	SleepLabel  string
	CoffeeLabel string

	SleepMin, SleepMax, SleepStep float64
	CoffeeMin, CoffeeMax          int

	Version string

	Error string
	Alert *bedtime.Alert

	// Share text: meta description when Alert is set (for link previews).
	ShareDescription string
}

type server struct {
	app *app
	tpl *template.Template
	now func() time.Time
}

func newServer(a *app) *server {
	return &server{
		app: a,
		tpl: template.Must(template.New("page").Parse(pageHTML)),
		now: time.Now,
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Post("/calc", s.handleCalc)
	r.Post("/api/estimate", s.handleAPIEstimate)
	r.Get("/healthz", s.handleHealth)
	return r
}

func serveWeb(ctx context.Context, a *app, port int) error {
	stopWatch := a.watchModel(ctx)
	defer stopWatch()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           newServer(a).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *server) newPage(wake, sleep, coffee string) PageData {
	data := PageData{
		Wake:      wake,
		Sleep:     sleep,
		Coffee:    coffee,
		SleepMin:  bedtime.MinSleep,
		SleepMax:  bedtime.MaxSleep,
		SleepStep: bedtime.SleepStep,
		CoffeeMin: bedtime.MinCoffee,
		CoffeeMax: bedtime.MaxCoffee,
		Version:   appVersion,
	}
	if v, err := parseFloat(sleep); err == nil {
		data.SleepLabel = bedtime.SleepLabel(v)
	}
	if v, err := strconv.Atoi(strings.TrimSpace(coffee)); err == nil {
		data.CoffeeLabel = bedtime.CoffeeLabel(v)
	}
	return data
}

// formInput reads the three form values the way the steppers would: anything
// unparsable falls back to the default and the rest is clamped into range.
// Only a malformed wake time is an error.
func (s *server) formInput(wake, sleep, coffee string) (bedtime.Input, error) {
	wakeMin, err := clock.ParseHHMM(wake)
	if err != nil {
		return bedtime.Input{}, err
	}
	in := bedtime.Input{
		WakeTime:    clock.On(s.now(), wakeMin, s.app.loc),
		SleepAmount: bedtime.DefaultSleep,
		CoffeeCups:  bedtime.DefaultCoffee,
	}
	if v, err := parseFloat(sleep); err == nil {
		in.SleepAmount = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(coffee)); err == nil {
		in.CoffeeCups = v
	}
	return in.Clamp(), nil
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := s.newPage(
		orDefault(strings.TrimSpace(q.Get("wake")), webDefaultWake),
		orDefault(strings.TrimSpace(q.Get("sleep")), webDefaultSleep),
		orDefault(strings.TrimSpace(q.Get("coffee")), webDefaultCoffee),
	)

	// A URL carrying the wake param is a finished calculation; show its result.
	if q.Has("wake") {
		in, err := s.formInput(data.Wake, data.Sleep, data.Coffee)
		if err != nil {
			data.Error = err.Error()
		} else {
			pred, estErr := s.app.estimator.Estimate(in)
			alert := bedtime.NewAlert(pred, estErr, s.app.loc, s.app.layout)
			data.Alert = &alert
			if estErr == nil {
				data.ShareDescription = fmt.Sprintf("Wake %s after %s with %s: go to bed at %s.",
					data.Wake, bedtime.SleepLabel(in.SleepAmount), bedtime.CoffeeLabel(in.CoffeeCups), alert.Message)
			}
		}
	}

	s.render(w, data)
}

func (s *server) handleCalc(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	wake := strings.TrimSpace(r.FormValue("wake"))
	sleep := strings.TrimSpace(r.FormValue("sleep"))
	coffee := strings.TrimSpace(r.FormValue("coffee"))

	in, err := s.formInput(wake, sleep, coffee)
	if err != nil {
		data := s.newPage(wake, orDefault(sleep, webDefaultSleep), orDefault(coffee, webDefaultCoffee))
		data.Error = "wake up time is required (HH:MM)"
		if wake != "" {
			data.Error = err.Error()
		}
		s.render(w, data)
		return
	}

	// Redirect to GET with query params (only non-defaults) so the URL reflects the calculation.
	redir := buildCalcURL(clock.Format(in.WakeTime, s.app.loc, clock.Layout24h), in.SleepAmount, in.CoffeeCups)
	http.Redirect(w, r, redir, http.StatusFound)
}

const maxEstimateBody = 4 << 10

type estimateRequest struct {
	WakeTime    string   `json:"wake_time"`
	SleepAmount *float64 `json:"sleep_amount"`
	CoffeeCups  *int     `json:"coffee_cups"`
}

func (s *server) handleAPIEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEstimateBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	wakeMin := bedtime.DefaultWakeMinute
	if strings.TrimSpace(req.WakeTime) != "" {
		m, err := clock.ParseHHMM(req.WakeTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		wakeMin = m
	}
	in := bedtime.Input{
		WakeTime:    clock.On(s.now(), wakeMin, s.app.loc),
		SleepAmount: bedtime.DefaultSleep,
		CoffeeCups:  bedtime.DefaultCoffee,
	}
	if req.SleepAmount != nil {
		in.SleepAmount = *req.SleepAmount
	}
	if req.CoffeeCups != nil {
		in.CoffeeCups = *req.CoffeeCups
	}
	if err := checkRange(in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A failed estimate is a normal result for the caller to display.
	pred, err := s.app.estimator.Estimate(in)
	writeJSON(w, http.StatusOK, s.app.result(in, pred, err))
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	loaded := s.app.model.Loaded()
	status := "ok"
	if !loaded {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       status,
		"model_loaded": loaded,
		"model_path":   s.app.model.Path(),
		"version":      appVersion,
	})
}

func (s *server) render(w http.ResponseWriter, data PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("Failed to render page")
	}
}

// buildCalcURL returns "/?wake=..." and only adds the other params when not default.
func buildCalcURL(wake string, sleep float64, coffee int) string {
	v := url.Values{}
	v.Set("wake", wake)
	if s := strconv.FormatFloat(sleep, 'f', -1, 64); s != webDefaultSleep {
		v.Set("sleep", s)
	}
	if c := strconv.Itoa(coffee); c != webDefaultCoffee {
		v.Set("coffee", c)
	}
	return "/?" + v.Encode()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		}()
		next.ServeHTTP(ww, r)
	})
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", ".")
	return strconv.ParseFloat(s, 64)
}
