package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"betterrest/internal/bedtime"
	"betterrest/internal/clock"
	"betterrest/internal/config"
	"betterrest/internal/model"
)

var fixedNow = time.Date(2024, time.May, 14, 12, 0, 0, 0, time.UTC)

func stubModel(d time.Duration) model.Predictor {
	return model.PredictorFunc(func(model.Features) (time.Duration, error) { return d, nil })
}

func failingModel() model.Predictor {
	return model.PredictorFunc(func(model.Features) (time.Duration, error) {
		return 0, errors.New("artifact load failed")
	})
}

// testServer creates a server backed by p in UTC with a fixed clock.
func testServer(t *testing.T, p model.Predictor) *server {
	t.Helper()

	cfg := config.Default()
	cfg.Location = "UTC"
	a := &app{
		cfg:       cfg,
		loc:       time.UTC,
		layout:    clock.Layout24h,
		model:     model.NewReloadable(""),
		estimator: bedtime.New(p, time.UTC),
	}
	s := newServer(a)
	s.now = func() time.Time { return fixedNow }
	return s
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHandleIndex_EmptyForm(t *testing.T) {
	h := testServer(t, stubModel(8*time.Hour)).routes()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "When do you want to wake up?")
	assert.Contains(t, body, `value="07:00"`)
	assert.Contains(t, body, "8 hours")
	assert.Contains(t, body, "1 cup")
	assert.NotContains(t, body, bedtime.TitleSuccess)
}

func TestHandleIndex_ShowsAlert(t *testing.T) {
	tests := []struct {
		name     string
		model    model.Predictor
		query    string
		contains []string
		excludes []string
	}{
		{
			name:     "scenario A",
			model:    stubModel(7*time.Hour + 30*time.Minute),
			query:    "/?wake=07:00",
			contains: []string{bedtime.TitleSuccess, "23:30", `name="description"`},
		},
		{
			name:     "non-default inputs",
			model:    stubModel(9 * time.Hour),
			query:    "/?wake=06:15&sleep=8.75&coffee=3",
			contains: []string{"21:15", "8.75 hours", "3 cups"},
		},
		{
			name:     "model failure",
			model:    failingModel(),
			query:    "/?wake=07:00",
			contains: []string{bedtime.TitleError, bedtime.FailureMessage},
			excludes: []string{bedtime.TitleSuccess, "artifact load failed"},
		},
		{
			name:     "malformed wake",
			model:    stubModel(time.Hour),
			query:    "/?wake=7am",
			contains: []string{"invalid time"},
			excludes: []string{bedtime.TitleSuccess},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testServer(t, tt.model).routes()
			rec := do(t, h, httptest.NewRequest(http.MethodGet, tt.query, nil))
			require.Equal(t, http.StatusOK, rec.Code)

			body := rec.Body.String()
			for _, s := range tt.contains {
				assert.Contains(t, body, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, body, s)
			}
		})
	}
}

func TestHandleCalc_Redirects(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{
			name: "defaults only carry wake",
			form: url.Values{"wake": {"07:00"}, "sleep": {"8"}, "coffee": {"1"}},
			want: "/?wake=07%3A00",
		},
		{
			name: "non-defaults",
			form: url.Values{"wake": {"6:30"}, "sleep": {"7,5"}, "coffee": {"4"}},
			want: "/?coffee=4&sleep=7.5&wake=06%3A30",
		},
		{
			name: "clamped like the steppers",
			form: url.Values{"wake": {"05:00"}, "sleep": {"15"}, "coffee": {"0"}},
			want: "/?sleep=12&wake=05%3A00",
		},
		{
			name: "unparsable numbers fall back to defaults",
			form: url.Values{"wake": {"08:00"}, "sleep": {"lots"}, "coffee": {"many"}},
			want: "/?wake=08%3A00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testServer(t, stubModel(time.Hour)).routes()
			rec := do(t, h, postForm("/calc", tt.form))

			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Location"))
		})
	}
}

func TestHandleCalc_InvalidWake(t *testing.T) {
	h := testServer(t, stubModel(time.Hour)).routes()

	rec := do(t, h, postForm("/calc", url.Values{"wake": {"25:00"}}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid time")

	rec = do(t, h, postForm("/calc", url.Values{"sleep": {"8"}}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wake up time is required")
}

func apiRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/estimate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHandleAPIEstimate(t *testing.T) {
	h := testServer(t, stubModel(7*time.Hour+30*time.Minute)).routes()

	rec := do(t, h, apiRequest(`{"wake_time":"07:00","sleep_amount":8,"coffee_cups":1}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var res map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, bedtime.TitleSuccess, res["title"])
	assert.Equal(t, "23:30", res["message"])
	assert.Equal(t, "23:30", res["bedtime"])
	assert.Equal(t, "07:00", res["wake_time"])
	assert.Equal(t, float64(27000), res["actual_sleep_seconds"])
}

func TestHandleAPIEstimate_Defaults(t *testing.T) {
	var got model.Features
	h := testServer(t, model.PredictorFunc(func(f model.Features) (time.Duration, error) {
		got = f
		return time.Hour, nil
	})).routes()

	rec := do(t, h, apiRequest(`{}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.Features{Wake: 25200, EstimatedSleep: 8, Coffee: 1}, got)
}

func TestHandleAPIEstimate_Failure(t *testing.T) {
	h := testServer(t, failingModel()).routes()

	rec := do(t, h, apiRequest(`{"wake_time":"07:00"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var res map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, bedtime.TitleError, res["title"])
	assert.Equal(t, bedtime.FailureMessage, res["message"])
	assert.NotContains(t, res, "bedtime")
	assert.NotContains(t, rec.Body.String(), "artifact load failed")
}

func TestHandleAPIEstimate_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "not json", body: `wake=07:00`, want: "invalid JSON body"},
		{name: "bad wake", body: `{"wake_time":"25:00"}`, want: "invalid time"},
		{name: "sleep out of range", body: `{"sleep_amount":13}`, want: "sleep amount must be between"},
		{name: "sleep off step", body: `{"sleep_amount":8.1}`, want: "sleep amount must be between"},
		{name: "coffee out of range", body: `{"coffee_cups":21}`, want: "coffee intake must be between"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testServer(t, stubModel(time.Hour)).routes()
			rec := do(t, h, apiRequest(tt.body))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestHandleHealth(t *testing.T) {
	h := testServer(t, stubModel(time.Hour)).routes()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var res map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "ok", res["status"])
	assert.Equal(t, true, res["model_loaded"])
}

func TestNewApp_MissingModel(t *testing.T) {
	cfg := config.Default()
	cfg.Location = "UTC"
	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.json")

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	s := newServer(a)
	h := s.routes()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Contains(t, rec.Body.String(), `"degraded"`)

	rec = do(t, h, apiRequest(`{"wake_time":"07:00"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), bedtime.FailureMessage)
}

func TestApp_ReloadPurgesCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	write := func(intercept string) {
		data := "format_version: 1\nname: t\noutput: actualSleep\nunit: hours\nintercept: " + intercept + "\ncoefficients:\n  coffee: 0\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	}
	write("8")

	cfg := config.Default()
	cfg.Location = "UTC"
	cfg.ModelPath = path
	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, a.cache)

	in := bedtime.DefaultInput(fixedNow, time.UTC)
	p, err := a.estimator.Estimate(in)
	require.NoError(t, err)
	assert.Equal(t, "23:00", p.Format(time.UTC, clock.Layout24h))

	write("6")
	a.reloadModel(context.Background())

	p, err = a.estimator.Estimate(in)
	require.NoError(t, err)
	assert.Equal(t, "01:00", p.Format(time.UTC, clock.Layout24h))
}

func TestHandleAPIEstimate_BodyTooLarge(t *testing.T) {
	h := testServer(t, stubModel(time.Hour)).routes()

	body := `{"wake_time":"07:00","pad":"` + strings.Repeat("x", maxEstimateBody) + `"}`
	rec := do(t, h, apiRequest(body))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "request body too large")
}

func TestApp_ConcurrentReloadsKeepLatest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	data := "format_version: 1\nname: t\noutput: actualSleep\nunit: hours\nintercept: 7\ncoefficients:\n  coffee: 0\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg := config.Default()
	cfg.Location = "UTC"
	cfg.ModelPath = path
	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.reloadModel(context.Background())
		}()
	}
	wg.Wait()

	p, err := a.estimator.Estimate(bedtime.DefaultInput(fixedNow, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "00:00", p.Format(time.UTC, clock.Layout24h))
}
