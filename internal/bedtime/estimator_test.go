package bedtime

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"betterrest/internal/clock"
	"betterrest/internal/model"
)

var testDay = time.Date(2024, time.May, 14, 12, 0, 0, 0, time.UTC)

// constant returns a deterministic stub model that always predicts d.
func constant(d time.Duration) model.PredictorFunc {
	return func(model.Features) (time.Duration, error) { return d, nil }
}

type EstimatorSuite struct {
	suite.Suite
	seen []model.Features
}

func TestEstimatorSuite(t *testing.T) {
	suite.Run(t, new(EstimatorSuite))
}

func (s *EstimatorSuite) SetupTest() {
	s.seen = nil
}

func (s *EstimatorSuite) recording(d time.Duration) model.PredictorFunc {
	return func(f model.Features) (time.Duration, error) {
		s.seen = append(s.seen, f)
		return d, nil
	}
}

// TestScenarioA checks 07:00, 8h, 1 cup against a stub predicting 7.5h.
func (s *EstimatorSuite) TestScenarioA() {
	e := New(s.recording(7*time.Hour+30*time.Minute), time.UTC)
	in := DefaultInput(testDay, time.UTC)

	p, err := e.Estimate(in)
	s.Require().NoError(err)

	s.Equal(time.Date(2024, time.May, 13, 23, 30, 0, 0, time.UTC), p.Bedtime)
	s.True(p.Bedtime.Before(in.WakeTime))
	s.Equal("23:30", p.Format(time.UTC, clock.Layout24h))
	s.Equal("11:30 PM", p.Format(time.UTC, clock.Layout12h))
	s.Equal(7*time.Hour+30*time.Minute, p.ActualSleep)

	s.Require().Len(s.seen, 1)
	s.Equal(model.Features{Wake: 25200, EstimatedSleep: 8, Coffee: 1}, s.seen[0])
}

// TestScenarioB checks that a failing model yields only the fixed message.
func (s *EstimatorSuite) TestScenarioB() {
	cause := errors.New("artifact is corrupt")
	e := New(model.PredictorFunc(func(model.Features) (time.Duration, error) {
		return 0, cause
	}), time.UTC)

	p, err := e.Estimate(DefaultInput(testDay, time.UTC))
	s.Require().Error(err)
	s.Equal(Prediction{}, p)
	s.Equal(FailureMessage, err.Error())
	s.ErrorIs(err, cause)

	var ee *EstimationError
	s.ErrorAs(err, &ee)
}

// TestScenarioC checks that boundary inputs reach the model unchanged.
func (s *EstimatorSuite) TestScenarioC() {
	e := New(s.recording(6*time.Hour), time.UTC)
	wake := DefaultInput(testDay, time.UTC).WakeTime

	for _, sleep := range []float64{MinSleep, MaxSleep} {
		for _, coffee := range []int{MinCoffee, MaxCoffee} {
			_, err := e.Estimate(Input{WakeTime: wake, SleepAmount: sleep, CoffeeCups: coffee})
			s.NoError(err, "sleep=%v coffee=%d", sleep, coffee)
		}
	}
	s.Len(s.seen, 4)
}

func (s *EstimatorSuite) TestIdempotent() {
	e := New(model.Default(), time.UTC)
	in := Input{WakeTime: clock.On(testDay, 6*60+45, time.UTC), SleepAmount: 7.75, CoffeeCups: 3}

	first, err1 := e.Estimate(in)
	second, err2 := e.Estimate(in)
	s.Require().NoError(err1)
	s.Require().NoError(err2)
	s.Equal(first, second)
}

func (s *EstimatorSuite) TestDoesNotModifyInput() {
	e := New(constant(time.Hour), time.UTC)
	in := DefaultInput(testDay, time.UTC)
	before := in

	_, err := e.Estimate(in)
	s.Require().NoError(err)
	s.Equal(before, in)
}

func TestEstimate_FailureModes(t *testing.T) {
	tests := []struct {
		name      string
		predictor model.Predictor
	}{
		{name: "nil predictor", predictor: nil},
		{name: "inference error", predictor: model.PredictorFunc(func(model.Features) (time.Duration, error) {
			return 0, errors.New("boom")
		})},
		{name: "panic", predictor: model.PredictorFunc(func(model.Features) (time.Duration, error) {
			panic("corrupt weights")
		})},
		{name: "negative duration", predictor: constant(-time.Minute)},
		{name: "model never loaded", predictor: model.NewReloadable("/nonexistent/model.json")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.predictor, time.UTC)

			var (
				p   Prediction
				err error
			)
			require.NotPanics(t, func() {
				p, err = e.Estimate(DefaultInput(testDay, time.UTC))
			})
			require.Error(t, err)
			assert.Equal(t, FailureMessage, err.Error())
			assert.True(t, p.Bedtime.IsZero())

			a := NewAlert(p, err, time.UTC, clock.Layout24h)
			assert.Equal(t, Alert{Title: TitleError, Message: FailureMessage}, a)
			assert.True(t, a.Failed())
		})
	}
}

func TestEstimate_WakeEncoding(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	var got model.Features
	e := New(model.PredictorFunc(func(f model.Features) (time.Duration, error) {
		got = f
		return 0, nil
	}), loc)

	// 21:30 UTC is 06:30 the next morning in UTC+9.
	wake := time.Date(2024, time.May, 14, 21, 30, 59, 0, time.UTC)
	p, err := e.Estimate(Input{WakeTime: wake, SleepAmount: 9.5, CoffeeCups: 4})
	require.NoError(t, err)

	assert.Equal(t, model.Features{Wake: 6*3600 + 30*60, EstimatedSleep: 9.5, Coffee: 4}, got)
	assert.Equal(t, wake, p.Bedtime)
	assert.Equal(t, loc, e.Location())
}

func TestEstimate_AllWakeMinutes(t *testing.T) {
	e := New(constant(0), time.UTC)
	for m := 0; m < clock.MinutesPerDay; m++ {
		f := e.Features(Input{WakeTime: clock.On(testDay, m, time.UTC), SleepAmount: 8, CoffeeCups: 1})
		require.Equal(t, float64(m*60), f.Wake)
	}
}

func TestNewAlert_Success(t *testing.T) {
	p := Prediction{Bedtime: time.Date(2024, time.May, 13, 22, 5, 0, 0, time.UTC)}
	a := NewAlert(p, nil, time.UTC, clock.Layout24h)

	assert.Equal(t, Alert{Title: TitleSuccess, Message: "22:05"}, a)
	assert.False(t, a.Failed())
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name       string
		sleep      float64
		coffee     int
		wantSleep  float64
		wantCoffee int
	}{
		{name: "in range", sleep: 8, coffee: 1, wantSleep: 8, wantCoffee: 1},
		{name: "snap to quarter", sleep: 7.3, coffee: 5, wantSleep: 7.25, wantCoffee: 5},
		{name: "below range", sleep: 1, coffee: 0, wantSleep: MinSleep, wantCoffee: MinCoffee},
		{name: "above range", sleep: 15, coffee: 99, wantSleep: MaxSleep, wantCoffee: MaxCoffee},
		{name: "nan", sleep: math.NaN(), coffee: 2, wantSleep: DefaultSleep, wantCoffee: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Input{SleepAmount: tt.sleep, CoffeeCups: tt.coffee}.Clamp()
			assert.Equal(t, tt.wantSleep, got.SleepAmount)
			assert.Equal(t, tt.wantCoffee, got.CoffeeCups)
		})
	}
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "8 hours", SleepLabel(8))
	assert.Equal(t, "8.25 hours", SleepLabel(8.25))
	assert.Equal(t, "1 cup", CoffeeLabel(1))
	assert.Equal(t, "12 cups", CoffeeLabel(12))
}

func TestDefaultInput(t *testing.T) {
	in := DefaultInput(testDay, time.UTC)
	assert.Equal(t, time.Date(2024, time.May, 14, 7, 0, 0, 0, time.UTC), in.WakeTime)
	assert.Equal(t, DefaultSleep, in.SleepAmount)
	assert.Equal(t, DefaultCoffee, in.CoffeeCups)
}
