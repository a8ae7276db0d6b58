// Package bedtime turns a wake time, a desired sleep amount and a coffee count
// into a recommended bedtime using a regression model.
package bedtime

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"betterrest/internal/clock"
	"betterrest/internal/model"
)

// FailureMessage is the only text a user sees when an estimate fails.
const FailureMessage = "Sorry, something went wrong processing your request."

// EstimationError is returned for every failure of the model step. Its message
// is always FailureMessage; the cause is kept for diagnostics only.
type EstimationError struct {
	cause error
}

func (e *EstimationError) Error() string {
	return FailureMessage
}

func (e *EstimationError) Unwrap() error {
	return e.cause
}

// Prediction is a successful estimate.
type Prediction struct {
	WakeTime    time.Time
	Bedtime     time.Time
	ActualSleep time.Duration
}

// Format renders the bedtime as a time of day in loc using layout.
func (p Prediction) Format(loc *time.Location, layout string) string {
	return clock.Format(p.Bedtime, loc, layout)
}

// Estimator computes bedtimes. It holds no mutable state and is safe for
// concurrent use as long as its Predictor is.
type Estimator struct {
	predictor model.Predictor
	loc       *time.Location
}

// New returns an Estimator that decomposes wake times in loc (time.Local if nil).
func New(p model.Predictor, loc *time.Location) *Estimator {
	if loc == nil {
		loc = time.Local
	}
	return &Estimator{predictor: p, loc: loc}
}

// Location returns the location wake times are read in.
func (e *Estimator) Location() *time.Location {
	return e.loc
}

// Features encodes in the way the model was trained: wake as seconds since
// midnight, sleep in hours, coffee in cups.
func (e *Estimator) Features(in Input) model.Features {
	return model.Features{
		Wake:           float64(clock.SecondsSinceMidnight(in.WakeTime, e.loc)),
		EstimatedSleep: in.SleepAmount,
		Coffee:         float64(in.CoffeeCups),
	}
}

// Estimate predicts how long the user will actually sleep and subtracts it
// from the wake time. Inputs are not range-checked. Any failure of the model,
// including a panic, is returned as *EstimationError.
func (e *Estimator) Estimate(in Input) (Prediction, error) {
	actual, err := e.predict(e.Features(in))
	if err != nil {
		log.Debug().Err(err).
			Time("wake", in.WakeTime).
			Float64("sleep", in.SleepAmount).
			Int("coffee", in.CoffeeCups).
			Msg("Estimate failed")
		return Prediction{}, &EstimationError{cause: err}
	}

	return Prediction{
		WakeTime:    in.WakeTime,
		Bedtime:     in.WakeTime.Add(-actual),
		ActualSleep: actual,
	}, nil
}

func (e *Estimator) predict(f model.Features) (d time.Duration, err error) {
	if e.predictor == nil {
		return 0, errors.New("no model configured")
	}
	defer func() {
		if r := recover(); r != nil {
			d, err = 0, fmt.Errorf("model panicked: %v", r)
		}
	}()

	d, err = e.predictor.Predict(f)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("model predicted negative sleep %s", d)
	}
	return d, nil
}
