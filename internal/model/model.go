// Package model loads the pre-trained sleep regression artifact and exposes it
// behind the Predictor interface the estimator calls.
package model

import (
	"errors"
	"time"
)

// Feature names as the artifact's coefficients refer to them.
const (
	FeatureWake           = "wake"
	FeatureEstimatedSleep = "estimatedSleep"
	FeatureCoffee         = "coffee"

	OutputActualSleep = "actualSleep"
)

// ErrNotLoaded is returned by a Reloadable that has never held a model.
var ErrNotLoaded = errors.New("model not loaded")

// Features is the input vector the regression model was trained on.
type Features struct {
	Wake           float64 // seconds since midnight
	EstimatedSleep float64 // hours
	Coffee         float64 // cups
}

func (f Features) value(name string) (float64, bool) {
	switch name {
	case FeatureWake:
		return f.Wake, true
	case FeatureEstimatedSleep:
		return f.EstimatedSleep, true
	case FeatureCoffee:
		return f.Coffee, true
	}
	return 0, false
}

// Predictor maps a feature vector to a predicted actual sleep duration.
type Predictor interface {
	Predict(f Features) (time.Duration, error)
}

// PredictorFunc adapts a plain function to Predictor.
type PredictorFunc func(f Features) (time.Duration, error)

func (fn PredictorFunc) Predict(f Features) (time.Duration, error) {
	return fn(f)
}
