package model

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// FormatVersion is the only artifact layout this build can evaluate.
const FormatVersion = 1

// Artifact is the on-disk form of a linear sleep regression model.
type Artifact struct {
	FormatVersion int                `json:"format_version" yaml:"format_version"`
	Name          string             `json:"name" yaml:"name"`
	Version       string             `json:"version" yaml:"version"`
	Output        string             `json:"output" yaml:"output"`
	Unit          string             `json:"unit" yaml:"unit"`
	Intercept     float64            `json:"intercept" yaml:"intercept"`
	Coefficients  map[string]float64 `json:"coefficients" yaml:"coefficients"`
}

// Validate reports whether the artifact can be evaluated by this build.
func (a *Artifact) Validate() error {
	if a.FormatVersion != FormatVersion {
		return fmt.Errorf("unsupported format_version %d, this build reads %d", a.FormatVersion, FormatVersion)
	}
	if a.Output != OutputActualSleep {
		return fmt.Errorf("unexpected output %q, expected %q", a.Output, OutputActualSleep)
	}
	if _, err := unitScale(a.Unit); err != nil {
		return err
	}
	if len(a.Coefficients) == 0 {
		return fmt.Errorf("model %q has no coefficients", a.Name)
	}
	var unknown []string
	for name := range a.Coefficients {
		if _, ok := (Features{}).value(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown features: %s", strings.Join(unknown, ", "))
	}
	return nil
}

func unitScale(unit string) (time.Duration, error) {
	switch unit {
	case "", "seconds":
		return time.Second, nil
	case "minutes":
		return time.Minute, nil
	case "hours":
		return time.Hour, nil
	}
	return 0, fmt.Errorf("unknown unit %q", unit)
}

// Linear evaluates an Artifact: intercept + sum(coefficient * feature).
type Linear struct {
	artifact Artifact
	scale    time.Duration
	terms    []term
}

type term struct {
	name string
	coef float64
}

// featureOrder fixes the summation order so repeated calls are bit-identical.
var featureOrder = []string{FeatureWake, FeatureEstimatedSleep, FeatureCoffee}

// NewLinear validates a and returns its evaluator.
func NewLinear(a Artifact) (*Linear, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	scale, _ := unitScale(a.Unit)
	l := &Linear{artifact: a, scale: scale}
	for _, name := range featureOrder {
		if coef, ok := a.Coefficients[name]; ok {
			l.terms = append(l.terms, term{name: name, coef: coef})
		}
	}
	return l, nil
}

// Artifact returns the artifact the model was built from.
func (l *Linear) Artifact() Artifact {
	return l.artifact
}

func (l *Linear) Predict(f Features) (time.Duration, error) {
	score := l.artifact.Intercept
	for _, t := range l.terms {
		v, _ := f.value(t.name)
		score += t.coef * v
	}
	ns := score * float64(l.scale)
	if math.IsNaN(ns) || math.IsInf(ns, 0) || math.Abs(ns) > math.MaxInt64 {
		return 0, fmt.Errorf("model %q produced out-of-range output %g", l.artifact.Name, score)
	}
	return time.Duration(ns), nil
}

// Parse decodes an artifact. ext selects the codec: ".yaml"/".yml" use YAML,
// everything else is read as JSON.
func Parse(data []byte, ext string) (*Linear, error) {
	var a Artifact
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal model: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal model: %w", err)
		}
	}
	l, err := NewLinear(a)
	if err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	return l, nil
}

// Load reads and validates the artifact at path.
func Load(path string) (*Linear, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	return Parse(data, filepath.Ext(path))
}
