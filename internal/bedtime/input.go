package bedtime

import (
	"math"
	"strconv"
	"time"

	"betterrest/internal/clock"
)

// Ranges the form controls enforce.
const (
	MinSleep  = 4.0
	MaxSleep  = 12.0
	SleepStep = 0.25

	MinCoffee = 1
	MaxCoffee = 20

	DefaultSleep      = 8.0
	DefaultCoffee     = 1
	DefaultWakeMinute = 7 * 60
)

// Input is one calculation request. It is passed by value; the estimator never
// modifies it.
type Input struct {
	WakeTime    time.Time
	SleepAmount float64 // hours
	CoffeeCups  int
}

// DefaultInput returns the form's initial state: wake at 07:00 on now's date,
// eight hours of sleep and one cup of coffee.
func DefaultInput(now time.Time, loc *time.Location) Input {
	return Input{
		WakeTime:    clock.On(now, DefaultWakeMinute, loc),
		SleepAmount: DefaultSleep,
		CoffeeCups:  DefaultCoffee,
	}
}

// Clamp returns in with sleep clamped to [4, 12] on a quarter-hour step and
// coffee clamped to [1, 20], the way the steppers restrict them.
func (in Input) Clamp() Input {
	s := in.SleepAmount
	if math.IsNaN(s) {
		s = DefaultSleep
	}
	s = math.Round(s/SleepStep) * SleepStep
	in.SleepAmount = math.Min(MaxSleep, math.Max(MinSleep, s))

	switch {
	case in.CoffeeCups < MinCoffee:
		in.CoffeeCups = MinCoffee
	case in.CoffeeCups > MaxCoffee:
		in.CoffeeCups = MaxCoffee
	}
	return in
}

// SleepLabel renders a stepper label such as "8 hours" or "7.25 hours".
func SleepLabel(hours float64) string {
	return strconv.FormatFloat(hours, 'f', -1, 64) + " hours"
}

// CoffeeLabel renders "1 cup" or "N cups".
func CoffeeLabel(cups int) string {
	if cups == 1 {
		return "1 cup"
	}
	return strconv.Itoa(cups) + " cups"
}
