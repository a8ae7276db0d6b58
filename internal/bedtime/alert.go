package bedtime

import "time"

const (
	TitleSuccess = "Calculated Bedtime"
	TitleError   = "Error"
)

// Alert is what the user is shown after pressing Calculate.
type Alert struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Failed reports whether the alert carries the failure message.
func (a Alert) Failed() bool {
	return a.Title == TitleError
}

// NewAlert turns the outcome of Estimate into an Alert. Errors of any kind
// produce the fixed failure message.
func NewAlert(p Prediction, err error, loc *time.Location, layout string) Alert {
	if err != nil {
		return Alert{Title: TitleError, Message: FailureMessage}
	}
	return Alert{Title: TitleSuccess, Message: p.Format(loc, layout)}
}
