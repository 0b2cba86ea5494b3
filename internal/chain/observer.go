package chain

import "time"

// StepInfo identifies a step within a run.
type StepInfo struct {
	RunID string
	Chain string
	Name  string
	Index int
	Total int
}

// Last reports whether the step is the final step of its run.
func (s StepInfo) Last() bool {
	return s.Index == s.Total-1
}

// Observer receives step lifecycle notifications. Observers are called
// synchronously from the run loop and cannot alter its outcome.
type Observer interface {
	StepStarted(step StepInfo, prompt string)
	StepFinished(step StepInfo, output string, elapsed time.Duration)
	StepFailed(step StepInfo, err error)
}

// NopObserver ignores all notifications.
type NopObserver struct{}

// StepStarted is a no-op.
func (NopObserver) StepStarted(StepInfo, string) {}

// StepFinished is a no-op.
func (NopObserver) StepFinished(StepInfo, string, time.Duration) {}

// StepFailed is a no-op.
func (NopObserver) StepFailed(StepInfo, error) {}

// MultiObserver fans notifications out to several observers in order.
type MultiObserver []Observer

// StepStarted notifies every observer.
func (m MultiObserver) StepStarted(step StepInfo, prompt string) {
	for _, o := range m {
		if o != nil {
			o.StepStarted(step, prompt)
		}
	}
}

// StepFinished notifies every observer.
func (m MultiObserver) StepFinished(step StepInfo, output string, elapsed time.Duration) {
	for _, o := range m {
		if o != nil {
			o.StepFinished(step, output, elapsed)
		}
	}
}

// StepFailed notifies every observer.
func (m MultiObserver) StepFailed(step StepInfo, err error) {
	for _, o := range m {
		if o != nil {
			o.StepFailed(step, err)
		}
	}
}
