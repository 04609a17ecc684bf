package engine

import "errors"

// OutcomeStatus is the result of processing one membership or group.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeFailed    OutcomeStatus = "failed"
)

// Outcome is the per-entity result of a run.
type Outcome struct {
	EntityID  string
	Status    OutcomeStatus
	Reference string
	// Err explains a failed outcome, and sometimes a skipped one.
	Err error
}

func succeeded(id, reference string) Outcome {
	return Outcome{EntityID: id, Status: OutcomeSucceeded, Reference: reference}
}

func skipped(id string, err error) Outcome {
	return Outcome{EntityID: id, Status: OutcomeSkipped, Err: err}
}

func failed(id string, err error) Outcome {
	return Outcome{EntityID: id, Status: OutcomeFailed, Err: err}
}

// Summary aggregates the outcomes of one run.
type Summary struct {
	Processed int
	Succeeded int
	Skipped   int
	Failed    int
	Errors    []string
	Outcomes  []Outcome
}

// Add folds an outcome into the summary.
func (s *Summary) Add(kind string, o Outcome) {
	s.Processed++
	switch o.Status {
	case OutcomeSucceeded:
		s.Succeeded++
	case OutcomeSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
	if o.Err != nil {
		entityErr := &EntityError{Kind: kind, ID: o.EntityID, Err: o.Err}
		o.Err = entityErr
		s.Errors = append(s.Errors, entityErr.Error())
	}
	s.Outcomes = append(s.Outcomes, o)
}

// FailedWith reports whether any outcome failed with target.
func (s *Summary) FailedWith(target error) bool {
	for _, o := range s.Outcomes {
		if o.Err != nil && errors.Is(o.Err, target) {
			return true
		}
	}
	return false
}
