package jobs

import (
	"errors"
	"time"

	"github.com/myelectricaldata/importer/internal/metering"
)

type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeRemoteError      Outcome = "remote_error"
	OutcomeTransportFailure Outcome = "transport_failure"
	OutcomeDisabled         Outcome = "disabled"
)

func classify(err error) Outcome {
	var remoteErr *metering.RemoteError
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrDisabled):
		return OutcomeDisabled
	case errors.As(err, &remoteErr):
		return OutcomeRemoteError
	}
	return OutcomeTransportFailure
}

// RunResult is the aggregate of one import run. Status reports that the
// sweep completed, not that every call succeeded.
type RunResult struct {
	RunID       string                     `json:"run_id"`
	Target      string                     `json:"target,omitempty"`
	Status      bool                       `json:"status"`
	StartedAt   time.Time                  `json:"started_at"`
	FinishedAt  time.Time                  `json:"finished_at"`
	UsagePoints []string                   `json:"usage_points"`
	Outcomes    map[string]map[Outcome]int `json:"outcomes"`
}

func (r *RunResult) record(method string, outcome Outcome) {
	if r.Outcomes[method] == nil {
		r.Outcomes[method] = map[Outcome]int{}
	}
	r.Outcomes[method][outcome]++
}

// Invocations returns how many times a method ran, whatever the outcome
func (r *RunResult) Invocations(method string) int {
	total := 0
	for _, count := range r.Outcomes[method] {
		total += count
	}
	return total
}
