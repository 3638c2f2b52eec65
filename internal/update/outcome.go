package update

import (
	"github.com/otaflow/ota-agent/api"
)

// Outcome is the terminal result of one update cycle.
type Outcome struct {
	Kind   api.UpdateOutcome
	Reason api.UpdateReason
	Err    error

	// CandidateVersion is the manifest version, when the manifest was parsed.
	CandidateVersion string
}

func (o Outcome) String() string {
	switch o.Kind {
	case api.OutcomeFailed:
		if o.Err != nil {
			return "failed (" + string(o.Reason) + "): " + o.Err.Error()
		}

		return "failed (" + string(o.Reason) + ")"
	case api.OutcomeApplied:
		return "applied " + o.CandidateVersion
	default:
		return "no update"
	}
}

func noUpdate(reason api.UpdateReason, err error, candidate string) Outcome {
	return Outcome{Kind: api.OutcomeNoUpdate, Reason: reason, Err: err, CandidateVersion: candidate}
}

func failed(reason api.UpdateReason, err error, candidate string) Outcome {
	return Outcome{Kind: api.OutcomeFailed, Reason: reason, Err: err, CandidateVersion: candidate}
}
