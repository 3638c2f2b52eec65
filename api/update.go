package api

import (
	"time"
)

// UpdateOutcome is the terminal result of one update cycle.
type UpdateOutcome string

const (
	// OutcomeNoUpdate means the cycle completed without a new image being applied.
	OutcomeNoUpdate UpdateOutcome = "no_update"

	// OutcomeApplied means a verified image was handed off and applied.
	OutcomeApplied UpdateOutcome = "applied"

	// OutcomeFailed means the cycle stopped on an error.
	OutcomeFailed UpdateOutcome = "failed"
)

// UpdateReason names the failing step of a failed cycle.
type UpdateReason string

// Failure reasons.
const (
	ReasonNone               UpdateReason = ""
	ReasonPreconditionNotMet UpdateReason = "precondition_not_met"
	ReasonManifestFetchError UpdateReason = "manifest_fetch_error"
	ReasonManifestInvalid    UpdateReason = "manifest_invalid"
	ReasonVersionUndefined   UpdateReason = "version_undefined"
	ReasonDownloadError      UpdateReason = "download_error"
	ReasonHashMismatch       UpdateReason = "hash_mismatch"
	ReasonSignatureInvalid   UpdateReason = "signature_invalid"
	ReasonFlashError         UpdateReason = "flash_error"
	ReasonInternalError      UpdateReason = "internal_error"
)

// OutcomeRecord is published and stored once per update cycle.
type OutcomeRecord struct {
	CycleID          string        `json:"cycle_id"                    yaml:"cycle_id"`
	Outcome          UpdateOutcome `json:"outcome"                     yaml:"outcome"`
	Reason           UpdateReason  `json:"reason,omitempty"            yaml:"reason,omitempty"`
	Detail           string        `json:"detail,omitempty"            yaml:"detail,omitempty"`
	CurrentVersion   string        `json:"current_version"             yaml:"current_version"`
	CandidateVersion string        `json:"candidate_version,omitempty" yaml:"candidate_version,omitempty"`
	Timestamp        time.Time     `json:"timestamp"                   yaml:"timestamp"`
}

// UpdateStatus holds the configuration and state exposed by the local API.
type UpdateStatus struct {
	Config UpdateConfig `json:"config" yaml:"config"`
	State  UpdateState  `json:"state"  yaml:"state"`
}

// UpdateConfig is the read-only update configuration.
type UpdateConfig struct {
	CurrentVersion string `json:"current_version" yaml:"current_version"`
	ManifestURL    string `json:"manifest_url"    yaml:"manifest_url"`
	FirmwareURL    string `json:"firmware_url"    yaml:"firmware_url"`
	Transport      string `json:"transport"       yaml:"transport"`
	CheckSchedule  string `json:"check_schedule"  yaml:"check_schedule"`
}

// UpdateState holds information about the current update state.
type UpdateState struct {
	LastCheck   time.Time      `json:"last_check"             yaml:"last_check"`
	Status      string         `json:"status"                 yaml:"status"`
	Busy        bool           `json:"busy"                   yaml:"busy"`
	LastOutcome *OutcomeRecord `json:"last_outcome,omitempty" yaml:"last_outcome,omitempty"`
}
