package state

import (
	"fmt"
	"strings"
	"time"
)

// Stage names one step of the episode pipeline.
type Stage string

const (
	StageFetch           Stage = "fetch"
	StageStructure       Stage = "structure"
	StageGenerateScript  Stage = "generate_script"
	StageSynthesizeAudio Stage = "synthesize_audio"
	StagePublish         Stage = "publish"
)

var stageOrder = []Stage{
	StageFetch,
	StageStructure,
	StageGenerateScript,
	StageSynthesizeAudio,
	StagePublish,
}

// Stages returns the pipeline stages in execution order.
func Stages() []Stage {
	return append([]Stage(nil), stageOrder...)
}

// Index returns the position of the stage in the pipeline, or -1.
func (s Stage) Index() int {
	for i, candidate := range stageOrder {
		if candidate == s {
			return i
		}
	}
	return -1
}

// ParseStage resolves a stage name, accepting dashes for underscores.
func ParseStage(value string) (Stage, error) {
	key := Stage(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_"))
	if key.Index() < 0 {
		return "", fmt.Errorf("unknown stage %q", value)
	}
	return key, nil
}

// Status is the lifecycle state of one stage record.
type Status string

const (
	StatusPending         Status = "pending"
	StatusInProgress      Status = "in_progress"
	StatusSuccess         Status = "success"
	StatusFailedRetryable Status = "failed_retryable"
	StatusFailedPermanent Status = "failed_permanent"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusSuccess, StatusFailedRetryable, StatusFailedPermanent:
		return true
	}
	return false
}

// Terminal reports whether no further attempts follow this status.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailedPermanent
}

// StageRecord is the persisted outcome of the latest attempt at a stage.
type StageRecord struct {
	Company       string
	Period        string
	Stage         Stage
	Status        Status
	AttemptCount  int
	LastError     string
	ArtifactRef   string
	CorrelationID string
	StartedAt     *time.Time
	CompletedAt   *time.Time
	UpdatedAt     time.Time
}

// Outcome is what RecordAttempt writes for a stage.
type Outcome struct {
	Status        Status
	AttemptCount  int
	Error         string
	ArtifactRef   string
	CorrelationID string
}

// EpisodeUnit is the reconstructed progress of one company and period.
type EpisodeUnit struct {
	Company string
	Period  string
	Records map[Stage]*StageRecord
}

// NewUnit returns a unit with no recorded progress.
func NewUnit(company, period string) *EpisodeUnit {
	return &EpisodeUnit{Company: company, Period: period, Records: map[Stage]*StageRecord{}}
}

// Key identifies the unit across workers and runs.
func (u *EpisodeUnit) Key() string {
	return u.Company + "/" + u.Period
}

// Record returns the stage's record, or nil when the stage never ran.
func (u *EpisodeUnit) Record(stage Stage) *StageRecord {
	if u == nil || u.Records == nil {
		return nil
	}
	return u.Records[stage]
}

// StatusOf returns the stage status, pending when never attempted.
func (u *EpisodeUnit) StatusOf(stage Stage) Status {
	if rec := u.Record(stage); rec != nil {
		return rec.Status
	}
	return StatusPending
}

// Artifact returns the artifact reference produced by a successful stage.
func (u *EpisodeUnit) Artifact(stage Stage) string {
	if rec := u.Record(stage); rec != nil && rec.Status == StatusSuccess {
		return rec.ArtifactRef
	}
	return ""
}

// CurrentStage is the first stage that has not succeeded. A published unit
// reports the publish stage.
func (u *EpisodeUnit) CurrentStage() Stage {
	for _, stage := range stageOrder {
		if u.StatusOf(stage) != StatusSuccess {
			return stage
		}
	}
	return StagePublish
}

// Published reports whether the publish stage succeeded.
func (u *EpisodeUnit) Published() bool {
	return u.StatusOf(StagePublish) == StatusSuccess
}

// FailedPermanently returns the stage that failed permanently, if any.
func (u *EpisodeUnit) FailedPermanently() (Stage, bool) {
	for _, stage := range stageOrder {
		if u.StatusOf(stage) == StatusFailedPermanent {
			return stage, true
		}
	}
	return "", false
}

// IsComplete reports whether the unit has been published.
func IsComplete(unit *EpisodeUnit) bool {
	return unit != nil && unit.Published()
}
