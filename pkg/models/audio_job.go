package models

import "time"

// AudioJobStatus is the lifecycle state of an audio generation job.
type AudioJobStatus string

const (
	AudioJobPending    AudioJobStatus = "pending"
	AudioJobProcessing AudioJobStatus = "processing"
	AudioJobCompleted  AudioJobStatus = "completed"
	AudioJobPartial    AudioJobStatus = "partial"
	AudioJobFailed     AudioJobStatus = "failed"
	AudioJobCancelled  AudioJobStatus = "cancelled"
)

func (s AudioJobStatus) IsTerminal() bool {
	switch s {
	case AudioJobCompleted, AudioJobPartial, AudioJobFailed, AudioJobCancelled:
		return true
	default:
		return false
	}
}

// NodeFailure records why a node could not get audio.
type NodeFailure struct {
	NodeID string `json:"nodeId"`
	Error  string `json:"error"`
}

// AudioJob pre-renders speech for a set of nodes of one workflow.
type AudioJob struct {
	ID              string         `json:"id"`
	WorkflowID      string         `json:"workflowId"`
	NodeIDs         []string       `json:"nodeIds"`
	ForceRegenerate bool           `json:"forceRegenerate"`
	Status          AudioJobStatus `json:"status"`
	ProcessedNodes  int            `json:"processedNodes"`
	TotalNodes      int            `json:"totalNodes"`
	Errors          []NodeFailure  `json:"errors"`
	Degraded        []string       `json:"degraded"`
	Error           string         `json:"error,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	StartedAt       *time.Time     `json:"startedAt,omitempty"`
	FinishedAt      *time.Time     `json:"finishedAt,omitempty"`
}

// Clone copies the slices so the job can be handed out while a worker keeps writing.
func (j *AudioJob) Clone() *AudioJob {
	clone := *j
	clone.NodeIDs = append([]string(nil), j.NodeIDs...)
	clone.Errors = append([]NodeFailure(nil), j.Errors...)
	clone.Degraded = append([]string(nil), j.Degraded...)

	return &clone
}
