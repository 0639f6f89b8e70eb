// Package events defines the call and audio pipeline notifications published for real-time consumers.
package events

import (
	"time"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every event. Consumers filter on the event_type metadata.
const Topic = "ivrflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"
const TenantMetadataKey = "tenant_id"

const (
	CallStartedEvent     EventType = "call.started"
	CallNodeVisitedEvent EventType = "call.node_visited"
	CallEndedEvent       EventType = "call.ended"

	AudioJobProgressEvent EventType = "audio.job.progress"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	TenantID   string    `json:"tenantId,omitempty"`
	WorkflowID string    `json:"workflowId"`
}

func NewBaseEvent(eventType EventType, tenantID, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		TenantID:   tenantID,
		WorkflowID: workflowID,
	}
}

// Tenant is the tenant the event belongs to, used for routing on the bus.
func (b BaseEvent) Tenant() string {
	return b.TenantID
}

type CallStarted struct {
	BaseEvent

	CallID string `json:"callId"`
	Caller string `json:"caller"`
	Callee string `json:"callee"`
}

func (CallStarted) GetType() EventType {
	return CallStartedEvent
}

func NewCallStarted(execution *models.Execution) CallStarted {
	return CallStarted{
		BaseEvent: NewBaseEvent(CallStartedEvent, execution.TenantID, execution.WorkflowID),
		CallID:    execution.CallID,
		Caller:    execution.Caller,
		Callee:    execution.Callee,
	}
}

type CallNodeVisited struct {
	BaseEvent

	CallID   string          `json:"callId"`
	NodeID   string          `json:"nodeId"`
	NodeType models.NodeType `json:"nodeType"`
	Input    string          `json:"input,omitempty"`
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
}

func (CallNodeVisited) GetType() EventType {
	return CallNodeVisitedEvent
}

func NewCallNodeVisited(execution *models.Execution, visit models.VisitedNode) CallNodeVisited {
	return CallNodeVisited{
		BaseEvent: NewBaseEvent(CallNodeVisitedEvent, execution.TenantID, execution.WorkflowID),
		CallID:    execution.CallID,
		NodeID:    visit.NodeID,
		NodeType:  visit.NodeType,
		Input:     visit.Input,
		Success:   visit.Success,
		Error:     visit.Error,
	}
}

type CallEnded struct {
	BaseEvent

	CallID         string                 `json:"callId"`
	Status         models.ExecutionStatus `json:"status"`
	Reason         string                 `json:"reason,omitempty"`
	Error          string                 `json:"error,omitempty"`
	DurationMillis int64                  `json:"durationMs"`
	NodesVisited   int                    `json:"nodesVisited"`
}

func (CallEnded) GetType() EventType {
	return CallEndedEvent
}

func NewCallEnded(execution *models.Execution) CallEnded {
	return CallEnded{
		BaseEvent:      NewBaseEvent(CallEndedEvent, execution.TenantID, execution.WorkflowID),
		CallID:         execution.CallID,
		Status:         execution.Status,
		Reason:         execution.EndReason,
		Error:          execution.Error,
		DurationMillis: execution.DurationMillis,
		NodesVisited:   len(execution.VisitedNodes),
	}
}

type AudioJobProgress struct {
	BaseEvent

	JobID          string                `json:"jobId"`
	Status         models.AudioJobStatus `json:"status"`
	NodeID         string                `json:"nodeId,omitempty"`
	ProcessedNodes int                   `json:"processedNodes"`
	TotalNodes     int                   `json:"totalNodes"`
	Failed         int                   `json:"failed"`
	Degraded       int                   `json:"degraded"`
}

func (AudioJobProgress) GetType() EventType {
	return AudioJobProgressEvent
}

func NewAudioJobProgress(job *models.AudioJob, tenantID, nodeID string) AudioJobProgress {
	return AudioJobProgress{
		BaseEvent:      NewBaseEvent(AudioJobProgressEvent, tenantID, job.WorkflowID),
		JobID:          job.ID,
		Status:         job.Status,
		NodeID:         nodeID,
		ProcessedNodes: job.ProcessedNodes,
		TotalNodes:     job.TotalNodes,
		Failed:         len(job.Errors),
		Degraded:       len(job.Degraded),
	}
}
