// Package protocol defines the contract between the interpreter and the node handlers.
package protocol

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/ivrflow/pkg/callcontrol"
	"github.com/dukex/ivrflow/pkg/models"
)

// Phase tells a handler whether it is entered fresh or resumed by a callback.
type Phase string

const (
	PhaseEnter    Phase = "enter"
	PhaseContinue Phase = "continue"
)

// Well known outcome handles shared by several node types.
const (
	HandleTrue        = "true"
	HandleFalse       = "false"
	HandleError       = "error"
	HandleSuccess     = "success"
	HandleFailed      = "failed"
	HandleTimeout     = "timeout"
	HandleNoMatch     = "no_match"
	HandleMaxAttempts = "max_attempts"
	HandleAnswered    = "answered"
	HandleBusy        = "busy"
	HandleNoAnswer    = "no_answer"
	HandleFallback    = "fallback"
	HandleMaxReached  = "max_reached"
	HandleRecorded    = "recorded"
	HandleCompleted   = "completed"
	HandleBridged     = "bridged"

	// HandleDefault selects the edge without a source handle.
	HandleDefault = ""
)

// Event is the telephony webhook as seen by handlers.
type Event struct {
	CallID            string
	From              string
	To                string
	CallStatus        string
	Digits            string
	SpeechResult      string
	Confidence        string
	RecordingURL      string
	RecordingDuration string
	TranscriptionText string
	DialCallStatus    string
	QueueResult       string
	Handoff           string
	Sequence          string
}

// URLBuilder produces the callback urls embedded in verbs.
type URLBuilder interface {
	Continue(workflowID, nodeID string) string
	Enter(workflowID, nodeID string) string
}

// Request is one step of one node. Handlers may mutate Execution variables and counters;
// the interpreter records the visit and persists the execution.
type Request struct {
	Workflow  *models.Workflow
	Node      *models.Node
	Execution *models.Execution
	Event     Event
	Phase     Phase
	URLs      URLBuilder
	Now       time.Time
}

// ContinueURL is the callback url of the current node.
func (r *Request) ContinueURL() string {
	return r.URLs.Continue(r.Workflow.ID, r.Node.ID)
}

// Result is what a handler wants to happen next.
type Result struct {
	Verbs []callcontrol.Verb

	// NextNodeID wins over Handles when set.
	NextNodeID string
	// Handles are tried in order against the outgoing edges. HandleDefault matches the unlabeled edge.
	Handles []string

	// Wait stops the step loop until the platform calls the node back.
	Wait bool
	// Hangup ends the call after Verbs. Status defaults to completed.
	Hangup    bool
	Status    models.ExecutionStatus
	EndReason string
	// QuietEnd hangs up without the apology when no edge matches.
	QuietEnd bool

	Input   string
	Success bool
	Err     error
}

// Route is a result that follows the first matching handle.
func Route(handles ...string) *Result {
	return &Result{Handles: handles, Success: true}
}

// NodeHandler executes one node type.
type NodeHandler interface {
	Enter(ctx context.Context, req *Request) (*Result, error)
	Continue(ctx context.Context, req *Request) (*Result, error)
}

// SpeechRenderer synthesizes text at call time when a node has no pre-rendered audio.
type SpeechRenderer interface {
	Render(ctx context.Context, text, voice, language string) (string, error)
}

// Dependencies are handed to every factory.
type Dependencies struct {
	Logger     *slog.Logger
	HTTPClient *http.Client
	Speech     SpeechRenderer
}

// NodeFactory creates node handlers and provides metadata about the node type.
type NodeFactory interface {
	Create(deps Dependencies) (NodeHandler, error)

	// ID returns the node type this factory handles
	ID() models.NodeType

	Name() string
	Description() string

	// Schema returns the JSON schema of the node data
	Schema() map[string]any
}
