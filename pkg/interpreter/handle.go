package interpreter

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dukex/ivrflow/pkg/callcontrol"
	"github.com/dukex/ivrflow/pkg/eventbus"
	"github.com/dukex/ivrflow/pkg/events"
	"github.com/dukex/ivrflow/pkg/execution"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/otelhelper"
	"github.com/dukex/ivrflow/pkg/persistence"
	"github.com/dukex/ivrflow/pkg/protocol"
)

var (
	ErrMissingCallID   = errors.New("webhook without call id")
	ErrWorkflowChanged = errors.New("callback for a different workflow")
)

// Outcome summarizes how a webhook was answered.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeApology   Outcome = "apology"
	OutcomeEnded     Outcome = "ended"
	OutcomeIgnored   Outcome = "ignored"
)

// Reply is always a well-formed call-control document, even when the call could not continue.
type Reply struct {
	Document string
	Outcome  Outcome
	CallID   string
}

// HandleIncoming starts a call: tenant lookup, active workflow, new execution, start node.
func (e *Engine) HandleIncoming(ctx context.Context, event protocol.Event) Reply {
	started := time.Now()

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "webhook.incoming",
		attribute.String(otelhelper.CallIDKey, event.CallID))
	defer span.End()

	reply := e.incoming(ctx, event)
	e.metrics.ObserveWebhook("incoming", string(reply.Outcome), time.Since(started))

	if reply.Outcome == OutcomeApology {
		otelhelper.MarkDegraded(span, string(OutcomeApology))
	}

	return reply
}

func (e *Engine) incoming(ctx context.Context, event protocol.Event) Reply {
	logger := e.logger.With("call_id", event.CallID, "to", event.To)

	if event.CallID == "" {
		logger.WarnContext(ctx, "rejecting webhook", "error", ErrMissingCallID)

		return e.apology(nil, event.CallID)
	}

	unlock, err := e.locks.Lock(ctx, event.CallID)
	if err != nil {
		return e.apology(nil, event.CallID)
	}
	defer unlock()

	existing, err := e.executions.GetExecution(ctx, event.CallID)
	if err == nil {
		return e.replay(existing)
	}

	if !errors.Is(err, persistence.ErrExecutionNotFound) {
		logger.ErrorContext(ctx, "failed to load execution", "error", err)

		return e.apology(nil, event.CallID)
	}

	tenantID, err := e.tenants.Resolve(ctx, event.To)
	if err != nil {
		logger.ErrorContext(ctx, "failed to resolve tenant", "error", err)

		return e.apology(nil, event.CallID)
	}

	workflow, err := e.workflows.ActiveByTenant(ctx, tenantID)
	if err != nil {
		logger.ErrorContext(ctx, "no active workflow for tenant", "tenant_id", tenantID, "error", err)

		return e.apology(nil, event.CallID)
	}

	start := workflow.StartNode()
	if start == nil {
		logger.ErrorContext(ctx, "workflow has no nodes", "workflow_id", workflow.ID)

		return e.apology(workflow, event.CallID)
	}

	exec, err := e.executions.CreateExecution(ctx, execution.CreateParams{
		CallID:     event.CallID,
		WorkflowID: workflow.ID,
		TenantID:   tenantID,
		Caller:     event.From,
		Callee:     event.To,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrDuplicateCall) {
			if stored, getErr := e.executions.GetExecution(ctx, event.CallID); getErr == nil {
				return e.replay(stored)
			}
		}

		logger.ErrorContext(ctx, "failed to create execution", "error", err)

		return e.apology(workflow, event.CallID)
	}

	e.metrics.CallStarted()
	eventbus.PublishBestEffort(ctx, e.logger, e.publisher, exec.CallID, events.NewCallStarted(exec))

	return e.run(ctx, workflow, exec, start, protocol.PhaseEnter, event, fingerprint("incoming", start.ID, event))
}

// HandleContinue resumes the node that asked the platform to call back.
func (e *Engine) HandleContinue(ctx context.Context, workflowID, nodeID string, event protocol.Event) Reply {
	return e.callback(ctx, "continue", protocol.PhaseContinue, workflowID, nodeID, event)
}

// HandleEnter runs a node from the start, following a Redirect.
func (e *Engine) HandleEnter(ctx context.Context, workflowID, nodeID string, event protocol.Event) Reply {
	return e.callback(ctx, "enter", protocol.PhaseEnter, workflowID, nodeID, event)
}

func (e *Engine) callback(ctx context.Context, kind string, phase protocol.Phase, workflowID, nodeID string, event protocol.Event) Reply {
	started := time.Now()

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "webhook."+kind,
		attribute.String(otelhelper.CallIDKey, event.CallID),
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.NodeIDKey, nodeID))
	defer span.End()

	reply := e.resume(ctx, phase, workflowID, nodeID, event)
	e.metrics.ObserveWebhook(kind, string(reply.Outcome), time.Since(started))

	if reply.Outcome == OutcomeApology {
		otelhelper.MarkDegraded(span, string(OutcomeApology))
	}

	return reply
}

func (e *Engine) resume(ctx context.Context, phase protocol.Phase, workflowID, nodeID string, event protocol.Event) Reply {
	logger := e.logger.With("call_id", event.CallID, "workflow_id", workflowID, "node_id", nodeID)

	if event.CallID == "" {
		logger.WarnContext(ctx, "rejecting webhook", "error", ErrMissingCallID)

		return e.apology(nil, event.CallID)
	}

	unlock, err := e.locks.Lock(ctx, event.CallID)
	if err != nil {
		return e.apology(nil, event.CallID)
	}
	defer unlock()

	exec, err := e.executions.GetExecution(ctx, event.CallID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to load execution", "error", err)

		return e.apology(nil, event.CallID)
	}

	delivery := fingerprint(phase, nodeID, event)

	if exec.LastResponse != "" && exec.LastFingerprint == delivery {
		logger.InfoContext(ctx, "duplicate delivery, replaying response")

		return Reply{Document: exec.LastResponse, Outcome: OutcomeDuplicate, CallID: exec.CallID}
	}

	if exec.Status.IsTerminal() {
		return e.render(callcontrol.NewResponse(callcontrol.Hangup{}), exec.CallID, OutcomeEnded)
	}

	if exec.WorkflowID != workflowID {
		logger.WarnContext(ctx, "callback does not match the call", "error", ErrWorkflowChanged)

		return e.replay(exec)
	}

	if nodeID != exec.CurrentNodeID {
		logger.WarnContext(ctx, "stale callback", "current_node_id", exec.CurrentNodeID)

		return e.replay(exec)
	}

	workflow, err := e.workflows.GetByID(ctx, workflowID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to load workflow", "error", err)

		return e.abort(ctx, nil, exec, "workflow_not_found", err, delivery)
	}

	node, ok := workflow.NodeByID(nodeID)
	if !ok {
		err := persistence.NewNodeError("Resume", workflowID, nodeID, persistence.ErrNodeNotFound)
		logger.ErrorContext(ctx, "node not found", "error", err)

		return e.abort(ctx, workflow, exec, "node_not_found", err, delivery)
	}

	return e.run(ctx, workflow, exec, node, phase, event, delivery)
}

// HandleStatus ends the execution when the platform reports a final call status.
func (e *Engine) HandleStatus(ctx context.Context, event protocol.Event) error {
	started := time.Now()

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "webhook.status",
		attribute.String(otelhelper.CallIDKey, event.CallID))
	defer span.End()

	outcome, err := e.status(ctx, event)
	if err != nil {
		otelhelper.SetError(span, err)
	}

	e.metrics.ObserveWebhook("status", string(outcome), time.Since(started))

	return err
}

func (e *Engine) status(ctx context.Context, event protocol.Event) (Outcome, error) {
	status, ok := MapCallStatus(event.CallStatus)
	if !ok {
		return OutcomeIgnored, nil
	}

	if event.CallID == "" {
		return OutcomeIgnored, ErrMissingCallID
	}

	unlock, err := e.locks.Lock(ctx, event.CallID)
	if err != nil {
		return OutcomeIgnored, err
	}
	defer unlock()

	exec, err := e.executions.GetExecution(ctx, event.CallID)
	if errors.Is(err, persistence.ErrExecutionNotFound) {
		e.logger.InfoContext(ctx, "status for unknown call", "call_id", event.CallID, "call_status", event.CallStatus)

		return OutcomeIgnored, nil
	}

	if err != nil {
		return OutcomeIgnored, err
	}

	if exec.Status.IsTerminal() {
		return OutcomeIgnored, nil
	}

	exec, err = e.executions.EndExecution(ctx, event.CallID, status, "call_"+event.CallStatus, nil)
	if err != nil {
		return OutcomeIgnored, err
	}

	e.metrics.CallEnded(string(exec.Status))
	eventbus.PublishBestEffort(ctx, e.logger, e.publisher, exec.CallID, events.NewCallEnded(exec))

	return OutcomeEnded, nil
}

// MapCallStatus maps a platform call status to a terminal execution status.
// In-flight statuses such as ringing report false.
func MapCallStatus(callStatus string) (models.ExecutionStatus, bool) {
	switch callStatus {
	case "completed":
		return models.ExecutionStatusCompleted, true
	case "canceled":
		return models.ExecutionStatusCancelled, true
	case "busy", "no-answer", "failed":
		return models.ExecutionStatusFailed, true
	default:
		return "", false
	}
}

// replay answers with the stored response of an execution, or a hangup once the call is over.
func (e *Engine) replay(exec *models.Execution) Reply {
	if exec.LastResponse != "" {
		return Reply{Document: exec.LastResponse, Outcome: OutcomeDuplicate, CallID: exec.CallID}
	}

	if exec.Status.IsTerminal() {
		return e.render(callcontrol.NewResponse(callcontrol.Hangup{}), exec.CallID, OutcomeEnded)
	}

	return e.apology(nil, exec.CallID)
}

func (e *Engine) apology(workflow *models.Workflow, callID string) Reply {
	return e.render(callcontrol.Apology(workflow.ApologyMessage()), callID, OutcomeApology)
}

func (e *Engine) render(response *callcontrol.Response, callID string, outcome Outcome) Reply {
	document, err := response.Render()
	if err != nil {
		e.logger.Error("failed to render response", "call_id", callID, "error", err)

		document, _ = callcontrol.Apology(models.DefaultApologyMessage).Render()
		outcome = OutcomeApology
	}

	return Reply{Document: document, Outcome: outcome, CallID: callID}
}
