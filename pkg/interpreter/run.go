package interpreter

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/ivrflow/pkg/callcontrol"
	"github.com/dukex/ivrflow/pkg/eventbus"
	"github.com/dukex/ivrflow/pkg/events"
	"github.com/dukex/ivrflow/pkg/execution"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/persistence"
	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/dukex/ivrflow/pkg/routing"
)

var (
	ErrNodeLimit     = errors.New("node execution limit reached")
	ErrCallTooLong   = errors.New("call duration limit reached")
	ErrUnknownTarget = errors.New("edge target does not exist")
)

// step is the state of one webhook walking the graph.
type step struct {
	workflow *models.Workflow
	exec     *models.Execution
	index    *routing.Index
	response *callcontrol.Response
	visited  int
}

// run executes node and the chain of non-waiting nodes after it, then commits the execution.
func (e *Engine) run(ctx context.Context, workflow *models.Workflow, exec *models.Execution, node *models.Node, phase protocol.Phase, event protocol.Event, delivery string) Reply {
	s := &step{
		workflow: workflow,
		exec:     exec,
		index:    routing.NewIndex(workflow.Edges),
		response: callcontrol.NewResponse(),
		visited:  len(exec.VisitedNodes),
	}

	e.walk(ctx, s, node, phase, event)

	return e.commit(ctx, s, delivery)
}

func (e *Engine) walk(ctx context.Context, s *step, node *models.Node, phase protocol.Phase, event protocol.Event) {
	logger := e.logger.With("call_id", s.exec.CallID, "workflow_id", s.workflow.ID)

	for steps := 0; ; steps++ {
		if err := e.checkLimits(s.exec); err != nil {
			logger.WarnContext(ctx, "ending call at safety limit", "node_id", node.ID, "error", err)
			e.fail(s, models.ExecutionStatusTimeout, "safety_limit", err)

			return
		}

		if steps >= e.config.MaxStepsPerResponse {
			s.exec.CurrentNodeID = node.ID
			s.response.Redirect(sequenced{urls: e.urls, seq: s.exec.NodeExecutionCount}.Enter(s.workflow.ID, node.ID))

			return
		}

		result, err := e.execute(ctx, s, node, phase, event)
		if err != nil {
			logger.ErrorContext(ctx, "node failed", "node_id", node.ID, "node_type", node.Type, "error", err)
			e.fail(s, models.ExecutionStatusFailed, "node_error", err)

			return
		}

		s.response.Append(result.Verbs...)

		if result.Hangup {
			status := result.Status
			if status == "" {
				status = models.ExecutionStatusCompleted
			}

			if !s.response.Ended() {
				s.response.Hangup()
			}

			e.end(s, status, result.EndReason, result.Err)

			return
		}

		if result.Wait {
			return
		}

		next, handle, ok := e.next(s, node, result)
		if !ok {
			e.deadEnd(ctx, s, node, result)

			return
		}

		target, found := s.workflow.NodeByID(next)
		if !found {
			err := fmt.Errorf("%w: %s", ErrUnknownTarget, next)
			logger.ErrorContext(ctx, "cannot follow edge", "node_id", node.ID, "handle", handle, "error", err)
			e.fail(s, models.ExecutionStatusFailed, "node_not_found", err)

			return
		}

		logger.DebugContext(ctx, "following edge", "node_id", node.ID, "handle", handle, "target", next)

		node = target
		phase = protocol.PhaseEnter
		event = protocol.Event{CallID: event.CallID, From: event.From, To: event.To}
	}
}

func (e *Engine) execute(ctx context.Context, s *step, node *models.Node, phase protocol.Phase, event protocol.Event) (*protocol.Result, error) {
	handler, err := e.registry.Handler(node.Type)
	if err != nil {
		return nil, err
	}

	req := &protocol.Request{
		Workflow:  s.workflow,
		Node:      node,
		Execution: s.exec,
		Event:     event,
		Phase:     phase,
		URLs:      sequenced{urls: e.urls, seq: s.exec.NodeExecutionCount + 1},
		Now:       e.executions.Now(),
	}

	var result *protocol.Result
	if phase == protocol.PhaseContinue {
		result, err = handler.Continue(ctx, req)
	} else {
		result, err = handler.Enter(ctx, req)
	}

	if err == nil && result == nil {
		err = fmt.Errorf("%s handler returned no result", node.Type)
	}

	visit := execution.Visit{NodeID: node.ID, NodeType: node.Type, Err: err}
	if result != nil {
		visit.Input = result.Input
		visit.Success = result.Success && err == nil

		if visit.Err == nil {
			visit.Err = result.Err
		}
	}

	execution.ApplyVisit(s.exec, visit, e.executions.Now())
	e.metrics.NodeExecuted(string(node.Type), visit.Success)

	return result, err
}

func (e *Engine) next(s *step, node *models.Node, result *protocol.Result) (string, string, bool) {
	if result.NextNodeID != "" {
		return result.NextNodeID, "", true
	}

	return s.index.ResolveFirst(node.ID, result.Handles...)
}

// deadEnd ends the call when no outgoing edge matches. Nodes that already finished the
// conversation hang up quietly, everyone else hears the apology.
func (e *Engine) deadEnd(ctx context.Context, s *step, node *models.Node, result *protocol.Result) {
	reason := result.EndReason
	if reason == "" {
		reason = "no_route"
	}

	status := models.ExecutionStatusCompleted
	if result.Err != nil {
		status = models.ExecutionStatusFailed
	}

	e.logger.InfoContext(ctx, "no outgoing edge, ending call",
		"call_id", s.exec.CallID,
		"node_id", node.ID,
		"handles", result.Handles,
		"reason", reason)

	if result.QuietEnd {
		s.response.Hangup()
	} else {
		s.response.Append(callcontrol.Apology(s.workflow.ApologyMessage()).Verbs()...)
	}

	e.end(s, status, reason, result.Err)
}

// fail replaces whatever was queued with the apology.
func (e *Engine) fail(s *step, status models.ExecutionStatus, reason string, cause error) {
	s.response = callcontrol.Apology(s.workflow.ApologyMessage())
	e.end(s, status, reason, cause)
}

func (e *Engine) end(s *step, status models.ExecutionStatus, reason string, cause error) {
	if _, err := execution.ApplyEnd(s.exec, status, reason, cause, e.executions.Now()); err != nil {
		e.logger.Error("failed to end execution", "call_id", s.exec.CallID, "error", err)
	}
}

func (e *Engine) checkLimits(exec *models.Execution) error {
	if exec.NodeExecutionCount >= e.config.MaxNodeExecutions {
		return ErrNodeLimit
	}

	if exec.Duration(e.executions.Now()) > e.config.MaxCallDuration {
		return ErrCallTooLong
	}

	return nil
}

// abort ends an execution that cannot continue and answers with the apology.
func (e *Engine) abort(ctx context.Context, workflow *models.Workflow, exec *models.Execution, reason string, cause error, delivery string) Reply {
	s := &step{
		workflow: workflow,
		exec:     exec,
		response: callcontrol.NewResponse(),
		visited:  len(exec.VisitedNodes),
	}

	e.fail(s, models.ExecutionStatusFailed, reason, cause)

	return e.commit(ctx, s, delivery)
}

// commit stores the response with the execution so a retried delivery gets the same answer.
func (e *Engine) commit(ctx context.Context, s *step, delivery string) Reply {
	outcome := OutcomeOK
	if s.exec.Status.IsTerminal() {
		outcome = OutcomeEnded
	}

	reply := e.render(s.response, s.exec.CallID, outcome)

	s.exec.LastFingerprint = delivery
	s.exec.LastResponse = reply.Document

	if err := e.executions.Commit(ctx, s.exec); err != nil {
		if errors.Is(err, persistence.ErrVersionConflict) {
			if stored, getErr := e.executions.GetExecution(ctx, s.exec.CallID); getErr == nil && stored.LastFingerprint == delivery {
				return Reply{Document: stored.LastResponse, Outcome: OutcomeDuplicate, CallID: stored.CallID}
			}
		}

		e.logger.ErrorContext(ctx, "failed to save execution", "call_id", s.exec.CallID, "error", err)

		return e.apology(s.workflow, s.exec.CallID)
	}

	for _, visit := range s.exec.VisitedNodes[s.visited:] {
		eventbus.PublishBestEffort(ctx, e.logger, e.publisher, s.exec.CallID, events.NewCallNodeVisited(s.exec, visit))
	}

	if s.exec.Status.IsTerminal() {
		e.metrics.CallEnded(string(s.exec.Status))
		eventbus.PublishBestEffort(ctx, e.logger, e.publisher, s.exec.CallID, events.NewCallEnded(s.exec))
	}

	return reply
}
