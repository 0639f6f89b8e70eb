package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/ivrflow/pkg/callcontrol"
	"github.com/dukex/ivrflow/pkg/execution"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/nodes/speech"
	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/dukex/ivrflow/pkg/template"
)

const defaultDialTimeout = 30

// ErrNoDestination is reported when a transfer node has nothing to dial.
var ErrNoDestination = errors.New("transfer destination is not configured")

type TransferNode struct {
	speaker *speech.Speaker
}

func NewTransferNode(deps protocol.Dependencies) *TransferNode {
	return &TransferNode{speaker: speech.New(deps)}
}

func dataOf(req *protocol.Request) (*models.TransferData, error) {
	data, ok := req.Node.Data.(*models.TransferData)
	if !ok {
		return nil, errors.New("transfer node without transfer data")
	}

	return data, nil
}

func (n *TransferNode) Enter(ctx context.Context, req *protocol.Request) (*protocol.Result, error) {
	data, err := dataOf(req)
	if err != nil {
		return nil, err
	}

	destination := strings.TrimSpace(template.Render(data.Destination, req.Execution.Variables))
	if destination == "" {
		return &protocol.Result{
			Verbs:   n.speaker.Text(ctx, req, failureMessage(req, data), speech.Voice{}),
			Handles: []string{protocol.HandleFailed},
			Err:     ErrNoDestination,
		}, nil
	}

	timeout := data.Timeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}

	dial := callcontrol.Dial{
		Action:   req.ContinueURL(),
		Method:   "POST",
		Timeout:  timeout,
		CallerID: data.CallerID,
		Number:   callcontrol.Number{Value: destination},
	}

	if data.Record {
		dial.Record = "record-from-answer"
	}

	verbs := n.speaker.Prompt(ctx, req, data.Message, speech.Voice{})
	verbs = append(verbs, dial)

	return &protocol.Result{Verbs: verbs, Wait: true, Input: destination, Success: true}, nil
}

// Continue maps the dial status reported by the platform to an outcome handle.
func (n *TransferNode) Continue(ctx context.Context, req *protocol.Request) (*protocol.Result, error) {
	data, err := dataOf(req)
	if err != nil {
		return nil, err
	}

	status := strings.ToLower(req.Event.DialCallStatus)
	execution.SetVariable(req.Execution, "transfer_status", status)

	switch status {
	case "completed", "answered":
		return &protocol.Result{
			Handles:   []string{protocol.HandleAnswered},
			QuietEnd:  true,
			EndReason: "transferred",
			Input:     status,
			Success:   true,
		}, nil
	case "busy":
		return n.failed(ctx, req, data, status, protocol.HandleBusy), nil
	case "no-answer":
		return n.failed(ctx, req, data, status, protocol.HandleNoAnswer), nil
	default:
		return n.failed(ctx, req, data, status), nil
	}
}

func (n *TransferNode) failed(ctx context.Context, req *protocol.Request, data *models.TransferData, status string, handles ...string) *protocol.Result {
	return &protocol.Result{
		Verbs:     n.speaker.Text(ctx, req, failureMessage(req, data), speech.Voice{}),
		Handles:   append(handles, protocol.HandleFailed),
		EndReason: "transfer_" + strings.ReplaceAll(status, "-", "_"),
		Input:     status,
		Err:       fmt.Errorf("transfer ended with status %q", status),
	}
}

func failureMessage(req *protocol.Request, data *models.TransferData) string {
	if data.FailureMessage != "" {
		return data.FailureMessage
	}

	return req.Workflow.ApologyMessage()
}
