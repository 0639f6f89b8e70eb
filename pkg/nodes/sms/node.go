package sms

import (
	"context"
	"errors"

	"github.com/dukex/ivrflow/pkg/callcontrol"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/dukex/ivrflow/pkg/template"
)

var ErrNoRecipient = errors.New("sms recipient is unknown")

type SMSNode struct{}

func NewSMSNode(_ protocol.Dependencies) *SMSNode {
	return &SMSNode{}
}

func (n *SMSNode) Enter(_ context.Context, req *protocol.Request) (*protocol.Result, error) {
	data, ok := req.Node.Data.(*models.SMSData)
	if !ok {
		return nil, errors.New("sms node without sms data")
	}

	to := template.Render(data.To, req.Execution.Variables)
	if to == "" {
		to = req.Execution.Caller
	}

	if to == "" {
		return &protocol.Result{
			Handles: []string{protocol.HandleFailed, protocol.HandleDefault},
			Err:     ErrNoRecipient,
		}, nil
	}

	return &protocol.Result{
		Verbs: []callcontrol.Verb{callcontrol.Sms{
			To:   to,
			From: data.From,
			Body: template.Render(data.Body, req.Execution.Variables),
		}},
		Handles: []string{protocol.HandleDefault},
		Input:   to,
		Success: true,
	}, nil
}

func (n *SMSNode) Continue(ctx context.Context, req *protocol.Request) (*protocol.Result, error) {
	return protocol.Route(protocol.HandleDefault), nil
}
