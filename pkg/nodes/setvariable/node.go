package setvariable

import (
	"context"
	"errors"

	"github.com/dukex/ivrflow/pkg/execution"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/dukex/ivrflow/pkg/template"
)

type SetVariableNode struct{}

func NewSetVariableNode(_ protocol.Dependencies) *SetVariableNode {
	return &SetVariableNode{}
}

func (n *SetVariableNode) Enter(_ context.Context, req *protocol.Request) (*protocol.Result, error) {
	data, ok := req.Node.Data.(*models.SetVariableData)
	if !ok {
		return nil, errors.New("set variable node without set variable data")
	}

	value, err := template.RenderValue(data.Value, req.Execution.Variables)
	if err != nil {
		return &protocol.Result{Handles: []string{protocol.HandleError, protocol.HandleDefault}, Err: err}, nil
	}

	execution.SetVariable(req.Execution, data.Variable, value)

	return &protocol.Result{
		Handles: []string{protocol.HandleDefault},
		Input:   template.Stringify(value),
		Success: true,
	}, nil
}

func (n *SetVariableNode) Continue(ctx context.Context, req *protocol.Request) (*protocol.Result, error) {
	return n.Enter(ctx, req)
}
