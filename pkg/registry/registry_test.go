package registry_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/dukex/ivrflow/pkg/log"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/dukex/ivrflow/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFactory struct {
	created atomic.Int32
	fail    bool
}

type noopHandler struct{}

func (noopHandler) Enter(context.Context, *protocol.Request) (*protocol.Result, error) {
	return protocol.Route(protocol.HandleDefault), nil
}

func (noopHandler) Continue(context.Context, *protocol.Request) (*protocol.Result, error) {
	return protocol.Route(protocol.HandleDefault), nil
}

func (f *countingFactory) Create(protocol.Dependencies) (protocol.NodeHandler, error) {
	f.created.Add(1)

	if f.fail {
		return nil, errors.New("boom")
	}

	return noopHandler{}, nil
}

func (f *countingFactory) ID() models.NodeType    { return "custom" }
func (f *countingFactory) Name() string           { return "Custom" }
func (f *countingFactory) Description() string    { return "" }
func (f *countingFactory) Schema() map[string]any { return map[string]any{"type": "object"} }

func TestRegistry_Handler(t *testing.T) {
	t.Parallel()

	r := registry.NewRegistry(log.Discard(), protocol.Dependencies{})

	_, err := r.Handler("custom")
	require.ErrorIs(t, err, registry.ErrNodeTypeNotRegistered)

	factory := &countingFactory{}
	r.RegisterNode(factory)

	first, err := r.Handler("custom")
	require.NoError(t, err)

	second, err := r.Handler("custom")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), factory.created.Load())

	r.RegisterNode(&countingFactory{fail: true})

	_, err = r.Handler("custom")
	require.Error(t, err)
}

func TestRegistry_DefaultNodes(t *testing.T) {
	t.Parallel()

	r := registry.NewRegistry(log.Discard(), protocol.Dependencies{})
	r.RegisterDefaultNodes()

	factories := r.Factories()
	require.Len(t, factories, len(models.NodeTypes))

	for i, nodeType := range models.NodeTypes {
		assert.Equal(t, nodeType, factories[i].ID())
		assert.NotEmpty(t, factories[i].Name())

		handler, err := r.Handler(nodeType)
		require.NoError(t, err)
		assert.NotNil(t, handler)
	}
}

func TestRegistry_ValidateNodeData(t *testing.T) {
	t.Parallel()

	r := registry.NewRegistry(log.Discard(), protocol.Dependencies{})
	r.RegisterDefaultNodes()

	errs, err := r.ValidateNodeData(models.NodeTypeAPICall, &models.APICallData{URL: "https://api.example.com", Method: "GET"})
	require.NoError(t, err)
	assert.Empty(t, errs)

	errs, err = r.ValidateNodeData(models.NodeTypeAPICall, &models.APICallData{URL: "https://api.example.com", Method: "TRACE"})
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "method", errs[0].Field)

	_, err = r.ValidateNodeData("unknown", &models.EndData{})
	require.ErrorIs(t, err, registry.ErrNodeTypeNotRegistered)

	workflow := &models.Workflow{Nodes: []*models.Node{
		models.NewNode("ok", models.NodeTypeEnd, &models.EndData{Message: "Bye"}),
		models.NewNode("bad", models.NodeTypeAPICall, &models.APICallData{URL: "https://x", Method: "TRACE"}),
	}}

	problems, err := r.ValidateWorkflowSchemas(workflow)
	require.NoError(t, err)
	assert.NotContains(t, problems, "ok")
	assert.Len(t, problems["bad"], 1)
}
