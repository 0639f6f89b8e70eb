package models_test

import (
	"encoding/json"
	"testing"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_UnmarshalJSON_AudioFromData(t *testing.T) {
	t.Parallel()

	raw := `{
		"id": "greet",
		"type": "greeting",
		"data": {"text": "Welcome", "audioUrl": "https://cdn.example.com/a.mp3"}
	}`

	var node models.Node
	require.NoError(t, json.Unmarshal([]byte(raw), &node))

	assert.Equal(t, "https://cdn.example.com/a.mp3", node.AudioURL)
	assert.Equal(t, models.AudioStatusReady, node.AudioStatus)
	assert.True(t, node.HasAudio())

	data, ok := node.Data.(*models.GreetingData)
	require.True(t, ok)
	assert.Equal(t, "Welcome", data.Text)
}

func TestNode_MarshalJSON_DuplicatesAudio(t *testing.T) {
	t.Parallel()

	node := models.NewNode("menu", models.NodeTypeInput, &models.InputData{Prompt: "Press 1", NumDigits: 1})
	node.SetAudio(models.NodeAudio{URL: "https://cdn.example.com/menu.mp3", AssetID: "asset-1", Status: models.AudioStatusReady})

	raw, err := json.Marshal(node)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))

	assert.Equal(t, "https://cdn.example.com/menu.mp3", wire["audioUrl"])
	assert.Equal(t, "asset-1", wire["audioAssetId"])

	data, ok := wire["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/menu.mp3", data["audioUrl"])
	assert.Equal(t, "Press 1", data["prompt"])
}

func TestNode_UnmarshalJSON_UnknownType(t *testing.T) {
	t.Parallel()

	var node models.Node

	err := json.Unmarshal([]byte(`{"id":"x","type":"teleport","data":{}}`), &node)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUnknownNodeType)
}

func TestPromptText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		node     *models.Node
		expected string
	}{
		{"greeting text", models.NewNode("a", models.NodeTypeGreeting, &models.GreetingData{Text: "Hello"}), "Hello"},
		{"input prompt first", models.NewNode("b", models.NodeTypeInput, &models.InputData{Prompt: "Press 1", InvalidMessage: "Nope"}), "Press 1"},
		{"input falls back to invalid message", models.NewNode("c", models.NodeTypeInput, &models.InputData{InvalidMessage: "Nope"}), "Nope"},
		{"ai welcome", models.NewNode("d", models.NodeTypeAIAssistant, &models.AIAssistantData{WelcomeMessage: "Hi"}), "Hi"},
		{"repeat message", models.NewNode("e", models.NodeTypeRepeat, &models.RepeatData{RepeatMessage: "Again"}), "Again"},
		{"conditional says nothing", models.NewNode("f", models.NodeTypeConditional, &models.ConditionalData{}), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, models.PromptText(tt.node))
		})
	}
}

func TestWorkflow_StartNode(t *testing.T) {
	t.Parallel()

	t.Run("greeting without incoming edges", func(t *testing.T) {
		t.Parallel()

		workflow := &models.Workflow{
			Nodes: []*models.Node{
				models.NewNode("menu", models.NodeTypeInput, &models.InputData{}),
				models.NewNode("loop", models.NodeTypeGreeting, &models.GreetingData{Text: "again"}),
				models.NewNode("welcome", models.NodeTypeGreeting, &models.GreetingData{Text: "hi"}),
			},
			Edges: []*models.Edge{
				{ID: "e1", Source: "welcome", Target: "menu"},
				{ID: "e2", Source: "menu", Target: "loop"},
			},
		}

		assert.Equal(t, "welcome", workflow.StartNode().ID)
	})

	t.Run("falls back to first node", func(t *testing.T) {
		t.Parallel()

		workflow := &models.Workflow{
			Nodes: []*models.Node{
				models.NewNode("menu", models.NodeTypeInput, &models.InputData{}),
				models.NewNode("bye", models.NodeTypeEnd, &models.EndData{}),
			},
		}

		assert.Equal(t, "menu", workflow.StartNode().ID)
	})

	t.Run("empty workflow", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, (&models.Workflow{}).StartNode())
	})
}

func TestExecution_PreviousNodeID(t *testing.T) {
	t.Parallel()

	execution := &models.Execution{VisitedNodes: []models.VisitedNode{
		{NodeID: "welcome"},
		{NodeID: "menu"},
		{NodeID: "repeat"},
		{NodeID: "repeat"},
	}}

	assert.Equal(t, "menu", execution.PreviousNodeID("repeat"))
	assert.Empty(t, (&models.Execution{}).PreviousNodeID("repeat"))
}
