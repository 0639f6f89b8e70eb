package input

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/dukex/ivrflow/pkg/callcontrol"
	"github.com/dukex/ivrflow/pkg/execution"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/nodes/speech"
	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/dukex/ivrflow/pkg/routing"
)

const (
	defaultTimeoutSeconds = 5
	defaultMaxAttempts    = 3
)

// AttemptsCounter is the execution counter holding failed attempts of a node.
func AttemptsCounter(nodeID string) string {
	return "attempts:" + nodeID
}

type InputNode struct {
	speaker *speech.Speaker
}

func NewInputNode(deps protocol.Dependencies) *InputNode {
	return &InputNode{speaker: speech.New(deps)}
}

func dataOf(req *protocol.Request) (*models.InputData, error) {
	data, ok := req.Node.Data.(*models.InputData)
	if !ok {
		return nil, errors.New("input node without input data")
	}

	return data, nil
}

func (n *InputNode) Enter(ctx context.Context, req *protocol.Request) (*protocol.Result, error) {
	data, err := dataOf(req)
	if err != nil {
		return nil, err
	}

	delete(req.Execution.Counters, AttemptsCounter(req.Node.ID))

	prompts := n.speaker.Prompt(ctx, req, data.Prompt, voiceOf(data))

	return &protocol.Result{
		Verbs:   n.gather(req, data, prompts),
		Wait:    true,
		Success: true,
	}, nil
}

func (n *InputNode) Continue(ctx context.Context, req *protocol.Request) (*protocol.Result, error) {
	data, err := dataOf(req)
	if err != nil {
		return nil, err
	}

	value := strings.TrimSpace(req.Event.Digits)
	if value == "" {
		value = strings.TrimSpace(req.Event.SpeechResult)
	}

	index := routing.NewIndex(req.Workflow.Edges)
	nodeID := req.Node.ID

	if value == "" {
		if _, ok := index.Resolve(nodeID, protocol.HandleTimeout); ok {
			return &protocol.Result{Handles: []string{protocol.HandleTimeout}}, nil
		}

		return n.retry(ctx, req, data, value, true)
	}

	if data.VariableName != "" {
		execution.SetVariable(req.Execution, data.VariableName, value)
	}

	if handle, ok := match(index.Outgoing(nodeID), req.Event.Digits != "", value); ok {
		return &protocol.Result{Handles: []string{handle}, Input: value, Success: true}, nil
	}

	if _, ok := index.Resolve(nodeID, protocol.HandleNoMatch); ok {
		return &protocol.Result{Handles: []string{protocol.HandleNoMatch}, Input: value}, nil
	}

	return n.retry(ctx, req, data, value, false)
}

// retry replays the prompt while attempts remain, then leaves through max_attempts.
func (n *InputNode) retry(ctx context.Context, req *protocol.Request, data *models.InputData, value string, timedOut bool) (*protocol.Result, error) {
	attempts := execution.IncrementCounter(req.Execution, AttemptsCounter(req.Node.ID))

	if attempts >= maxAttempts(data, req.Workflow) {
		return &protocol.Result{
			Handles:   []string{protocol.HandleMaxAttempts},
			Input:     value,
			EndReason: "max_attempts",
			Err:       errors.New("maximum input attempts reached"),
		}, nil
	}

	message := invalidMessage(data, req.Workflow)
	if timedOut && data.TimeoutMessage != "" {
		message = data.TimeoutMessage
	}

	voice := voiceOf(data)
	prompts := n.speaker.Text(ctx, req, message, voice)
	prompts = append(prompts, n.speaker.Prompt(ctx, req, data.Prompt, voice)...)

	return &protocol.Result{
		Verbs: n.gather(req, data, prompts),
		Wait:  true,
		Input: value,
	}, nil
}

func (n *InputNode) gather(req *protocol.Request, data *models.InputData, prompts []callcontrol.Verb) []callcontrol.Verb {
	inputType := data.InputType
	if inputType == "" {
		inputType = models.InputTypeDTMF
	}

	timeout := data.TimeoutSeconds
	if timeout == 0 {
		timeout = req.Workflow.Config.DefaultTimeoutSeconds
	}

	if timeout == 0 {
		timeout = defaultTimeoutSeconds
	}

	language := data.Language
	if language == "" {
		language = req.Workflow.Config.DefaultLanguage
	}

	continueURL := req.ContinueURL()

	return []callcontrol.Verb{
		callcontrol.Gather{
			Input:               inputType,
			Action:              continueURL,
			Method:              "POST",
			Timeout:             timeout,
			NumDigits:           data.NumDigits,
			FinishOnKey:         data.FinishOnKey,
			Hints:               data.SpeechHints,
			Language:            language,
			ActionOnEmptyResult: true,
			Prompts:             prompts,
		},
		callcontrol.Redirect{URL: continueURL, Method: "POST"},
	}
}

// match finds the outgoing handle for the caller's input. Digits must match exactly; speech is
// compared case-insensitively, first as a whole and then as a word inside the utterance.
func match(edges []*models.Edge, digits bool, value string) (string, bool) {
	if digits {
		for _, edge := range edges {
			if edge.Handle() == value {
				return value, true
			}
		}

		return "", false
	}

	spoken := normalize(value)

	for _, edge := range edges {
		if handle := edge.Handle(); handle != "" && normalize(handle) == spoken {
			return handle, true
		}
	}

	words := strings.Fields(spoken)

	for _, edge := range edges {
		handle := normalize(edge.Handle())
		if handle == "" || isReserved(handle) {
			continue
		}

		for _, word := range words {
			if normalize(word) == handle {
				return edge.Handle(), true
			}
		}
	}

	return "", false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}))
}

func isReserved(handle string) bool {
	switch handle {
	case protocol.HandleTimeout, protocol.HandleNoMatch, protocol.HandleMaxAttempts:
		return true
	default:
		return false
	}
}

func maxAttempts(data *models.InputData, workflow *models.Workflow) int {
	if data.MaxAttempts > 0 {
		return data.MaxAttempts
	}

	if workflow.Config.DefaultMaxAttempts > 0 {
		return workflow.Config.DefaultMaxAttempts
	}

	return defaultMaxAttempts
}

func invalidMessage(data *models.InputData, workflow *models.Workflow) string {
	if data.InvalidMessage != "" {
		return data.InvalidMessage
	}

	if workflow.Config.InvalidInputMessage != "" {
		return workflow.Config.InvalidInputMessage
	}

	return models.DefaultInvalidInputMessage
}

func voiceOf(data *models.InputData) speech.Voice {
	return speech.Voice{Voice: data.Voice, Language: data.Language}
}
