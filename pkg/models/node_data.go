package models

import "fmt"

// NodeData is the type specific payload of a node.
type NodeData interface {
	Audio() *AudioFields
}

// AudioFields is embedded in every payload so the audio url survives inside data on the wire.
type AudioFields struct {
	AudioURL     string `json:"audioUrl,omitempty"`
	AudioAssetID string `json:"audioAssetId,omitempty"`
}

func (a *AudioFields) Audio() *AudioFields {
	return a
}

// GreetingData is used by both greeting and audio nodes.
type GreetingData struct {
	AudioFields

	Text     string `json:"text,omitempty"`
	Voice    string `json:"voice,omitempty"`
	Language string `json:"language,omitempty"`
	Loop     int    `json:"loop,omitempty"     validate:"omitempty,min=1,max=10"`
}

// Input types accepted by the gather verb.
const (
	InputTypeDTMF   = "dtmf"
	InputTypeSpeech = "speech"
	InputTypeBoth   = "dtmf speech"
)

type InputData struct {
	AudioFields

	Prompt         string `json:"prompt,omitempty"`
	InputType      string `json:"inputType,omitempty"      validate:"omitempty,oneof=dtmf speech 'dtmf speech'"`
	NumDigits      int    `json:"numDigits,omitempty"      validate:"omitempty,min=1,max=20"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty" validate:"omitempty,min=1,max=60"`
	MaxAttempts    int    `json:"maxAttempts,omitempty"    validate:"omitempty,min=1,max=10"`
	FinishOnKey    string `json:"finishOnKey,omitempty"    validate:"omitempty,oneof=# * 0 1 2 3 4 5 6 7 8 9"`
	InvalidMessage string `json:"invalidMessage,omitempty"`
	TimeoutMessage string `json:"timeoutMessage,omitempty"`
	VariableName   string `json:"variableName,omitempty"   validate:"omitempty,max=64"`
	SpeechHints    string `json:"speechHints,omitempty"`
	Voice          string `json:"voice,omitempty"`
	Language       string `json:"language,omitempty"`
}

// ConditionOperator names a comparison evaluated by conditional nodes.
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorNotEquals   ConditionOperator = "not_equals"
	OperatorContains    ConditionOperator = "contains"
	OperatorGreaterThan ConditionOperator = "greater_than"
	OperatorLessThan    ConditionOperator = "less_than"
	OperatorExists      ConditionOperator = "exists"
	OperatorRegex       ConditionOperator = "regex"
	OperatorExpression  ConditionOperator = "expression"
)

type ConditionalData struct {
	AudioFields

	Variable   string            `json:"variable,omitempty"   validate:"required_unless=Operator expression"`
	Operator   ConditionOperator `json:"operator"             validate:"required,oneof=equals not_equals contains greater_than less_than exists regex expression"`
	Value      any               `json:"value,omitempty"`
	Expression string            `json:"expression,omitempty" validate:"required_if=Operator expression"`
}

type VoicemailData struct {
	AudioFields

	Prompt      string `json:"prompt,omitempty"`
	MaxLength   int    `json:"maxLength,omitempty"   validate:"omitempty,min=1,max=600"`
	PlayBeep    *bool  `json:"playBeep,omitempty"`
	Transcribe  bool   `json:"transcribe,omitempty"`
	FinishOnKey string `json:"finishOnKey,omitempty" validate:"omitempty,oneof=# * 0 1 2 3 4 5 6 7 8 9"`
	Voice       string `json:"voice,omitempty"`
	Language    string `json:"language,omitempty"`
}

type TransferData struct {
	AudioFields

	Destination    string `json:"destination,omitempty"    validate:"omitempty,phone"`
	Timeout        int    `json:"timeout,omitempty"        validate:"omitempty,min=5,max=120"`
	CallerID       string `json:"callerId,omitempty"       validate:"omitempty,phone"`
	Record         bool   `json:"record,omitempty"`
	Message        string `json:"message,omitempty"`
	FailureMessage string `json:"failureMessage,omitempty"`
}

type RepeatData struct {
	AudioFields

	MaxRepeats     int    `json:"maxRepeats,omitempty"     validate:"omitempty,min=1,max=10"`
	RepeatMessage  string `json:"repeatMessage,omitempty"`
	ReplayLast     bool   `json:"replayLast,omitempty"`
	FallbackNodeID string `json:"fallbackNodeId,omitempty"`
}

type EndData struct {
	AudioFields

	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type AIAssistantData struct {
	AudioFields

	WelcomeMessage string            `json:"welcomeMessage,omitempty"`
	StreamURL      string            `json:"streamUrl,omitempty"      validate:"omitempty,url"`
	AgentID        string            `json:"agentId,omitempty"`
	Parameters     map[string]string `json:"parameters,omitempty"`
}

type QueueData struct {
	AudioFields

	QueueName string `json:"queueName"         validate:"required,max=64"`
	WaitURL   string `json:"waitUrl,omitempty" validate:"omitempty,url"`
	Message   string `json:"message,omitempty"`
}

type SMSData struct {
	AudioFields

	To   string `json:"to,omitempty"   validate:"omitempty,phone"`
	From string `json:"from,omitempty" validate:"omitempty,phone"`
	Body string `json:"body"           validate:"required,max=1600"`
}

type SetVariableData struct {
	AudioFields

	Variable string `json:"variable" validate:"required,max=64"`
	Value    any    `json:"value"`
}

type APICallData struct {
	AudioFields

	URL              string            `json:"url"                        validate:"required,url"`
	Method           string            `json:"method,omitempty"           validate:"omitempty,oneof=GET POST PUT PATCH DELETE"`
	Headers          map[string]string `json:"headers,omitempty"`
	Body             string            `json:"body,omitempty"`
	TimeoutSeconds   int               `json:"timeoutSeconds,omitempty"   validate:"omitempty,min=1,max=30"`
	ResponseVariable string            `json:"responseVariable,omitempty" validate:"omitempty,max=64"`
}

// NewNodeData returns an empty payload for the node type.
func NewNodeData(nodeType NodeType) (NodeData, error) {
	switch nodeType {
	case NodeTypeGreeting, NodeTypeAudio:
		return &GreetingData{}, nil
	case NodeTypeInput:
		return &InputData{}, nil
	case NodeTypeConditional:
		return &ConditionalData{}, nil
	case NodeTypeVoicemail:
		return &VoicemailData{}, nil
	case NodeTypeTransfer:
		return &TransferData{}, nil
	case NodeTypeRepeat:
		return &RepeatData{}, nil
	case NodeTypeEnd:
		return &EndData{}, nil
	case NodeTypeAIAssistant:
		return &AIAssistantData{}, nil
	case NodeTypeQueue:
		return &QueueData{}, nil
	case NodeTypeSMS:
		return &SMSData{}, nil
	case NodeTypeSetVariable:
		return &SetVariableData{}, nil
	case NodeTypeAPICall:
		return &APICallData{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, nodeType)
	}
}

// PromptText returns the text a node speaks, in field priority order. Empty when the node says nothing.
func PromptText(node *Node) string {
	if node == nil || node.Data == nil {
		return ""
	}

	var candidates []string

	switch data := node.Data.(type) {
	case *GreetingData:
		candidates = []string{data.Text}
	case *InputData:
		candidates = []string{data.Prompt, data.InvalidMessage}
	case *VoicemailData:
		candidates = []string{data.Prompt}
	case *TransferData:
		candidates = []string{data.Message}
	case *RepeatData:
		candidates = []string{data.RepeatMessage}
	case *EndData:
		candidates = []string{data.Message}
	case *AIAssistantData:
		candidates = []string{data.WelcomeMessage}
	case *QueueData:
		candidates = []string{data.Message}
	}

	for _, text := range candidates {
		if text != "" {
			return text
		}
	}

	return ""
}
