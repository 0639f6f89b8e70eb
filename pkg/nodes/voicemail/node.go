package voicemail

import (
	"context"
	"errors"
	"strconv"

	"github.com/dukex/ivrflow/pkg/callcontrol"
	"github.com/dukex/ivrflow/pkg/execution"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/nodes/speech"
	"github.com/dukex/ivrflow/pkg/protocol"
)

const (
	defaultMaxLength   = 120
	defaultFinishOnKey = "#"
)

// Variables written once a recording arrives.
const (
	VariableURL           = "voicemail_url"
	VariableDuration      = "voicemail_duration"
	VariableTranscription = "voicemail_transcription"
)

var ErrNoRecording = errors.New("no recording received")

type VoicemailNode struct {
	speaker *speech.Speaker
}

func NewVoicemailNode(deps protocol.Dependencies) *VoicemailNode {
	return &VoicemailNode{speaker: speech.New(deps)}
}

func (n *VoicemailNode) Enter(ctx context.Context, req *protocol.Request) (*protocol.Result, error) {
	data, ok := req.Node.Data.(*models.VoicemailData)
	if !ok {
		return nil, errors.New("voicemail node without voicemail data")
	}

	maxLength := data.MaxLength
	if maxLength == 0 {
		maxLength = defaultMaxLength
	}

	finishOnKey := data.FinishOnKey
	if finishOnKey == "" {
		finishOnKey = defaultFinishOnKey
	}

	playBeep := true
	if data.PlayBeep != nil {
		playBeep = *data.PlayBeep
	}

	record := callcontrol.Record{
		Action:      req.ContinueURL(),
		Method:      "POST",
		MaxLength:   maxLength,
		FinishOnKey: finishOnKey,
		PlayBeep:    strconv.FormatBool(playBeep),
	}

	if data.Transcribe {
		record.Transcribe = "true"
	}

	verbs := n.speaker.Prompt(ctx, req, data.Prompt, speech.Voice{Voice: data.Voice, Language: data.Language})
	verbs = append(verbs, record)

	return &protocol.Result{Verbs: verbs, Wait: true, Success: true}, nil
}

func (n *VoicemailNode) Continue(_ context.Context, req *protocol.Request) (*protocol.Result, error) {
	event := req.Event

	if event.RecordingURL == "" {
		return &protocol.Result{
			Handles:   []string{protocol.HandleFailed, protocol.HandleDefault},
			QuietEnd:  true,
			EndReason: "voicemail_empty",
			Err:       ErrNoRecording,
		}, nil
	}

	execution.SetVariable(req.Execution, VariableURL, event.RecordingURL)

	if duration, err := strconv.Atoi(event.RecordingDuration); err == nil {
		execution.SetVariable(req.Execution, VariableDuration, duration)
	}

	if event.TranscriptionText != "" {
		execution.SetVariable(req.Execution, VariableTranscription, event.TranscriptionText)
	}

	return &protocol.Result{
		Handles:   []string{protocol.HandleRecorded, protocol.HandleDefault},
		QuietEnd:  true,
		EndReason: "voicemail",
		Input:     event.RecordingURL,
		Success:   true,
	}, nil
}
