// Package speech turns node prompt text into play or say verbs.
package speech

import (
	"context"
	"log/slog"

	"github.com/dukex/ivrflow/pkg/callcontrol"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/dukex/ivrflow/pkg/template"
)

// Speaker prefers pre-rendered node audio, then inline synthesis, then the platform's native voice.
type Speaker struct {
	renderer protocol.SpeechRenderer
	logger   *slog.Logger
}

func New(deps protocol.Dependencies) *Speaker {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Speaker{renderer: deps.Speech, logger: logger}
}

// Voice selects the voice and language used for native speech.
type Voice struct {
	Voice    string
	Language string
	Loop     int
}

// Prompt returns the verbs speaking text for the node of req. The node's pre-rendered audio is used
// only when text is the node's prompt and has nothing to fill in.
func (s *Speaker) Prompt(ctx context.Context, req *protocol.Request, text string, voice Voice) []callcontrol.Verb {
	node := req.Node

	if text == "" {
		if node.HasAudio() && models.PromptText(node) == "" {
			return []callcontrol.Verb{callcontrol.Play{URL: node.AudioURL, Loop: voice.Loop}}
		}

		return nil
	}

	if node.HasAudio() && text == models.PromptText(node) && !template.NeedsTemplating(text) {
		return []callcontrol.Verb{callcontrol.Play{URL: node.AudioURL, Loop: voice.Loop}}
	}

	return s.Text(ctx, req, text, voice)
}

// Text speaks arbitrary text, never using the node's stored audio.
func (s *Speaker) Text(ctx context.Context, req *protocol.Request, text string, voice Voice) []callcontrol.Verb {
	rendered := template.Render(text, req.Execution.Variables)
	if rendered == "" {
		return nil
	}

	voice = withDefaults(voice, req.Workflow)

	if s.renderer != nil && req.Node.AudioStatus != models.AudioStatusDegraded {
		url, err := s.renderer.Render(ctx, rendered, voice.Voice, voice.Language)
		if err == nil && url != "" {
			return []callcontrol.Verb{callcontrol.Play{URL: url, Loop: voice.Loop}}
		}

		if err != nil {
			s.logger.WarnContext(ctx, "inline synthesis failed, using native speech",
				"call_id", req.Execution.CallID,
				"node_id", req.Node.ID,
				"error", err)
		}
	}

	return []callcontrol.Verb{callcontrol.Say{
		Text:     rendered,
		Voice:    voice.Voice,
		Language: voice.Language,
		Loop:     voice.Loop,
	}}
}

func withDefaults(voice Voice, workflow *models.Workflow) Voice {
	if workflow == nil {
		return voice
	}

	if voice.Voice == "" {
		voice.Voice = workflow.Config.DefaultVoice
	}

	if voice.Language == "" {
		voice.Language = workflow.Config.DefaultLanguage
	}

	return voice
}
