package web

import (
	"context"
	"log/slog"

	"github.com/dukex/ivrflow/pkg/callcontrol"
	"github.com/dukex/ivrflow/pkg/interpreter"
	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/gofiber/fiber/v3"
)

// CallEngine is the interpreter as seen by the webhook handlers.
type CallEngine interface {
	HandleIncoming(ctx context.Context, event protocol.Event) interpreter.Reply
	HandleContinue(ctx context.Context, workflowID, nodeID string, event protocol.Event) interpreter.Reply
	HandleEnter(ctx context.Context, workflowID, nodeID string, event protocol.Event) interpreter.Reply
	HandleStatus(ctx context.Context, event protocol.Event) error
}

// VoiceHandlers answer the telephony platform. Every answer is a 200 with a call-control document.
type VoiceHandlers struct {
	engine CallEngine
	logger *slog.Logger
}

func NewVoiceHandlers(engine CallEngine, logger *slog.Logger) *VoiceHandlers {
	return &VoiceHandlers{engine: engine, logger: logger.With("module", "voice")}
}

func (h *VoiceHandlers) Incoming(c fiber.Ctx) error {
	reply := h.engine.HandleIncoming(c.Context(), parseEvent(c))

	return sendDocument(c, reply.Document)
}

func (h *VoiceHandlers) Continue(c fiber.Ctx) error {
	reply := h.engine.HandleContinue(c.Context(), c.Params("workflowId"), c.Params("nodeId"), parseEvent(c))

	return sendDocument(c, reply.Document)
}

func (h *VoiceHandlers) Enter(c fiber.Ctx) error {
	reply := h.engine.HandleEnter(c.Context(), c.Params("workflowId"), c.Params("nodeId"), parseEvent(c))

	return sendDocument(c, reply.Document)
}

// Status records call termination. The platform ignores the body, so errors are only logged.
func (h *VoiceHandlers) Status(c fiber.Ctx) error {
	event := parseEvent(c)

	if err := h.engine.HandleStatus(c.Context(), event); err != nil {
		h.logger.ErrorContext(c.Context(), "failed to handle call status",
			"call_id", event.CallID,
			"call_status", event.CallStatus,
			"error", err)
	}

	return sendDocument(c, "")
}

func parseEvent(c fiber.Ctx) protocol.Event {
	return protocol.Event{
		CallID:            c.FormValue("CallSid"),
		From:              c.FormValue("From"),
		To:                c.FormValue("To"),
		CallStatus:        c.FormValue("CallStatus"),
		Digits:            c.FormValue("Digits"),
		SpeechResult:      c.FormValue("SpeechResult"),
		Confidence:        c.FormValue("Confidence"),
		RecordingURL:      c.FormValue("RecordingUrl"),
		RecordingDuration: c.FormValue("RecordingDuration"),
		TranscriptionText: c.FormValue("TranscriptionText"),
		DialCallStatus:    c.FormValue("DialCallStatus"),
		QueueResult:       c.FormValue("QueueResult"),
		Handoff:           c.FormValue("Handoff"),
		Sequence:          c.Query(interpreter.SequenceParam),
	}
}

func sendDocument(c fiber.Ctx, document string) error {
	if document == "" {
		rendered, err := callcontrol.NewResponse().Render()
		if err != nil {
			return err
		}

		document = rendered
	}

	c.Set(fiber.HeaderContentType, callcontrol.ContentType)

	return c.Status(fiber.StatusOK).SendString(document)
}
