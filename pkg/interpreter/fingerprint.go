package interpreter

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/dukex/ivrflow/pkg/protocol"
)

// fingerprint identifies a webhook delivery. A retried delivery produces the same value.
func fingerprint(phase protocol.Phase, nodeID string, event protocol.Event) string {
	parts := []string{
		string(phase),
		nodeID,
		event.Digits,
		event.SpeechResult,
		event.RecordingURL,
		event.DialCallStatus,
		event.QueueResult,
		event.Handoff,
		event.Sequence,
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))

	return hex.EncodeToString(sum[:16])
}
