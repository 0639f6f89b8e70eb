// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/dukex/ivrflow/pkg/registry"
)

const apiCallTimeout = 30 * time.Second

// NewRegistry registers every built-in node type. speech may be nil, in which case prompts without
// pre-rendered audio are spoken natively by the platform.
func NewRegistry(logger *slog.Logger, speech protocol.SpeechRenderer) *registry.Registry {
	reg := registry.NewRegistry(logger, protocol.Dependencies{
		Logger:     logger,
		HTTPClient: &http.Client{Timeout: apiCallTimeout},
		Speech:     speech,
	})

	reg.RegisterDefaultNodes()

	return reg
}
