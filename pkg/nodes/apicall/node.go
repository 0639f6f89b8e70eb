package apicall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/ivrflow/pkg/execution"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/dukex/ivrflow/pkg/template"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// HTTPError represents a non 2xx response.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

type APICallNode struct {
	client *http.Client
	logger *slog.Logger
}

func NewAPICallNode(deps protocol.Dependencies) *APICallNode {
	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &APICallNode{client: client, logger: logger}
}

func (n *APICallNode) Enter(ctx context.Context, req *protocol.Request) (*protocol.Result, error) {
	data, ok := req.Node.Data.(*models.APICallData)
	if !ok {
		return nil, errors.New("api call node without api call data")
	}

	vars := req.Execution.Variables

	method := strings.ToUpper(data.Method)
	if method == "" {
		method = http.MethodGet
	}

	timeout := defaultTimeout
	if data.TimeoutSeconds > 0 {
		timeout = time.Duration(data.TimeoutSeconds) * time.Second
	}

	headers := make(map[string]string, len(data.Headers))
	for key, value := range data.Headers {
		headers[key] = template.Render(value, vars)
	}

	url := template.Render(data.URL, vars)
	body := template.Render(data.Body, vars)

	status, payload, err := n.perform(ctx, timeout, method, url, body, headers)

	if data.ResponseVariable != "" && status != 0 {
		execution.SetVariable(req.Execution, data.ResponseVariable+"_status", status)
	}

	if err != nil {
		n.logger.WarnContext(ctx, "api call failed",
			"call_id", req.Execution.CallID,
			"node_id", req.Node.ID,
			"url", url,
			"error", err)

		return &protocol.Result{
			Handles: []string{protocol.HandleError, protocol.HandleDefault},
			Input:   url,
			Err:     err,
		}, nil
	}

	if data.ResponseVariable != "" {
		execution.SetVariable(req.Execution, data.ResponseVariable, payload)
	}

	return &protocol.Result{
		Handles: []string{protocol.HandleSuccess, protocol.HandleDefault},
		Input:   url,
		Success: true,
	}, nil
}

func (n *APICallNode) Continue(ctx context.Context, req *protocol.Request) (*protocol.Result, error) {
	return n.Enter(ctx, req)
}

// perform executes a single request. The decoded payload is JSON when the body parses, text otherwise.
func (n *APICallNode) perform(ctx context.Context, timeout time.Duration, method, url, body string, headers map[string]string) (int, any, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, nil, &HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var payload any
	if err := json.Unmarshal(respBody, &payload); err == nil {
		return resp.StatusCode, payload, nil
	}

	return resp.StatusCode, string(respBody), nil
}
