package apicall_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/ivrflow/pkg/log"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/nodes/apicall"
	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(data *models.APICallData) *protocol.Request {
	execution := models.NewExecution("CA1", "wf-1", "acme", "+15550001111", "", time.Now())
	execution.Variables["account"] = "42"
	execution.Variables["token"] = "secret"

	return &protocol.Request{
		Workflow:  &models.Workflow{ID: "wf-1"},
		Node:      models.NewNode("lookup", models.NodeTypeAPICall, data),
		Execution: execution,
	}
}

func TestAPICallNode_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/accounts/42", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"caller": "+15550001111"}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"balance": 12.5, "vip": true}`))
	}))
	defer server.Close()

	handler, err := apicall.NewAPICallNodeFactory().Create(protocol.Dependencies{
		Logger:     log.Discard(),
		HTTPClient: server.Client(),
	})
	require.NoError(t, err)

	req := request(&models.APICallData{
		URL:              server.URL + "/accounts/{{account}}",
		Method:           "post",
		Headers:          map[string]string{"Authorization": "Bearer {{token}}"},
		Body:             `{"caller": "+15550001111"}`,
		ResponseVariable: "account_info",
	})

	result, err := handler.Enter(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{protocol.HandleSuccess, protocol.HandleDefault}, result.Handles)
	assert.Equal(t, map[string]any{"balance": 12.5, "vip": true}, req.Execution.Variables["account_info"])
	assert.Equal(t, 200, req.Execution.Variables["account_info_status"])
}

func TestAPICallNode_Error(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("down"))
	}))
	defer server.Close()

	handler, err := apicall.NewAPICallNodeFactory().Create(protocol.Dependencies{Logger: log.Discard()})
	require.NoError(t, err)

	req := request(&models.APICallData{URL: server.URL, ResponseVariable: "out"})

	result, err := handler.Enter(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, []string{protocol.HandleError, protocol.HandleDefault}, result.Handles)

	var httpErr *apicall.HTTPError
	require.True(t, errors.As(result.Err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, 503, req.Execution.Variables["out_status"])
	assert.NotContains(t, req.Execution.Variables, "out")
}

func TestAPICallNode_PlainText(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("open"))
	}))
	defer server.Close()

	handler, err := apicall.NewAPICallNodeFactory().Create(protocol.Dependencies{Logger: log.Discard()})
	require.NoError(t, err)

	req := request(&models.APICallData{URL: server.URL, ResponseVariable: "hours"})

	result, err := handler.Enter(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, result.Err)
	assert.Equal(t, "open", req.Execution.Variables["hours"])
}
