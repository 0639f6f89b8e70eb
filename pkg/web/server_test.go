package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dukex/ivrflow/pkg/audio"
	"github.com/dukex/ivrflow/pkg/execution"
	"github.com/dukex/ivrflow/pkg/interpreter"
	"github.com/dukex/ivrflow/pkg/log"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/persistence/memory"
	"github.com/dukex/ivrflow/pkg/protocol"
	"github.com/dukex/ivrflow/pkg/registry"
	"github.com/dukex/ivrflow/pkg/services"
	"github.com/dukex/ivrflow/pkg/tenant"
	"github.com/dukex/ivrflow/pkg/testutil"
	"github.com/dukex/ivrflow/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/require"
)

const (
	mainNumber = "+15550100"
	caller     = "+15559876"
)

type fakeSynthesizer struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, req audio.SynthesisRequest) (*audio.Clip, error) {
	f.calls.Add(1)

	if f.fail.Load() {
		return nil, &audio.SynthesisError{StatusCode: 400, Message: "rejected"}
	}

	return &audio.Clip{Data: []byte("ID3" + req.Text), ContentType: "audio/mpeg", Extension: ".mp3"}, nil
}

type fixture struct {
	app         *fiber.App
	store       *memory.Persistence
	executions  *execution.Store
	pipeline    *audio.Pipeline
	synthesizer *fakeSynthesizer
	assetsDir   string
}

// newFixture wires the whole server over memory persistence. Saves through the
// API do not schedule audio so revisions stay predictable.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := log.Discard()

	store, err := memory.NewPersistence()
	require.NoError(t, err)

	nodes := registry.NewRegistry(logger, protocol.Dependencies{})
	nodes.RegisterDefaultNodes()

	tenants := tenant.NewStaticResolver("")
	tenants.Assign(mainNumber, testutil.TestTenant)

	executions := execution.NewStore(store.ExecutionRepository(), logger)
	engine := interpreter.New(interpreter.Config{BaseURL: "https://ivr.example.com"},
		store.WorkflowRepository(), executions, nodes, tenants, logger)

	assetsDir := t.TempDir()
	storage, err := audio.NewLocalStorage(assetsDir, "https://ivr.example.com/assets")
	require.NoError(t, err)

	synthesizer := &fakeSynthesizer{}
	config := audio.DefaultConfig()
	config.MaxAttempts = 1

	pipeline := audio.NewPipeline(config, store, synthesizer, storage, logger)
	t.Cleanup(pipeline.Close)

	workflows := services.NewWorkflow(store, nodes, logger)

	server := web.NewServer(logger, engine, workflows, nodes, web.WithAudio(pipeline, assetsDir))

	return &fixture{
		app:         server.App(),
		store:       store,
		executions:  executions,
		pipeline:    pipeline,
		synthesizer: synthesizer,
		assetsDir:   assetsDir,
	}
}

func menuWorkflow() *models.Workflow {
	return testutil.CreateTestWorkflow(
		testutil.WithID("wf-main"),
		testutil.WithGraph(
			[]*models.Node{
				models.NewNode("welcome", models.NodeTypeGreeting, &models.GreetingData{Text: "Welcome to Acme."}),
				models.NewNode("menu", models.NodeTypeInput, &models.InputData{Prompt: "Press 1 for sales.", NumDigits: 1}),
				models.NewNode("sales", models.NodeTypeTransfer, &models.TransferData{Destination: "+15551234567"}),
				models.NewNode("bye", models.NodeTypeEnd, &models.EndData{Message: "Goodbye."}),
			},
			testutil.Edge("welcome", "menu"),
			testutil.Branch("menu", "1", "sales"),
			testutil.Branch("menu", protocol.HandleMaxAttempts, "bye"),
		),
	)
}

func (f *fixture) save(t *testing.T, workflow *models.Workflow) {
	t.Helper()

	require.NoError(t, f.store.WorkflowRepository().Save(context.Background(), workflow))
}

func (f *fixture) do(t *testing.T, method, target string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return f.send(t, req)
}

func (f *fixture) webhook(t *testing.T, target string, form url.Values) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return f.send(t, req)
}

func (f *fixture) send(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()

	resp, err := f.app.Test(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()

	var value T
	require.NoError(t, json.Unmarshal(data, &value), string(data))

	return value
}
