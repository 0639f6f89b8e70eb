package web_test

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/dukex/ivrflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type problem struct {
	Type   string   `json:"type"`
	Status int      `json:"status"`
	Detail string   `json:"detail"`
	Errors []string `json:"errors"`
}

func createBody() map[string]any {
	return map[string]any{
		"tenantId": "acme",
		"name":     "Support line",
		"nodes": []map[string]any{
			{"id": "welcome", "type": "greeting", "data": map[string]any{"text": "Hello"}},
			{"id": "bye", "type": "end", "data": map[string]any{"message": "Goodbye"}},
		},
		"edges": []map[string]any{
			{"id": "e1", "source": "welcome", "target": "bye"},
		},
	}
}

func TestAPI_WorkflowLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/workflows", createBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	created := decode[models.Workflow](t, body)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, models.WorkflowStatusDraft, created.Status)
	assert.Equal(t, int64(1), created.Revision)

	path := "/workflows/" + created.ID

	t.Run("get", func(t *testing.T) {
		resp, body := f.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		fetched := decode[models.Workflow](t, body)
		assert.Equal(t, "Support line", fetched.Name)
		assert.Len(t, fetched.Nodes, 2)
	})

	t.Run("stale graph revision", func(t *testing.T) {
		replace := createBody()
		replace["revision"] = 99

		resp, body := f.do(t, http.MethodPut, path+"/graph", replace)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "conflict", decode[problem](t, body).Type)
	})

	t.Run("update node", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPatch, path+"/nodes/bye", map[string]any{
			"revision": created.Revision,
			"data":     map[string]any{"message": "See you soon"},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		updated := decode[models.Workflow](t, body)
		assert.Equal(t, created.Revision+1, updated.Revision)

		bye, ok := updated.NodeByID("bye")
		require.True(t, ok)
		assert.Equal(t, "See you soon", bye.Data.(*models.EndData).Message)
	})

	t.Run("unknown node", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPatch, path+"/nodes/ghost", map[string]any{
			"revision": 2,
			"data":     map[string]any{"message": "x"},
		})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "node_not_found", decode[problem](t, body).Type)
	})

	t.Run("validate", func(t *testing.T) {
		resp, body := f.do(t, http.MethodGet, path+"/validate", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		report := decode[map[string]any](t, body)
		assert.Equal(t, true, report["valid"])
	})

	t.Run("activate and list", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPost, path+"/status", map[string]any{"status": "active"})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.Equal(t, models.WorkflowStatusActive, decode[models.Workflow](t, body).Status)

		resp, body = f.do(t, http.MethodGet, "/workflows?tenantId=acme&status=active", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		listed := decode[struct {
			Workflows  []*models.Workflow `json:"workflows"`
			TotalCount int                `json:"total_count"`
		}](t, body)
		assert.Equal(t, 1, listed.TotalCount)
		assert.Equal(t, created.ID, listed.Workflows[0].ID)
	})

	t.Run("delete", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodDelete, path, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, body := f.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "workflow_not_found", decode[problem](t, body).Type)
	})
}

func TestAPI_CreateRejectsBadInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	t.Run("request validation", func(t *testing.T) {
		body := createBody()
		delete(body, "tenantId")

		resp, data := f.do(t, http.MethodPost, "/workflows", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "validation_error", decode[problem](t, data).Type)
	})

	t.Run("broken graph lists every error", func(t *testing.T) {
		body := createBody()
		body["edges"] = []map[string]any{
			{"id": "e1", "source": "welcome", "target": "bye"},
			{"id": "e9", "source": "welcome", "target": "ghost"},
		}

		resp, data := f.do(t, http.MethodPost, "/workflows", body)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, decode[problem](t, data).Errors, "edge e9 references unknown target ghost")
	})

	t.Run("activation of an empty workflow", func(t *testing.T) {
		resp, data := f.do(t, http.MethodPost, "/workflows", map[string]any{"tenantId": "acme", "name": "Empty"})
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

		id := decode[models.Workflow](t, data).ID

		resp, data = f.do(t, http.MethodPost, "/workflows/"+id+"/status", map[string]any{"status": "active"})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "activation_error", decode[problem](t, data).Type)
	})
}

func TestAPI_NodeTypesAndHealth(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/node-types", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]map[string]any](t, body), len(models.NodeTypes))

	resp, body = f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", decode[map[string]any](t, body)["status"])

	resp, _ = f.do(t, http.MethodGet, "/livez", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, strconv.Itoa(resp.StatusCode))
}
