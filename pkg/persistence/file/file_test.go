package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/ivrflow/pkg/persistence/file"
	"github.com/dukex/ivrflow/pkg/persistence/persistencetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowRepository(t *testing.T) {
	persistencetest.WorkflowRepository(t, file.NewPersistence(t.TempDir()).WorkflowRepository())
}

func TestExecutionRepository(t *testing.T) {
	persistencetest.ExecutionRepository(t, file.NewPersistence(t.TempDir()).ExecutionRepository())
}

func TestAudioJobRepository(t *testing.T) {
	persistencetest.AudioJobRepository(t, file.NewPersistence(t.TempDir()).AudioJobRepository())
}

func TestPersistence_FileScheme(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := file.NewPersistence("file://" + dir)
	ctx := context.Background()

	workflow := persistencetest.SampleWorkflow("tenant-1")
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	_, err := os.Stat(filepath.Join(dir, "workflows", workflow.ID+".json"))
	require.NoError(t, err)
	assert.NoError(t, p.HealthCheck(ctx))
	assert.Error(t, file.NewPersistence(filepath.Join(dir, "missing")).HealthCheck(ctx))
}

func TestExecutionRepository_RejectsPathTraversal(t *testing.T) {
	t.Parallel()

	repo := file.NewPersistence(t.TempDir()).ExecutionRepository()

	_, err := repo.GetByCallID(context.Background(), "../../etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid characters")
}
