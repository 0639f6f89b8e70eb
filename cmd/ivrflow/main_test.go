package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validWorkflow = `
id: wf-main
tenantId: acme
name: Main menu
status: active
nodes:
  - id: welcome
    type: greeting
    data: {text: Welcome}
  - id: bye
    type: end
    data: {message: Goodbye}
edges:
  - {id: e1, source: welcome, target: bye}
`

const brokenWorkflow = `
id: wf-broken
tenantId: acme
name: Broken
nodes:
  - id: welcome
    type: greeting
    data: {text: Welcome}
edges:
  - {id: e1, source: welcome, target: ghost}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out

	err := app.Run(context.Background(), append([]string{"ivrflow"}, args...))

	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	valid := writeFile(t, dir, "main.yaml", validWorkflow)
	broken := writeFile(t, dir, "broken.yaml", brokenWorkflow)

	out, err := run(t, "validate", "--log-level", "error", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "Main menu (wf-main): ok")

	out, err = run(t, "validate", "--log-level", "error", dir)
	require.ErrorIs(t, err, errInvalidWorkflows)
	assert.Contains(t, out, "Broken (wf-broken): invalid")
	assert.Contains(t, out, "edge e1 references unknown target ghost")

	_, err = run(t, "validate", broken, filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = run(t, "validate")
	assert.ErrorIs(t, err, errNoFiles)
}

func TestImportCommand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "main.yaml", validWorkflow)
	database := "file://" + filepath.Join(dir, "db")

	out, err := run(t, "import", "--log-level", "error", "--database-url", database, path)
	require.NoError(t, err)
	assert.Contains(t, out, "created Main menu (wf-main)")
	assert.Contains(t, out, "active")

	out, err = run(t, "import", "--log-level", "error", "--database-url", database, path)
	require.NoError(t, err)
	assert.Contains(t, out, "updated Main menu (wf-main)")

	assert.FileExists(t, filepath.Join(dir, "db", "workflows", "wf-main.json"))
}
