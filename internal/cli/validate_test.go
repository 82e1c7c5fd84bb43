package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidAnalysis(t *testing.T) {
	out, err := execute(t, "validate", writeAnalysis(t, ""))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Analysis zpeak valid: 2 selection(s), 1 plot(s), 0 skim(s), 1 cut-flow report(s)")
}

func TestValidateValidAnalysisJSON(t *testing.T) {
	out, err := execute(t, "validate", "--format", "json", writeAnalysis(t, ""))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, "zpeak", resp.Data.Analysis)
	assert.Len(t, resp.Data.Hash, 64)
}

func TestValidateNonexistentDirectory(t *testing.T) {
	out, err := execute(t, "validate", "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005")
	assert.Contains(t, out, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, err := execute(t, "validate", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, out, "no CUE files found")
}

func TestValidateReportsAllErrors(t *testing.T) {
	dir := t.TempDir()
	bad := `package bad

columns: {pt: "float"}
selections: {
	a: cuts: [{column: "nope"}]
	b: cuts: [{fn: "frobnicate", args: ["pt"]}]
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte(bad), 0o644))

	out, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 2 error(s)")
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E202: unknown column \"nope\"")
	assert.Contains(t, out, "E201")
	assert.Contains(t, out, "bad.cue:5")

	out, err = execute(t, "validate", "--format", "json", dir)
	require.Error(t, err)
	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  CLIError         `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 2)
	assert.Equal(t, "E202", resp.Error.Code)
	assert.Equal(t, 5, resp.Data.Errors[0].Line)
}
