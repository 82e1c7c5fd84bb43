package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "zpeak")
	require.NoError(t, os.Mkdir(dir, 0o755))
	writeFile(t, dir, "columns.cue", "package zpeak\n\ncolumns: {mll: \"float\", w: \"float\"}\n")
	writeFile(t, dir, "selections.cue", `package zpeak

selections: onZ: {
	cuts: [{fn: "and", args: [{fn: "gt", args: ["mll", 81.0]}, {fn: "lt", args: ["mll", 101.0]}]}]
	weights: ["w"]
}
plots: mll: {selection: "onZ", vars: ["mll"], binning: [{n: 40, min: 70, max: 110}]}
`)

	a, errs := Load(dir, LoadModeFailFast)
	require.Empty(t, errs)
	assert.Equal(t, "zpeak", a.Name, "named after the directory")
	assert.Equal(t, []string{"mll", "w"}, a.InputColumns())
	require.Len(t, a.Plots, 1)
	assert.Equal(t, "onZ", a.Plots[0].Selection().Name())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		code  string
	}{
		{
			name:  "missing directory",
			setup: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") },
			code:  ErrCodeNotFound,
		},
		{
			name: "not a directory",
			setup: func(t *testing.T) string {
				return writeFile(t, t.TempDir(), "file.cue", "x: 1\n")
			},
			code: ErrCodeNotFound,
		},
		{
			name:  "no cue files",
			setup: func(t *testing.T) string { return t.TempDir() },
			code:  ErrCodeNoFiles,
		},
		{
			name: "conflicting values",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "a.cue", "package a\n\nname: \"x\"\n")
				writeFile(t, dir, "b.cue", "package a\n\nname: \"y\"\n")
				return dir
			},
			code: ErrCodeBuildFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := Load(tt.setup(t), LoadModeFailFast)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.code, ErrorCode(errs[0]), "%v", errs[0])
		})
	}
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.cue", "")
	writeFile(t, dir, "notes.txt", "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	writeFile(t, filepath.Join(dir, "sub"), "b.cue", "")

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.cue")}, files)
}

func TestLoadRunConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "run.yaml", `
tree: Events
inputs: [a.root, b.root]
threads: 8
executor: [root, -l, -b, -q]
auto_syst: false
`)
	cfg, err := LoadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.root", "b.root"}, cfg.Inputs)
	assert.Equal(t, 8, cfg.Threads)
	assert.Equal(t, []string{"root", "-l", "-b", "-q"}, cfg.Executor)
	assert.False(t, cfg.AutoSystOn())
	assert.Equal(t, DefaultRunConfig().Output, cfg.Output, "absent fields keep defaults")
	assert.Equal(t, DefaultRunConfig().Ledger, cfg.Ledger)
}

func TestLoadRunConfig_Empty(t *testing.T) {
	cfg, err := LoadRunConfig(writeFile(t, t.TempDir(), "run.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultRunConfig(), cfg)
	assert.True(t, cfg.AutoSystOn())
}

func TestLoadRunConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    string
	}{
		{"unknown field", "thread: 4\n", ErrCodeInvalidRunConfig},
		{"wrong type", "threads: many\n", ErrCodeInvalidRunConfig},
		{"negative threads", "threads: -1\n", ErrCodeInvalidRunConfig},
		{"empty output", "output: \"\"\n", ErrCodeInvalidRunConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRunConfig(writeFile(t, t.TempDir(), "run.yaml", tt.content))
			require.Error(t, err)
			assert.Equal(t, tt.code, ErrorCode(err))
		})
	}

	_, err := LoadRunConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, ErrCodeNotFound, ErrorCode(err))
}

func TestResolveRunConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := ResolveRunConfig(dir, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultRunConfig(), cfg, "no onepass.yaml")

	writeFile(t, dir, DefaultRunConfigFile, "threads: 4\n")
	cfg, err = ResolveRunConfig(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Threads)

	other := writeFile(t, t.TempDir(), "other.yaml", "threads: 2\n")
	cfg, err = ResolveRunConfig(dir, other)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Threads)
}
