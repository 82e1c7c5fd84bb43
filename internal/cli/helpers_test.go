package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const zpeakCUE = `package zpeak

columns: {run: "UInt_t", mll: "float", w: "float"}
define: mllScaled: syst: {
	nominal: "mll"
	variations: {
		escaleup:   {fn: "multiply", args: ["mll", 1.01]}
		escaledown: {fn: "multiply", args: ["mll", 0.99]}
	}
}
selections: onZ: {
	cuts: [{fn: "and", args: [{fn: "gt", args: ["mllScaled", 81.0]}, {fn: "lt", args: ["mllScaled", 101.0]}]}]
	weights: ["w"]
}
plots: mll: {selection: "onZ", vars: ["mllScaled"], binning: [{n: 40, min: 70, max: 110}]}
cutflows: yields: selections: ["onZ"]
`

// writeAnalysis creates an analysis directory named zpeak with an
// optional onepass.yaml.
func writeAnalysis(t *testing.T, runYAML string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "zpeak")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "analysis.cue"), []byte(zpeakCUE), 0o644))
	if runYAML != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "onepass.yaml"), []byte(runYAML), 0o644))
	}
	return dir
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
