package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WoelkiM/antidote/internal/gindex"
)

// run executes the CLI and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, _, err := run(t, args...)
	require.NoError(t, err, "gindex %v", args)
	return out
}

func TestCLI_ApplyAndQuery(t *testing.T) {
	state := filepath.Join(t.TempDir(), "idx.bin")

	for _, v := range []string{"1", "2", "3", "4", "5", "6"} {
		mustRun(t, "-f", state, "apply", "register_lww", "col"+v, "assign", v)
	}
	mustRun(t, "-f", state, "apply", "register_lww", "col6", "assign", "3")

	out := mustRun(t, "-f", state, "inspect")
	assert.Contains(t, out, "type: register_lww\nkeys: 6\n")
	assert.Contains(t, out, "3: [col3, col6]\n")
	assert.Contains(t, out, "6: []\n")

	assert.Equal(t, "3: [col3, col6]\n", mustRun(t, "-f", state, "lookup", "col6"))
	assert.Equal(t, "5: [col5]\n", mustRun(t, "-f", state, "get", "5"))

	out = mustRun(t, "-f", state, "range", "--gte", "3", "--lt", "6")
	assert.Equal(t, "3: [col3, col6]\n4: [col4]\n5: [col5]\n", out)
}

func TestCLI_RejectsWrongType(t *testing.T) {
	state := filepath.Join(t.TempDir(), "idx.bin")
	mustRun(t, "-f", state, "apply", "register_lww", "a", "assign", "1")

	before, err := os.ReadFile(state)
	require.NoError(t, err)

	_, _, err = run(t, "-f", state, "apply", "counter_pn", "a", "increment")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gindex.ErrWrongType), "got %v", err)

	after, err := os.ReadFile(state)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCLI_BoundedCounter(t *testing.T) {
	state := filepath.Join(t.TempDir(), "idx.bin")

	mustRun(t, "-f", state, "apply", "counter_b", "stock", "increment", "10", "--actor", "dc1")
	out := mustRun(t, "-f", state, "apply", "counter_b", "stock", "decrement", "3", "--actor", "dc1")
	assert.Equal(t, "stock -> 7\n", out)

	_, _, err := run(t, "-f", state, "apply", "counter_b", "stock", "decrement", "1", "--actor", "dc2")
	assert.Error(t, err)
}

func TestCLI_Diff(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.bin"), filepath.Join(dir, "b.bin")

	mustRun(t, "-f", a, "apply", "set_go", "tags", "add", "x", "y")
	mustRun(t, "-f", b, "apply", "set_go", "tags", "add", "y", "x")
	assert.Equal(t, "in sync\n", mustRun(t, "-f", a, "diff", b))

	mustRun(t, "-f", b, "apply", "set_go", "other", "add", "z")
	assert.Equal(t, "missing_local \"other\" local=- remote=[\"z\"]\n", mustRun(t, "-f", a, "diff", b))

	_, _, err := run(t, "-f", a, "diff", filepath.Join(dir, "missing.bin"))
	assert.Error(t, err)
}

func TestCLI_ConfigBoundTypeAndMetrics(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "gindex.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
replica_id: dc1
bound_type: counter_pn
log_level: error
metrics:
  dump: true
`), 0o644))
	state := filepath.Join(dir, "idx.bin")

	_, _, err := run(t, "-c", cfg, "-f", state, "apply", "register_lww", "a", "assign", "1")
	require.Error(t, err)

	out, errOut, err := run(t, "-c", cfg, "-f", state, "apply", "counter_pn", "a", "increment", "2")
	require.NoError(t, err)
	assert.Equal(t, "a -> 2\n", out)
	assert.Contains(t, errOut, `gindex_effects_applied_total{type="counter_pn"} 1`)
}

func TestCLI_RangeRequiresBothBounds(t *testing.T) {
	state := filepath.Join(t.TempDir(), "idx.bin")
	_, _, err := run(t, "-f", state, "range", "--gt", "1")
	assert.Error(t, err)
}

func TestParseOp(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"assign", []string{"register_lww", "k", "assign", "5"}, false},
		{"increment default", []string{"counter_pn", "k", "increment"}, false},
		{"transfer", []string{"counter_b", "k", "transfer", "2", "dc2"}, false},
		{"add", []string{"set_go", "k", "add", "a", "b"}, false},
		{"too few args", []string{"set_go", "k"}, true},
		{"assign without value", []string{"register_lww", "k", "assign"}, true},
		{"bad amount", []string{"counter_pn", "k", "increment", "x"}, true},
		{"transfer without target", []string{"counter_b", "k", "transfer", "2"}, true},
		{"add without elements", []string{"set_go", "k", "add"}, true},
		{"unknown verb", []string{"set_go", "k", "remove", "a"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseOp(tt.args, opFlags{actor: "dc1"})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
