package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testReport = `---- Minecraft Crash Report ----
// Oops.

Time: 1/2/24 3:04 PM
Description: Unexpected error

java.lang.NullPointerException
	at cpw.mods.fml.common.network.internal.FMLProxyPacket.func_148833_a(FMLProxyPacket.java:101)

-- System Details --
	Is Modded: Definitely; Client brand changed to 'fml,forge'`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return stdout.String(), err
}

func TestRun_ReportFile(t *testing.T) {
	dir := t.TempDir()
	report := filepath.Join(dir, "crash.txt")
	require.NoError(t, os.WriteFile(report, []byte(testReport), 0o644))

	out, err := execute(t, "--report", report, "--no-manifest", "--config", filepath.Join(dir, "none.yml"))
	require.NoError(t, err)

	assert.Contains(t, out, "Found 1 linked crash report(s)")
	assert.Contains(t, out, "# Primitive Automated Analysis of Crash Report inline 1")
	assert.Contains(t, out, "Try post fml-client-latest.log instead.")
}

func TestRun_FormFile(t *testing.T) {
	dir := t.TempDir()
	form := filepath.Join(dir, "form.json")
	require.NoError(t, os.WriteFile(form, []byte("null"), 0o644))

	out, err := execute(t, "--form", form, "--pack-version", "2.6.1", "--no-manifest", "--config", filepath.Join(dir, "none.yml"))
	require.NoError(t, err)

	assert.Equal(t, "No crash report found.\n", out)
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("text"), 0o644))

	tests := []struct {
		name string
		args []string
	}{
		{name: "no input", args: []string{"--no-manifest"}},
		{name: "two inputs", args: []string{"--report", file, "--body", file}},
		{name: "missing file", args: []string{"--body", filepath.Join(dir, "missing.md")}},
		{name: "malformed form", args: []string{"--form", file}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append(tt.args, "--config", filepath.Join(dir, "none.yml"))...)
			assert.Error(t, err)
		})
	}
}
