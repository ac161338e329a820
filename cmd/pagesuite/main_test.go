package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidandcat/pagesuite/pkg/harness"
	"github.com/kidandcat/pagesuite/pkg/runner"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestFindTestFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "home.test"), `test "Home"`)
	writeFile(t, filepath.Join(dir, "login.test"), `test "Login"`)
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignore me")

	files, err := findTestFiles("*.test", []string{dir})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "home.test"),
		filepath.Join(dir, "login.test"),
	}, files)

	single := filepath.Join(dir, "home.test")
	files, err = findTestFiles("*.test", []string{single, dir})
	require.NoError(t, err)
	assert.Len(t, files, 2, "duplicates are dropped")
}

func TestFilterTags(t *testing.T) {
	tests := []runner.Test{
		{Name: "a", Tags: []string{"smoke"}},
		{Name: "b", Tags: []string{"forms", "slow"}},
		{Name: "c"},
	}

	assert.Len(t, filterTags(tests, nil), 3)

	got := filterTags(tests, []string{"slow", "smoke"})
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "b", got[1].Name)
}

func TestParseFilesJoinsErrors(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.test")
	bad := filepath.Join(dir, "bad.test")
	writeFile(t, good, "test \"Good\"\n  navigate \"/\"\n")
	writeFile(t, bad, "test \"Bad\"\n  teleport \"/\"\n")

	tests, err := parseFiles([]string{good, bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.test")
	assert.Len(t, tests, 1)
}

func TestRunExitCodes(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.test")
	writeFile(t, bad, "test \"Bad\"\n  teleport \"/\"\n")
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.MkdirAll(empty, 0755))
	noEnv := filepath.Join(dir, "missing.env")

	tests := []struct {
		name    string
		args    []string
		code    int
		wantErr string
	}{
		{
			name:    "missing config file",
			args:    []string{"run", "--config", filepath.Join(dir, "nope.yaml"), empty},
			code:    exitConfig,
			wantErr: "configuration error",
		},
		{
			name:    "unknown driver",
			args:    []string{"run", "--driver", "selenium", empty},
			code:    exitConfig,
			wantErr: "unknown browser driver",
		},
		{
			name:    "invalid workers",
			args:    []string{"run", "--workers", "0", empty},
			code:    exitConfig,
			wantErr: "workers",
		},
		{
			name:    "no test files",
			args:    []string{"run", empty},
			code:    exitConfig,
			wantErr: "no test files found",
		},
		{
			name:    "parse error",
			args:    []string{"run", bad},
			code:    exitConfig,
			wantErr: "unknown action: teleport",
		},
		{
			name:    "invalid log level",
			args:    []string{"--log-level", "loud", "run", empty},
			code:    exitConfig,
			wantErr: "configuration error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			args := append([]string{"pagesuite", "--env-file", noEnv}, tt.args...)

			code := run(args, &stdout, &stderr)

			assert.Equal(t, tt.code, code)
			assert.Contains(t, stderr.String(), tt.wantErr)
		})
	}
}

func TestPrinter(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	p := &printer{out: &buf}

	p.result(runner.TestResult{Name: "Home", Outcome: harness.Passed, Duration: 1500 * time.Millisecond})
	p.result(runner.TestResult{Name: "Shop", Outcome: harness.Skipped, Error: harness.Skip("requires the local test environment")})
	p.result(runner.TestResult{
		Name:       "Login",
		File:       "suites/login.test",
		Line:       4,
		Outcome:    harness.Failed,
		Error:      errors.New("line 7: assert_text: text of h1: expected 'Welcome', got 'Sign in'"),
		Screenshot: "screenshots/Login_20240102_030405.png",
		Errors:     []runner.ConsoleError{{Message: "Uncaught TypeError", URL: "https://example.com/login"}},
	})
	p.summary(runner.Summary{Total: 3, Passed: 1, Failed: 1, Skipped: 1})

	out := buf.String()
	assert.Contains(t, out, "✓ PASS Home (1.5s)")
	assert.Contains(t, out, "- SKIP Shop requires the local test environment")
	assert.Contains(t, out, "✗ FAIL Login")
	assert.Contains(t, out, "suites/login.test:4")
	assert.Contains(t, out, "expected 'Welcome', got 'Sign in'")
	assert.Contains(t, out, "Screenshot: screenshots/Login_20240102_030405.png")
	assert.Contains(t, out, "Uncaught TypeError at https://example.com/login")
	assert.Contains(t, out, "1 passed, 1 failed, 1 skipped (3 tests)")
}
