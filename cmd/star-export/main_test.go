package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/github-star-export/internal/testutil"
	"github.com/Sternrassler/github-star-export/pkg/client"
	"github.com/Sternrassler/github-star-export/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Setenv("STAR_EXPORT_HTTP_BACKOFF_BASE", "1ms")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func newListing(t *testing.T) *testutil.MockGitHub {
	t.Helper()
	mock := testutil.NewMockGitHub("octocat")
	t.Cleanup(mock.Close)

	mock.SetPages(
		[]testutil.StarredRepo{
			{Owner: "golang", Name: "go", Description: "The Go programming language", Language: "Go"},
			{Owner: "spf13", Name: "cobra"},
		},
		[]testutil.StarredRepo{
			{Owner: "rs", Name: "zerolog", Language: "Go"},
		},
	)
	return mock
}

func snapshots(t *testing.T, dir string) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "*"))
	require.NoError(t, err)
	return files
}

func TestVersionVariables(t *testing.T) {
	assert.NotEmpty(t, Version, "Version should not be empty")
	assert.NotEmpty(t, Commit, "Commit should not be empty")
}

func TestRootCmd_FlagDefaults(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	flags := cmd.Flags()

	tests := map[string]string{
		"name":       "",
		"base-url":   "https://github.com",
		"output-dir": "data/github/star",
		"format":     "xlsx",
		"retries":    "3",
		"max-pages":  "0",
		"timeout":    "30s",
		"log-level":  "info",
		"quiet":      "false",
	}
	for name, want := range tests {
		flag := flags.Lookup(name)
		require.NotNil(t, flag, "flag --%s", name)
		assert.Equal(t, want, flag.DefValue, "default of --%s", name)
	}

	for flag := range flagKeys {
		assert.NotNil(t, flags.Lookup(flag), "bound flag --%s is not defined", flag)
	}
}

func TestRun_MissingName(t *testing.T) {
	mock := newListing(t)
	dir := t.TempDir()

	_, _, err := execute(t, "--base-url", mock.URL(), "--output-dir", dir)

	require.Error(t, err)
	assert.True(t, errors.Is(err, pagination.ErrConfiguration))
	assert.Contains(t, err.Error(), "name")
	assert.Equal(t, 0, mock.RequestCount(), "no request may be sent without a name")
	assert.Empty(t, snapshots(t, dir))
}

func TestRun_InvalidFormat(t *testing.T) {
	mock := newListing(t)

	_, _, err := execute(t, "--name", "octocat", "--base-url", mock.URL(),
		"--output-dir", t.TempDir(), "--format", "json")

	require.Error(t, err)
	assert.True(t, errors.Is(err, pagination.ErrConfiguration))
	assert.Equal(t, 0, mock.RequestCount())
}

func TestRun_ExportsCSV(t *testing.T) {
	mock := newListing(t)
	dir := filepath.Join(t.TempDir(), "stars")

	stdout, _, err := execute(t, "--name", "octocat", "--base-url", mock.URL(),
		"--output-dir", dir, "--format", "csv")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Title: golang /go\nLink: "+mock.URL()+"/golang/go\nDescription: The Go programming language\nLanguage: Go\n")
	assert.Contains(t, stdout, "Title: rs /zerolog")
	assert.Equal(t, 3, strings.Count(stdout, "Title: "))

	files := snapshots(t, dir)
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0], ".csv"))

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "title,language,url,description", lines[0])
	assert.Equal(t, "golang /go,Go,"+mock.URL()+"/golang/go,The Go programming language", lines[1])
	assert.Equal(t, "spf13 /cobra,,"+mock.URL()+"/spf13/cobra,", lines[2])
	assert.Equal(t, "rs /zerolog,Go,"+mock.URL()+"/rs/zerolog,", lines[3])

	assert.Equal(t, 2, mock.RequestCount())
}

func TestRun_ExportsXLSXByDefault(t *testing.T) {
	mock := newListing(t)
	dir := t.TempDir()

	_, _, err := execute(t, "-n", "octocat", "--base-url", mock.URL(), "-o", dir, "--quiet")
	require.NoError(t, err)

	files := snapshots(t, dir)
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0], ".xlsx"))
}

func TestRun_Quiet(t *testing.T) {
	mock := newListing(t)

	stdout, _, err := execute(t, "--name", "octocat", "--base-url", mock.URL(),
		"--output-dir", t.TempDir(), "--format", "csv", "--quiet")
	require.NoError(t, err)
	assert.Empty(t, stdout)
}

func TestRun_RetriesTransientFailures(t *testing.T) {
	mock := newListing(t)
	mock.SetStatusSequence("", 503, 503)

	_, _, err := execute(t, "--name", "octocat", "--base-url", mock.URL(),
		"--output-dir", t.TempDir(), "--format", "csv", "--quiet")
	require.NoError(t, err)
	assert.Equal(t, 4, mock.RequestCount(), "two failed attempts, then both pages")
}

func TestRun_FailureWritesNothing(t *testing.T) {
	mock := testutil.NewMockGitHub("octocat")
	t.Cleanup(mock.Close)
	mock.SetPages(
		[]testutil.StarredRepo{{Owner: "a", Name: "one"}},
		[]testutil.StarredRepo{{Owner: "b", Name: "two"}},
		[]testutil.StarredRepo{{Owner: "c", Name: "three"}},
		[]testutil.StarredRepo{{Owner: "d", Name: "four"}},
		[]testutil.StarredRepo{{Owner: "e", Name: "five"}},
	)
	mock.SetStatusSequence("Y3Vyc29yOnY2", 502, 502, 502, 502)

	dir := t.TempDir()
	_, _, err := execute(t, "--name", "octocat", "--base-url", mock.URL(),
		"--output-dir", dir, "--format", "csv", "--quiet")

	require.Error(t, err)
	assert.True(t, errors.Is(err, client.ErrRetryExhausted))
	assert.Empty(t, snapshots(t, dir), "a failed run must not leave a snapshot")
	assert.Equal(t, 2+4, mock.RequestCount(), "two pages, then four attempts on page three")
}

func TestRun_MetricsFile(t *testing.T) {
	mock := newListing(t)
	metricsPath := filepath.Join(t.TempDir(), "star_export.prom")

	_, _, err := execute(t, "--name", "octocat", "--base-url", mock.URL(),
		"--output-dir", t.TempDir(), "--format", "csv", "--quiet",
		"--metrics-file", metricsPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "star_export_pages_total")
	assert.Contains(t, string(data), "star_export_requests_total")
}

func TestRun_UnreachableRedisDisablesCache(t *testing.T) {
	mock := newListing(t)
	dir := t.TempDir()

	_, stderr, err := execute(t, "--name", "octocat", "--base-url", mock.URL(),
		"--output-dir", dir, "--format", "csv", "--quiet",
		"--redis-url", "redis://127.0.0.1:1/0")
	require.NoError(t, err)
	assert.Contains(t, stderr, "continuing without page cache")
	assert.Len(t, snapshots(t, dir), 1)
}

func TestRun_MalformedRedisURL(t *testing.T) {
	mock := newListing(t)

	_, _, err := execute(t, "--name", "octocat", "--base-url", mock.URL(),
		"--output-dir", t.TempDir(), "--redis-url", "memcached://nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, pagination.ErrConfiguration))
	assert.Equal(t, 0, mock.RequestCount())
}

func TestRun_ConfigFile(t *testing.T) {
	mock := newListing(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "star-export.yaml")
	content := "name: octocat\nbase_url: " + mock.URL() + "\nquiet: true\noutput:\n  dir: " + dir + "\n  format: csv\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	stdout, _, err := execute(t, "--config", cfgPath)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Len(t, snapshots(t, dir), 1)
}

func TestRun_RejectsArguments(t *testing.T) {
	_, _, err := execute(t, "octocat")
	assert.Error(t, err)
}
