package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/mnemo/internal/config"
	"github.com/lazypower/mnemo/internal/engine"
	"github.com/lazypower/mnemo/internal/store"
)

type harness struct {
	t      *testing.T
	memory string
	config string
}

func newHarness(t *testing.T, configBody string) *harness {
	t.Helper()
	for _, k := range []string{"MNEMO_MEMORY", "MNEMO_EMBED_BACKEND", "OLLAMA_HOST", "MNEMO_EMBED_MODEL"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.toml")
	body := "[embedding]\nbackend = \"none\"\ncache_path = \"\"\n" + configBody
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0644))
	return &harness{t: t, memory: filepath.Join(dir, "memory.jsonl"), config: cfg}
}

func (h *harness) runRaw(stdin string, args ...string) (string, error) {
	h.t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--memory", h.memory, "--config", h.config))

	err := cmd.Execute()
	return out.String(), err
}

func (h *harness) run(stdin string, args ...string) (map[string]any, error) {
	h.t.Helper()
	out, err := h.runRaw(stdin, args...)
	if err != nil {
		return nil, err
	}
	var res map[string]any
	require.NoError(h.t, json.Unmarshal([]byte(out), &res), "stdout: %s", out)
	return res, nil
}

func (h *harness) mustRun(args ...string) map[string]any {
	h.t.Helper()
	res, err := h.run("", args...)
	require.NoError(h.t, err)
	return res
}

func (h *harness) records() []store.Record {
	h.t.Helper()
	res, err := store.Load(h.memory)
	require.NoError(h.t, err)
	return res.Records
}

func TestRememberSources(t *testing.T) {
	h := newHarness(t, "")

	res := h.mustRun("remember", "use", "table-driven", "tests", "--tag", "go", "--tag", "testing", "--importance", "high")
	assert.NotEmpty(t, res["id"])
	assert.Equal(t, h.memory, res["memory"])
	assert.Equal(t, "high", res["importance"])

	noteFile := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(noteFile, []byte("  from a file\n"), 0644))
	h.mustRun("remember", "--file", noteFile)

	_, err := h.run("piped in\n", "remember", "--source", "stdin")
	require.NoError(t, err)

	records := h.records()
	require.Len(t, records, 3)
	assert.Equal(t, "use table-driven tests", records[0].Text)
	assert.Equal(t, []string{"go", "testing"}, records[0].Tags)
	assert.Equal(t, "from a file", records[1].Text)
	assert.Equal(t, "piped in", records[2].Text)
	assert.Equal(t, "stdin", *records[2].Source)
}

func TestRememberEmptyText(t *testing.T) {
	h := newHarness(t, "")
	_, err := h.run("   ", "remember")
	assert.ErrorIs(t, err, engine.ErrEmptyText)
	assert.NoFileExists(t, h.memory)
}

func TestRememberReplaceAndForget(t *testing.T) {
	h := newHarness(t, "")
	id := h.mustRun("remember", "draft", "--tag", "a")["id"].(string)
	h.mustRun("remember", "other", "--tag", "b")

	res := h.mustRun("remember", "final", "--replace", id, "--pinned")
	assert.Equal(t, id, res["id"])
	assert.Equal(t, true, res["replaced"])
	assert.Equal(t, true, res["pinned"])

	res = h.mustRun("forget", "--tag", "a")
	assert.Equal(t, []any{id}, res["removed"])
	assert.EqualValues(t, 1, res["remaining"])

	_, err := h.run("", "forget")
	assert.ErrorIs(t, err, engine.ErrNoSelector)
}

func TestListCommand(t *testing.T) {
	h := newHarness(t, "")
	h.mustRun("remember", "expired already", "--ttl", "-1h")
	h.mustRun("remember", "kept", "--tag", "x")

	res := h.mustRun("list", "--tag", "x")
	assert.EqualValues(t, 1, res["swept"])
	records := res["records"].([]any)
	require.Len(t, records, 1)
	assert.Equal(t, "kept", records[0].(map[string]any)["text"])
	assert.Len(t, h.records(), 1)
}

func TestPruneCommand(t *testing.T) {
	h := newHarness(t, "[memory]\nmax_records = 2\n")
	h.mustRun("remember", "one")
	h.mustRun("remember", "two")
	h.mustRun("remember", "three", "--ttl", "-1h")

	res := h.mustRun("prune", "--keep-expired", "--max-records", "0")
	assert.EqualValues(t, 3, res["before"])
	assert.EqualValues(t, 3, res["after"])

	res = h.mustRun("prune", "--drop-expired=false", "--max-records", "-1")
	assert.EqualValues(t, 0, res["removed"])

	h.mustRun("remember", "four")
	res = h.mustRun("prune")
	assert.EqualValues(t, 4, res["before"])
	assert.EqualValues(t, 2, res["after"], "expired dropped, then capped by config max_records")

	_, err := h.run("", "prune", "--older-than", "someday")
	assert.ErrorIs(t, err, engine.ErrInvalidBoundary)
}

func TestSearchCommand(t *testing.T) {
	h := newHarness(t, "")
	h.mustRun("remember", "SQLite runs in WAL mode", "--tag", "db")
	h.mustRun("remember", "team lunch on thursday")

	res := h.mustRun("search", "WAL", "mode", "--show-text")
	assert.Equal(t, "lexical", res["method"])
	results := res["results"].([]any)
	require.NotEmpty(t, results)
	assert.Equal(t, "SQLite runs in WAL mode", results[0].(map[string]any)["text"])

	_, err := h.run("", "search", "wal", "--top-k", "0")
	assert.ErrorIs(t, err, engine.ErrInvalidTopK)

	_, err = h.run("", "search", "wal", "--truncate-dim", "100")
	assert.Error(t, err)
}

func TestSearchHashBackend(t *testing.T) {
	h := newHarness(t, "")
	h.mustRun("remember", "postgres connection pooling settings", "--backend", "hash")
	h.mustRun("remember", "favorite pizza toppings", "--backend", "hash", "--truncate-dim", "256")

	res := h.mustRun("search", "postgres connection pooling", "--backend", "hash", "-k", "1")
	assert.Equal(t, "vector", res["method"])
	require.Len(t, res["results"], 1)

	for _, rec := range h.records() {
		require.True(t, rec.HasEmbedding())
	}
	assert.Len(t, h.records()[0].Embedding, 512)
	assert.Len(t, h.records()[1].Embedding, 256)
}

func TestMissingConfigFile(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"list", "--config", filepath.Join(t.TempDir(), "missing.toml")})
	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestVersionCommand(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "mnemo dev"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, config.LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = newLogger(&buf, config.LogConfig{Level: "loud"})
	assert.Error(t, err)
	_, err = newLogger(&buf, config.LogConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestOutputFormat(t *testing.T) {
	h := newHarness(t, "")

	for _, args := range [][]string{
		{"remember", "one line please", "--tag", "fmt"},
		{"prune"},
		{"forget", "--tag", "nothing-matches"},
	} {
		out, err := h.runRaw("", args...)
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(out, "\n"), "%s output should be one line: %q", args[0], out)
	}

	for _, args := range [][]string{
		{"list"},
		{"search", "one"},
	} {
		out, err := h.runRaw("", args...)
		require.NoError(t, err)
		assert.Greater(t, strings.Count(out, "\n"), 1, "%s output should be indented: %q", args[0], out)
	}
}
