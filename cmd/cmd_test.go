package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

// executeCommand runs a cobra command with the given args and captures combined output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	_, err = root.ExecuteC()
	return buf.String(), err
}

// isolate points every XDG directory at a temp dir, moves into a fresh
// project directory and resets flag state left over from earlier runs.
func isolate(t *testing.T) *project {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmp, "data"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(tmp, "state"))
	t.Setenv("MEMEX_LOG_LEVEL", "")
	for _, k := range []string{"MEMEX_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY"} {
		t.Setenv(k, "")
	}
	dir := filepath.Join(tmp, "proj")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	snapshotCompress = false
	contextTier, contextBudget, contextTokens, contextFocus, contextWatch = 0, 0, 0, "", false
	plainOutput = false
	exportFormat = "json"
	noteGotcha, noteDecision, noteReason = false, false, ""

	p, err := openProject()
	if err != nil {
		t.Fatalf("openProject: %v", err)
	}
	return p
}

// writeGlobalConfig writes the global config file under XDG_CONFIG_HOME.
func writeGlobalConfig(t *testing.T, v map[string]any) {
	t.Helper()
	dir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "memex")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// summarizerServer fakes the messages endpoint, replying with text or with
// status when it is not 200.
func summarizerServer(t *testing.T, status int, text string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, "upstream unavailable", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]string{{"type": "text", "text": text}},
			"stop_reason": "end_turn",
		})
	}))
	t.Cleanup(server.Close)
	t.Setenv("MEMEX_API_KEY", "test-key")
	writeGlobalConfig(t, map[string]any{"base_url": server.URL})
	return server
}
