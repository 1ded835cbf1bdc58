package cmd

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/fakeyudi/memex/internal/memory"
	"github.com/fakeyudi/memex/internal/session"
)

func TestStatusWithoutMemory(t *testing.T) {
	isolate(t)
	out, err := executeCommand(rootCmd, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Active session: none", "no memory recorded yet"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestStatusShowsMarkers(t *testing.T) {
	p := isolate(t)
	if err := p.Tracker.WriteActive(session.ActiveMarker{SessionID: "live", PID: os.Getpid(), StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := p.Tracker.WritePending(session.PendingMarker{SessionID: "old", RawLogPath: "/tmp/x.raw.log"}); err != nil {
		t.Fatal(err)
	}

	out, err := executeCommand(rootCmd, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Active session: live (pid", "running", "Pending compression: old"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

// Feature: memex, Property 11: Status counts accuracy
func TestStatusCountsAccuracy(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		N := rapid.IntRange(0, 20).Draw(rt, "N") // pending tasks
		M := rapid.IntRange(0, 5).Draw(rt, "M")  // sessions

		p := isolate(t)
		m := memory.New()
		for i := 0; i < N; i++ {
			m.PendingTasks = append(m.PendingTasks, fmt.Sprintf("task %d", i))
		}
		for i := 0; i < M; i++ {
			m.RecordSession(memory.SessionEntry{ID: fmt.Sprint(i), StartedAt: time.Now(), Summary: fmt.Sprintf("summary %d\nmore", i)})
		}
		if err := p.Store.Save(p.ID, m); err != nil {
			rt.Fatalf("Save: %v", err)
		}

		out, err := executeCommand(rootCmd, "status")
		if err != nil {
			rt.Fatalf("status command error: %v", err)
		}

		wantTasks := fmt.Sprintf("Pending tasks: %d", N)
		wantSessions := fmt.Sprintf("Sessions: %d", M)
		if !strings.Contains(out, wantTasks) {
			rt.Errorf("expected output to contain %q, got:\n%s", wantTasks, out)
		}
		if !strings.Contains(out, wantSessions) {
			rt.Errorf("expected output to contain %q, got:\n%s", wantSessions, out)
		}
		if M > 0 && !strings.Contains(out, fmt.Sprintf("Last session: summary %d\n", M-1)) {
			rt.Errorf("expected last session summary line, got:\n%s", out)
		}
	})
}
