package webhook_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/memex/internal/webhook"
)

func TestFireDelivers(t *testing.T) {
	got := make(chan webhook.Payload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p webhook.Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		got <- p
	}))
	defer server.Close()

	n := webhook.New(nil)
	n.Fire(context.Background(), server.URL, webhook.Payload{Event: "session.finalized", SessionID: "s1", Summary: "did it"})

	select {
	case p := <-got:
		assert.Equal(t, "s1", p.SessionID)
		assert.Equal(t, "did it", p.Summary)
	case <-time.After(time.Second):
		t.Fatal("webhook not delivered")
	}
}

func TestFireSwallowsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	logger, hook := test.NewNullLogger()
	n := webhook.New(logrus.NewEntry(logger))
	n.Fire(context.Background(), server.URL, webhook.Payload{Event: "session.finalized"})
	n.Fire(context.Background(), "http://127.0.0.1:1/unreachable", webhook.Payload{})
	n.Fire(context.Background(), "", webhook.Payload{})

	assert.Len(t, hook.AllEntries(), 2)
	for _, e := range hook.AllEntries() {
		assert.Equal(t, logrus.WarnLevel, e.Level)
	}
}
