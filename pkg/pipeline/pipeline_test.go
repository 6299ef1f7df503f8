package pipeline

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/logstore"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/model"
)

// fakeBackend emulates the log store: range queries answer from canned
// per-event-type lines, pushes are captured for assertions.
type fakeBackend struct {
	mu     sync.Mutex
	lines  map[string][]string // event_type -> lines
	events []string            // security_event lines for ReadEvents
	pushes []capturedPush
}

type capturedPush struct {
	Stream map[string]string
	Lines  []string
}

func (b *fakeBackend) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/loki/api/v1/query_range", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")

		b.mu.Lock()
		var lines []string
		if strings.Contains(query, `kind="security_event"`) {
			lines = b.events
		} else {
			for eventType, typeLines := range b.lines {
				if strings.Contains(query, fmt.Sprintf("event_type=%q", eventType)) {
					lines = typeLines
				}
			}
		}
		b.mu.Unlock()

		values := make([][2]string, 0, len(lines))
		for i, line := range lines {
			values = append(values, [2]string{strconv.FormatInt(int64(i+1)*1_000_000_000, 10), line})
		}
		resp := map[string]interface{}{
			"status": "success",
			"data": map[string]interface{}{
				"result": []map[string]interface{}{
					{"stream": map[string]string{}, "values": values},
				},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	mux.HandleFunc("/loki/api/v1/push", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Streams []struct {
				Stream map[string]string `json:"stream"`
				Values [][2]string       `json:"values"`
			} `json:"streams"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		b.mu.Lock()
		for _, stream := range req.Streams {
			push := capturedPush{Stream: stream.Stream}
			for _, v := range stream.Values {
				push.Lines = append(push.Lines, v[1])
			}
			b.pushes = append(b.pushes, push)
		}
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func (b *fakeBackend) pushesOfKind(kind string) []capturedPush {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []capturedPush
	for _, p := range b.pushes {
		if p.Stream["kind"] == kind {
			out = append(out, p)
		}
	}
	return out
}

func newBackendClient(t *testing.T, backend *fakeBackend) *logstore.Client {
	t.Helper()
	server := httptest.NewServer(backend.handler(t))
	t.Cleanup(server.Close)
	return logstore.NewClient(server.URL, 5*time.Second, 0, zerolog.Nop())
}

// writeModel writes a linear artifact with the given per-feature weights;
// unlisted features get weight zero.
func writeModel(t *testing.T, names []string, weights map[string]float64) string {
	t.Helper()

	artifact := model.Artifact{
		Name:     "test-model",
		Version:  "0.0.1",
		Kind:     model.KindLinear,
		Features: names,
		Weights:  make([]float64, len(names)),
	}
	for i, name := range names {
		artifact.Weights[i] = weights[name]
	}

	data, err := json.Marshal(artifact)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newRegistry(t *testing.T, pipeline string, names []string, weights map[string]float64) *model.Registry {
	t.Helper()
	reg := model.NewRegistry(0, zerolog.Nop())
	reg.Load(pipeline, writeModel(t, names, weights))
	require.True(t, reg.Loaded(pipeline))
	return reg
}

func flowLine(src, dest string, port int) string {
	return fmt.Sprintf(`{"src_ip": %q, "dest_ip": %q, "dest_port": %d, "proto": "TCP"}`, src, dest, port)
}

func dnsQueryLine(domain string) string {
	return fmt.Sprintf(`{"dns": {"type": "query", "rrname": %q}}`, domain)
}
