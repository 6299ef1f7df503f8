package logstore

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelector(t *testing.T) {
	selector := Selector(map[string]string{
		"job":        "suricata",
		"event_type": "flow",
	})
	// Keys come out sorted, so the selector is stable across runs.
	assert.Equal(t, `{event_type="flow", job="suricata"}`, selector)

	assert.Equal(t, "{}", Selector(nil))
}

func TestQueryRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/loki/api/v1/query_range", r.URL.Path)
		assert.Equal(t, `{event_type="flow", job="suricata"}`, r.URL.Query().Get("query"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))

		fmt.Fprint(w, `{
			"status": "success",
			"data": {
				"result": [
					{
						"stream": {"job": "suricata", "event_type": "flow"},
						"values": [
							["2000000000", "{\"src_ip\":\"10.0.0.2\"}"],
							["1000000000", "{\"src_ip\":\"10.0.0.1\"}"]
						]
					}
				]
			}
		}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 100, zerolog.Nop())
	records, err := client.QueryRange(context.Background(),
		Selector(map[string]string{"job": "suricata", "event_type": "flow"}),
		time.Unix(0, 0), time.Unix(10, 0))
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Ascending timestamp order regardless of backend ordering.
	assert.True(t, records[0].Timestamp.Before(records[1].Timestamp))
	assert.Equal(t, "10.0.0.1", StringField(records[0].Fields(), "src_ip"))
	assert.Equal(t, "flow", records[0].Kind())
}

func TestQueryRangeEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status": "success", "data": {"result": []}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 0, zerolog.Nop())
	records, err := client.QueryRange(context.Background(), "{}", time.Unix(0, 0), time.Unix(10, 0))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestQueryRangeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"status": "success", "data": {"result": []}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 0, zerolog.Nop())
	_, err := client.QueryRange(context.Background(), "{}", time.Unix(0, 0), time.Unix(10, 0))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestQueryRangeClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 0, zerolog.Nop())
	_, err := client.QueryRange(context.Background(), "{}", time.Unix(0, 0), time.Unix(10, 0))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses must not be retried")
}

func TestPush(t *testing.T) {
	var received pushRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/loki/api/v1/push", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 0, zerolog.Nop())
	labels := map[string]string{"service": "orion-ai", "kind": "security_event"}
	err := client.Push(context.Background(), labels, []string{`{"a":1}`, `{"b":2}`})
	require.NoError(t, err)

	require.Len(t, received.Streams, 1)
	assert.Equal(t, labels, received.Streams[0].Stream)
	require.Len(t, received.Streams[0].Values, 2)
	assert.Equal(t, `{"a":1}`, received.Streams[0].Values[0][1])
}

func TestPushNoLinesIsNoop(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, 0, zerolog.Nop())
	require.NoError(t, client.Push(context.Background(), nil, nil))
	assert.Zero(t, calls.Load())
}

func TestRecordFields(t *testing.T) {
	rec := RawRecord{
		Labels: map[string]string{"event_type": "dns"},
		Line:   `{"src_ip": "10.0.0.1", "dest_port": 443, "dns": {"rrname": "example.com"}}`,
	}

	assert.Equal(t, "dns", rec.Kind())

	fields := rec.Fields()
	assert.Equal(t, "10.0.0.1", StringField(fields, "src_ip"))
	assert.Equal(t, 443.0, NumberField(fields, "dest_port"))
	assert.Equal(t, "example.com", NestedField(fields, "dns", "rrname"))

	assert.Equal(t, "", StringField(fields, "missing"))
	assert.Zero(t, NumberField(fields, "src_ip"))
	assert.Nil(t, NestedField(fields, "dns", "missing"))
	assert.Nil(t, NestedField(fields, "src_ip", "anything"))
}

func TestRecordFieldsMalformedLine(t *testing.T) {
	rec := RawRecord{Line: "not json"}
	assert.Nil(t, rec.Fields())
	assert.Equal(t, "", StringField(rec.Fields(), "src_ip"))
}
