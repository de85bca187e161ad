package bulk

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureIndex_CreatesMissingIndex(t *testing.T) {
	var created map[string]any
	var methods []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		assert.Equal(t, "/email-traffic", r.URL.Path)
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			w.Write([]byte(`{"acknowledged":true}`))
		default:
			t.Errorf("unexpected %s", r.Method)
		}
	}))
	defer server.Close()

	client := NewClient(ClientConfig{URL: server.URL + "/"})
	require.NoError(t, client.EnsureIndex(context.Background(), "email-traffic", FlowSchema, false))

	assert.Equal(t, []string{http.MethodHead, http.MethodPut}, methods)
	require.Contains(t, created, "mappings")
}

func TestEnsureIndex_Recreate(t *testing.T) {
	var methods []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{URL: server.URL})
	require.NoError(t, client.EnsureIndex(context.Background(), "email-data", UnifiedSchema, false))
	assert.Equal(t, []string{http.MethodHead}, methods, "existing index is left alone")

	methods = nil
	require.NoError(t, client.EnsureIndex(context.Background(), "email-data", UnifiedSchema, true))
	assert.Equal(t, []string{http.MethodHead, http.MethodDelete, http.MethodPut}, methods)
}

func TestBulk_ItemFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_bulk", r.URL.Path)
		assert.Equal(t, "application/x-ndjson", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.True(t, strings.HasSuffix(string(body), "\n"))

		w.Write([]byte(`{"errors":true,"items":[
			{"index":{"_id":"1","status":201}},
			{"index":{"_id":"2","status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse field [source_ip]"}}},
			{"index":{"_id":"3","status":200,"error":null}}
		]}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{URL: server.URL})
	result, err := client.Bulk(context.Background(), []byte("{}\n{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Indexed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, ItemFailure{ID: "2", Status: 400, Reason: "mapper_parsing_exception: failed to parse field [source_ip]"}, result.Failures[0])
}

func TestBulk_RetriesTransientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"errors":false,"items":[{"index":{"_id":"1","status":201}}]}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{URL: server.URL, MaxRetries: 1})
	result, err := client.Bulk(context.Background(), []byte("{}\n{}\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Indexed)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestBulk_PermanentErrorIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad payload"}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{URL: server.URL, MaxRetries: 3})
	_, err := client.Bulk(context.Background(), []byte("x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/email-data/_count", r.URL.Path)
		w.Write([]byte(`{"count":42}`))
	}))
	defer server.Close()

	n, err := NewClient(ClientConfig{URL: server.URL}).Count(context.Background(), "email-data")
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestClassifyError(t *testing.T) {
	assert.True(t, classifyError(429, "").transient)
	assert.True(t, classifyError(502, "").transient)
	assert.True(t, classifyError(404, "").permanent)
	assert.Equal(t, 2*time.Second, backoffDelay(2))
}

type fakeLoader struct {
	calls    int
	failOn   int
	payloads [][]byte
}

func (f *fakeLoader) Bulk(_ context.Context, payload []byte) (BulkResult, error) {
	f.calls++
	f.payloads = append(f.payloads, payload)
	if f.calls == f.failOn {
		return BulkResult{}, classifyError(400, "rejected")
	}
	lines := strings.Count(string(payload), "\n") / 2
	return BulkResult{Indexed: lines}, nil
}

func TestLoad(t *testing.T) {
	items := make([]Item, 5)
	for i := range items {
		items[i] = Item{Action: []byte(`{"index":{}}`), Doc: []byte(`{}`)}
	}
	loader := &fakeLoader{failOn: 2}

	stats, err := Load(context.Background(), loader, Prepared{Index: "email-data", Items: items}, 2, 0)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Batches)
	assert.Equal(t, 3, stats.Indexed)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 1, stats.FailedBatches)
	assert.Len(t, loader.payloads, 3)
}

func TestLoad_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, &fakeLoader{}, Prepared{Items: []Item{{}}}, 10, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
