package defra

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeNode simulates a DefraDB node answering mutations against the
// given collection with a fixed docID.
func fakeNode(t *testing.T, collection, docID string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		var req GQLRequest
		json.NewDecoder(r.Body).Decode(&req)

		key := "create_" + collection
		switch {
		case strings.Contains(req.Query, "update_"):
			key = "update_" + collection
		case strings.Contains(req.Query, "delete_"):
			key = "delete_" + collection
		}

		json.NewEncoder(w).Encode(GQLResponse{
			Data: map[string]any{
				key: []any{map[string]any{"_docID": docID}},
			},
		})
	}))
}

func newTestSink(client *Client, batch int, interval time.Duration) *Sink {
	return NewSink(SinkConfig{
		Client:        client,
		BatchSize:     batch,
		FlushInterval: interval,
	})
}

func TestSink_SendSync_CreateMetric(t *testing.T) {
	var hits atomic.Int32
	server := fakeNode(t, "Metric", "bae-metric-1", &hits)
	defer server.Close()

	sink := newTestSink(NewClient(server.URL), 10, 100*time.Millisecond)
	ctx := context.Background()
	sink.Start(ctx)
	defer sink.Stop()

	result, err := sink.SendSync(ctx, WriteOp{
		Collection: "Metric",
		Document: map[string]any{
			"operation": "prediction",
			"domain":    "novelsite.com",
			"method":    "pattern",
		},
		Op: OpCreate,
	})
	if err != nil {
		t.Fatalf("SendSync() error = %v", err)
	}
	if result.DocID != "bae-metric-1" {
		t.Errorf("SendSync() docID = %q, want %q", result.DocID, "bae-metric-1")
	}
}

func TestSink_Send_FireAndForget(t *testing.T) {
	var hits atomic.Int32
	server := fakeNode(t, "Metric", "bae-metric-2", &hits)
	defer server.Close()

	sink := newTestSink(NewClient(server.URL), 10, 50*time.Millisecond)
	sink.Start(context.Background())

	sink.Send(WriteOp{
		Collection: "Metric",
		Document:   map[string]any{"operation": "translation", "duration_ms": 42},
		Op:         OpCreate,
	})

	time.Sleep(100 * time.Millisecond)
	sink.Stop()

	if hits.Load() != 1 {
		t.Errorf("expected 1 write, got %d", hits.Load())
	}
}

func TestSink_FlushOnBatchSize(t *testing.T) {
	var hits atomic.Int32
	server := fakeNode(t, "Metric", "bae-metric-3", &hits)
	defer server.Close()

	// Long interval so the size trigger has to do the flushing.
	sink := newTestSink(NewClient(server.URL), 3, 10*time.Second)
	sink.Start(context.Background())

	for i := 0; i < 3; i++ {
		sink.Send(WriteOp{
			Collection: "Metric",
			Document:   map[string]any{"operation": "prediction", "duration_ms": i},
			Op:         OpCreate,
		})
	}

	time.Sleep(100 * time.Millisecond)
	sink.Stop()

	if hits.Load() != 3 {
		t.Errorf("expected 3 writes, got %d", hits.Load())
	}
}

func TestSink_FlushOnInterval(t *testing.T) {
	var hits atomic.Int32
	server := fakeNode(t, "Translation", "bae-rec-1", &hits)
	defer server.Close()

	// Large batch so the interval trigger has to do the flushing.
	sink := newTestSink(NewClient(server.URL), 100, 50*time.Millisecond)
	sink.Start(context.Background())

	sink.Send(WriteOp{
		Collection: "Translation",
		Document:   map[string]any{"provider": "openrouter", "success": true},
		Op:         OpCreate,
	})

	time.Sleep(100 * time.Millisecond)
	sink.Stop()

	if hits.Load() != 1 {
		t.Errorf("expected 1 write from interval flush, got %d", hits.Load())
	}
}

func TestSink_StopDrainsQueue(t *testing.T) {
	var hits atomic.Int32
	server := fakeNode(t, "Translation", "bae-rec-2", &hits)
	defer server.Close()

	// Nothing should flush before Stop.
	sink := newTestSink(NewClient(server.URL), 100, 10*time.Second)
	sink.Start(context.Background())

	for i := 0; i < 5; i++ {
		sink.Send(WriteOp{
			Collection: "Translation",
			Document:   map[string]any{"provider": "openai", "duration_ms": i},
			Op:         OpCreate,
		})
	}

	sink.Stop()

	if hits.Load() != 5 {
		t.Errorf("expected 5 writes drained on stop, got %d", hits.Load())
	}
}

func TestSink_SendAfterStopDoesNotPanic(t *testing.T) {
	var hits atomic.Int32
	server := fakeNode(t, "Metric", "bae-metric-4", &hits)
	defer server.Close()

	sink := newTestSink(NewClient(server.URL), 10, 50*time.Millisecond)
	sink.Start(context.Background())
	sink.Stop()

	// Dropped with a warning, not a send-on-closed-channel panic.
	sink.Send(WriteOp{
		Collection: "Metric",
		Document:   map[string]any{"operation": "prediction"},
		Op:         OpCreate,
	})
}

func TestSink_ConcurrentSends(t *testing.T) {
	var hits atomic.Int32
	server := fakeNode(t, "Metric", "bae-metric-5", &hits)
	defer server.Close()

	sink := newTestSink(NewClient(server.URL), 100, 50*time.Millisecond)
	sink.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sink.Send(WriteOp{
				Collection: "Metric",
				Document:   map[string]any{"operation": "prediction", "duration_ms": n},
				Op:         OpCreate,
			})
		}(i)
	}

	wg.Wait()
	time.Sleep(100 * time.Millisecond)
	sink.Stop()

	if hits.Load() != 10 {
		t.Errorf("expected 10 writes, got %d", hits.Load())
	}
}

func TestSink_SendSync_UpdatePattern(t *testing.T) {
	var hits atomic.Int32
	server := fakeNode(t, "UrlPattern", "bae-pattern-1", &hits)
	defer server.Close()

	sink := newTestSink(NewClient(server.URL), 10, 50*time.Millisecond)
	ctx := context.Background()
	sink.Start(ctx)
	defer sink.Stop()

	result, err := sink.SendSync(ctx, WriteOp{
		Collection: "UrlPattern",
		DocID:      "bae-pattern-1",
		Document:   map[string]any{"confidence": 0.82},
		Op:         OpUpdate,
	})
	if err != nil {
		t.Fatalf("SendSync() error = %v", err)
	}
	if result.DocID != "bae-pattern-1" {
		t.Errorf("SendSync() docID = %q, want %q", result.DocID, "bae-pattern-1")
	}
}

func TestSink_SendSync_DeletePattern(t *testing.T) {
	var hits atomic.Int32
	server := fakeNode(t, "UrlPattern", "bae-pattern-2", &hits)
	defer server.Close()

	sink := newTestSink(NewClient(server.URL), 10, 50*time.Millisecond)
	ctx := context.Background()
	sink.Start(ctx)
	defer sink.Stop()

	result, err := sink.SendSync(ctx, WriteOp{
		Collection: "UrlPattern",
		DocID:      "bae-pattern-2",
		Op:         OpDelete,
	})
	if err != nil {
		t.Fatalf("SendSync() error = %v", err)
	}
	if result.DocID != "bae-pattern-2" {
		t.Errorf("SendSync() docID = %q, want %q", result.DocID, "bae-pattern-2")
	}
}

func TestSink_ManualFlush(t *testing.T) {
	var hits atomic.Int32
	server := fakeNode(t, "Metric", "bae-metric-6", &hits)
	defer server.Close()

	// Neither trigger should fire on its own.
	sink := newTestSink(NewClient(server.URL), 100, 10*time.Second)
	ctx := context.Background()
	sink.Start(ctx)
	defer sink.Stop()

	sink.Send(WriteOp{
		Collection: "Metric",
		Document:   map[string]any{"operation": "prediction"},
		Op:         OpCreate,
	})

	time.Sleep(10 * time.Millisecond)
	sink.Flush(ctx)
	time.Sleep(100 * time.Millisecond)

	if hits.Load() != 1 {
		t.Errorf("expected 1 write after manual flush, got %d", hits.Load())
	}
}
