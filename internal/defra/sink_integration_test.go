package defra

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/foliolabs/folio/internal/testutil"
)

// patternSchema mirrors the UrlPattern collection the pattern store
// uses in production, enough to exercise writes end to end.
const patternSchema = `
	type UrlPattern {
		domain: String
		template: String
		confidence: Float
		success_rate: Float
	}
`

// startSinkStack spins up a DefraDB container with the UrlPattern
// schema applied and a running sink on top of it.
func startSinkStack(t *testing.T) (*Client, *Sink, func()) {
	t.Helper()

	_ = testutil.DockerClient(t)

	ctx := context.Background()
	containerName := testutil.UniqueContainerName(t, "sink")
	port, err := testutil.FindFreePort()
	if err != nil {
		t.Fatalf("FindFreePort() error = %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	mgr, err := NewDockerManager(DockerConfig{
		ContainerName: containerName,
		DataPath:      t.TempDir(),
		HostPort:      port,
		Labels:        testutil.ContainerLabels(t),
	})
	if err != nil {
		t.Fatalf("NewDockerManager() error = %v", err)
	}

	if err := mgr.Start(ctx); err != nil {
		mgr.Close()
		t.Fatalf("Start() error = %v", err)
	}

	client := NewClient(mgr.URL())
	if err := client.HealthCheck(ctx); err != nil {
		mgr.Stop(ctx)
		mgr.Close()
		t.Fatalf("HealthCheck() error = %v", err)
	}

	if err := client.AddSchema(ctx, patternSchema); err != nil {
		// Already-registered schemas are fine on container reuse.
		t.Logf("AddSchema: %v", err)
	}

	sink := NewSink(SinkConfig{
		Client:        client,
		BatchSize:     10,
		FlushInterval: 100 * time.Millisecond,
		Logger:        logger,
	})
	sink.Start(ctx)

	cleanup := func() {
		sink.Stop()
		mgr.Stop(context.Background())
		mgr.Close()
	}
	return client, sink, cleanup
}

// queryPatterns fetches all UrlPattern docs for one domain.
func queryPatterns(t *testing.T, client *Client, domain string) []any {
	t.Helper()

	resp, err := NewQuery("UrlPattern").
		Filter("domain", domain).
		Fields("_docID", "domain", "template", "confidence").
		Execute(context.Background(), client)
	if err != nil {
		t.Fatalf("pattern query error = %v", err)
	}
	docs, _ := resp.Data["UrlPattern"].([]any)
	return docs
}

func TestSinkIntegration_CreateAndRead(t *testing.T) {
	client, sink, cleanup := startSinkStack(t)
	defer cleanup()

	ctx := context.Background()

	result, err := sink.SendSync(ctx, WriteOp{
		Collection: "UrlPattern",
		Document: map[string]any{
			"domain":     "create.example",
			"template":   "/novel/dragon/chapter-{number}",
			"confidence": 0.7,
		},
		Op: OpCreate,
	})
	if err != nil {
		t.Fatalf("SendSync() error = %v", err)
	}
	if result.DocID == "" {
		t.Fatal("expected non-empty DocID")
	}

	docs := queryPatterns(t, client, "create.example")
	if len(docs) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(docs))
	}

	doc := docs[0].(map[string]any)
	if doc["template"] != "/novel/dragon/chapter-{number}" {
		t.Errorf("unexpected template: %v", doc["template"])
	}
	if doc["confidence"].(float64) != 0.7 {
		t.Errorf("unexpected confidence: %v", doc["confidence"])
	}
}

func TestSinkIntegration_Update(t *testing.T) {
	client, sink, cleanup := startSinkStack(t)
	defer cleanup()

	ctx := context.Background()

	created, err := sink.SendSync(ctx, WriteOp{
		Collection: "UrlPattern",
		Document: map[string]any{
			"domain":     "update.example",
			"template":   "/ch/{number}",
			"confidence": 0.7,
		},
		Op: OpCreate,
	})
	if err != nil {
		t.Fatalf("SendSync() create error = %v", err)
	}

	// Confidence moves after a validation outcome.
	updated, err := sink.SendSync(ctx, WriteOp{
		Collection: "UrlPattern",
		DocID:      created.DocID,
		Document:   map[string]any{"confidence": 0.79},
		Op:         OpUpdate,
	})
	if err != nil {
		t.Fatalf("SendSync() update error = %v", err)
	}
	if updated.DocID != created.DocID {
		t.Errorf("update DocID = %s, want %s", updated.DocID, created.DocID)
	}

	docs := queryPatterns(t, client, "update.example")
	if len(docs) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(docs))
	}
	doc := docs[0].(map[string]any)
	if doc["confidence"].(float64) != 0.79 {
		t.Errorf("confidence = %v, want 0.79", doc["confidence"])
	}
	if doc["template"] != "/ch/{number}" {
		t.Errorf("template changed unexpectedly: %v", doc["template"])
	}
}

func TestSinkIntegration_Delete(t *testing.T) {
	client, sink, cleanup := startSinkStack(t)
	defer cleanup()

	ctx := context.Background()

	created, err := sink.SendSync(ctx, WriteOp{
		Collection: "UrlPattern",
		Document: map[string]any{
			"domain":   "evict.example",
			"template": "/ch/{number}",
		},
		Op: OpCreate,
	})
	if err != nil {
		t.Fatalf("SendSync() create error = %v", err)
	}

	if _, err := sink.SendSync(ctx, WriteOp{
		Collection: "UrlPattern",
		DocID:      created.DocID,
		Op:         OpDelete,
	}); err != nil {
		t.Fatalf("SendSync() delete error = %v", err)
	}

	if docs := queryPatterns(t, client, "evict.example"); len(docs) > 0 {
		t.Errorf("expected pattern to be deleted, found: %v", docs)
	}
}

func TestSinkIntegration_FireAndForget(t *testing.T) {
	client, sink, cleanup := startSinkStack(t)
	defer cleanup()

	for i := 0; i < 5; i++ {
		sink.Send(WriteOp{
			Collection: "UrlPattern",
			Document: map[string]any{
				"domain":   "fire.example",
				"template": fmt.Sprintf("/site%d/ch/{number}", i),
			},
			Op: OpCreate,
		})
	}

	// Fire-and-forget gives no completion signal; wait out the flush
	// interval instead.
	time.Sleep(300 * time.Millisecond)

	if docs := queryPatterns(t, client, "fire.example"); len(docs) != 5 {
		t.Errorf("expected 5 patterns, got %d", len(docs))
	}
}

func TestSinkIntegration_ConcurrentWrites(t *testing.T) {
	client, sink, cleanup := startSinkStack(t)
	defer cleanup()

	ctx := context.Background()

	var wg sync.WaitGroup
	const goroutines, perGoroutine = 10, 5

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				_, err := sink.SendSync(ctx, WriteOp{
					Collection: "UrlPattern",
					Document: map[string]any{
						"domain":   "concurrent.example",
						"template": fmt.Sprintf("/g%d/ch/{number}-%d", g, i),
					},
					Op: OpCreate,
				})
				if err != nil {
					t.Errorf("goroutine %d write %d: %v", g, i, err)
				}
			}
		}(g)
	}
	wg.Wait()

	docs := queryPatterns(t, client, "concurrent.example")
	if len(docs) != goroutines*perGoroutine {
		t.Errorf("expected %d patterns, got %d", goroutines*perGoroutine, len(docs))
	}
}

func TestSinkIntegration_BatchFlush(t *testing.T) {
	client, sink, cleanup := startSinkStack(t)
	defer cleanup()

	// More than one batch's worth (batch size is 10).
	for i := 0; i < 15; i++ {
		sink.Send(WriteOp{
			Collection: "UrlPattern",
			Document: map[string]any{
				"domain":   "batch.example",
				"template": fmt.Sprintf("/b/ch/{number}-%d", i),
			},
			Op: OpCreate,
		})
	}

	time.Sleep(300 * time.Millisecond)

	if docs := queryPatterns(t, client, "batch.example"); len(docs) != 15 {
		t.Errorf("expected 15 patterns, got %d", len(docs))
	}
}

func TestSinkIntegration_GracefulShutdown(t *testing.T) {
	_ = testutil.DockerClient(t)

	ctx := context.Background()
	containerName := testutil.UniqueContainerName(t, "shutdown")
	port, err := testutil.FindFreePort()
	if err != nil {
		t.Fatalf("FindFreePort() error = %v", err)
	}

	mgr, err := NewDockerManager(DockerConfig{
		ContainerName: containerName,
		DataPath:      t.TempDir(),
		HostPort:      port,
		Labels:        testutil.ContainerLabels(t),
	})
	if err != nil {
		t.Fatalf("NewDockerManager() error = %v", err)
	}
	defer mgr.Close()
	defer mgr.Stop(context.Background())

	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	client := NewClient(mgr.URL())
	if err := client.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
	_ = client.AddSchema(ctx, patternSchema)

	// Triggers sized so only Stop can flush.
	sink := NewSink(SinkConfig{
		Client:        client,
		BatchSize:     100,
		FlushInterval: 10 * time.Second,
	})
	sink.Start(ctx)

	for i := 0; i < 5; i++ {
		sink.Send(WriteOp{
			Collection: "UrlPattern",
			Document: map[string]any{
				"domain":   "shutdown.example",
				"template": fmt.Sprintf("/s/ch/{number}-%d", i),
			},
			Op: OpCreate,
		})
	}

	sink.Stop()

	if docs := queryPatterns(t, client, "shutdown.example"); len(docs) != 5 {
		t.Errorf("expected 5 patterns after graceful shutdown, got %d", len(docs))
	}
}
