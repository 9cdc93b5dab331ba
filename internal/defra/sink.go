package defra

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// OpType says what a queued write does to its collection.
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// WriteOp is one queued write. Prediction metrics and translation
// records flow through here as fire-and-forget creates; DocID is only
// needed for updates and deletes.
type WriteOp struct {
	Collection string
	Document   map[string]any
	DocID      string
	Op         OpType
	result     chan<- WriteResult // set by SendSync, nil for Send
}

// WriteResult reports the outcome of one write.
type WriteResult struct {
	DocID string
	Err   error
}

// SinkConfig configures a Sink. Only Client is required.
type SinkConfig struct {
	Client        *Client
	BatchSize     int           // flush after this many queued ops (default 100)
	FlushInterval time.Duration // or after this much time (default 5s)
	QueueSize     int           // queue capacity before Send blocks (default 1000)
	Logger        *slog.Logger
}

// Sink decouples request handling from DefraDB writes. Handlers queue
// ops and return; a single background loop drains the queue in batches
// so a slow node delays persistence, not responses.
type Sink struct {
	client *Client
	logger *slog.Logger

	batchSize     int
	flushInterval time.Duration

	queue   chan WriteOp
	pending []WriteOp
	mu      sync.Mutex
	kick    chan struct{} // manual flush signal

	ctx      context.Context
	cancel   context.CancelFunc
	done     sync.WaitGroup
	stopOnce sync.Once
}

// NewSink creates a Sink. Call Start before queueing writes.
func NewSink(cfg SinkConfig) *Sink {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Sink{
		client:        cfg.Client,
		logger:        cfg.Logger.With("component", "sink"),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		queue:         make(chan WriteOp, cfg.QueueSize),
		pending:       make([]WriteOp, 0, cfg.BatchSize),
		kick:          make(chan struct{}, 1),
	}
}

// Start launches the drain loop.
func (s *Sink) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.done.Add(1)
	go s.loop()
}

// Stop drains everything still queued, then shuts the sink down. Safe
// to call more than once.
func (s *Sink) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping sink, draining queued writes")
		close(s.queue)
		s.done.Wait()
		s.cancel()
		s.logger.Info("sink stopped")
	})
}

// Send queues a write without waiting for it. Writes sent after Stop
// are dropped with a warning rather than panicking the caller.
func (s *Sink) Send(op WriteOp) {
	op.result = nil

	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("sink closed, dropping write",
				"collection", op.Collection, "op", op.Op)
		}
	}()

	select {
	case s.queue <- op:
	default:
		// Queue full: block until there is room or the sink dies.
		select {
		case s.queue <- op:
		case <-s.ctx.Done():
			s.logger.Warn("sink closed, dropping write",
				"collection", op.Collection, "op", op.Op)
		}
	}
}

// SendSync queues a write and waits for its result.
func (s *Sink) SendSync(ctx context.Context, op WriteOp) (WriteResult, error) {
	resultCh := make(chan WriteResult, 1)
	op.result = resultCh

	select {
	case s.queue <- op:
	case <-s.ctx.Done():
		return WriteResult{}, ErrSinkClosed
	case <-ctx.Done():
		return WriteResult{}, ctx.Err()
	}

	select {
	case res := <-resultCh:
		return res, res.Err
	case <-s.ctx.Done():
		return WriteResult{}, fmt.Errorf("%w while waiting for result", ErrSinkClosed)
	case <-ctx.Done():
		return WriteResult{}, ctx.Err()
	}
}

// Flush asks the loop to write out the pending batch now. Used by
// tests and the metrics recorder; normal operation relies on the
// size/interval triggers.
func (s *Sink) Flush(ctx context.Context) error {
	select {
	case s.kick <- struct{}{}:
	default:
		// a flush is already pending
	}
	return nil
}

// loop gathers queued ops and flushes on batch size, interval, or kick.
func (s *Sink) loop() {
	defer s.done.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case op, ok := <-s.queue:
			if !ok {
				s.flush()
				return
			}
			s.mu.Lock()
			s.pending = append(s.pending, op)
			full := len(s.pending) >= s.batchSize
			s.mu.Unlock()
			if full {
				s.flush()
			}

		case <-ticker.C:
			s.flush()

		case <-s.kick:
			s.flush()
		}
	}
}

// flush writes out the pending batch in arrival order. Each op is one
// mutation; Defra's HTTP API has no batch write, so batching here only
// amortizes wakeups, not round trips.
func (s *Sink) flush() {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	ops := s.pending
	s.pending = make([]WriteOp, 0, s.batchSize)
	s.mu.Unlock()

	s.logger.Debug("flushing writes", "count", len(ops))
	for _, op := range ops {
		s.apply(op)
	}
}

// apply runs one write and delivers its result if anyone is waiting.
func (s *Sink) apply(op WriteOp) {
	var res WriteResult
	switch op.Op {
	case OpCreate:
		res.DocID, res.Err = s.client.Create(s.ctx, op.Collection, op.Document)
	case OpUpdate:
		res.DocID = op.DocID
		res.Err = s.client.Update(s.ctx, op.Collection, op.DocID, op.Document)
	case OpDelete:
		res.DocID = op.DocID
		res.Err = s.client.Delete(s.ctx, op.Collection, op.DocID)
	default:
		res.Err = fmt.Errorf("unknown op type %q", op.Op)
	}

	if res.Err != nil {
		s.logger.Error("write failed",
			"collection", op.Collection, "op", op.Op,
			"docID", op.DocID, "error", res.Err)
	}
	if op.result != nil {
		op.result <- res
		close(op.result)
	}
}
