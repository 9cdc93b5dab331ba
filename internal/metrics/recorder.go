package metrics

import (
	"log/slog"
	"time"

	"github.com/foliolabs/folio/internal/defra"
)

// Recorder persists metrics. Writes go through the batched sink so
// recording never adds latency to the operation being measured.
type Recorder struct {
	sink   *defra.Sink
	logger *slog.Logger
}

// NewRecorder creates a metrics recorder.
func NewRecorder(sink *defra.Sink, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{sink: sink, logger: logger.With("component", "metrics")}
}

// Record queues one metric for persistence, fire-and-forget.
// A zero timestamp is filled with the current time.
func (r *Recorder) Record(m Metric) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	if m.Operation == "" {
		r.logger.Warn("dropping metric without operation", "domain", m.Domain)
		return
	}
	r.sink.Send(defra.WriteOp{
		Collection: "Metric",
		Document:   m.ToMap(),
		Op:         defra.OpCreate,
	})
}

// Prediction builds a metric for one navigation prediction.
func Prediction(domain, method string, duration time.Duration, validated, success bool, errType string) Metric {
	return Metric{
		Operation:  OpPrediction,
		Domain:     domain,
		Method:     method,
		DurationMs: duration.Milliseconds(),
		Validated:  validated,
		Success:    success,
		ErrorType:  errType,
	}
}

// Translation builds a metric for one translation attempt.
func Translation(domain, provider, model string, duration time.Duration, promptTokens, completionTokens int, costUSD float64, success bool, errType string) Metric {
	return Metric{
		Operation:        OpTranslation,
		Domain:           domain,
		Provider:         provider,
		Model:            model,
		DurationMs:       duration.Milliseconds(),
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		CostUSD:          costUSD,
		Success:          success,
		ErrorType:        errType,
	}
}
