package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/foliolabs/folio/internal/api"
	"github.com/foliolabs/folio/internal/metrics"
	"github.com/foliolabs/folio/internal/nav"
	"github.com/foliolabs/folio/internal/svcctx"
)

// PredictRequest is the request body for navigation prediction.
type PredictRequest struct {
	URL string `json:"url"`
}

// PredictResponse wraps a prediction with request timing.
type PredictResponse struct {
	NextURL     string       `json:"next_url,omitempty"`
	PreviousURL string       `json:"previous_url,omitempty"`
	Pattern     *nav.Pattern `json:"pattern,omitempty"`
	Confidence  float64      `json:"confidence"`
	Method      nav.Method   `json:"method"`
	SourceURL   string       `json:"source_url"`
	Validated   bool         `json:"validated"`
	ResponseMs  int64        `json:"response_ms"`
}

// PredictEndpoint handles POST /api/navigation/predict.
type PredictEndpoint struct{}

func (e *PredictEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/navigation/predict", e.handler
}

func (e *PredictEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Predict chapter navigation
//	@Description	Predict next and previous chapter URLs for a source URL
//	@Tags			navigation
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PredictRequest	true	"Source URL"
//	@Success		200		{object}	PredictResponse
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/navigation/predict [post]
func (e *PredictEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	engine := svcctx.EngineFrom(r.Context())
	if engine == nil {
		writeError(w, http.StatusServiceUnavailable, "prediction engine not initialized")
		return
	}

	start := time.Now()
	pred, err := engine.Predict(r.Context(), req.URL)
	elapsed := time.Since(start)
	if err != nil {
		// Predict only errors on input that cannot name a page.
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if rec := svcctx.RecorderFrom(r.Context()); rec != nil {
		found := pred.NextURL != "" || pred.PreviousURL != ""
		errType := ""
		if !found {
			errType = "no_links_found"
		}
		rec.Record(metrics.Prediction(
			nav.Domain(req.URL), string(pred.Method), elapsed, pred.Validated, found, errType))
	}

	writeJSON(w, http.StatusOK, PredictResponse{
		NextURL:     pred.NextURL,
		PreviousURL: pred.PreviousURL,
		Pattern:     pred.Pattern,
		Confidence:  pred.Confidence,
		Method:      pred.Method,
		SourceURL:   pred.SourceURL,
		Validated:   pred.Validated,
		ResponseMs:  elapsed.Milliseconds(),
	})
}

func (e *PredictEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "predict <url>",
		Short: "Predict next/previous chapter URLs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp PredictResponse
			if err := client.Post(cmd.Context(), "/api/navigation/predict", PredictRequest{URL: args[0]}, &resp); err != nil {
				return err
			}
			fmt.Printf("Source:     %s\n", resp.SourceURL)
			fmt.Printf("Next:       %s\n", orDash(resp.NextURL))
			fmt.Printf("Previous:   %s\n", orDash(resp.PreviousURL))
			fmt.Printf("Method:     %s\n", resp.Method)
			fmt.Printf("Confidence: %.2f\n", resp.Confidence)
			fmt.Printf("Validated:  %t\n", resp.Validated)
			fmt.Printf("Time:       %dms\n", resp.ResponseMs)
			if resp.Pattern != nil {
				fmt.Printf("Pattern:    %s\n", resp.Pattern.Template)
			}
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
