package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/spf13/cobra"

	"github.com/foliolabs/folio/internal/api"
	"github.com/foliolabs/folio/internal/metrics"
	"github.com/foliolabs/folio/internal/svcctx"
)

// MetricsSummaryEndpoint handles GET /api/metrics/summary.
type MetricsSummaryEndpoint struct{}

func (e *MetricsSummaryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/metrics/summary", e.handler
}

func (e *MetricsSummaryEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Metrics summary
//	@Description	Aggregate usage metrics across predictions and translations
//	@Tags			metrics
//	@Produce		json
//	@Param			operation	query		string	false	"Filter by operation"
//	@Param			domain		query		string	false	"Filter by domain"
//	@Param			provider	query		string	false	"Filter by provider"
//	@Param			model		query		string	false	"Filter by model"
//	@Success		200			{object}	metrics.Summary
//	@Failure		500			{object}	ErrorResponse
//	@Router			/api/metrics/summary [get]
func (e *MetricsSummaryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	query := svcctx.MetricsQueryFrom(r.Context())
	if query == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics query not initialized")
		return
	}

	f := metrics.Filter{
		Operation: r.URL.Query().Get("operation"),
		Domain:    r.URL.Query().Get("domain"),
		Provider:  r.URL.Query().Get("provider"),
		Model:     r.URL.Query().Get("model"),
	}

	summary, err := query.GetSummary(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (e *MetricsSummaryEndpoint) Command(getServerURL func() string) *cobra.Command {
	var operation, domain, provider, model string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Get usage metrics summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())

			params := url.Values{}
			if operation != "" {
				params.Set("operation", operation)
			}
			if domain != "" {
				params.Set("domain", domain)
			}
			if provider != "" {
				params.Set("provider", provider)
			}
			if model != "" {
				params.Set("model", model)
			}
			path := "/api/metrics/summary"
			if len(params) > 0 {
				path += "?" + params.Encode()
			}

			var resp metrics.Summary
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}

			fmt.Printf("Metrics Summary\n")
			fmt.Printf("===============\n")
			fmt.Printf("  Count:        %d\n", resp.Count)
			fmt.Printf("  Success:      %d\n", resp.SuccessCount)
			fmt.Printf("  Errors:       %d\n", resp.ErrorCount)
			fmt.Printf("  Total Cost:   $%.4f\n", resp.TotalCostUSD)
			fmt.Printf("  Tokens:       %d prompt / %d completion\n",
				resp.TotalPromptTokens, resp.TotalCompletionTokens)
			fmt.Printf("  Avg Duration: %.0fms\n", resp.AvgDurationMs)

			ops := make([]string, 0, len(resp.Operations))
			for op := range resp.Operations {
				ops = append(ops, op)
			}
			sort.Strings(ops)

			for _, op := range ops {
				os := resp.Operations[op]
				fmt.Printf("\n%s\n", op)
				fmt.Printf("  Count:     %d (success: %d, errors: %d)\n",
					os.Count, os.SuccessCount, os.ErrorCount)
				if os.ValidatedCount > 0 {
					fmt.Printf("  Validated: %d\n", os.ValidatedCount)
				}
				if os.TotalCostUSD > 0 {
					fmt.Printf("  Cost:      $%.4f\n", os.TotalCostUSD)
				}
				fmt.Printf("  Latency:   avg %.0fms, p50 %.0fms, p95 %.0fms, max %.0fms\n",
					os.AvgDurationMs, os.LatencyP50Ms, os.LatencyP95Ms, os.LatencyMaxMs)
				for method, count := range os.Methods {
					fmt.Printf("    %-12s %d\n", method, count)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&operation, "operation", "", "Filter by operation (prediction, translation)")
	cmd.Flags().StringVar(&domain, "domain", "", "Filter by domain")
	cmd.Flags().StringVar(&provider, "provider", "", "Filter by provider")
	cmd.Flags().StringVar(&model, "model", "", "Filter by model")

	return cmd
}
