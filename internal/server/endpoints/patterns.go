package endpoints

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/spf13/cobra"

	"github.com/foliolabs/folio/internal/api"
	"github.com/foliolabs/folio/internal/nav"
	"github.com/foliolabs/folio/internal/svcctx"
)

// PatternsResponse summarizes learned navigation patterns by confidence band.
type PatternsResponse struct {
	Total    int           `json:"total"`
	High     int           `json:"high"`
	Medium   int           `json:"medium"`
	Low      int           `json:"low"`
	Patterns []nav.Pattern `json:"patterns"`
}

// PatternsEndpoint handles GET /api/navigation/patterns.
type PatternsEndpoint struct{}

func (e *PatternsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/navigation/patterns", e.handler
}

func (e *PatternsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List navigation patterns
//	@Description	List learned URL patterns grouped by confidence band
//	@Tags			navigation
//	@Produce		json
//	@Success		200	{object}	PatternsResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/navigation/patterns [get]
func (e *PatternsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.PatternsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "pattern store not initialized")
		return
	}

	patterns, err := store.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sort.Slice(patterns, func(i, j int) bool {
		return patterns[i].Confidence > patterns[j].Confidence
	})

	stats := nav.ComputeStats(patterns)
	writeJSON(w, http.StatusOK, PatternsResponse{
		Total:    stats.Total,
		High:     stats.High,
		Medium:   stats.Medium,
		Low:      stats.Low,
		Patterns: patterns,
	})
}

func (e *PatternsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "List learned navigation patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp PatternsResponse
			if err := client.Get(cmd.Context(), "/api/navigation/patterns", &resp); err != nil {
				return err
			}
			fmt.Printf("Patterns: %d (high: %d, medium: %d, low: %d)\n\n",
				resp.Total, resp.High, resp.Medium, resp.Low)
			for _, p := range resp.Patterns {
				fmt.Printf("  %-30s conf=%.2f rate=%.2f %s\n",
					p.Domain, p.Confidence, p.SuccessRate, p.Template)
			}
			return nil
		},
	}
}
