package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/foliolabs/folio/internal/api"
	"github.com/foliolabs/folio/internal/svcctx"
	"github.com/foliolabs/folio/internal/translate"
)

// TranslationsResponse lists recent translation records.
type TranslationsResponse struct {
	Count        int                `json:"count"`
	Translations []translate.Record `json:"translations"`
}

// TranslationsEndpoint handles GET /api/translations.
type TranslationsEndpoint struct{}

func (e *TranslationsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/translations", e.handler
}

func (e *TranslationsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List translation records
//	@Description	List recent translation records, newest first
//	@Tags			translate
//	@Produce		json
//	@Param			domain	query		string	false	"Filter by source domain"
//	@Param			limit	query		int		false	"Maximum records to return"
//	@Success		200		{object}	TranslationsResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/translations [get]
func (e *TranslationsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.TranslationsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "translation store not initialized")
		return
	}

	opts := translate.ListOptions{
		Domain: r.URL.Query().Get("domain"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit: "+v)
			return
		}
		opts.Limit = n
	}

	records, err := store.List(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, TranslationsResponse{
		Count:        len(records),
		Translations: records,
	})
}

func (e *TranslationsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var domain string
	var limit int

	cmd := &cobra.Command{
		Use:   "translations",
		Short: "List recent translation records",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())

			path := "/api/translations?limit=" + strconv.Itoa(limit)
			if domain != "" {
				path += "&domain=" + url.QueryEscape(domain)
			}

			var resp TranslationsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}

			fmt.Printf("Translations: %d\n\n", resp.Count)
			for _, rec := range resp.Translations {
				status := "ok"
				if !rec.Success {
					status = "err:" + rec.ErrorType
				}
				fmt.Printf("  %s  %-20s %-10s %s/%s  $%.6f  %dms  %s\n",
					rec.Timestamp.Format("2006-01-02 15:04"),
					rec.Domain, rec.TargetLang, rec.Provider, rec.Model,
					rec.CostUSD, rec.DurationMs, status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&domain, "domain", "", "Filter by source domain")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum records to return")

	return cmd
}
