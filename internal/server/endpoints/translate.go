package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/foliolabs/folio/internal/api"
	"github.com/foliolabs/folio/internal/svcctx"
	"github.com/foliolabs/folio/internal/translate"
)

// TranslateEndpoint handles POST /api/translate.
type TranslateEndpoint struct{}

func (e *TranslateEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/translate", e.handler
}

func (e *TranslateEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Translate content
//	@Description	Translate raw text or a fetched chapter through the provider chain
//	@Tags			translate
//	@Accept			json
//	@Produce		json
//	@Param			body	body		translate.Request	true	"Text or URL plus target language"
//	@Success		200		{object}	translate.Result
//	@Failure		400		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/api/translate [post]
func (e *TranslateEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req translate.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Text == "" && req.URL == "" {
		writeError(w, http.StatusBadRequest, "either text or url is required")
		return
	}

	svc := svcctx.TranslatorFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "translation service not initialized")
		return
	}

	result, err := svc.Translate(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (e *TranslateEndpoint) Command(getServerURL func() string) *cobra.Command {
	var sourceURL, text, targetLang string
	var translationOnly bool

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate a chapter by URL or raw text",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sourceURL == "" && text == "" {
				return fmt.Errorf("either --url or --text is required")
			}

			client := api.NewClient(getServerURL())
			req := translate.Request{URL: sourceURL, Text: text, TargetLang: targetLang}
			var resp translate.Result
			if err := client.Post(cmd.Context(), "/api/translate", req, &resp); err != nil {
				return err
			}

			if translationOnly {
				fmt.Println(resp.Translation)
				return nil
			}
			if resp.Title != "" {
				fmt.Printf("Title:    %s\n", resp.Title)
			}
			fmt.Printf("Provider: %s (%s)\n", resp.Provider, resp.Model)
			if resp.DetectedLang != "" {
				fmt.Printf("Detected: %s\n", resp.DetectedLang)
			}
			fmt.Printf("Cached:   %t\n", resp.Cached)
			fmt.Printf("Cost:     $%.6f (%d+%d tokens)\n",
				resp.CostUSD, resp.PromptTokens, resp.CompletionTokens)
			fmt.Printf("Time:     %dms\n\n", resp.DurationMs)
			fmt.Println(resp.Translation)
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceURL, "url", "", "Chapter URL to fetch and translate")
	cmd.Flags().StringVar(&text, "text", "", "Raw text to translate")
	cmd.Flags().StringVar(&targetLang, "lang", "", "Target language (default en)")
	cmd.Flags().BoolVar(&translationOnly, "translation-only", false, "Print only the translated text")

	return cmd
}
