package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/foliolabs/folio/internal/api"
	"github.com/foliolabs/folio/internal/reader"
	"github.com/foliolabs/folio/internal/svcctx"
)

// ChapterFetchRequest is the request body for chapter fetching.
type ChapterFetchRequest struct {
	URL string `json:"url"`
}

// ChapterFetchEndpoint handles POST /api/chapters/fetch.
type ChapterFetchEndpoint struct{}

func (e *ChapterFetchEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/chapters/fetch", e.handler
}

func (e *ChapterFetchEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Fetch a chapter
//	@Description	Fetch a chapter page and convert it to markdown
//	@Tags			chapters
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ChapterFetchRequest	true	"Chapter URL"
//	@Success		200		{object}	reader.Chapter
//	@Failure		400		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/api/chapters/fetch [post]
func (e *ChapterFetchEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ChapterFetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	rd := svcctx.ReaderFrom(r.Context())
	if rd == nil {
		writeError(w, http.StatusServiceUnavailable, "reader not initialized")
		return
	}

	chapter, err := rd.FetchChapter(r.Context(), req.URL)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, chapter)
}

func (e *ChapterFetchEndpoint) Command(getServerURL func() string) *cobra.Command {
	var contentOnly bool

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch a chapter as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp reader.Chapter
			if err := client.Post(cmd.Context(), "/api/chapters/fetch", ChapterFetchRequest{URL: args[0]}, &resp); err != nil {
				return err
			}
			if contentOnly {
				fmt.Println(resp.Content)
				return nil
			}
			if resp.Title != "" {
				fmt.Printf("Title:   %s\n", resp.Title)
			}
			fmt.Printf("URL:     %s\n", resp.URL)
			fmt.Printf("Cached:  %t\n", resp.Cached)
			fmt.Printf("Fetched: %s\n\n", resp.FetchedAt.Format("2006-01-02 15:04:05"))
			fmt.Println(resp.Content)
			return nil
		},
	}

	cmd.Flags().BoolVar(&contentOnly, "content-only", false, "Print only the chapter content")

	return cmd
}
