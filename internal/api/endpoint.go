package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Endpoint is one API operation expressed both ways folio exposes it:
// as an HTTP route on the server and as a CLI command that calls that
// route. Keeping the two on one type means the mux and the `folio api`
// command tree can never drift apart.
type Endpoint interface {
	// Route returns the HTTP method, path, and handler.
	Route() (method, path string, handler http.HandlerFunc)

	// RequiresInit reports whether the route needs the server's
	// services (DefraDB, prediction engine, translator) to be up.
	// Health and readiness probes answer before initialization;
	// everything else waits behind the init gate.
	RequiresInit() bool

	// Command returns the cobra command calling this endpoint over
	// HTTP. getServerURL is evaluated at run time, after flag parsing,
	// so --server takes effect.
	Command(getServerURL func() string) *cobra.Command
}
