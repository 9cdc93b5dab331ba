package endpoints

import (
	"github.com/foliolabs/folio/internal/api"
	"github.com/foliolabs/folio/internal/defra"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	DefraManager    *defra.DockerManager
	SwaggerSpecPath string
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{DefraManager: cfg.DefraManager},

		// Navigation endpoints
		&PredictEndpoint{},
		&PatternsEndpoint{},

		// Chapter endpoints
		&ChapterFetchEndpoint{},

		// Translation endpoints
		&TranslateEndpoint{},
		&TranslationsEndpoint{},

		// Metrics endpoints
		&MetricsSummaryEndpoint{},

		// Settings endpoints
		&ListSettingsEndpoint{},
		&GetSettingEndpoint{},
		&UpdateSettingEndpoint{},
		&ResetSettingEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{SpecPath: cfg.SwaggerSpecPath},
		&SwaggerUIEndpoint{},
	}
}

// NavigationCommands returns endpoints for navigation operations.
// This groups navigation commands under "nav" subcommand.
func NavigationCommands() []api.Endpoint {
	return []api.Endpoint{
		&PredictEndpoint{},
		&PatternsEndpoint{},
	}
}

// SettingsCommands returns endpoints for settings operations.
// This groups settings-related commands under "settings" subcommand.
func SettingsCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListSettingsEndpoint{},
		&GetSettingEndpoint{},
		&UpdateSettingEndpoint{},
		&ResetSettingEndpoint{},
	}
}

// MetricsCommands returns endpoints for metrics operations.
// This groups metrics commands under "metrics" subcommand.
func MetricsCommands() []api.Endpoint {
	return []api.Endpoint{
		&MetricsSummaryEndpoint{},
	}
}
