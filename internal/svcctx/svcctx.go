// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/foliolabs/folio/internal/config"
	"github.com/foliolabs/folio/internal/defra"
	"github.com/foliolabs/folio/internal/home"
	"github.com/foliolabs/folio/internal/metrics"
	"github.com/foliolabs/folio/internal/nav"
	"github.com/foliolabs/folio/internal/providers"
	"github.com/foliolabs/folio/internal/reader"
	"github.com/foliolabs/folio/internal/translate"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	DefraClient  *defra.Client
	DefraSink    *defra.Sink
	Engine       *nav.Engine
	Patterns     nav.PatternStore
	Reader       *reader.Client
	Translator   *translate.Service
	Translations *translate.RecordStore
	Registry     *providers.Registry
	ConfigStore  config.Store
	Logger       *slog.Logger
	Home         *home.Dir
	MetricsQuery *metrics.Query
	Recorder     *metrics.Recorder
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// DefraClientFrom extracts the DefraDB client from context.
func DefraClientFrom(ctx context.Context) *defra.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.DefraClient
	}
	return nil
}

// DefraSinkFrom extracts the DefraDB write sink from context.
func DefraSinkFrom(ctx context.Context) *defra.Sink {
	if s := ServicesFrom(ctx); s != nil {
		return s.DefraSink
	}
	return nil
}

// EngineFrom extracts the prediction engine from context.
func EngineFrom(ctx context.Context) *nav.Engine {
	if s := ServicesFrom(ctx); s != nil {
		return s.Engine
	}
	return nil
}

// PatternsFrom extracts the pattern store from context.
func PatternsFrom(ctx context.Context) nav.PatternStore {
	if s := ServicesFrom(ctx); s != nil {
		return s.Patterns
	}
	return nil
}

// ReaderFrom extracts the chapter reader from context.
func ReaderFrom(ctx context.Context) *reader.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.Reader
	}
	return nil
}

// TranslatorFrom extracts the translation service from context.
func TranslatorFrom(ctx context.Context) *translate.Service {
	if s := ServicesFrom(ctx); s != nil {
		return s.Translator
	}
	return nil
}

// TranslationsFrom extracts the translation record store from context.
func TranslationsFrom(ctx context.Context) *translate.RecordStore {
	if s := ServicesFrom(ctx); s != nil {
		return s.Translations
	}
	return nil
}

// RegistryFrom extracts the provider registry from context.
func RegistryFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// ConfigStoreFrom extracts the config store from context.
func ConfigStoreFrom(ctx context.Context) config.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigStore
	}
	return nil
}

// MetricsQueryFrom extracts the metrics query helper from context.
func MetricsQueryFrom(ctx context.Context) *metrics.Query {
	if s := ServicesFrom(ctx); s != nil {
		return s.MetricsQuery
	}
	return nil
}

// RecorderFrom extracts the metrics recorder from context.
func RecorderFrom(ctx context.Context) *metrics.Recorder {
	if s := ServicesFrom(ctx); s != nil {
		return s.Recorder
	}
	return nil
}
