package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/foliolabs/folio/internal/defra"
)

// Initialize registers folio's collections (UrlPattern, Translation,
// Metric, Config) with the node in registry order. Re-running against
// a node that already has them is fine; existing collections are
// skipped.
func Initialize(ctx context.Context, client *defra.Client, logger *slog.Logger) error {
	schemas, err := All()
	if err != nil {
		return fmt.Errorf("load schemas: %w", err)
	}

	for _, s := range schemas {
		if err := apply(ctx, client, s, logger); err != nil {
			return err
		}
	}
	return nil
}

func apply(ctx context.Context, client *defra.Client, s Schema, logger *slog.Logger) error {
	if err := client.AddSchema(ctx, s.SDL); err != nil {
		if isAlreadyExists(err) {
			logger.Info("schema already exists", "name", s.Name)
			return nil
		}
		return fmt.Errorf("add schema %s: %w", s.Name, err)
	}

	logger.Info("schema added", "name", s.Name)
	return nil
}

// isAlreadyExists sniffs the node's error text. Defra is HTTP-only
// from here, so there is no typed error to match on.
func isAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "collection already exists") ||
		strings.Contains(msg, "already exists")
}
