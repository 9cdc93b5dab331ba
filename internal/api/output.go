package api

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// OutputFormat selects how CLI commands render API responses.
type OutputFormat string

const (
	OutputFormatYAML OutputFormat = "yaml"
	OutputFormatJSON OutputFormat = "json"
)

// outputFormat is set once by the root command's --output flag before
// any endpoint command runs.
var outputFormat = OutputFormatYAML

// SetOutputFormat applies the --output flag value. Unknown values
// fall back to yaml.
func SetOutputFormat(format string) {
	switch format {
	case "json":
		outputFormat = OutputFormatJSON
	default:
		outputFormat = OutputFormatYAML
	}
}

// Output renders data to stdout in the selected format.
func Output(data any) error {
	return OutputTo(os.Stdout, outputFormat, data)
}

// OutputToFile writes data to a file in the selected format. Used by
// commands like `folio api swagger -o spec.yaml`.
func OutputToFile(data any, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()
	return OutputTo(f, outputFormat, data)
}

// OutputTo renders data to w in the given format.
func OutputTo(w io.Writer, format OutputFormat, data any) error {
	switch format {
	case OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
