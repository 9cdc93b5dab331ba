package translate

import (
	_ "embed"
	"strings"
	"text/template"
)

//go:embed system.tmpl
var systemPromptTmpl string

var systemTmpl = template.Must(template.New("system").Parse(systemPromptTmpl))

// SystemPrompt renders the translation system prompt for a target
// language.
func SystemPrompt(targetLang string) (string, error) {
	var sb strings.Builder
	err := systemTmpl.Execute(&sb, struct{ TargetLang string }{TargetLang: targetLang})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
