package translate

import "encoding/json"

// resultSchema is the structured-output schema sent with every
// translation request and used to validate what comes back.
var resultSchema = json.RawMessage(`{
	"name": "translation_result",
	"strict": true,
	"schema": {
		"type": "object",
		"properties": {
			"translation": {
				"type": "string",
				"description": "The full translated text, markdown preserved"
			},
			"detected_language": {
				"type": "string",
				"description": "ISO 639-1 code of the source language"
			}
		},
		"required": ["translation", "detected_language"],
		"additionalProperties": false
	}
}`)

// structuredResult is the wire shape providers return.
type structuredResult struct {
	Translation      string `json:"translation"`
	DetectedLanguage string `json:"detected_language"`
}
