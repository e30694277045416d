package llm

import (
	"encoding/json"
	"log"
	"regexp"
	"strings"
)

// decodeInto coerces a raw model completion into the caller's target struct.
// Shared by all Client implementations so sanitation behaves identically
// regardless of provider: fences are stripped, stray arrays are normalized,
// and an unmarshal failure surfaces as a *SchemaError.
func decodeInto(response string, out any) error {
	cleaned := stripMarkdownCodeFence(response)

	normalized, changed, err := NormalizeJSONArraysToStrings([]byte(cleaned))
	if err != nil {
		return &SchemaError{Raw: cleaned, Err: err}
	}

	if changed {
		log.Printf("formflow: model returned array values where strings were expected; normalized to comma-joined strings")
	}

	if err := json.Unmarshal(normalized, out); err != nil {
		return &SchemaError{Raw: cleaned, Err: err}
	}

	return nil
}

var codeFenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*\n?(.*?)\\s*```$")

// stripMarkdownCodeFence removes markdown code fences from model responses.
// Handles ```json\n...\n``` as well as bare ``` fences.
func stripMarkdownCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if matches := codeFenceRe.FindStringSubmatch(s); len(matches) == 2 {
		return strings.TrimSpace(matches[1])
	}
	return s
}
