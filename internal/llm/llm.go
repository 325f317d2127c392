// Package llm provides structured, schema-validated LLM completions for
// the pipeline's AI components. Providers return raw text; Generate
// extracts the JSON payload, decodes it, and validates it, retrying once
// before giving up.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// completionTimeout bounds every provider call.
const completionTimeout = 5 * time.Minute

// Verbose enables logging of prompts and raw responses.
var Verbose bool

// ErrSchema is returned when the model's output cannot be decoded into
// the expected shape after a retry. Callers treat it as recoverable.
var ErrSchema = errors.New("response did not match expected schema")

// Options tune a single completion.
type Options struct {
	// HighReasoning requests extended reasoning from providers that
	// support it.
	HighReasoning bool
}

// Client is a text-in, text-out LLM provider.
type Client interface {
	Complete(ctx context.Context, system, user string, opts Options) (string, error)
}

// Schema is a decoded response that can check its own shape.
type Schema interface {
	Validate() error
}

// Generate runs a completion and decodes the JSON payload into out.
// A malformed or schema-invalid response is retried once with a
// corrective instruction; a second failure returns ErrSchema.
func Generate(ctx context.Context, c Client, system, user string, opts Options, out Schema) error {
	raw, err := complete(ctx, c, system, user, opts)
	if err != nil {
		return err
	}

	if decodeErr := decodeInto(raw, out); decodeErr != nil {
		log.Printf("llm: response failed validation, retrying: %v", decodeErr)

		retryUser := user + "\n\nYour previous response was not valid JSON matching the required shape. Respond with ONLY the JSON object, no prose, no code fences."
		raw, err = complete(ctx, c, system, retryUser, opts)
		if err != nil {
			return err
		}
		if decodeErr := decodeInto(raw, out); decodeErr != nil {
			return fmt.Errorf("%w: %v", ErrSchema, decodeErr)
		}
	}
	return nil
}

func complete(ctx context.Context, c Client, system, user string, opts Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	if Verbose {
		log.Printf("llm: system prompt:\n%s", system)
		log.Printf("llm: user prompt:\n%s", user)
	}

	raw, err := c.Complete(ctx, system, user, opts)
	if err != nil {
		return "", fmt.Errorf("completing: %w", err)
	}

	if Verbose {
		log.Printf("llm: response:\n%s", raw)
	}
	return raw, nil
}

func decodeInto(raw string, out Schema) error {
	payload := ExtractJSON(raw)
	if payload == "" {
		return fmt.Errorf("no JSON found in response")
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("unmarshaling: %w", err)
	}
	if err := out.Validate(); err != nil {
		return fmt.Errorf("validating: %w", err)
	}
	return nil
}

// ExtractJSON pulls the first JSON object or array out of a model
// response, tolerating markdown code fences and surrounding prose.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)

	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		return strings.TrimSpace(s)
	}
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		return strings.TrimSpace(s)
	}

	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")
	start := objStart
	open, close := byte('{'), byte('}')
	if start < 0 || (arrStart >= 0 && arrStart < start) {
		start = arrStart
		open, close = '[', ']'
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == open:
			depth++
		case !inString && ch == close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return strings.TrimSpace(s[start:])
}
