package nlq

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bauquery/bauquery/internal/llm"
	"github.com/bauquery/bauquery/internal/observability"
)

// Draft is the model's proposal for one turn, before validation.
type Draft struct {
	SQL        string
	Additional string
}

// Generate asks the model for a statement, retrying transport failures up
// to maxRetries extra attempts. A reply that arrives but cannot be parsed
// is terminal; retrying would resend the identical prompt.
func Generate(ctx context.Context, client llm.Client, systemMsg, userMsg string, temperature float64, maxRetries int) (Draft, error) {
	if client == nil {
		return Draft{}, newError(KindTransportError, "language model is not configured", nil)
	}

	req := llm.Request{System: systemMsg, User: userMsg, Temperature: temperature}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			observability.IncrementModelRetry()
		}
		raw, err := client.Complete(ctx, req)
		if err != nil {
			lastErr = err
			if llm.IsTransient(err) && ctx.Err() == nil {
				continue
			}
			return Draft{}, newError(KindTransportError, "language model request failed", err)
		}
		return parseModelResponse(raw)
	}
	return Draft{}, newError(KindTransportError, "language model request failed after retries", lastErr)
}

func parseModelResponse(raw string) (Draft, error) {
	object := extractJSONObject(raw)
	if object == "" {
		return Draft{}, newError(KindMalformedModelResponse, "model reply contains no JSON object", nil)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(object), &fields); err != nil {
		return Draft{}, newError(KindMalformedModelResponse, "model reply is not valid JSON", err)
	}

	draft := Draft{
		SQL:        stringField(fields, "sql", "SQL"),
		Additional: stringField(fields, "additional", "Additional"),
	}
	if strings.TrimSpace(draft.SQL) == "" {
		return Draft{}, newError(KindMalformedModelResponse, "model reply is missing the sql field", nil)
	}
	return draft, nil
}

func stringField(fields map[string]any, names ...string) string {
	for _, name := range names {
		if value, ok := fields[name].(string); ok {
			return value
		}
	}
	return ""
}

// extractJSONObject returns the first balanced {...} block in raw, which
// tolerates markdown fences and prose around the object. Braces inside
// string literals are skipped.
func extractJSONObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return ""
}
