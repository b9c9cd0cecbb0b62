package nlq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bauquery/bauquery/internal/llm"
	"github.com/bauquery/bauquery/internal/observability"
	"github.com/bauquery/bauquery/internal/query"
)

const composePreamble = `You summarize SQL query results about a construction project for a non-technical reader.
Answer in the language of the question, in one to three sentences. State concrete numbers
from the results. Do not mention SQL, tables, or that a query was run.`

// composeSampleRows caps how much of a result set travels back to the
// model. The full rows still go to the caller.
const composeSampleRows = 10

// ComposeResponse turns a result set into prose. Zero rows never need the
// model; a model failure here degrades to a templated answer because a
// turn that already produced correct data must not fail over phrasing.
func ComposeResponse(ctx context.Context, client llm.Client, utterance, sqlText, additional string, result query.Result, temperature float64) string {
	if result.RowCount == 0 {
		return "No matching data was found for this question."
	}
	if client == nil {
		observability.IncrementComposeFallback()
		return templatedAnswer(result)
	}

	digest, err := resultDigest(result)
	if err != nil {
		observability.IncrementComposeFallback()
		return templatedAnswer(result)
	}

	var header strings.Builder
	fmt.Fprintf(&header, "Question: %s\n", utterance)
	fmt.Fprintf(&header, "Query used: %s\n", sqlText)
	if additional != "" {
		fmt.Fprintf(&header, "Note from query generation: %s\n", additional)
	}
	user := fmt.Sprintf("%s\nResults (%d row(s)%s):\n%s",
		header.String(), result.RowCount, truncationNote(result), digest)
	answer, err := client.Complete(ctx, llm.Request{
		System:      composePreamble,
		User:        user,
		Temperature: temperature,
	})
	if err != nil || strings.TrimSpace(answer) == "" {
		observability.IncrementComposeFallback()
		return templatedAnswer(result)
	}
	return strings.TrimSpace(answer)
}

func truncationNote(result query.Result) string {
	if result.Truncated {
		return ", truncated"
	}
	return ""
}

func resultDigest(result query.Result) (string, error) {
	rows := result.Rows
	if len(rows) > composeSampleRows {
		rows = rows[:composeSampleRows]
	}
	encoded, err := json.Marshal(map[string]any{
		"columns": result.Columns,
		"rows":    rows,
	})
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func templatedAnswer(result query.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d row(s).", result.RowCount)
	if result.Truncated {
		sb.WriteString(" The result was truncated.")
	}
	limit := len(result.Rows)
	if limit > composeSampleRows {
		limit = composeSampleRows
	}
	for _, row := range result.Rows[:limit] {
		parts := make([]string, 0, len(result.Columns))
		for _, column := range result.Columns {
			parts = append(parts, fmt.Sprintf("%s=%v", column, row[column]))
		}
		sb.WriteString("\n")
		sb.WriteString(strings.Join(parts, ", "))
	}
	return sb.String()
}
