// Package nlq implements the question-to-answer pipeline: prompt
// assembly, SQL generation, safety validation, read-only execution, and
// response composition. Each stage fails with a classified error so the
// transport layer can answer precisely.
package nlq

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bauquery/bauquery/internal/llm"
	"github.com/bauquery/bauquery/internal/observability"
	"github.com/bauquery/bauquery/internal/query"
	"github.com/bauquery/bauquery/internal/schema"
	"github.com/bauquery/bauquery/internal/session"
)

// TurnRecord is the durable form of a completed turn.
type TurnRecord struct {
	SessionID string
	Utterance string
	SQL       string
	RowCount  int
	Answer    string
	At        time.Time
}

// Archiver persists completed turns. Archiving is best effort; a failing
// archive never fails the turn.
type Archiver interface {
	SaveTurn(ctx context.Context, record TurnRecord) error
}

type Pipeline struct {
	Schema      *schema.Descriptor
	Client      llm.Client
	Engine      query.Engine
	Sessions    *session.Store
	Archiver    Archiver
	Logger      *slog.Logger
	RowLimit    int
	MaxRetries  int
	Temperature float64
}

// Outcome is everything one turn produced. On error the fields filled so
// far are still populated, in particular the generated SQL, so callers
// can surface it for transparency.
type Outcome struct {
	NaturalResponse   string
	SQLQuery          string
	AdditionalContext string
	Results           []map[string]any
	RowCount          int
	Truncated         bool
}

// Run processes one utterance for one session. Turns within a session are
// serialized; the conversation window is extended only after the whole
// turn succeeded, so failed turns leave context untouched.
func (p *Pipeline) Run(ctx context.Context, sessionID, utterance string) (Outcome, error) {
	start := time.Now()
	outcome, err := p.run(ctx, sessionID, utterance, start)
	if err != nil {
		observability.ObserveTurn(string(KindOf(err)), time.Since(start))
		return outcome, err
	}
	observability.ObserveTurn("ok", time.Since(start))
	return outcome, nil
}

func (p *Pipeline) run(ctx context.Context, sessionID, utterance string, start time.Time) (Outcome, error) {
	sess := p.Sessions.Checkout(sessionID)
	defer sess.Release()

	systemMsg, userMsg, err := BuildPrompt(p.Schema, utterance, sess.Recent(0))
	if err != nil {
		return Outcome{}, err
	}

	draft, err := Generate(ctx, p.Client, systemMsg, userMsg, p.Temperature, p.MaxRetries)
	if err != nil {
		return Outcome{}, err
	}

	validated, err := ValidateSQL(p.Schema, draft.SQL, p.RowLimit)
	if err != nil {
		p.logger().WarnContext(ctx, "rejected generated statement",
			"session_id", sessionID, "sql", draft.SQL, "error", err)
		return Outcome{SQLQuery: draft.SQL}, err
	}

	result, err := p.Engine.Execute(ctx, query.Request{SQL: validated, RowLimit: p.RowLimit})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Outcome{SQLQuery: validated}, newError(KindQueryTimeout, "query exceeded its time budget", err)
		}
		return Outcome{SQLQuery: validated}, newError(KindExecutionError, "query execution failed", err)
	}
	observability.ObserveQuery(result.RowCount, result.Duration)

	answer := ComposeResponse(ctx, p.Client, utterance, validated, draft.Additional, result, p.Temperature)

	sess.Append(session.Turn{
		Utterance: utterance,
		SQL:       validated,
		RowCount:  result.RowCount,
		Answer:    answer,
		At:        start,
	})

	if p.Archiver != nil {
		record := TurnRecord{
			SessionID: sessionID,
			Utterance: utterance,
			SQL:       validated,
			RowCount:  result.RowCount,
			Answer:    answer,
			At:        start,
		}
		if err := p.Archiver.SaveTurn(ctx, record); err != nil {
			p.logger().WarnContext(ctx, "archive turn failed",
				"session_id", sessionID, "error", err)
		}
	}

	return Outcome{
		NaturalResponse:   answer,
		SQLQuery:          validated,
		AdditionalContext: draft.Additional,
		Results:           result.Rows,
		RowCount:          result.RowCount,
		Truncated:         result.Truncated,
	}, nil
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
