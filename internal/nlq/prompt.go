package nlq

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bauquery/bauquery/internal/schema"
	"github.com/bauquery/bauquery/internal/session"
)

// maxUtteranceRunes bounds what we forward to the model. Real questions
// about this dataset fit comfortably; anything longer is noise or abuse.
const maxUtteranceRunes = 2000

const systemPreamble = `You translate questions about a construction project into SQLite SELECT statements.
Answer ONLY with a single JSON object of the form {"sql": "...", "additional": "..."}.
"sql" holds one SELECT statement against the schema below. "additional" holds a short
remark for the user, or an empty string. Never emit anything that modifies data.
Questions may be asked in German or English; element names in the data are German.`

// BuildPrompt assembles the system and user messages for one turn.
// Prior turns travel as question/SQL pairs so the model can resolve
// follow-ups like "and on the first floor?".
func BuildPrompt(descriptor *schema.Descriptor, utterance string, prior []session.Turn) (systemMsg, userMsg string, err error) {
	trimmed := strings.TrimSpace(utterance)
	if trimmed == "" {
		return "", "", newError(KindInvalidInput, "query text is required", nil)
	}
	if utf8.RuneCountInString(trimmed) > maxUtteranceRunes {
		return "", "", newError(KindInvalidInput,
			fmt.Sprintf("query text exceeds %d characters", maxUtteranceRunes), nil)
	}

	var sb strings.Builder
	sb.WriteString(systemPreamble)
	sb.WriteString("\n\n")
	sb.WriteString(descriptor.Render())

	var user strings.Builder
	if len(prior) > 0 {
		user.WriteString("Previous turns in this conversation:\n")
		for _, turn := range prior {
			fmt.Fprintf(&user, "Q: %s\nSQL: %s\n", turn.Utterance, turn.SQL)
		}
		user.WriteString("\n")
	}
	user.WriteString("Question: ")
	user.WriteString(trimmed)

	return sb.String(), user.String(), nil
}
