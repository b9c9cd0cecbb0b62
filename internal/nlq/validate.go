package nlq

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bauquery/bauquery/internal/schema"
)

// Statements may only read. Everything else is rejected before the engine
// ever sees it; the read-only connection is the second line of defense.
var forbiddenKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create",
	"attach", "detach", "pragma", "vacuum", "reindex", "truncate",
	"grant", "revoke", "into",
}

// sqlKeywords are tokens of the SELECT grammar and common SQLite functions
// that are not schema references.
var sqlKeywords = map[string]struct{}{
	"select": {}, "with": {}, "recursive": {}, "from": {}, "where": {},
	"join": {}, "inner": {}, "left": {}, "right": {}, "outer": {},
	"cross": {}, "natural": {}, "on": {}, "using": {}, "as": {},
	"group": {}, "by": {}, "order": {}, "having": {}, "limit": {},
	"offset": {}, "distinct": {}, "and": {}, "or": {}, "not": {},
	"in": {}, "is": {}, "null": {}, "like": {}, "glob": {},
	"between": {}, "case": {}, "when": {}, "then": {}, "else": {},
	"end": {}, "asc": {}, "desc": {}, "union": {}, "all": {},
	"intersect": {}, "except": {}, "exists": {}, "cast": {},
	"count": {}, "sum": {}, "avg": {}, "min": {}, "max": {}, "total": {},
	"coalesce": {}, "ifnull": {}, "nullif": {}, "round": {}, "abs": {},
	"length": {}, "lower": {}, "upper": {}, "substr": {}, "trim": {},
	"replace": {}, "printf": {}, "group_concat": {}, "date": {},
	"datetime": {}, "strftime": {}, "integer": {}, "real": {}, "text": {},
}

var (
	identifierPattern   = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	aliasPattern        = regexp.MustCompile(`\b(?:from|join)\s+([A-Za-z_][A-Za-z0-9_]*)(?:\s+(?:as\s+)?([A-Za-z_][A-Za-z0-9_]*))?`)
	asAliasPattern      = regexp.MustCompile(`\bas\s+([A-Za-z_][A-Za-z0-9_]*)`)
	derivedAliasPattern = regexp.MustCompile(`\)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	ctePattern          = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s+as\s*\(`)
	limitPattern        = regexp.MustCompile(`\blimit\b`)
)

// ValidateSQL screens a model-proposed statement and returns the form that
// may run: trailing semicolon removed and a row cap injected when the
// statement carries none. Injection is idempotent.
func ValidateSQL(descriptor *schema.Descriptor, sqlText string, rowLimit int) (string, error) {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return "", newError(KindUnsafeQuery, "statement is empty", nil)
	}

	// One trailing semicolon is tolerated; anything beyond that smells
	// like statement stacking.
	if strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}

	if strings.Contains(trimmed, "--") || strings.Contains(trimmed, "/*") {
		return "", newError(KindUnsafeQuery, "statement must not contain comments", nil)
	}
	if strings.ContainsRune(trimmed, ';') {
		return "", newError(KindUnsafeQuery, "statement must be a single query", nil)
	}

	stripped := stripStringLiterals(trimmed)
	lowered := strings.ToLower(stripped)

	if !strings.HasPrefix(lowered, "select") && !strings.HasPrefix(lowered, "with") {
		return "", newError(KindUnsafeQuery, "only SELECT statements are allowed", nil)
	}
	for _, keyword := range forbiddenKeywords {
		if containsWord(lowered, keyword) {
			return "", newError(KindUnsafeQuery,
				fmt.Sprintf("statement contains forbidden keyword %q", keyword), nil)
		}
	}

	if unknown := firstUnknownIdentifier(descriptor, lowered); unknown != "" {
		return "", newError(KindUnknownSchemaReference,
			fmt.Sprintf("statement references unknown identifier %q", unknown), nil)
	}

	if rowLimit > 0 && !limitPattern.MatchString(lowered) {
		trimmed = fmt.Sprintf("%s LIMIT %d", trimmed, rowLimit)
	}
	return trimmed, nil
}

func firstUnknownIdentifier(descriptor *schema.Descriptor, lowered string) string {
	aliases := map[string]struct{}{}
	for _, match := range aliasPattern.FindAllStringSubmatch(lowered, -1) {
		if match[2] != "" {
			aliases[match[2]] = struct{}{}
		}
	}
	for _, match := range asAliasPattern.FindAllStringSubmatch(lowered, -1) {
		aliases[match[1]] = struct{}{}
	}
	for _, match := range derivedAliasPattern.FindAllStringSubmatch(lowered, -1) {
		aliases[match[1]] = struct{}{}
	}
	for _, match := range ctePattern.FindAllStringSubmatch(lowered, -1) {
		aliases[match[1]] = struct{}{}
	}

	for _, token := range identifierPattern.FindAllString(lowered, -1) {
		if _, ok := sqlKeywords[token]; ok {
			continue
		}
		if _, ok := aliases[token]; ok {
			continue
		}
		if descriptor.KnownIdentifier(token) {
			continue
		}
		return token
	}
	return ""
}

// stripStringLiterals blanks out single-quoted literals so German element
// names and the like never trip keyword or identifier checks.
func stripStringLiterals(sqlText string) string {
	var sb strings.Builder
	sb.Grow(len(sqlText))
	inLiteral := false
	for i := 0; i < len(sqlText); i++ {
		c := sqlText[i]
		if c == '\'' {
			// Doubled quote inside a literal is an escaped quote.
			if inLiteral && i+1 < len(sqlText) && sqlText[i+1] == '\'' {
				i++
				continue
			}
			inLiteral = !inLiteral
			sb.WriteByte(' ')
			continue
		}
		if inLiteral {
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func containsWord(lowered, word string) bool {
	for offset := 0; ; {
		idx := strings.Index(lowered[offset:], word)
		if idx < 0 {
			return false
		}
		idx += offset
		before := idx == 0 || !isWordByte(lowered[idx-1])
		afterIdx := idx + len(word)
		after := afterIdx == len(lowered) || !isWordByte(lowered[afterIdx])
		if before && after {
			return true
		}
		offset = idx + len(word)
	}
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
