package guard

import (
	"regexp"
	"sort"
	"strings"
)

var (
	// tableKeywordPattern locates the keywords that introduce a table reference
	tableKeywordPattern = regexp.MustCompile(`(?i)\b(from|join|into|update)\b`)

	// identPattern reads an optionally quoted, optionally schema-qualified identifier.
	// Quoting characters and schema prefixes are removed by normalizeIdentifier.
	identPattern = regexp.MustCompile("(?i)^[`\\[]?[a-z_][a-z0-9_$]*[`\\]]?(?:\\.[`\\[]?[a-z_][a-z0-9_$]*[`\\]]?)*")

	aliasPattern    = regexp.MustCompile(`(?i)^\s*(?:as\s+)?([a-z_][a-z0-9_$]*)`)
	subqueryPattern = regexp.MustCompile(`(?i)^\(\s*select\b`)

	// lockClausePattern precedes an UPDATE that is a row-locking or upsert clause
	lockClausePattern = regexp.MustCompile(`(?i)\b(?:for|key)\s+$`)
)

// clauseKeywords cannot name a table. Finding one where a table is expected means
// the real identifier was removed with the literals.
var clauseKeywords = map[string]struct{}{
	"as": {}, "cross": {}, "default": {}, "except": {}, "from": {}, "full": {},
	"group": {}, "having": {}, "inner": {}, "intersect": {}, "join": {}, "lateral": {},
	"left": {}, "limit": {}, "natural": {}, "offset": {}, "on": {}, "order": {},
	"outer": {}, "returning": {}, "right": {}, "select": {}, "set": {}, "union": {},
	"using": {}, "values": {}, "where": {}, "window": {},
}

// unresolvedTable stands in for an identifier that could not be read. It never
// appears in a whitelist, so such statements are rejected.
const unresolvedTable = "?"

// signatureSep joins whitelist names; names containing it are dropped
const signatureSep = "\x00"

// Whitelist is a read-only set of lower-cased table identifiers
type Whitelist struct {
	tables    map[string]struct{}
	signature string
}

// NewWhitelist builds a whitelist; identifiers are trimmed and lower-cased
func NewWhitelist(tables []string) *Whitelist {
	set := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || strings.Contains(t, signatureSep) {
			continue
		}
		set[t] = struct{}{}
	}

	names := make([]string, 0, len(set))
	for t := range set {
		names = append(names, t)
	}
	sort.Strings(names)

	return &Whitelist{tables: set, signature: strings.Join(names, signatureSep)}
}

// Contains reports membership, case-insensitively
func (w *Whitelist) Contains(table string) bool {
	_, ok := w.tables[strings.ToLower(table)]
	return ok
}

// Len returns the number of identifiers
func (w *Whitelist) Len() int {
	return len(w.tables)
}

// Tables returns the identifiers in sorted order
func (w *Whitelist) Tables() []string {
	if w.signature == "" {
		return []string{}
	}
	return strings.Split(w.signature, signatureSep)
}

// extractTables returns every identifier referenced after from/join/into/update,
// in statement order. Schema-qualified names resolve to their last segment. A
// keyword followed by anything other than an identifier or a parenthesized SELECT
// yields unresolvedTable.
func extractTables(statement string) []string {
	tables := []string{}
	for _, loc := range tableKeywordPattern.FindAllStringSubmatchIndex(statement, -1) {
		keyword := strings.ToLower(statement[loc[2]:loc[3]])
		if keyword == "update" && lockClausePattern.MatchString(statement[:loc[0]]) {
			continue
		}
		tables = readTableRefs(statement[loc[1]:], keyword, tables)
	}
	return tables
}

// readTableRefs appends the references at the start of rest. Only FROM takes a
// comma separated list; tables inside a subquery are found by their own keyword.
func readTableRefs(rest, keyword string, tables []string) []string {
	for {
		rest = strings.TrimLeft(rest, " \t\r\n")
		ident := identPattern.FindString(rest)
		switch {
		case ident != "" && !isClauseKeyword(ident):
			tables = append(tables, normalizeIdentifier(ident))
			rest = rest[len(ident):]
		case (keyword == "from" || keyword == "join") && subqueryPattern.MatchString(rest):
			end := closingParen(rest)
			if end < 0 {
				return append(tables, unresolvedTable)
			}
			rest = rest[end+1:]
		default:
			return append(tables, unresolvedTable)
		}

		if keyword != "from" {
			return tables
		}
		rest = strings.TrimLeft(skipAlias(rest), " \t\r\n")
		if !strings.HasPrefix(rest, ",") {
			return tables
		}
		rest = rest[1:]
	}
}

func skipAlias(rest string) string {
	m := aliasPattern.FindStringSubmatchIndex(rest)
	if m == nil || isClauseKeyword(rest[m[2]:m[3]]) {
		return rest
	}
	return rest[m[1]:]
}

func isClauseKeyword(ident string) bool {
	_, ok := clauseKeywords[strings.ToLower(ident)]
	return ok
}

// closingParen returns the index of the parenthesis closing s[0], or -1
func closingParen(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func normalizeIdentifier(ident string) string {
	if i := strings.LastIndexByte(ident, '.'); i >= 0 {
		ident = ident[i+1:]
	}
	ident = strings.Trim(ident, "`[]")
	return strings.ToLower(ident)
}
