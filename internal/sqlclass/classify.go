// Package sqlclass classifies SQL statements as reads or writes. The router
// uses the classification to decide whether a statement run on a writable
// connection must invalidate the readonly query cache.
package sqlclass

import (
	"strings"
	"unicode"
)

// readKeywords start statements that never change data or schema.
var readKeywords = map[string]bool{
	"SELECT":    true,
	"SHOW":      true,
	"EXPLAIN":   true,
	"DESCRIBE":  true,
	"DESC":      true,
	"VALUES":    true,
	"TABLE":     true,
	"BEGIN":     true,
	"START":     true,
	"COMMIT":    true,
	"ROLLBACK":  true,
	"END":       true,
	"SAVEPOINT": true,
	"RELEASE":   true,
	"SET":       true,
	"USE":       true,
}

// dmlKeywords start data-modifying statements, including the main statement
// or a body of a WITH query.
var dmlKeywords = map[string]bool{
	"INSERT":  true,
	"UPDATE":  true,
	"DELETE":  true,
	"REPLACE": true,
	"MERGE":   true,
}

// token is a bare word (upper-cased) or a single punctuation byte.
type token struct {
	word  string
	punct byte
}

// IsWrite reports whether query mutates data or schema. A query holding
// several statements is a write if any of them is. Statements that cannot be
// recognised count as writes.
func IsWrite(query string) bool {
	for _, stmt := range statements(query) {
		if stmtIsWrite(stmt) {
			return true
		}
	}
	return false
}

func stmtIsWrite(stmt []token) bool {
	first := firstWord(stmt)
	switch {
	case first == "":
		return false
	case first == "WITH":
		return withIsWrite(stmt)
	case first == "PRAGMA":
		for _, t := range stmt {
			if t.punct == '=' {
				return true
			}
		}
		return false
	case readKeywords[first]:
		return false
	default:
		return true
	}
}

// withIsWrite classifies a WITH query by the statement that follows the
// common table expressions. A CTE body that modifies data also makes the
// query a write.
func withIsWrite(stmt []token) bool {
	depth := 0
	bodyNext := false
	for i, t := range stmt {
		switch t.punct {
		case '(':
			depth++
			if depth == 1 && i > 0 && (stmt[i-1].word == "AS" || stmt[i-1].word == "MATERIALIZED") {
				bodyNext = true
			}
			continue
		case ')':
			depth--
			continue
		}
		if t.word == "" {
			continue
		}
		if bodyNext {
			bodyNext = false
			if dmlKeywords[t.word] {
				return true
			}
		}
		if depth != 0 {
			continue
		}
		switch {
		case dmlKeywords[t.word]:
			return true
		case t.word == "SELECT" || t.word == "VALUES" || t.word == "TABLE":
			return false
		}
	}
	return true
}

func firstWord(stmt []token) string {
	for _, t := range stmt {
		if t.word != "" {
			return t.word
		}
	}
	return ""
}

// statements tokenizes query, skipping comments and quoted text, and splits
// the tokens on semicolons.
func statements(query string) [][]token {
	var stmts [][]token
	var cur []token
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			cur = append(cur, token{word: strings.ToUpper(word.String())})
			word.Reset()
		}
	}
	end := func() {
		flush()
		if len(cur) > 0 {
			stmts = append(stmts, cur)
			cur = nil
		}
	}

	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case strings.HasPrefix(query[i:], "--"):
			flush()
			for i < len(query) && query[i] != '\n' {
				i++
			}
		case strings.HasPrefix(query[i:], "/*"):
			flush()
			closing := strings.Index(query[i+2:], "*/")
			if closing < 0 {
				i = len(query)
				continue
			}
			i += closing + 3
		case c == '\'' || c == '"' || c == '`':
			flush()
			j := i + 1
			for j < len(query) && query[j] != c {
				j++
			}
			i = j
		case c == ';':
			end()
		case c == '_' || unicode.IsLetter(rune(c)) || (word.Len() > 0 && unicode.IsDigit(rune(c))):
			word.WriteByte(c)
		case c == '(' || c == ')' || c == '=':
			flush()
			cur = append(cur, token{punct: c})
		default:
			flush()
		}
	}
	end()
	return stmts
}
