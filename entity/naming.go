package entity

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// TableName derives the table for a logical entity name: snake_case, lower
// cased and pluralised ("User" -> "users", "ChatSession" -> "chat_sessions").
// bun applies the same rule to struct names, so models do not carry explicit
// table tags.
func TableName(logical string) string {
	snake := toSnake(logical)
	if snake == "" {
		return ""
	}
	return inflection.Plural(snake)
}

// TableOf returns the derived table name for a record value or pointer.
func TableOf(record any) string {
	t := reflect.TypeOf(record)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return TableName(t.Name())
}

// toSnake converts an identifier to snake_case. Punctuation that shows up in
// reflected type names (generic brackets, package dots) collapses into a
// single underscore so the result is always a valid SQL identifier.
func toSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	sep := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
			b.WriteByte('_')
		}
	}

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					sep()
				}
			}
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsLower(r), unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			sep()
		}
	}

	return strings.Trim(b.String(), "_")
}
