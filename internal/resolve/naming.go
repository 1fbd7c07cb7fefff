package resolve

import "strings"

// ModelName returns the Go type name a code generator gives the model of a
// table: snake_case to CamelCase with the last word singularized, and "id"
// spelled "ID". items -> Item, user_accounts -> UserAccount,
// categories -> Category.
func ModelName(table string) string {
	parts := strings.FieldsFunc(table, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	if len(parts) == 0 {
		return ""
	}
	parts[len(parts)-1] = singular(parts[len(parts)-1])

	var b strings.Builder
	for _, p := range parts {
		lower := strings.ToLower(p)
		if lower == "id" {
			b.WriteString("ID")
			continue
		}
		b.WriteString(strings.ToUpper(lower[:1]))
		b.WriteString(lower[1:])
	}
	return b.String()
}

func singular(word string) string {
	lower := strings.ToLower(word)
	switch {
	case strings.HasSuffix(lower, "ies") && len(word) > 3:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(lower, "sses"), strings.HasSuffix(lower, "xes"),
		strings.HasSuffix(lower, "ches"), strings.HasSuffix(lower, "shes"),
		strings.HasSuffix(lower, "statuses"), strings.HasSuffix(lower, "aliases"),
		strings.HasSuffix(lower, "buses"):
		return word[:len(word)-2]
	case strings.HasSuffix(lower, "ss"), strings.HasSuffix(lower, "us"),
		strings.HasSuffix(lower, "alias"):
		return word
	case strings.HasSuffix(lower, "s") && len(word) > 1:
		return word[:len(word)-1]
	}
	return word
}
