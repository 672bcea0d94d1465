package guard

import "regexp"

// literalPatterns are removed from a statement, in this order, before signature
// matching. A signature that appears only inside a string literal is therefore
// not detected; literals cannot be used to fake a match either.
var literalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`'(?:[^'\\]|\\.)*'`),
	regexp.MustCompile(`"(?:[^"\\]|\\.)*"`),
	regexp.MustCompile(`--[^\n]*`),
	regexp.MustCompile(`(?s)/\*.*?\*/`),
}

// StripLiterals removes quoted strings, line comments and block comments
func StripLiterals(statement string) string {
	cleaned := statement
	for _, re := range literalPatterns {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	return cleaned
}
