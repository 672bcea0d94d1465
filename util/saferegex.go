package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Limits applied to operator-supplied patterns
const (
	// MaxRegexLength is the maximum allowed regex pattern length
	MaxRegexLength = 500
	// MaxAlternations bounds the number of | branches in one pattern
	MaxAlternations = 50
	// MaxRepetition bounds any {n} or {n,m} lower bound
	MaxRepetition = 999
)

var repetitionRe = regexp.MustCompile(`\{(\d+)(?:,\d*)?\}`)

// RegexValidator rejects patterns that are oversized or whose compiled program
// would be disproportionately large. Go's RE2 engine matches in linear time,
// so these limits bound memory and per-statement cost, not backtracking.
type RegexValidator struct {
	maxLength int
}

// NewRegexValidator creates a new RegexValidator with default settings
func NewRegexValidator() *RegexValidator {
	return &RegexValidator{maxLength: MaxRegexLength}
}

// ValidatePattern validates a regex pattern for safety
func (rv *RegexValidator) ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("regex pattern cannot be empty")
	}

	if len(pattern) > rv.maxLength {
		return fmt.Errorf("regex pattern too long: %d characters (max %d)", len(pattern), rv.maxLength)
	}

	if err := checkNestedQuantifiers(pattern); err != nil {
		return err
	}

	if n := strings.Count(pattern, "|"); n > MaxAlternations {
		return fmt.Errorf("too many alternations: %d (max %d)", n, MaxAlternations)
	}

	if err := checkExcessiveRepetition(pattern); err != nil {
		return err
	}

	if _, err := regexp.Compile(pattern); err != nil {
		return fmt.Errorf("invalid regex pattern: %w", err)
	}
	return nil
}

// Compile compiles a regex pattern after validation
func (rv *RegexValidator) Compile(pattern string) (*regexp.Regexp, error) {
	if err := rv.ValidatePattern(pattern); err != nil {
		return nil, err
	}
	return regexp.Compile(pattern)
}

// checkNestedQuantifiers rejects stacked quantifiers such as (a+)+ followed by *
func checkNestedQuantifiers(pattern string) error {
	dangerous := []string{
		")+*", ")*+", ")+{", ")*{",
		"}+*", "}*+", "}+{", "}*{",
		"++", "**", "*+", "+*",
	}
	for _, d := range dangerous {
		if strings.Contains(pattern, d) {
			return fmt.Errorf("pattern contains nested quantifiers: found '%s'", d)
		}
	}
	return nil
}

// checkExcessiveRepetition rejects repetition bounds above MaxRepetition
func checkExcessiveRepetition(pattern string) error {
	for _, match := range repetitionRe.FindAllStringSubmatch(pattern, -1) {
		count, err := strconv.Atoi(match[1])
		if err != nil || count > MaxRepetition {
			return fmt.Errorf("excessive repetition: %s (max %d)", match[0], MaxRepetition)
		}
	}
	return nil
}
