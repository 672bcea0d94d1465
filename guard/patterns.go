package guard

import (
	"fmt"
	"regexp"
)

// Attack signature categories, in evaluation order
const (
	CategoryUnionBased       = "union-based"
	CategoryStackedStatement = "stacked-statement"
	CategoryTautology        = "tautology"
	CategoryInfoSchemaProbe  = "info-schema-probe"
	CategoryTimingAttack     = "timing-attack"
	CategoryFileReadWrite    = "file-read-write"
	CategoryStoredProcExec   = "stored-procedure-exec"
	CategorySchemaChange     = "schema-change"
	CategoryEncodedPayload   = "encoded-payload"
)

// AttackPattern is one named signature. Patterns are RE2 expressions, so
// matching is linear in the statement length.
type AttackPattern struct {
	Name     string
	Category string
	Regexp   *regexp.Regexp
}

// PatternSet is an ordered, immutable list of attack patterns
type PatternSet struct {
	patterns []AttackPattern
}

// PatternSpec is the uncompiled form of an AttackPattern
type PatternSpec struct {
	Name     string `mapstructure:"name"`
	Category string `mapstructure:"category"`
	Expr     string `mapstructure:"expr"`
}

var defaultPatternSpecs = []PatternSpec{
	{"union select", CategoryUnionBased, `\bunion(\s+all|\s+distinct)?\s+select\b`},
	{"stacked statement", CategoryStackedStatement, `;\s*(select|insert|update|delete|drop|create|alter|truncate|exec|execute|declare|grant|revoke|shutdown|replace|merge|call)\b`},
	{"or tautology", CategoryTautology, `\bor\s+(\d+\s*=\s*\d+|true\b|not\s+false\b)`},
	{"catalog probe", CategoryInfoSchemaProbe, `\b(information_schema|pg_catalog|pg_shadow|sqlite_master|sqlite_schema|sysobjects|syscolumns|mysql\.user|sys\.objects)\b`},
	{"sleep function", CategoryTimingAttack, `\b(sleep|pg_sleep|benchmark|randomblob)\s*\(|\bwaitfor\s+delay\b`},
	{"file access", CategoryFileReadWrite, `\bload_file\s*\(|\binto\s+(outfile|dumpfile)\b|\bload\s+data\s+(local\s+)?infile\b|\bpg_read_file\s*\(`},
	{"procedure call", CategoryStoredProcExec, `\b(exec|execute)\s+(master\.|xp_|sp_)|\bxp_cmdshell\b|\bsp_executesql\b`},
	{"ddl", CategorySchemaChange, `\b(drop|alter|truncate)\s+(table|database|schema|view|index)\b`},
	{"hex or char encoding", CategoryEncodedPayload, `\b0x[0-9a-f]{8,}\b|\bchar\s*\(\s*\d+(\s*,\s*\d+){3,}\s*\)`},
}

// DefaultPatternSpecs returns a copy of the built-in signature table
func DefaultPatternSpecs() []PatternSpec {
	out := make([]PatternSpec, len(defaultPatternSpecs))
	copy(out, defaultPatternSpecs)
	return out
}

// DefaultPatterns compiles the built-in signature table
func DefaultPatterns() *PatternSet {
	ps, err := NewPatternSet(defaultPatternSpecs)
	if err != nil {
		panic(err)
	}
	return ps
}

// NewPatternSet compiles specs case-insensitively, preserving their order
func NewPatternSet(specs []PatternSpec) (*PatternSet, error) {
	patterns := make([]AttackPattern, 0, len(specs))
	for _, s := range specs {
		if s.Name == "" || s.Category == "" || s.Expr == "" {
			return nil, fmt.Errorf("pattern %q: name, category and expr are required", s.Name)
		}
		re, err := regexp.Compile(`(?i)` + s.Expr)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern %q: %w", s.Name, err)
		}
		patterns = append(patterns, AttackPattern{Name: s.Name, Category: s.Category, Regexp: re})
	}
	return &PatternSet{patterns: patterns}, nil
}

// Match returns the first pattern that matches text
func (ps *PatternSet) Match(text string) (AttackPattern, bool) {
	for _, p := range ps.patterns {
		if p.Regexp.MatchString(text) {
			return p, true
		}
	}
	return AttackPattern{}, false
}

// Len returns the number of patterns
func (ps *PatternSet) Len() int {
	return len(ps.patterns)
}

// Categories returns pattern categories in evaluation order
func (ps *PatternSet) Categories() []string {
	out := make([]string, len(ps.patterns))
	for i, p := range ps.patterns {
		out[i] = p.Category
	}
	return out
}
