package validation

import (
	"fmt"
	"strings"

	"warden/core"
)

var statusIcon = map[core.CheckStatus]string{
	core.CheckPass:    "✅",
	core.CheckWarning: "⚠️",
	core.CheckFail:    "❌",
}

// RenderMarkdown renders a human-readable report of result
func RenderMarkdown(result core.ValidationResult) string {
	var sb strings.Builder

	sb.WriteString("# Security Validation Report\n\n")
	sb.WriteString(fmt.Sprintf("**Generated**: %s\n", result.Timestamp.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("**Overall**: %s\n", strings.ToUpper(string(result.Overall))))
	sb.WriteString(fmt.Sprintf("**Score**: %d/100\n\n", result.Score))
	sb.WriteString("---\n\n")

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Total | Passed | Failed | Warnings | Critical Failures |\n")
	sb.WriteString("|-------|--------|--------|----------|-------------------|\n")
	sb.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %d |\n\n",
		result.Summary.Total,
		result.Summary.Passed,
		result.Summary.Failed,
		result.Summary.Warnings,
		result.Summary.CriticalFailures))

	sb.WriteString("## Checks\n\n")
	sb.WriteString("| Status | Check | Severity | Message |\n")
	sb.WriteString("|--------|-------|----------|---------|\n")
	for _, c := range result.Checks {
		sb.WriteString(fmt.Sprintf("| %s %s | `%s` | %s | %s |\n",
			statusIcon[c.Status], c.Status, c.Name, c.Severity, escapeCell(c.Message)))
	}

	if failing := failingChecks(result.Checks); len(failing) > 0 {
		sb.WriteString("\n## Action Required\n\n")
		for _, c := range failing {
			sb.WriteString(fmt.Sprintf("- **%s** (%s): %s\n", c.Name, c.Severity, c.Message))
		}
	}
	return sb.String()
}

func failingChecks(checks []core.ValidationCheck) []core.ValidationCheck {
	var out []core.ValidationCheck
	for _, c := range checks {
		if c.Status == core.CheckFail {
			out = append(out, c)
		}
	}
	return out
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
