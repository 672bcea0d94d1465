package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"warden/core"
	"warden/monitor"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

const (
	formatText     = "text"
	formatJSON     = "json"
	formatYAML     = "yaml"
	formatMarkdown = "markdown"
)

// parseFormat accepts one of allowed, case-insensitively
func parseFormat(value string, allowed ...string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return "", fmt.Errorf("unsupported output format %q (expected one of: %s)", value, strings.Join(allowed, ", "))
}

func outputAsJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// outputAsYAML renders data with its JSON field names. The JSON document is
// decoded into a yaml.Node so key order survives.
func outputAsYAML(w io.Writer, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return err
	}
	blockStyle(&node)

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(&node); err != nil {
		return err
	}
	return encoder.Close()
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// printSection prints a section header
func printSection(w io.Writer, title string) {
	headerColor.Fprintf(w, "  %s\n", title)
	headerColor.Fprintln(w, "  "+strings.Repeat("─", len(title)))
}

// printField prints a key-value field
func printField(w io.Writer, key, value string) {
	if value == "" {
		value = "(not set)"
	}
	fmt.Fprintf(w, "  %-25s %s\n", key+":", value)
}

// formatCheckStatus pads before coloring so escape codes do not break alignment
func formatCheckStatus(status core.CheckStatus) string {
	switch status {
	case core.CheckPass:
		return color.New(color.FgGreen).Sprintf("%-6s", "PASS")
	case core.CheckWarning:
		return color.New(color.FgYellow).Sprintf("%-6s", "WARN")
	case core.CheckFail:
		return color.New(color.FgRed).Sprintf("%-6s", "FAIL")
	default:
		return fmt.Sprintf("%-6s", status)
	}
}

func formatSeverity(s core.Severity) string {
	switch s {
	case core.SeverityCritical:
		return color.New(color.FgRed, color.Bold).Sprintf("%-8s", s)
	case core.SeverityHigh:
		return color.New(color.FgRed).Sprintf("%-8s", s)
	case core.SeverityMedium:
		return color.New(color.FgYellow).Sprintf("%-8s", s)
	default:
		return fmt.Sprintf("%-8s", s)
	}
}

// formatTime formats a timestamp
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "Never"
	}
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

// renderValidation displays a self-test result
func renderValidation(w io.Writer, result core.ValidationResult) {
	headerColor.Fprintln(w, "SECURITY VALIDATION")
	headerColor.Fprintln(w, strings.Repeat("=", 90))
	fmt.Fprintf(w, "%-28s %-6s %-8s %s\n", "Check", "Status", "Severity", "Message")
	fmt.Fprintln(w, strings.Repeat("-", 90))

	for _, c := range result.Checks {
		fmt.Fprintf(w, "%-28s %s %s %s\n", c.Name, formatCheckStatus(c.Status), formatSeverity(c.Severity), c.Message)
	}
	fmt.Fprintln(w, strings.Repeat("=", 90))

	s := result.Summary
	fmt.Fprintf(w, "Checks: %d total, %d passed, %d failed, %d warnings, %d critical failures\n",
		s.Total, s.Passed, s.Failed, s.Warnings, s.CriticalFailures)

	if result.Passed() {
		successColor.Fprintf(w, "Overall: PASS (score %d/100)\n", result.Score)
		return
	}
	errorColor.Fprintf(w, "Overall: FAIL (score %d/100)\n", result.Score)
}

// renderDashboard displays the operator dashboard
func renderDashboard(w io.Writer, d *core.Dashboard) {
	m := d.CurrentMetrics

	headerColor.Fprintln(w, "SECURITY DASHBOARD")
	headerColor.Fprintln(w, strings.Repeat("=", 60))
	printField(w, "Snapshot", formatTime(m.Timestamp))
	printField(w, "Window", monitor.MetricsWindow.String())
	printField(w, "Total requests", fmt.Sprint(m.TotalRequests))
	printField(w, "Blocked requests", fmt.Sprint(m.BlockedRequests))
	printField(w, "Attack attempts", fmt.Sprint(m.AttackAttempts))
	printField(w, "Blacklisted IPs", fmt.Sprint(m.BlacklistedIPCount))
	printField(w, "Rate limit violations", fmt.Sprint(m.RateLimitViolations))
	fmt.Fprintln(w)

	renderCounts(w, "Top attack types", m.TopAttackTypes)
	renderCounts(w, "Top attacking IPs", m.TopAttackIPs)
	renderCounts(w, "Suspicious user agents", m.SuspiciousUserAgents)

	if len(m.PerEndpointStats) > 0 {
		printSection(w, "Endpoints")
		for _, e := range m.PerEndpointStats {
			fmt.Fprintf(w, "  %-40s %8d requests %6d blocked\n", e.Endpoint, e.Requests, e.Blocked)
		}
		fmt.Fprintln(w)
	}

	printSection(w, "Recent alerts")
	if len(d.RecentAlerts) == 0 {
		warningColor.Fprintln(w, "  No alerts")
	}
	for _, a := range d.RecentAlerts {
		ack := ""
		if a.Acknowledged {
			ack = " (acknowledged)"
		}
		fmt.Fprintf(w, "  %s  %s %s%s\n", formatTime(a.Timestamp), formatSeverity(a.Severity), a.Message, ack)
	}
	fmt.Fprintln(w)

	// each day holds the last hourly snapshot taken that day, not a daily sum
	printSection(w, "Trend (latest hourly window per day)")
	fmt.Fprintf(w, "  %-12s %10s %10s %10s\n", "Date", "Requests", "Attacks", "Blocked")
	for _, p := range d.Trend {
		fmt.Fprintf(w, "  %-12s %10d %10d %10d\n", p.Date, p.TotalRequests, p.AttackAttempts, p.BlockedRequests)
	}
}

func renderCounts(w io.Writer, title string, entries []core.CountEntry) {
	if len(entries) == 0 {
		return
	}
	printSection(w, title)
	for _, e := range entries {
		fmt.Fprintf(w, "  %-40s %d\n", e.Key, e.Count)
	}
	fmt.Fprintln(w)
}

// renderArchiveReport displays the outcome of an archive cycle
func renderArchiveReport(w io.Writer, report monitor.ArchiveReport) {
	headerColor.Fprintln(w, "ARCHIVE")
	printField(w, "Cutoff", formatTime(report.Cutoff))
	total := 0
	for _, stream := range core.Categories {
		n := report.Removed[stream]
		total += n
		printField(w, string(stream), fmt.Sprintf("%d removed", n))
	}
	for _, stream := range core.Categories {
		if msg, ok := report.Failed[stream]; ok {
			errorColor.Fprintf(w, "  %-25s %s\n", string(stream)+":", msg)
		}
	}
	if len(report.Failed) == 0 {
		successColor.Fprintf(w, "Archived %d events\n", total)
	}
}
