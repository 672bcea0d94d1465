package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"warden/core"

	"github.com/alicebob/miniredis/v2"
	"github.com/fatih/color"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate gives each test a fresh viper, an empty working directory and plain output
func isolate(t *testing.T) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	chdir(t, dir)

	saved := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = saved })
	return dir
}

func withRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	t.Setenv("WARDEN_REDIS_ADDR", mr.Addr())
	return mr
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "warden.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGuardCmd_AllowsWhitelistedStatement(t *testing.T) {
	isolate(t)

	out, err := runCmd(t, "guard", "SELECT id FROM accounts WHERE id = ?",
		"--tables", "accounts", "--param", "1=bob\x07", "-o", "json")
	require.NoError(t, err)

	var v guardVerdict
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.True(t, v.Allowed)
	assert.Equal(t, "bob", v.SanitizedParams["1"])
}

func TestGuardCmd_RejectsInjection(t *testing.T) {
	isolate(t)

	out, err := runCmd(t, "guard", "SELECT name FROM accounts WHERE id = 1 UNION SELECT password FROM accounts",
		"--tables", "accounts")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errStatementRejected))
	assert.Contains(t, out, "REJECTED")
	assert.Contains(t, out, "union-based")
}

func TestGuardCmd_RejectsUnlistedTable(t *testing.T) {
	isolate(t)

	out, err := runCmd(t, "guard", "SELECT * FROM secrets", "--tables", "accounts", "-o", "json")
	require.ErrorIs(t, err, errStatementRejected)

	var v guardVerdict
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.False(t, v.Allowed)
	assert.Equal(t, "secrets", v.Table)
	assert.Empty(t, v.Category)
}

func TestGuardCmd_UsesConfiguredWhitelist(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, "guard:\n  allowed_tables: [Orders]\n")

	_, err := runCmd(t, "--config", path, "guard", "SELECT total FROM orders WHERE id = ?")
	assert.NoError(t, err)
}

func TestCheckCmd_JSON(t *testing.T) {
	isolate(t)
	withRedis(t)

	out, err := runCmd(t, "check", "-o", "json")
	require.NoError(t, err)

	var result core.ValidationResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, core.OverallPass, result.Overall)
	// No response headers are configured, so only the header check fails
	assert.Equal(t, 83, result.Score)
	assert.Equal(t, 6, result.Summary.Total)
}

func TestCheckCmd_FailsOnMissingSecret(t *testing.T) {
	dir := isolate(t)
	withRedis(t)
	path := writeConfig(t, dir, "security:\n  required_secrets: [signing_key]\n")

	out, err := runCmd(t, "--config", path, "check", "--output", "markdown")
	require.ErrorIs(t, err, errChecksFailed)
	assert.Contains(t, out, "# Security Validation Report")
	assert.Contains(t, out, "## Action Required")
	assert.Contains(t, out, "**required_secrets** (critical)")
}

func TestCheckCmd_Text(t *testing.T) {
	isolate(t)
	withRedis(t)

	out, err := runCmd(t, "--quiet", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "SECURITY VALIDATION")
	assert.Contains(t, out, "Overall: PASS (score 83/100)")
}

func TestCheckCmd_RejectsUnknownFormat(t *testing.T) {
	isolate(t)

	_, err := runCmd(t, "check", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestDashboardCmd_YAML(t *testing.T) {
	isolate(t)
	withRedis(t)

	out, err := runCmd(t, "dashboard", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "current_metrics:")
	assert.Contains(t, out, "total_requests: 0")
	assert.Contains(t, out, "trend:")
	assert.Less(t, strings.Index(out, "current_metrics:"), strings.Index(out, "trend:"))
}

func TestDashboardCmd_TextLabelsTrendWindow(t *testing.T) {
	isolate(t)
	withRedis(t)

	out, err := runCmd(t, "--quiet", "dashboard")
	require.NoError(t, err)
	assert.Contains(t, out, "SECURITY DASHBOARD")
	assert.Contains(t, out, "Trend (latest hourly window per day)")
}

func TestRenderDashboard_TrendRows(t *testing.T) {
	isolate(t)

	var buf bytes.Buffer
	renderDashboard(&buf, &core.Dashboard{
		Trend: []core.TrendPoint{
			{Date: "2026-03-01", TotalRequests: 120, AttackAttempts: 7, BlockedRequests: 9},
			{Date: "2026-03-02"},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "Trend (latest hourly window per day)")
	assert.Regexp(t, `2026-03-01\s+120\s+7\s+9`, out)
	assert.Regexp(t, `2026-03-02\s+0\s+0\s+0`, out)
}

func TestArchiveCmd_CollectThenArchive(t *testing.T) {
	isolate(t)
	mr := withRedis(t)

	out, err := runCmd(t, "archive", "--collect", "-o", "json")
	require.NoError(t, err)

	var report struct {
		Removed map[string]int `json:"removed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Len(t, report.Removed, 3)

	// The collect cycle appended today's snapshot to the daily rollup
	keys := mr.Keys()
	found := false
	for _, k := range keys {
		if strings.HasPrefix(k, "security:metrics:daily:") {
			found = true
		}
	}
	assert.True(t, found, "expected a daily rollup key, got %v", keys)
}

func TestConfigFlag_MissingFile(t *testing.T) {
	isolate(t)

	_, err := runCmd(t, "--config", "does-not-exist.yaml", "guard", "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file")
}

func TestParseFormat(t *testing.T) {
	f, err := parseFormat(" JSON ", formatText, formatJSON)
	require.NoError(t, err)
	assert.Equal(t, formatJSON, f)

	_, err = parseFormat("markdown", formatText, formatJSON)
	assert.Error(t, err)
}

func TestOutputAsYAML_KeepsFieldOrderAndNames(t *testing.T) {
	var buf bytes.Buffer
	err := outputAsYAML(&buf, core.ValidationCheck{
		Name:     "security_headers",
		Status:   core.CheckFail,
		Message:  "missing: X-Frame-Options",
		Severity: core.SeverityMedium,
	})
	require.NoError(t, err)
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "name: security_headers\nstatus: fail\n"), out)
	assert.Contains(t, out, "missing: X-Frame-Options")
	assert.True(t, strings.HasSuffix(out, "severity: medium\n"), out)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24)
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
