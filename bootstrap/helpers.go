package bootstrap

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

// EnsureDataDirectory creates the directory holding the SQLite database and
// verifies it is writable. In-memory databases need no directory.
func EnsureDataDirectory(dbPath string, sugar *zap.SugaredLogger) error {
	if dbPath == ":memory:" {
		return nil
	}

	dir, err := filepath.Abs(filepath.Dir(dbPath))
	if err != nil {
		return fmt.Errorf("failed to resolve database directory for %s: %w", dbPath, err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cannot create database directory %s: %w\n"+
			"  Fix: create it by hand (mkdir -p %s) or point database.path elsewhere", dir, err, dir)
	}

	marker := filepath.Join(dir, ".warden_write_test")
	if err := os.WriteFile(marker, []byte("ok"), 0600); err != nil {
		return fmt.Errorf("database directory %s is not writable: %w\n"+
			"  Fix: grant the warden user write access or mount the volume read-write", dir, err)
	}
	_ = os.Remove(marker)

	sugar.Infow("Data directory ready", "path", dir)
	return nil
}

// diagnosis pairs a failure signature with operator guidance
type diagnosis struct {
	match  func(err error, msg string) bool
	advice func(target string) string
}

func anyOf(needles ...string) func(error, string) bool {
	return func(_ error, msg string) bool {
		for _, n := range needles {
			if containsIgnoreCase(msg, n) {
				return true
			}
		}
		return false
	}
}

var redisDiagnoses = []diagnosis{
	{
		match: func(err error, _ string) bool {
			var netErr net.Error
			return errors.As(err, &netErr) && netErr.Timeout()
		},
		advice: func(addr string) string {
			return fmt.Sprintf("Connection to Redis at %s timed out.\n"+
				"  Redis may still be starting, or a firewall is dropping packets.\n"+
				"  Check: redis-cli -u redis://%s ping", addr, addr)
		},
	},
	{
		match: func(err error, _ string) bool {
			var opErr *net.OpError
			if !errors.As(err, &opErr) || opErr.Op != "dial" {
				return false
			}
			return errors.Is(opErr.Err, syscall.ECONNREFUSED) ||
				(opErr.Err != nil && anyOf("connection refused", "actively refused")(nil, opErr.Err.Error()))
		},
		advice: func(addr string) string {
			return fmt.Sprintf("Connection refused by Redis at %s.\n"+
				"  Nothing is listening there. Start Redis or correct redis.addr (WARDEN_REDIS_ADDR).", addr)
		},
	},
	{
		match: anyOf("no such host", "lookup"),
		advice: func(addr string) string {
			return fmt.Sprintf("Cannot resolve hostname in Redis address %s.\n"+
				"  Check the host part of redis.addr or use an IP literal.", addr)
		},
	},
	{
		match: anyOf("NOAUTH", "WRONGPASS", "invalid password"),
		advice: func(addr string) string {
			return fmt.Sprintf("Authentication failed for Redis at %s.\n"+
				"  Set redis.password or WARDEN_REDIS_PASSWORD to the server's requirepass.", addr)
		},
	},
}

// ClassifyConnectionError turns a Redis connection failure into operator guidance.
func ClassifyConnectionError(err error, addr string) string {
	if err == nil {
		return ""
	}
	if advice := classify(redisDiagnoses, err, addr); advice != "" {
		return advice
	}
	return fmt.Sprintf("Failed to connect to Redis at %s: %v\n"+
		"  Security events cannot be stored until Redis is reachable.", addr, err)
}

var sqliteDiagnoses = []diagnosis{
	{
		match: anyOf("permission denied", "access denied"),
		advice: func(path string) string {
			return fmt.Sprintf("Permission denied opening SQLite database %s.\n"+
				"  The warden user needs read-write access to the file and its directory.", path)
		},
	},
	{
		match: anyOf("database is locked", "SQLITE_BUSY"),
		advice: func(path string) string {
			return fmt.Sprintf("SQLite database %s is locked by another process.\n"+
				"  Stop other warden instances sharing this file, then retry.", path)
		},
	},
	{
		match: anyOf("disk full", "no space", "SQLITE_FULL"),
		advice: func(path string) string {
			return fmt.Sprintf("No space left for SQLite database %s.\n"+
				"  Free disk space on %s or move database.path.", path, filepath.Dir(path))
		},
	},
	{
		match: anyOf("corrupt", "malformed", "SQLITE_CORRUPT"),
		advice: func(path string) string {
			return fmt.Sprintf("SQLite database %s appears to be corrupted.\n"+
				"  Copy the file aside, then run: sqlite3 %s \"PRAGMA integrity_check;\"", path, path)
		},
	},
	{
		match: anyOf("invalid database path"),
		advice: func(path string) string {
			return fmt.Sprintf("SQLite database path %s was rejected.\n"+
				"  Use a plain path without '..' segments (database.path or WARDEN_DATABASE_PATH).", path)
		},
	},
	{
		match: anyOf("read-only"),
		advice: func(path string) string {
			return fmt.Sprintf("SQLite database %s sits on a read-only file system.\n"+
				"  Move database.path to writable storage.", path)
		},
	},
}

// ClassifySQLiteError turns a SQLite open failure into operator guidance.
func ClassifySQLiteError(err error, dbPath string) string {
	if err == nil {
		return ""
	}
	absPath, absErr := filepath.Abs(dbPath)
	if absErr != nil {
		absPath = dbPath
	}
	if containsIgnoreCase(err.Error(), "invalid database path") {
		absPath = dbPath
	}
	if advice := classify(sqliteDiagnoses, err, absPath); advice != "" {
		return advice
	}
	return fmt.Sprintf("Failed to open SQLite database %s: %v", absPath, err)
}

func classify(table []diagnosis, err error, target string) string {
	msg := err.Error()
	for _, d := range table {
		if d.match(err, msg) {
			return d.advice(target)
		}
	}
	return ""
}

// containsIgnoreCase reports whether substr is within s, ignoring ASCII case.
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
