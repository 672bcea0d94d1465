package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhitelist_ContainsIsCaseInsensitive(t *testing.T) {
	wl := NewWhitelist([]string{"Users", " orders ", ""})

	assert.True(t, wl.Contains("users"))
	assert.True(t, wl.Contains("USERS"))
	assert.True(t, wl.Contains("Orders"))
	assert.False(t, wl.Contains("admins"))
	assert.Equal(t, 2, wl.Len())
	assert.Equal(t, []string{"orders", "users"}, wl.Tables())
}

func TestWhitelist_Empty(t *testing.T) {
	wl := NewWhitelist(nil)
	assert.Equal(t, 0, wl.Len())
	assert.Equal(t, []string{}, wl.Tables())
	assert.False(t, wl.Contains("users"))
}

func TestWhitelist_SignatureKeepsNamesApart(t *testing.T) {
	joined := NewWhitelist([]string{"a,b"})
	split := NewWhitelist([]string{"a", "b"})

	assert.NotEqual(t, joined.signature, split.signature)
	assert.Equal(t, []string{"a,b"}, joined.Tables())
	assert.Equal(t, []string{"a", "b"}, split.Tables())
	assert.Equal(t, 0, NewWhitelist([]string{"a\x00b"}).Len())
}

func TestExtractTables(t *testing.T) {
	tests := []struct {
		statement string
		want      []string
	}{
		{"SELECT * FROM users WHERE id = ?", []string{"users"}},
		{"SELECT * FROM Users u JOIN orders o ON o.user_id = u.id", []string{"users", "orders"}},
		{"INSERT INTO audit_log (a) VALUES (?)", []string{"audit_log"}},
		{"UPDATE `accounts` SET balance = ?", []string{"accounts"}},
		{"SELECT * FROM public.users", []string{"users"}},
		{"SELECT * FROM [dbo].[customers]", []string{"customers"}},
		{"SELECT 1", []string{}},
		{"SELECT * FROM users u, orders AS o WHERE o.user_id = u.id", []string{"users", "orders"}},
		{"SELECT * FROM (SELECT id FROM users) t", []string{"users"}},
		{"SELECT * FROM (SELECT id FROM users) t, secrets", []string{"secrets", "users"}},
		{"SELECT * FROM users WHERE id = ? FOR UPDATE", []string{"users"}},
		{"INSERT INTO  (x) VALUES (?)", []string{"?"}},
		{"SELECT * FROM  WHERE id = 1", []string{"?"}},
		{"SELECT * FROM users, ", []string{"users", "?"}},
		{"SELECT * FROM", []string{"?"}},
		{"DELETE FROM (users)", []string{"?"}},
	}

	for _, tt := range tests {
		t.Run(tt.statement, func(t *testing.T) {
			assert.Equal(t, tt.want, extractTables(tt.statement))
		})
	}
}

func TestStripLiterals(t *testing.T) {
	assert.Equal(t, "SELECT * FROM users WHERE name = ", StripLiterals("SELECT * FROM users WHERE name = 'x UNION SELECT'"))
	assert.Equal(t, "SELECT 1 ", StripLiterals("SELECT 1 -- ; DROP TABLE users"))
	assert.Equal(t, "SELECT  1", StripLiterals("SELECT /* union\nselect */ 1"))
	assert.Equal(t, "SELECT  FROM t", StripLiterals(`SELECT "col" FROM t`))
}
