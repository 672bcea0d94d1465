package guard

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
)

// Querier is the data-access collaborator the Executor forwards to.
// *sql.DB, *sql.Conn and *sql.Tx satisfy it.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Executor runs statements only after the guard accepts them.
// Parameters are sanitized before they are bound.
type Executor struct {
	guard *Guard
	db    Querier
}

// NewExecutor places g in front of db
func NewExecutor(g *Guard, db Querier) *Executor {
	return &Executor{guard: g, db: db}
}

// Exec validates, sanitizes and executes a statement that returns no rows
func (e *Executor) Exec(ctx context.Context, statement string, params map[string]interface{}, allowedTables ...string) (sql.Result, error) {
	if err := e.guard.Validate(ctx, statement, params, allowedTables...); err != nil {
		return nil, err
	}
	return e.db.ExecContext(ctx, statement, bindArgs(Sanitize(params))...)
}

// Query validates, sanitizes and executes a statement that returns rows
func (e *Executor) Query(ctx context.Context, statement string, params map[string]interface{}, allowedTables ...string) (*sql.Rows, error) {
	if err := e.guard.Validate(ctx, statement, params, allowedTables...); err != nil {
		return nil, err
	}
	return e.db.QueryContext(ctx, statement, bindArgs(Sanitize(params))...)
}

// bindArgs turns a parameter map into driver arguments. Keys "1", "2", ...
// bind positionally in numeric order; any other key binds as a named argument
// in lexical order after the positional ones.
func bindArgs(params map[string]interface{}) []interface{} {
	type positional struct {
		idx   int
		value interface{}
	}
	var pos []positional
	var names []string

	for k, v := range params {
		if n, err := strconv.Atoi(k); err == nil && n > 0 {
			pos = append(pos, positional{idx: n, value: v})
			continue
		}
		names = append(names, k)
	}

	sort.Slice(pos, func(i, j int) bool { return pos[i].idx < pos[j].idx })
	sort.Strings(names)

	args := make([]interface{}, 0, len(params))
	for _, p := range pos {
		args = append(args, p.value)
	}
	for _, name := range names {
		args = append(args, sql.Named(name, params[name]))
	}
	return args
}
