package guard

import (
	"context"
	"errors"

	"warden/core"
	"warden/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// EventSink receives guard outcomes. Emit must not block the caller.
type EventSink interface {
	Emit(event *core.SecurityEvent)
}

// Options configures a Guard
type Options struct {
	// Patterns defaults to DefaultPatterns()
	Patterns *PatternSet
	// AllowedTables is the process-wide default whitelist
	AllowedTables []string
	// Sink receives one event per Validate call; nil disables event emission
	Sink EventSink
	// CacheSize bounds the verdict cache; 0 disables it
	CacheSize int
	// Clock defaults to core.SystemClock
	Clock  core.Clock
	Logger *zap.SugaredLogger
}

// verdict is the cached outcome of validating one statement against one whitelist
type verdict struct {
	category string
	table    string
}

func (v verdict) err() error {
	switch {
	case v.category != "":
		return &core.InjectionError{Category: v.category}
	case v.table != "":
		return &core.UnauthorizedTableError{Table: v.table}
	default:
		return nil
	}
}

// Guard validates statements before execution. It is safe for concurrent use.
type Guard struct {
	patterns  *PatternSet
	whitelist *Whitelist
	sink      EventSink
	cache     *lru.Cache[string, verdict]
	clock     core.Clock
	logger    *zap.SugaredLogger
}

// New creates a Guard
func New(opts Options) (*Guard, error) {
	g := &Guard{
		patterns:  opts.Patterns,
		whitelist: NewWhitelist(opts.AllowedTables),
		sink:      opts.Sink,
		clock:     opts.Clock,
		logger:    opts.Logger,
	}
	if g.patterns == nil {
		g.patterns = DefaultPatterns()
	}
	if g.clock == nil {
		g.clock = core.SystemClock{}
	}
	if g.logger == nil {
		g.logger = zap.NewNop().Sugar()
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, verdict](opts.CacheSize)
		if err != nil {
			return nil, err
		}
		g.cache = cache
	}
	return g, nil
}

// DefaultWhitelist returns the process-wide whitelist
func (g *Guard) DefaultWhitelist() *Whitelist {
	return g.whitelist
}

// Validate checks statement against the attack signatures and the effective
// whitelist (allowedTables if given, else the default). A nil return means the
// statement may be executed. Rejections are *core.InjectionError or
// *core.UnauthorizedTableError; use core.PublicError before showing them to users.
func (g *Guard) Validate(ctx context.Context, statement string, params map[string]interface{}, allowedTables ...string) error {
	wl := g.whitelist
	if len(allowedTables) > 0 {
		wl = NewWhitelist(allowedTables)
	}

	v := g.evaluate(statement, wl)
	err := v.err()

	g.record(ctx, statement, len(params), v)
	return err
}

func (g *Guard) evaluate(statement string, wl *Whitelist) verdict {
	var key string
	if g.cache != nil {
		key = wl.signature + "\x00" + statement
		if v, ok := g.cache.Get(key); ok {
			return v
		}
	}

	v := g.check(statement, wl)

	if g.cache != nil {
		g.cache.Add(key, v)
	}
	return v
}

func (g *Guard) check(statement string, wl *Whitelist) verdict {
	cleaned := StripLiterals(statement)

	if p, ok := g.patterns.Match(cleaned); ok {
		return verdict{category: p.Category}
	}

	for _, table := range extractTables(cleaned) {
		if !wl.Contains(table) {
			return verdict{table: table}
		}
	}
	return verdict{}
}

func (g *Guard) record(ctx context.Context, statement string, paramCount int, v verdict) {
	info, _ := core.RequestInfoFromContext(ctx)

	category := core.CategorySecurity
	eventType := core.EventTypeQueryAllowed
	var attackTypes []string

	switch {
	case v.category != "":
		metrics.GuardDecisions.WithLabelValues("rejected", v.category).Inc()
		g.logger.Warnw("Statement rejected by attack signature",
			"category", v.category,
			"ip", info.IP,
			"param_count", paramCount)
		category, eventType = core.CategoryAttack, core.EventTypeSQLInjection
		attackTypes = []string{v.category}
	case v.table != "":
		metrics.GuardDecisions.WithLabelValues("rejected", core.EventTypeUnauthorizedTable).Inc()
		g.logger.Warnw("Statement references table outside whitelist",
			"table", v.table,
			"ip", info.IP,
			"param_count", paramCount)
		category, eventType = core.CategoryAttack, core.EventTypeUnauthorizedTable
		attackTypes = []string{core.EventTypeUnauthorizedTable}
	default:
		metrics.GuardDecisions.WithLabelValues("allowed", "").Inc()
	}

	if g.sink == nil {
		return
	}
	g.sink.Emit(core.NewSecurityEvent(g.clock.Now(), category, eventType, core.EventDetails{
		IP:          info.IP,
		UserAgent:   info.UserAgent,
		Payload:     statement,
		AttackTypes: attackTypes,
		Method:      info.Method,
		URL:         info.URL,
	}))
}

// Category returns the attack category of an injection rejection, or ""
func Category(err error) string {
	var ie *core.InjectionError
	if errors.As(err, &ie) {
		return ie.Category
	}
	return ""
}
