package rules

import (
	"github.com/solatis/querykit/internal/log"
)

// Options configures predicate and order building.
type Options struct {
	// CaseInsensitive lower-cases both sides of string comparisons and
	// string sort keys.
	CaseInsensitive bool

	// SplitSearchBySpace splits global search text into whitespace tokens;
	// every token must match some searchable member.
	SplitSearchBySpace bool

	// UTCDateTimes normalizes DateTime literals to UTC.
	UTCDateTimes bool

	// SkipInvalidConditions drops invalid conditions instead of failing the
	// whole build.
	SkipInvalidConditions bool
}

// Engine builds predicates (Where) and orderings (Sort) over record types.
// Stateless apart from its options; safe for concurrent use.
type Engine struct {
	opts   Options
	logger log.Logger
}

// NewEngine creates a rules engine. A nil logger discards output.
func NewEngine(opts Options, logger log.Logger) *Engine {
	return &Engine{
		opts:   opts,
		logger: log.OrNop(logger),
	}
}

// Options returns the engine configuration.
func (e *Engine) Options() Options {
	return e.opts
}
