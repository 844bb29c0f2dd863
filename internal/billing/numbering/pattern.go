// Package numbering allocates collision-free, human-readable document
// numbers from per-owner patterns backed by durable counters.
package numbering

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Default patterns used when company settings carry none.
const (
	DefaultQuotePattern   = "DEV-{YYYY}-{0000}"
	DefaultInvoicePattern = "FAC-{YYYY}-{0000}"
)

// ErrBadPattern reports an unparseable numbering pattern.
var ErrBadPattern = errors.New("numbering: bad pattern")

// Scope is the counter reset granularity, derived from the date placeholders
// present in a pattern.
type Scope int

const (
	// ScopeNone keeps one global counter per owner and document type.
	ScopeNone Scope = iota
	// ScopeYear resets the counter every calendar year.
	ScopeYear
	// ScopeMonth resets the counter every month.
	ScopeMonth
)

type segmentKind int

const (
	segLiteral segmentKind = iota
	segCounter
	segYear
	segMonth
)

type segment struct {
	kind  segmentKind
	text  string
	width int
}

// Pattern is a parsed numbering pattern: literal text interspersed with a
// zero-padded counter placeholder and optional year/month placeholders.
type Pattern struct {
	raw      string
	segments []segment
	scope    Scope
}

// ParsePattern parses the mini-language. Placeholders are brace-delimited:
// {YYYY} year, {MM} month, and a run of zeros whose length is the counter
// width, e.g. {0000} for a width-4 counter. Exactly one counter placeholder
// is required.
func ParsePattern(raw string) (*Pattern, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty", ErrBadPattern)
	}

	p := &Pattern{raw: raw}
	var literal strings.Builder
	counters := 0
	hasYear, hasMonth := false, false

	flush := func() {
		if literal.Len() > 0 {
			p.segments = append(p.segments, segment{kind: segLiteral, text: literal.String()})
			literal.Reset()
		}
	}

	rest := raw
	for len(rest) > 0 {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			literal.WriteString(rest)
			break
		}
		literal.WriteString(rest[:open])
		rest = rest[open+1:]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			return nil, fmt.Errorf("%w: unclosed placeholder in %q", ErrBadPattern, raw)
		}
		token := rest[:end]
		rest = rest[end+1:]

		switch {
		case token == "YYYY":
			flush()
			p.segments = append(p.segments, segment{kind: segYear})
			hasYear = true
		case token == "MM":
			flush()
			p.segments = append(p.segments, segment{kind: segMonth})
			hasMonth = true
		case token != "" && strings.Count(token, "0") == len(token):
			flush()
			p.segments = append(p.segments, segment{kind: segCounter, width: len(token)})
			counters++
		default:
			return nil, fmt.Errorf("%w: unknown placeholder {%s} in %q", ErrBadPattern, token, raw)
		}
	}
	flush()

	if counters != 1 {
		return nil, fmt.Errorf("%w: pattern %q needs exactly one counter placeholder", ErrBadPattern, raw)
	}

	switch {
	case hasMonth:
		// A month placeholder implies monthly resets even without {YYYY}:
		// the scope key always carries the year so counters never collide
		// across years.
		p.scope = ScopeMonth
	case hasYear:
		p.scope = ScopeYear
	default:
		p.scope = ScopeNone
	}
	return p, nil
}

// Scope returns the reset granularity of the pattern.
func (p *Pattern) Scope() Scope {
	return p.scope
}

// ScopeKey derives the counter row key for the given issue date: "" for a
// global counter, "2026" for yearly resets, "2026-08" for monthly resets.
func (p *Pattern) ScopeKey(when time.Time) string {
	switch p.scope {
	case ScopeYear:
		return when.Format("2006")
	case ScopeMonth:
		return when.Format("2006-01")
	default:
		return ""
	}
}

// Format renders the pattern with the allocated sequence value and the
// issue date substituted in.
func (p *Pattern) Format(seq int64, when time.Time) string {
	var out strings.Builder
	for _, s := range p.segments {
		switch s.kind {
		case segLiteral:
			out.WriteString(s.text)
		case segCounter:
			out.WriteString(fmt.Sprintf("%0*d", s.width, seq))
		case segYear:
			out.WriteString(when.Format("2006"))
		case segMonth:
			out.WriteString(when.Format("01"))
		}
	}
	return out.String()
}

// String returns the raw pattern text.
func (p *Pattern) String() string {
	return p.raw
}
