package numbering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePatternFormats(t *testing.T) {
	when := time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		raw     string
		seq     int64
		want    string
		scope   Scope
		scopeKy string
	}{
		{"yearly default", "FAC-{YYYY}-{0000}", 7, "FAC-2026-0007", ScopeYear, "2026"},
		{"monthly", "{YYYY}/{MM}/{000}", 42, "2026/08/042", ScopeMonth, "2026-08"},
		{"month without year still scoped by year", "INV-{MM}-{00}", 3, "INV-08-03", ScopeMonth, "2026-08"},
		{"global counter", "Q-{00000}", 12, "Q-00012", ScopeNone, ""},
		{"counter overflow widens", "N-{00}", 250, "N-250", ScopeNone, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePattern(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Format(tt.seq, when))
			assert.Equal(t, tt.scope, p.Scope())
			assert.Equal(t, tt.scopeKy, p.ScopeKey(when))
			assert.Equal(t, tt.raw, p.String())
		})
	}
}

func TestParsePatternRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", "   "},
		{"no counter", "FAC-{YYYY}"},
		{"two counters", "{00}-{00}"},
		{"unclosed placeholder", "FAC-{YYYY"},
		{"unknown token", "FAC-{YY}-{0000}"},
		{"empty braces", "FAC-{}-{0000}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePattern(tt.raw)
			require.ErrorIs(t, err, ErrBadPattern)
		})
	}
}

func TestDefaultPatternsParse(t *testing.T) {
	for _, raw := range []string{DefaultQuotePattern, DefaultInvoicePattern} {
		p, err := ParsePattern(raw)
		require.NoError(t, err)
		assert.Equal(t, ScopeYear, p.Scope())
	}
}
