// Package patterns matches error signatures against a static library of
// known failure patterns.
package patterns

import (
	"fmt"
	"regexp"

	"github.com/spec-kit/triage-service/internal/domain"
)

// Matcher holds a compiled, read-only pattern library. Match order is
// library order; the first match is the top match.
type Matcher struct {
	patterns []domain.Pattern
	compiled []*regexp.Regexp
}

// NewMatcher compiles the library. Every regex is matched
// case-insensitively.
func NewMatcher(library []domain.Pattern) (*Matcher, error) {
	compiled := make([]*regexp.Regexp, len(library))
	for i, p := range library {
		re, err := regexp.Compile("(?i)" + p.Regex)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p.Signature, err)
		}
		compiled[i] = re
	}
	return &Matcher{
		patterns: append([]domain.Pattern{}, library...),
		compiled: compiled,
	}, nil
}

// Match returns every pattern whose regex matches text, in library order.
func (m *Matcher) Match(text string) []domain.Pattern {
	var matches []domain.Pattern
	for i, re := range m.compiled {
		if re.MatchString(text) {
			matches = append(matches, m.patterns[i])
		}
	}
	return matches
}

// RecordingMatcher wraps a Matcher and reports each matched signature,
// feeding occurrence bookkeeping without coupling matching to storage.
type RecordingMatcher struct {
	inner  *Matcher
	record func(signature string)
}

// NewRecordingMatcher constructs the wrapper. record may be nil.
func NewRecordingMatcher(inner *Matcher, record func(signature string)) *RecordingMatcher {
	return &RecordingMatcher{inner: inner, record: record}
}

// Match forwards to the wrapped matcher and records every hit.
func (m *RecordingMatcher) Match(text string) []domain.Pattern {
	matches := m.inner.Match(text)
	if m.record != nil {
		for _, p := range matches {
			m.record(p.Signature)
		}
	}
	return matches
}

// DefaultLibrary is the built-in signature set used when the pattern
// table is empty.
func DefaultLibrary() []domain.Pattern {
	return []domain.Pattern{
		{
			Signature:   "ssl_handshake_error",
			Regex:       `ssl\s*handshake|certificate\s+(mismatch|expired|invalid)`,
			Solution:    "Renew the webhook SSL certificate at Settings > Webhooks > Advanced.",
			SuccessRate: 0.92,
		},
		{
			Signature:   "webhook_timeout",
			Regex:       `webhook.*time\s*out|time\s*out.*webhook`,
			Solution:    "Raise the webhook delivery timeout and verify the receiving endpoint responds within 5s.",
			SuccessRate: 0.81,
		},
		{
			Signature:   "rate_limit_exceeded",
			Regex:       `rate\s*limit|429|too\s+many\s+requests`,
			Solution:    "Back off and batch API calls; enterprise tiers can request a higher quota.",
			SuccessRate: 0.88,
		},
		{
			Signature:   "migration_schema_mismatch",
			Regex:       `migration.*(schema|column|field)|schema\s+mismatch`,
			Solution:    "Re-run the migration sync job to realign the storefront schema.",
			SuccessRate: 0.74,
		},
		{
			Signature:   "checkout_500",
			Regex:       `checkout.*(500|blank|error)|500.*checkout`,
			Solution:    "Roll back the latest storefront deploy and replay the failed checkout sessions.",
			SuccessRate: 0.79,
		},
	}
}
