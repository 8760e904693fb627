// Package timeparse converts free-form natural-language time expressions
// into absolute instants, and strips reminder boilerplate from request
// text. The heavy lifting of date resolution is delegated to an injected
// Resolver; this package owns the gating, rollover and fallback rules
// around it.
package timeparse

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

// triggerTokens gate the resolver: text without any of these never refers
// to a time, so we skip resolution entirely instead of risking a false
// positive on arbitrary prose.
var triggerTokens = []string{
	"at", "in", "on", "tomorrow", "today", "tonight",
	"next", "this", "every", "morning", "afternoon",
	"evening", "night", "am", "pm",
}

// fallbackTriggers are tried in this order when the full text fails to
// resolve; the text after the first present trigger is parsed on its own.
var fallbackTriggers = []string{"at", "in", "on"}

// Parser extracts an absolute timestamp from natural-language text.
type Parser struct {
	resolver Resolver
	logger   *zap.Logger
}

func NewParser(resolver Resolver, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{
		resolver: resolver,
		logger:   logger,
	}
}

// Parse resolves text into an instant interpreted in the named IANA
// timezone, relative to base. It reports false when no time can be
// determined; callers must surface that explicitly rather than defaulting.
func (p *Parser) Parse(text, timezone string, base time.Time) (time.Time, bool) {
	if !HasTimeReference(text) {
		p.logger.Debug("no time reference found", zap.String("text", text))
		return time.Time{}, false
	}

	loc := p.location(timezone)

	if resolved, ok := p.resolve(text, loc, base); ok {
		return resolved, true
	}

	// The full text often drowns the resolver in non-time words
	// ("remind me to call mom at 3pm"). Retry with just the portion
	// after the first fallback trigger present.
	lower := strings.ToLower(text)
	for _, trigger := range fallbackTriggers {
		idx := strings.Index(lower, trigger)
		if idx < 0 {
			continue
		}
		tail := strings.TrimSpace(text[idx+len(trigger):])
		if tail == "" {
			continue
		}
		if resolved, ok := p.resolve(tail, loc, base); ok {
			return resolved, true
		}
	}

	p.logger.Debug("failed to parse time expression", zap.String("text", text))
	return time.Time{}, false
}

// resolve runs the resolver once and applies the one-day rollover: a
// result strictly before base ("5pm" spoken at 5:30pm) is re-resolved
// against tomorrow. Only one retry is attempted.
func (p *Parser) resolve(text string, loc *time.Location, base time.Time) (time.Time, bool) {
	resolved, ok := p.resolver.Resolve(text, loc, base)
	if !ok {
		return time.Time{}, false
	}

	if resolved.Before(base) {
		p.logger.Debug("resolved time is in the past, retrying against tomorrow",
			zap.Time("resolved", resolved))
		rolled, ok := p.resolver.Resolve(text, loc, base.Add(24*time.Hour))
		if !ok {
			return time.Time{}, false
		}
		resolved = rolled
	}

	return resolved.UTC(), true
}

func (p *Parser) location(timezone string) *time.Location {
	if timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		p.logger.Warn("failed to load timezone, using UTC",
			zap.String("timezone", timezone), zap.Error(err))
		return time.UTC
	}
	return loc
}

// HasTimeReference reports whether the text contains any trigger token.
// Matching is substring-based over the lowercased text, so "5pm" and
// "tonight" both qualify.
func HasTimeReference(text string) bool {
	lower := strings.ToLower(text)
	for _, trigger := range triggerTokens {
		if strings.Contains(lower, trigger) {
			return true
		}
	}
	return false
}
