package timeparse

import (
	"time"

	dateparser "github.com/markusmobius/go-dateparser"
)

// Resolver turns a natural-language expression into an instant, interpreted
// in the given location relative to base. It reports false when the
// expression carries no recognizable date or time.
type Resolver interface {
	Resolve(text string, loc *time.Location, base time.Time) (time.Time, bool)
}

// DateparserResolver resolves expressions with go-dateparser, preferring
// future-dated readings the same way the assistant prefers "5pm" to mean
// the next 5pm rather than the previous one.
type DateparserResolver struct{}

func NewDateparserResolver() *DateparserResolver {
	return &DateparserResolver{}
}

func (r *DateparserResolver) Resolve(text string, loc *time.Location, base time.Time) (time.Time, bool) {
	cfg := &dateparser.Configuration{
		CurrentTime:         base,
		DefaultTimezone:     loc,
		PreferredDateSource: dateparser.Future,
	}

	dt, err := dateparser.Parse(cfg, text)
	if err != nil || dt.Time.IsZero() {
		return time.Time{}, false
	}
	return dt.Time, true
}

var _ Resolver = (*DateparserResolver)(nil)
