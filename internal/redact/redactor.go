// Package redact masks secrets such as hex-encoded macaroons in log output.
package redact

import (
	"fmt"
	"log/slog"
	"regexp"
)

const replacement = "[REDACTED]"

// Redactor applies configured regex patterns to redact sensitive content.
type Redactor struct {
	patterns []*regexp.Regexp
}

// New compiles redact patterns and returns a redactor.
func New(patterns []string) (*Redactor, error) {
	r := &Redactor{
		patterns: make([]*regexp.Regexp, 0, len(patterns)),
	}
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile redact pattern %q: %w", pattern, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

// Redact returns text with all configured patterns replaced.
func (r *Redactor) Redact(text string) string {
	if r == nil || len(r.patterns) == 0 || text == "" {
		return text
	}
	redacted := text
	for _, re := range r.patterns {
		redacted = re.ReplaceAllString(redacted, replacement)
	}
	return redacted
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr that redacts string and
// error attribute values.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(r.Redact(a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			a.Value = slog.StringValue(r.Redact(err.Error()))
		}
	}
	return a
}
