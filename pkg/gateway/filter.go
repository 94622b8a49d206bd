package gateway

import (
	"log/slog"
	"regexp"

	"meridian-hq/nexus/pkg/providers"
)

// ModelFilter is the global model allow-list. Each pattern is a
// case-insensitive regular expression searched within the fully-qualified
// model id.
type ModelFilter struct {
	patterns   []*regexp.Regexp
	configured int
}

// NewModelFilter compiles patterns. Invalid patterns are logged and skipped.
//
// With no configured patterns every model is allowed. If patterns were
// configured but none compiled, nothing is allowed.
func NewModelFilter(patterns []string, logger *slog.Logger) *ModelFilter {
	if logger == nil {
		logger = slog.Default()
	}
	f := &ModelFilter{configured: len(patterns)}
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			logger.Warn("skipping invalid supported_models pattern", "pattern", p, "error", err)
			continue
		}
		f.patterns = append(f.patterns, re)
	}
	return f
}

// Allows reports whether a model id passes the filter.
func (f *ModelFilter) Allows(id string) bool {
	if f == nil || f.configured == 0 {
		return true
	}
	for _, re := range f.patterns {
		if re.MatchString(id) {
			return true
		}
	}
	return false
}

// Apply returns the models that pass the filter, preserving order.
func (f *ModelFilter) Apply(models []providers.ModelInfo) []providers.ModelInfo {
	if f == nil || f.configured == 0 {
		return models
	}
	out := make([]providers.ModelInfo, 0, len(models))
	for _, m := range models {
		if f.Allows(m.ID) {
			out = append(out, m)
		}
	}
	return out
}

// Len returns the number of usable patterns.
func (f *ModelFilter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.patterns)
}
