package filter

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/saadiq/gmail-to-md/model"
)

// Options captures the filtering configuration.
type Options struct {
	IncludeHeader []string
	IncludeBody   []string
	ExcludeHeader []string
	ExcludeBody   []string
}

// Filter holds compiled regex patterns for filtering message records.
type Filter struct {
	includeMode   bool
	excludeMode   bool
	includeHeader []*regexp.Regexp
	includeBody   []*regexp.Regexp
	excludeHeader []*regexp.Regexp
	excludeBody   []*regexp.Regexp

	mu   sync.Mutex
	hits map[string]int
}

// New creates a new Filter from the provided options.
func New(opts Options) (*Filter, error) {
	includeHeader, err := compilePatterns(opts.IncludeHeader)
	if err != nil {
		return nil, fmt.Errorf("compile include-header pattern: %w", err)
	}
	includeBody, err := compilePatterns(opts.IncludeBody)
	if err != nil {
		return nil, fmt.Errorf("compile include-body pattern: %w", err)
	}
	excludeHeader, err := compilePatterns(opts.ExcludeHeader)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-header pattern: %w", err)
	}
	excludeBody, err := compilePatterns(opts.ExcludeBody)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-body pattern: %w", err)
	}

	includeActive := len(includeHeader) > 0 || len(includeBody) > 0
	excludeActive := len(excludeHeader) > 0 || len(excludeBody) > 0
	if includeActive && excludeActive {
		return nil, fmt.Errorf("include and exclude filters are mutually exclusive")
	}

	return &Filter{
		includeMode:   includeActive,
		excludeMode:   excludeActive,
		includeHeader: includeHeader,
		includeBody:   includeBody,
		excludeHeader: excludeHeader,
		excludeBody:   excludeBody,
		hits:          make(map[string]int),
	}, nil
}

// Active reports whether any pattern is configured.
func (f *Filter) Active() bool {
	return f.includeMode || f.excludeMode
}

// Allows returns true if the record passes the filter criteria. Header
// patterns see "Name: value" lines for Subject, From, To, Cc and Date; body
// patterns see the plain body, or the HTML body when there is none.
func (f *Filter) Allows(rec model.MessageRecord) bool {
	if !f.Active() {
		return true
	}

	header := HeaderText(rec)
	body := rec.BodyPlain
	if body == "" {
		body = rec.BodyHTML
	}

	if f.includeMode {
		return f.matchAny(f.includeHeader, header) || f.matchAny(f.includeBody, body)
	}

	if f.matchAny(f.excludeHeader, header) || f.matchAny(f.excludeBody, body) {
		return false
	}
	return true
}

// Hits returns how often each pattern matched so far.
func (f *Filter) Hits() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.hits))
	for k, v := range f.hits {
		out[k] = v
	}
	return out
}

// HeaderText renders the record's headers the way header patterns see them.
func HeaderText(rec model.MessageRecord) string {
	var b strings.Builder
	for _, h := range [][2]string{
		{"Subject", rec.Subject},
		{"From", rec.From},
		{"To", rec.To},
		{"Cc", rec.CC},
		{"Date", rec.Date},
	} {
		if h[1] == "" {
			continue
		}
		b.WriteString(h[0])
		b.WriteString(": ")
		b.WriteString(h[1])
		b.WriteByte('\n')
	}
	return b.String()
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func (f *Filter) matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			f.mu.Lock()
			f.hits[re.String()]++
			f.mu.Unlock()
			return true
		}
	}
	return false
}
