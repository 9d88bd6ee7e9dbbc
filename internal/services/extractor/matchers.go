package extractor

import (
	"net/url"
	"regexp"
	"strings"
)

// Matcher recovers a product identifier from one link encoding
type Matcher interface {
	Name() string
	Match(href string) (string, bool)
}

// QueryParamMatcher reads the identifier from a query parameter
type QueryParamMatcher struct {
	Param string
}

func (m QueryParamMatcher) Name() string {
	return "query:" + m.Param
}

// Match looks at everything after the first '?', so parameters of a nested
// redirect target (sponsored links) are found as well
func (m QueryParamMatcher) Match(href string) (string, bool) {
	idx := strings.Index(href, "?")
	if idx < 0 {
		return "", false
	}

	values, _ := url.ParseQuery(href[idx+1:])
	value := values.Get(m.Param)
	if value == "" {
		return "", false
	}
	return value, true
}

// PathMatcher captures the identifier from the first group of a path pattern
type PathMatcher struct {
	Pattern *regexp.Regexp
}

func (m PathMatcher) Name() string {
	return "path:" + m.Pattern.String()
}

func (m PathMatcher) Match(href string) (string, bool) {
	match := m.Pattern.FindStringSubmatch(href)
	if len(match) < 2 || match[1] == "" {
		return "", false
	}
	return match[1], true
}

// DefaultMatchers returns the strategies in the order they are tried
func DefaultMatchers() []Matcher {
	return []Matcher{
		QueryParamMatcher{Param: "pd_rd_i"},
		PathMatcher{Pattern: regexp.MustCompile(`/dp/(.*?)($|\?|/)`)},
	}
}
