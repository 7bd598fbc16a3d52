package agenda

import (
	"fmt"
	"strings"
)

var validFilterFields = map[string]bool{
	"url":  true,
	"text": true,
}

// Link is a candidate event link found on a listing page.
type Link struct {
	URL  string
	Text string
}

type LinkFilter struct{}

func NewLinkFilter() *LinkFilter {
	return &LinkFilter{}
}

// Run reports whether link is rejected by the rules and, if so, why.
func (f *LinkFilter) Run(link Link, rules []LinkFilterRule) (bool, string) {
	for _, rule := range rules {
		value := f.getFieldValue(link, rule.Field)

		for _, exclude := range rule.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", rule.Field, exclude)
			}
		}

		if len(rule.Includes) > 0 {
			matched := false
			for _, include := range rule.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", rule.Field, rule.Includes)
			}
		}
	}

	return false, ""
}

func (f *LinkFilter) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *LinkFilter) getFieldValue(link Link, field string) string {
	switch field {
	case "url":
		return link.URL
	case "text":
		return link.Text
	default:
		return ""
	}
}
