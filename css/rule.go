package css

import (
	"slices"
)

type Rule struct {
	Selector Selector
	Body     map[string]string
	// Media is "" for unconditional rules, otherwise "dark" or "light".
	Media string
}

func NewRule(media string, selector Selector, body map[string]string) Rule {
	return Rule{
		Media:    media,
		Selector: selector,
		Body:     body,
	}
}

func CascadePriority(rule Rule) int {
	return rule.Selector.Priority()
}

// SortRules returns a copy ordered by ascending priority. The sort is
// stable, so among equal priorities the later rule still wins.
func SortRules(rules []Rule) []Rule {
	sorted := slices.Clone(rules)
	slices.SortStableFunc(sorted, func(a, b Rule) int {
		return CascadePriority(a) - CascadePriority(b)
	})
	return sorted
}
