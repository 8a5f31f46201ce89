// Package gate holds the keyword heuristics that end quality loops and
// activate optional workflow steps.
//
// Matching is plain substring containment on lower-cased text: no stemming and
// no word boundaries, so "riskless" satisfies "risk".
package gate

import (
	"strings"
	"unicode/utf8"

	"github.com/pessini/superpod-blog/internal/workflow"
)

// Indicator is one checklist item scored against lower-cased text.
type Indicator struct {
	Name  string
	Match func(text string) bool
}

// AnyOf is satisfied when any keyword occurs in the text.
func AnyOf(name string, keywords ...string) Indicator {
	return Indicator{Name: name, Match: func(text string) bool {
		return containsAny(text, keywords)
	}}
}

// LongerThan is satisfied when the text has more than n characters.
func LongerThan(name string, n int) Indicator {
	return Indicator{Name: name, Match: func(text string) bool {
		return utf8.RuneCountInString(text) > n
	}}
}

// CountAtLeast is satisfied when sub occurs at least n times.
func CountAtLeast(name, sub string, n int) Indicator {
	return Indicator{Name: name, Match: func(text string) bool {
		return strings.Count(text, sub) >= n
	}}
}

// Checklist passes when at least Threshold indicators hold for the latest output.
type Checklist struct {
	Name       string
	Indicators []Indicator
	Threshold  int
}

// Score returns how many indicators the text satisfies and their names.
func (c Checklist) Score(content string) (int, []string) {
	text := strings.ToLower(content)
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}
	var hits []string
	for _, ind := range c.Indicators {
		if ind.Match(text) {
			hits = append(hits, ind.Name)
		}
	}
	return len(hits), hits
}

// Passed inspects only the most recent output. An empty sequence or a blank
// output never passes.
func (c Checklist) Passed(outputs []workflow.StepOutput) bool {
	if len(outputs) == 0 {
		return false
	}
	score, _ := c.Score(outputs[len(outputs)-1].Content)
	return score > 0 && score >= c.Threshold
}

// EndCondition adapts the checklist to a loop end condition, reporting each
// decision to observe when it is non-nil.
func (c Checklist) EndCondition(observe func(name string, passed bool)) workflow.EndCondition {
	return func(outputs []workflow.StepOutput) bool {
		passed := c.Passed(outputs)
		if observe != nil {
			observe(c.Name, passed)
		}
		return passed
	}
}

// ContainsAny reports whether any keyword is a substring of the case-folded text.
func ContainsAny(text string, keywords []string) bool {
	return containsAny(strings.ToLower(text), keywords)
}

// MinLengthAnyOf rejects text shorter than floor and otherwise requires one keyword.
func MinLengthAnyOf(text string, floor int, keywords []string) bool {
	if utf8.RuneCountInString(text) < floor {
		return false
	}
	return ContainsAny(text, keywords)
}

func containsAny(lowered string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
