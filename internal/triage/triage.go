// Package triage suggests which kind of lawyer a client should talk to from a
// free text description of their problem.
package triage

import "strings"

type Category string

const (
	Property  Category = "property"
	Family    Category = "family"
	Corporate Category = "corporate"
	Cyber     Category = "cyber"
	General   Category = "general"
)

type rule struct {
	category   Category
	keywords   []string
	suggestion string
}

// rules are checked in order; the first match wins.
var rules = []rule{
	{Property, []string{"property", "tenant", "land", "house"},
		"It seems your issue relates to Property Law. You may consult a Property Lawyer."},
	{Family, []string{"divorce", "marriage", "child", "custody"},
		"It appears to be a Family Law issue. Consider a Family Lawyer."},
	{Corporate, []string{"business", "contract", "company"},
		"Looks like a Corporate Law matter. Try a Business or Contract Lawyer."},
	{Cyber, []string{"cyber", "online", "fraud", "scam"},
		"Possibly a Cyber Crime issue. A Criminal or Cyber Lawyer would help."},
}

const fallback = "Sorry, I couldn't match your issue clearly. Try consulting a general lawyer."

type Result struct {
	Category   Category `json:"category"`
	Suggestion string   `json:"suggestion"`
}

// Classify matches keywords as substrings of the lower-cased description.
func Classify(description string) Result {
	d := strings.ToLower(description)
	for _, r := range rules {
		for _, k := range r.keywords {
			if strings.Contains(d, k) {
				return Result{Category: r.category, Suggestion: r.suggestion}
			}
		}
	}
	return Result{Category: General, Suggestion: fallback}
}
