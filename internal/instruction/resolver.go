// File: internal/instruction/resolver.go
package instruction

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/voyant/api/schemas"
)

// aliasSelectors maps well-known target words to canonical CSS. Kept as an
// ordered list so a description matching several aliases always resolves to
// the same one.
var aliasSelectors = []struct {
	alias    string
	selector string
}{
	{"submit", "button[type='submit'], input[type='submit']"},
	{"cancel", "button[aria-label*='cancel' i], .cancel, button.cancel"},
	{"close", "[aria-label*='close' i], .close, button.close"},
	{"search", "input[type='search'], input[name*='search'], input[placeholder*='search' i]"},
	{"email", "input[type='email'], input[name*='email']"},
	{"password", "input[type='password']"},
}

// aliasSelector returns the canonical selector for a known alias, or "".
func aliasSelector(name string) string {
	for _, a := range aliasSelectors {
		if a.alias == name {
			return a.selector
		}
	}
	return ""
}

// Resolution is a resolved target selector plus how it was found.
type Resolution struct {
	Selector   string
	Confidence float64
	Strategy   string
}

// ResolveTarget maps a target description onto a selector using the parsed
// entities and the current page model. The strategies run in fixed priority
// order.
func ResolveTarget(description string, entities []schemas.Entity, model *schemas.PageModel) Resolution {
	for _, e := range entities {
		if e.Type == schemas.EntitySelector {
			return Resolution{Selector: e.Value, Confidence: 0.9, Strategy: "entity_selector"}
		}
	}

	lower := strings.ToLower(strings.TrimSpace(description))
	if lower == "" {
		return Resolution{}
	}

	for _, a := range aliasSelectors {
		if lower == a.alias || strings.Contains(lower, a.alias+" button") ||
			strings.Contains(lower, a.alias+" field") || lower == "the "+a.alias {
			return Resolution{Selector: a.selector, Confidence: 0.8, Strategy: "alias"}
		}
	}

	if model != nil {
		for _, el := range model.SemanticElements {
			content := strings.ToLower(el.Content)
			if content != "" && (strings.Contains(content, lower) || strings.Contains(lower, content)) {
				return Resolution{Selector: el.Selector, Confidence: 0.7, Strategy: "semantic_text"}
			}
		}
		for _, p := range model.InteractionPoints {
			label := strings.ToLower(p.Label)
			if label != "" && (strings.Contains(label, lower) || strings.Contains(lower, label)) {
				return Resolution{Selector: p.Selector, Confidence: 0.6, Strategy: "interaction_point"}
			}
		}
	}

	escaped := strings.ReplaceAll(description, "'", "\\'")
	return Resolution{
		Selector:   fmt.Sprintf("[aria-label*='%s'], [title*='%s']", escaped, escaped),
		Confidence: 0.4,
		Strategy:   "attribute_heuristic",
	}
}
