// File: internal/perception/search.go
package perception

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/voyant/api/schemas"
)

// FindElement resolves a free-text description to a concrete element. The
// strategies run in order of decreasing confidence; the first hit wins.
func (e *Engine) FindElement(ctx context.Context, driver schemas.Driver, model *schemas.PageModel, description string) (*schemas.ElementMatch, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, schemas.NewError(schemas.KindValidation, "perception.find_element", "empty element description")
	}

	if looksLikeSelector(description) {
		if el, err := driver.Find(ctx, description); err == nil {
			return &schemas.ElementMatch{
				Selector:    description,
				Description: description,
				Text:        el.Text,
				Confidence:  0.95,
				Strategy:    "direct_selector",
			}, nil
		}
	}

	lower := strings.ToLower(description)

	if model != nil {
		for _, el := range model.SemanticElements {
			if strings.EqualFold(strings.TrimSpace(el.Content), description) {
				return &schemas.ElementMatch{
					Selector:    el.Selector,
					Description: description,
					Text:        el.Content,
					Confidence:  0.85,
					Strategy:    "exact_text",
				}, nil
			}
		}

		for _, p := range model.InteractionPoints {
			if p.Label == "" {
				continue
			}
			label := strings.ToLower(p.Label)
			if strings.Contains(label, lower) || strings.Contains(lower, label) {
				return &schemas.ElementMatch{
					Selector:    p.Selector,
					Description: description,
					Text:        p.Label,
					Confidence:  0.7,
					Strategy:    "interaction_point",
				}, nil
			}
		}
	}

	// Last resort: probe attribute selectors built from the description.
	heuristic := fmt.Sprintf("[aria-label*='%s'], [title*='%s']", escapeQuotes(description), escapeQuotes(description))
	if el, err := driver.Find(ctx, heuristic); err == nil {
		return &schemas.ElementMatch{
			Selector:    heuristic,
			Description: description,
			Text:        el.Text,
			Confidence:  0.5,
			Strategy:    "attribute_heuristic",
		}, nil
	}

	e.logger.Debug("Element not found", zap.String("description", description))
	return nil, schemas.NewError(schemas.KindNotFound, "perception.find_element",
		fmt.Sprintf("no element matched %q", description))
}

// looksLikeSelector reports whether the description is plausibly a CSS or
// XPath expression rather than prose.
func looksLikeSelector(s string) bool {
	if strings.ContainsAny(s, " \t") && !strings.ContainsAny(s, "#.[>") {
		return false
	}
	return strings.HasPrefix(s, "#") || strings.HasPrefix(s, ".") ||
		strings.HasPrefix(s, "//") || strings.HasPrefix(s, "[") ||
		strings.ContainsAny(s, ">[")
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), "'", `\'`)
}
