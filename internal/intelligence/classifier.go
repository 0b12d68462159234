// File: internal/intelligence/classifier.go

// Package intelligence classifies user intents against live page state and
// turns them into recommended actions, optionally biased by recorded
// feedback.
package intelligence

import (
	"strings"

	"github.com/xkilldash9x/voyant/api/schemas"
	"github.com/xkilldash9x/voyant/internal/instruction"
)

// Classifier turns a raw user intent into a parsed instruction, optionally
// using the page model for context.
type Classifier interface {
	Classify(userIntent string, model *schemas.PageModel) schemas.Instruction
}

// patternClassifier layers page-aware nudges over the rule-based parser.
type patternClassifier struct {
	parser *instruction.Parser
}

// NewPatternClassifier builds the default classifier. The threshold bounds
// when parsed instructions are flagged for clarification.
func NewPatternClassifier(confidenceThreshold float64) Classifier {
	return &patternClassifier{parser: instruction.NewParser(confidenceThreshold)}
}

func (c *patternClassifier) Classify(userIntent string, model *schemas.PageModel) schemas.Instruction {
	instr := c.parser.Parse(userIntent)
	if model == nil {
		return instr
	}

	// Page context can rescue ambiguous phrasings the parser alone scores low.
	if instr.Intent.Kind == schemas.IntentUnknown {
		if rescued, ok := rescueFromContext(userIntent, model); ok {
			rescued.Raw = instr.Raw
			rescued.Entities = instr.Entities
			return rescued
		}
	}

	// A matching page type makes the parsed intent more plausible.
	if pageSupportsIntent(model.PageType, instr.Intent.Kind) {
		instr.Confidence = clamp(instr.Confidence + 0.05)
		if instr.NeedsClarification && instr.Confidence >= 0.4 {
			instr.NeedsClarification = false
			instr.ClarificationQuestions = nil
		}
	}
	return instr
}

// rescueFromContext matches intent words against the page's interaction
// points when the grammar-level parse failed.
func rescueFromContext(userIntent string, model *schemas.PageModel) (schemas.Instruction, bool) {
	lower := strings.ToLower(userIntent)
	for _, p := range model.InteractionPoints {
		label := strings.ToLower(p.Label)
		if label == "" || !strings.Contains(lower, label) {
			continue
		}
		kind := schemas.IntentClick
		if p.Action == "type" {
			kind = schemas.IntentType
		}
		return schemas.Instruction{
			Intent: schemas.Intent{
				Kind:              kind,
				TargetDescription: p.Label,
			},
			Confidence: 0.55,
		}, true
	}
	return schemas.Instruction{}, false
}

func pageSupportsIntent(pt schemas.PageType, kind schemas.IntentKind) bool {
	switch kind {
	case schemas.IntentSearch:
		return pt == schemas.PageSearchResults || pt == schemas.PageHomepage
	case schemas.IntentType:
		return pt == schemas.PageLogin || pt == schemas.PageForm || pt == schemas.PageCheckout
	case schemas.IntentExtract:
		return pt == schemas.PageListing || pt == schemas.PageSearchResults ||
			pt == schemas.PageArticle || pt == schemas.PageProduct
	case schemas.IntentClick:
		return pt != schemas.PageUnknown
	default:
		return false
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
