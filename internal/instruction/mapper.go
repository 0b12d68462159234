// File: internal/instruction/mapper.go
package instruction

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/voyant/api/schemas"
)

// MapAction converts a parsed instruction into one executable action,
// resolving the target against the page model where one is needed.
func MapAction(instr schemas.Instruction, model *schemas.PageModel) (schemas.ExecutableAction, error) {
	intent := instr.Intent

	switch intent.Kind {
	case schemas.IntentNavigate:
		switch intent.NavTarget {
		case schemas.NavBack:
			return historyAction(schemas.ActionBack, instr.Confidence), nil
		case schemas.NavForward:
			return historyAction(schemas.ActionForward, instr.Confidence), nil
		case schemas.NavRefresh:
			return historyAction(schemas.ActionRefresh, instr.Confidence), nil
		}
		return schemas.ExecutableAction{
			Kind:  schemas.ActionNavigate,
			Value: intent.URL,
			Options: schemas.ActionOptions{
				TimeoutMs:   30_000,
				WaitAfterMs: 1000,
				RetryCount:  1,
			},
			Confidence: instr.Confidence,
		}, nil

	case schemas.IntentClick:
		res := ResolveTarget(intent.TargetDescription, instr.Entities, model)
		return schemas.ExecutableAction{
			Kind:   schemas.ActionClick,
			Target: res.Selector,
			Options: schemas.ActionOptions{
				TimeoutMs:      10_000,
				WaitAfterMs:    500,
				RetryCount:     2,
				ScrollIntoView: true,
			},
			Confidence: combineConfidence(instr.Confidence, res.Confidence),
		}, nil

	case schemas.IntentType:
		res := ResolveTarget(intent.TargetDescription, instr.Entities, model)
		if res.Selector == "" {
			// Typing without an explicit target lands in the search box.
			res = Resolution{Selector: aliasSelector("search"), Confidence: 0.5, Strategy: "alias"}
		}
		return schemas.ExecutableAction{
			Kind:   schemas.ActionType,
			Target: res.Selector,
			Value:  intent.Text,
			Options: schemas.ActionOptions{
				TimeoutMs:      10_000,
				WaitAfterMs:    300,
				RetryCount:     2,
				ScrollIntoView: true,
			},
			Confidence: combineConfidence(instr.Confidence, res.Confidence),
		}, nil

	case schemas.IntentSearch:
		return schemas.ExecutableAction{
			Kind:   schemas.ActionType,
			Target: aliasSelector("search"),
			Value:  intent.Query,
			Options: schemas.ActionOptions{
				TimeoutMs:      10_000,
				WaitAfterMs:    300,
				RetryCount:     2,
				ScrollIntoView: true,
			},
			Confidence: instr.Confidence,
		}, nil

	case schemas.IntentSelect:
		res := ResolveTarget(intent.TargetDescription, instr.Entities, model)
		if res.Selector == "" {
			res = Resolution{Selector: "select", Confidence: 0.4, Strategy: "tag_fallback"}
		}
		return schemas.ExecutableAction{
			Kind:   schemas.ActionSelect,
			Target: res.Selector,
			Value:  intent.Option,
			Options: schemas.ActionOptions{
				TimeoutMs:      10_000,
				WaitAfterMs:    300,
				RetryCount:     2,
				ScrollIntoView: true,
			},
			Confidence: combineConfidence(instr.Confidence, res.Confidence),
		}, nil

	case schemas.IntentExtract:
		return schemas.ExecutableAction{
			Kind:   schemas.ActionExtract,
			Value:  intent.DataType,
			Target: extractionSelector(intent.DataType),
			Options: schemas.ActionOptions{
				TimeoutMs:  15_000,
				RetryCount: 1,
			},
			Confidence: instr.Confidence,
		}, nil

	case schemas.IntentWait:
		timeout := intent.TimeoutMs
		if timeout == 0 {
			timeout = 5000
		}
		res := Resolution{}
		if intent.Condition != "" && !strings.Contains(intent.Condition, "second") {
			res = ResolveTarget(intent.Condition, instr.Entities, model)
		}
		return schemas.ExecutableAction{
			Kind:   schemas.ActionWait,
			Target: res.Selector,
			Options: schemas.ActionOptions{
				TimeoutMs: timeout,
			},
			Confidence: instr.Confidence,
		}, nil

	case schemas.IntentScreenshot:
		return schemas.ExecutableAction{
			Kind:  schemas.ActionScreenshot,
			Value: intent.Area,
			Options: schemas.ActionOptions{
				TimeoutMs: 15_000,
			},
			Confidence: instr.Confidence,
		}, nil

	case schemas.IntentScroll:
		value := intent.Direction
		if intent.Amount > 0 {
			value = fmt.Sprintf("%s:%d", intent.Direction, intent.Amount)
		}
		return schemas.ExecutableAction{
			Kind:  schemas.ActionScroll,
			Value: value,
			Options: schemas.ActionOptions{
				TimeoutMs: 5000,
			},
			Confidence: instr.Confidence,
		}, nil
	}

	return schemas.ExecutableAction{}, schemas.NewError(schemas.KindValidation, "instruction.map",
		fmt.Sprintf("cannot map intent %q to an action", intent.Kind))
}

func historyAction(kind schemas.ActionKind, confidence float64) schemas.ExecutableAction {
	return schemas.ExecutableAction{
		Kind: kind,
		Options: schemas.ActionOptions{
			TimeoutMs:   30_000,
			WaitAfterMs: 500,
		},
		Confidence: confidence,
	}
}

func extractionSelector(dataType string) string {
	switch {
	case strings.Contains(dataType, "link"):
		return "a[href]"
	case strings.Contains(dataType, "image"):
		return "img"
	case strings.Contains(dataType, "heading"):
		return "h1, h2, h3"
	case strings.Contains(dataType, "table"):
		return "table"
	default:
		return "p, li, h1, h2, h3"
	}
}

func combineConfidence(parse, resolve float64) float64 {
	if resolve == 0 {
		return parse * 0.5
	}
	return (parse + resolve) / 2
}

// ValidateAction checks structural requirements and cross-checks the target
// against the page model. A target missing from the model is a warning, not
// a failure, because elements may load dynamically.
func ValidateAction(action schemas.ExecutableAction, model *schemas.PageModel, logger *zap.Logger) error {
	switch action.Kind {
	case schemas.ActionClick, schemas.ActionType, schemas.ActionSelect:
		if strings.TrimSpace(action.Target) == "" {
			return schemas.NewError(schemas.KindValidation, "instruction.validate",
				fmt.Sprintf("%s action requires a target", action.Kind))
		}
	case schemas.ActionNavigate:
		if !validNavigationURL(action.Value) {
			return schemas.NewError(schemas.KindValidation, "instruction.validate",
				fmt.Sprintf("navigate requires an http(s) URL, got %q", action.Value))
		}
	}

	if model != nil && action.Target != "" {
		if !targetInModel(action.Target, model) {
			logger.Debug("Action target not present in page model",
				zap.String("target", action.Target))
		}
	}
	return nil
}

func validNavigationURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") ||
		strings.HasPrefix(url, "file://") || url == "about:blank"
}

func targetInModel(target string, model *schemas.PageModel) bool {
	for _, el := range model.SemanticElements {
		if el.Selector == target {
			return true
		}
	}
	for _, p := range model.InteractionPoints {
		if p.Selector == target {
			return true
		}
	}
	return false
}
