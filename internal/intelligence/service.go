// File: internal/intelligence/service.go
package intelligence

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/voyant/api/schemas"
	"github.com/xkilldash9x/voyant/internal/config"
	"github.com/xkilldash9x/voyant/internal/instruction"
)

// historyMinSamples is how much feedback hybrid mode requires before it
// trusts the historical rate.
const historyMinSamples = 5

// Service answers analyze/recommend/feedback requests. The configured mode
// controls how much recorded feedback influences confidence:
//
//	legacy       pattern matching only, memory ignored
//	hybrid       history applied once enough samples exist
//	intelligent  history always applied
//	learning     like intelligent, and feedback is expected after every action
type Service struct {
	mode       schemas.IntelligenceMode
	classifier Classifier
	memory     FeedbackMemory
	logger     *zap.Logger
}

func NewService(cfg config.IntelligenceConfig, classifier Classifier, memory FeedbackMemory, logger *zap.Logger) *Service {
	if memory == nil {
		memory = NewRingMemory()
	}
	return &Service{
		mode:       schemas.IntelligenceMode(cfg.Mode),
		classifier: classifier,
		memory:     memory,
		logger:     logger.Named("intelligence"),
	}
}

// Mode returns the active intelligence mode.
func (s *Service) Mode() schemas.IntelligenceMode { return s.mode }

// Analyze classifies a user intent against the current page model.
func (s *Service) Analyze(ctx context.Context, userIntent string, model *schemas.PageModel) (*schemas.SituationAnalysis, error) {
	if userIntent == "" {
		return nil, schemas.NewError(schemas.KindValidation, "intelligence.analyze", "user_intent is required")
	}

	instr := s.classifier.Classify(userIntent, model)

	analysis := &schemas.SituationAnalysis{
		UserIntent: userIntent,
		PageType:   schemas.PageUnknown,
		Intent:     instr.Intent,
		Confidence: instr.Confidence,
	}
	if model != nil {
		analysis.URL = model.URL
		analysis.PageType = model.PageType
		analysis.ComplexityScore = complexityOf(model)
		analysis.Observations = observations(instr, model)
	}

	if s.usesHistory() {
		analysis.Confidence = s.adjustByHistory(ctx, analysis.Confidence, actionKindFor(instr.Intent.Kind))
	}

	s.logger.Debug("Analyzed situation",
		zap.String("intent", string(instr.Intent.Kind)),
		zap.String("page_type", string(analysis.PageType)),
		zap.Float64("confidence", analysis.Confidence))
	return analysis, nil
}

// Recommend maps an analyzed intent to a concrete next action with a
// rationale and cheaper alternatives.
func (s *Service) Recommend(ctx context.Context, analysis *schemas.SituationAnalysis, model *schemas.PageModel) (*schemas.ActionRecommendation, error) {
	if analysis == nil {
		return nil, schemas.NewError(schemas.KindValidation, "intelligence.recommend", "analysis is required")
	}
	if analysis.Intent.Kind == schemas.IntentUnknown {
		return nil, schemas.NewError(schemas.KindValidation, "intelligence.recommend",
			fmt.Sprintf("cannot recommend an action for intent %q", analysis.Intent.Kind))
	}

	instr := s.classifier.Classify(analysis.UserIntent, model)
	action, err := instruction.MapAction(instr, model)
	if err != nil {
		return nil, err
	}

	rec := &schemas.ActionRecommendation{
		Action:     action,
		Rationale:  rationaleFor(action, analysis),
		Confidence: action.Confidence,
	}
	if alt, ok := alternativeFor(action, analysis.UserIntent); ok {
		rec.Alternatives = append(rec.Alternatives, alt)
	}

	if s.usesHistory() {
		rec.Confidence = s.adjustByHistory(ctx, rec.Confidence, action.Kind)
	}
	return rec, nil
}

// RecordFeedback stores an action outcome for future bias.
func (s *Service) RecordFeedback(ctx context.Context, rec *schemas.FeedbackRecord) error {
	if rec == nil {
		return schemas.NewError(schemas.KindValidation, "intelligence.feedback", "feedback record is required")
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	if err := s.memory.Record(ctx, rec); err != nil {
		return err
	}
	s.logger.Info("Feedback recorded",
		zap.String("action", string(rec.Recommendation.Action.Kind)),
		zap.Bool("success", rec.Success),
		zap.Int64("execution_time_ms", rec.ExecutionTimeMs))
	return nil
}

func (s *Service) usesHistory() bool {
	return s.mode == schemas.IntelligenceIntelligent || s.mode == schemas.IntelligenceLearning ||
		s.mode == schemas.IntelligenceHybrid
}

// adjustByHistory shifts confidence toward the observed success rate. The
// shift is at most 0.2 in either direction; hybrid mode waits for enough
// samples first.
func (s *Service) adjustByHistory(ctx context.Context, confidence float64, kind schemas.ActionKind) float64 {
	rate, samples, err := s.memory.Stats(ctx, kind)
	if err != nil {
		s.logger.Warn("Feedback stats unavailable", zap.Error(err))
		return confidence
	}
	if samples == 0 {
		return confidence
	}
	if s.mode == schemas.IntelligenceHybrid && samples < historyMinSamples {
		return confidence
	}
	return clamp(confidence + (rate-0.5)*0.4)
}

func actionKindFor(kind schemas.IntentKind) schemas.ActionKind {
	switch kind {
	case schemas.IntentNavigate:
		return schemas.ActionNavigate
	case schemas.IntentClick:
		return schemas.ActionClick
	case schemas.IntentType, schemas.IntentSearch:
		return schemas.ActionType
	case schemas.IntentSelect:
		return schemas.ActionSelect
	case schemas.IntentExtract:
		return schemas.ActionExtract
	case schemas.IntentWait:
		return schemas.ActionWait
	case schemas.IntentScreenshot:
		return schemas.ActionScreenshot
	case schemas.IntentScroll:
		return schemas.ActionScroll
	default:
		return schemas.ActionClick
	}
}

// complexityOf scores how much is going on in the page model.
func complexityOf(model *schemas.PageModel) float64 {
	score := float64(len(model.SemanticElements))*0.5 +
		float64(len(model.InteractionPoints))*1.0 +
		float64(len(model.Relationships))*0.25
	for _, r := range model.Regions {
		if r.Kind == schemas.RegionForm {
			score += 5
		}
	}
	return score
}

func observations(instr schemas.Instruction, model *schemas.PageModel) []string {
	obs := []string{
		fmt.Sprintf("page classified as %s", model.PageType),
		fmt.Sprintf("%d interactive elements available", len(model.InteractionPoints)),
	}
	if len(model.DataStructures) > 0 {
		obs = append(obs, fmt.Sprintf("%d data structures detected", len(model.DataStructures)))
	}
	if instr.NeedsClarification {
		obs = append(obs, "intent is ambiguous; clarification recommended before acting")
	}
	return obs
}

func rationaleFor(action schemas.ExecutableAction, analysis *schemas.SituationAnalysis) string {
	switch action.Kind {
	case schemas.ActionNavigate:
		return fmt.Sprintf("navigate to %s to satisfy the stated goal", action.Value)
	case schemas.ActionClick:
		return fmt.Sprintf("clicking %s matches the intent on a %s", action.Target, analysis.PageType)
	case schemas.ActionType:
		return fmt.Sprintf("typing into %s is the direct path to the goal", action.Target)
	case schemas.ActionExtract:
		return fmt.Sprintf("extracting %s from the current page", action.Value)
	default:
		return fmt.Sprintf("%s is the most direct interpretation of the intent", action.Kind)
	}
}

// alternativeFor offers a broader attribute probe when the primary action
// targets a specific selector.
func alternativeFor(action schemas.ExecutableAction, userIntent string) (schemas.ExecutableAction, bool) {
	if action.Target == "" || userIntent == "" {
		return schemas.ExecutableAction{}, false
	}
	switch action.Kind {
	case schemas.ActionClick, schemas.ActionType, schemas.ActionSelect:
		alt := action
		alt.Target = fmt.Sprintf("[aria-label*='%s'], [title*='%s']", userIntent, userIntent)
		alt.Confidence = action.Confidence * 0.5
		return alt, true
	}
	return schemas.ExecutableAction{}, false
}
