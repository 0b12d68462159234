// File: internal/instruction/pipeline.go
package instruction

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/voyant/api/schemas"
	"github.com/xkilldash9x/voyant/internal/config"
	"github.com/xkilldash9x/voyant/internal/semantic"
)

// Outcome is the result of executing one (possibly conjoined) instruction.
type Outcome struct {
	Instructions  []schemas.Instruction  `json:"instructions"`
	Results       []schemas.ActionResult `json:"results"`
	Success       bool                   `json:"success"`
	StepsExecuted int                    `json:"steps_executed"`
}

// Pipeline parses, resolves and executes natural-language instructions
// against a borrowed driver.
type Pipeline struct {
	cfg      config.InstructionConfig
	parser   *Parser
	analyzer *semantic.Analyzer
	logger   *zap.Logger

	screenshotDir string
}

func NewPipeline(cfg config.InstructionConfig, analyzer *semantic.Analyzer, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:           cfg,
		parser:        NewParser(cfg.ConfidenceThreshold),
		analyzer:      analyzer,
		logger:        logger.Named("instruction"),
		screenshotDir: os.TempDir(),
	}
}

// Parse exposes parsing without execution, splitting conjoined input.
func (p *Pipeline) Parse(text string) []schemas.Instruction {
	parts := SplitConjoined(text)
	instructions := make([]schemas.Instruction, 0, len(parts))
	for _, part := range parts {
		instructions = append(instructions, p.parser.Parse(part))
	}
	return instructions
}

// Execute runs an instruction end to end. A conjoined instruction executes
// its substeps in order with a short pause between them; overall success is
// the conjunction of step successes. Instructions below the confidence
// threshold are returned unexecuted with clarification questions.
func (p *Pipeline) Execute(ctx context.Context, driver schemas.Driver, text string) (*Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, schemas.NewError(schemas.KindValidation, "instruction.execute", "empty instruction text")
	}

	instructions := p.Parse(text)
	if len(instructions) == 0 {
		return nil, schemas.NewError(schemas.KindValidation, "instruction.execute", "no instruction could be parsed")
	}

	outcome := &Outcome{Instructions: instructions}
	for _, instr := range instructions {
		if instr.NeedsClarification {
			p.logger.Info("Instruction needs clarification",
				zap.String("raw", instr.Raw),
				zap.Float64("confidence", instr.Confidence))
			return outcome, nil
		}
	}

	var model *schemas.PageModel
	for i, instr := range instructions {
		if i > 0 {
			if err := sleepCtx(ctx, p.cfg.StepDelay); err != nil {
				return outcome, schemas.WrapError(schemas.KindTimeout, "instruction.execute", err)
			}
		}

		isNavigation := instr.Intent.Kind == schemas.IntentNavigate

		// Navigation skips pre-action analysis: the page is about to go away.
		if !isNavigation && model == nil {
			model = p.analyzePage(ctx, driver)
		}

		action, err := MapAction(instr, model)
		if err != nil {
			return outcome, err
		}
		if err := ValidateAction(action, model, p.logger); err != nil {
			return outcome, err
		}

		result := p.executeWithRetries(ctx, driver, action)
		outcome.Results = append(outcome.Results, result)
		outcome.StepsExecuted++

		if result.Success && isNavigation {
			model = p.analyzePage(ctx, driver)
		}
		if !result.Success {
			outcome.Success = false
			return outcome, nil
		}
	}

	outcome.Success = true
	return outcome, nil
}

// analyzePage builds a page model under the analysis timeout. Failures are
// logged and resolution proceeds without a model.
func (p *Pipeline) analyzePage(ctx context.Context, driver schemas.Driver) *schemas.PageModel {
	timeout := p.cfg.AnalysisTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	analysisCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	model, err := p.analyzer.Analyze(analysisCtx, driver)
	if err != nil {
		p.logger.Warn("Page analysis failed; continuing without model", zap.Error(err))
		return nil
	}
	return model
}

// executeWithRetries runs one action with up to retry_count+1 attempts.
func (p *Pipeline) executeWithRetries(ctx context.Context, driver schemas.Driver, action schemas.ExecutableAction) schemas.ActionResult {
	start := time.Now()
	result := schemas.ActionResult{Action: action}

	delay := p.cfg.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	attempts := action.Options.RetryCount + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, delay); err != nil {
				lastErr = err
				break
			}
			p.logger.Debug("Retrying action",
				zap.String("kind", string(action.Kind)),
				zap.Int("attempt", attempt+1))
		}

		data, err := p.executeOnce(ctx, driver, action)
		if err == nil {
			result.Success = true
			result.Data = data
			break
		}
		lastErr = err
	}

	if !result.Success && lastErr != nil {
		result.Error = lastErr.Error()
		result.Suggestions = suggestionsFor(lastErr)
	}

	if result.Success && action.Options.WaitAfterMs > 0 {
		_ = sleepCtx(ctx, time.Duration(action.Options.WaitAfterMs)*time.Millisecond)
	}
	if result.Success && action.Options.TakeScreenshot {
		if path, err := p.saveScreenshot(ctx, driver); err == nil {
			result.ScreenshotPath = path
		}
	}

	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result
}

func (p *Pipeline) executeOnce(ctx context.Context, driver schemas.Driver, action schemas.ExecutableAction) (any, error) {
	opCtx := ctx
	if action.Options.TimeoutMs > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, time.Duration(action.Options.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	switch action.Kind {
	case schemas.ActionNavigate:
		if err := driver.Navigate(opCtx, action.Value); err != nil {
			return nil, err
		}
		url, _ := driver.CurrentURL(opCtx)
		return map[string]string{"url": url}, nil

	case schemas.ActionBack:
		return nil, driver.Back(opCtx)
	case schemas.ActionForward:
		return nil, driver.Forward(opCtx)
	case schemas.ActionRefresh:
		return nil, driver.Refresh(opCtx)

	case schemas.ActionClick:
		elem, err := driver.Find(opCtx, action.Target)
		if err != nil {
			return nil, err
		}
		if action.Options.ScrollIntoView {
			_ = driver.ScrollIntoView(opCtx, elem)
		}
		return nil, driver.Click(opCtx, elem)

	case schemas.ActionType:
		elem, err := driver.Find(opCtx, action.Target)
		if err != nil {
			return nil, err
		}
		if action.Options.ScrollIntoView {
			_ = driver.ScrollIntoView(opCtx, elem)
		}
		if err := driver.Clear(opCtx, elem); err != nil {
			return nil, err
		}
		return nil, driver.SendKeys(opCtx, elem, action.Value)

	case schemas.ActionSelect:
		elem, err := driver.Find(opCtx, action.Target)
		if err != nil {
			return nil, err
		}
		return nil, driver.SelectOption(opCtx, elem, action.Value)

	case schemas.ActionScroll:
		return nil, p.scroll(opCtx, driver, action.Value)

	case schemas.ActionWait:
		if action.Target != "" {
			timeout := time.Duration(action.Options.TimeoutMs) * time.Millisecond
			return nil, driver.WaitVisible(opCtx, action.Target, timeout)
		}
		return nil, sleepCtx(opCtx, time.Duration(action.Options.TimeoutMs)*time.Millisecond)

	case schemas.ActionExtract:
		elems, err := driver.FindAll(opCtx, action.Target)
		if err != nil {
			return nil, err
		}
		texts := make([]string, 0, len(elems))
		for _, el := range elems {
			if t := strings.TrimSpace(el.Text); t != "" {
				texts = append(texts, t)
			}
		}
		return map[string]any{"items": texts, "count": len(texts)}, nil

	case schemas.ActionScreenshot:
		mode := schemas.ScreenshotViewport
		if action.Value == "full_page" {
			mode = schemas.ScreenshotFullPage
		}
		shot, err := driver.Screenshot(opCtx, mode)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(p.screenshotDir, "voyant-"+uuid.NewString()+".png")
		if err := os.WriteFile(path, shot.Data, 0o644); err != nil {
			return map[string]string{"data": base64.StdEncoding.EncodeToString(shot.Data)}, nil
		}
		return map[string]string{"path": path}, nil
	}

	return nil, schemas.NewError(schemas.KindValidation, "instruction.execute",
		fmt.Sprintf("unsupported action kind %q", action.Kind))
}

// scroll interprets "direction" or "direction:amount".
func (p *Pipeline) scroll(ctx context.Context, driver schemas.Driver, value string) error {
	direction := value
	amount := 500
	if idx := strings.Index(value, ":"); idx >= 0 {
		direction = value[:idx]
		if v, err := strconv.Atoi(value[idx+1:]); err == nil {
			amount = v
		}
	}

	switch direction {
	case "up":
		return driver.ScrollBy(ctx, 0, -amount)
	case "top":
		_, err := driver.Eval(ctx, "window.scrollTo(0, 0)")
		return err
	case "bottom":
		_, err := driver.Eval(ctx, "window.scrollTo(0, document.body.scrollHeight)")
		return err
	case "left":
		return driver.ScrollBy(ctx, -amount, 0)
	case "right":
		return driver.ScrollBy(ctx, amount, 0)
	default:
		return driver.ScrollBy(ctx, 0, amount)
	}
}

func (p *Pipeline) saveScreenshot(ctx context.Context, driver schemas.Driver) (string, error) {
	shot, err := driver.Screenshot(ctx, schemas.ScreenshotViewport)
	if err != nil {
		return "", err
	}
	path := filepath.Join(p.screenshotDir, "voyant-"+uuid.NewString()+".png")
	if err := os.WriteFile(path, shot.Data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// suggestionsFor classifies a failure into user-facing next steps.
func suggestionsFor(err error) []string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not found") || strings.Contains(msg, "not_found") ||
		strings.Contains(msg, "could not find") || strings.Contains(msg, "no nodes") ||
		strings.Contains(msg, "no element"):
		return []string{
			"try a different selector or description",
			"wait for the element to load before acting on it",
		}
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "deadline"):
		return []string{
			"increase the timeout",
			"check that the page finished loading",
		}
	case strings.Contains(msg, "connection") || strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "websocket"):
		return []string{
			"the browser may have crashed; retry the request",
		}
	default:
		return []string{
			"rephrase the instruction with a more specific target",
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
