// File: internal/workflow/engine.go

// Package workflow executes declarative multi-step browser plans parsed from
// YAML or JSON.
package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/voyant/api/schemas"
	"github.com/xkilldash9x/voyant/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultWorkflowTimeout = 10 * time.Minute
	defaultMaxSteps        = 200
	defaultRetryAttempts   = 3
	textPollInterval       = 200 * time.Millisecond
)

// Engine runs validated workflows against a borrowed driver.
type Engine struct {
	cfg    config.WorkflowConfig
	logger *zap.Logger

	screenshotDir string
}

func NewEngine(cfg config.WorkflowConfig, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:           cfg,
		logger:        logger.Named("workflow"),
		screenshotDir: os.TempDir(),
	}
}

// runState is the mutable context of one workflow run. The mutex guards the
// log and counters, which parallel blocks append to concurrently; variables
// are only written by sequential steps.
type runState struct {
	mu       sync.Mutex
	vars     map[string]any
	log      []schemas.ExecutionEntry
	failed   int
	stepsRun int

	driverMu sync.Mutex
}

func (st *runState) append(e schemas.ExecutionEntry) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.log = append(st.log, e)
	if !e.Success {
		st.failed++
	}
}

// budget enforces the global step cap across nesting and parallel branches.
func (st *runState) budget(max int) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.stepsRun++
	if st.stepsRun > max {
		return schemas.NewError(schemas.KindValidation, "workflow.execute",
			fmt.Sprintf("workflow exceeded the maximum of %d steps", max))
	}
	return nil
}

// Execute validates the workflow, resolves its inputs and runs every step.
// Step failures are reported through the result; an error return means the
// workflow never started.
func (e *Engine) Execute(ctx context.Context, driver schemas.Driver, wf *schemas.Workflow, inputs map[string]any) (*schemas.WorkflowResult, error) {
	if err := wf.Validate(); err != nil {
		return nil, err
	}

	vars, err := resolveInputs(wf, inputs)
	if err != nil {
		return nil, err
	}

	timeout := wf.Timeout()
	if timeout <= 0 {
		timeout = e.cfg.DefaultTimeout
	}
	if timeout <= 0 {
		timeout = defaultWorkflowTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	st := &runState{vars: vars}
	start := time.Now()

	e.logger.Info("Workflow started",
		zap.String("workflow", wf.Name),
		zap.Int("steps", len(wf.Steps)),
		zap.Bool("parallel", wf.Parallel))

	var runErr error
	if wf.Parallel {
		runErr = e.runParallel(runCtx, driver, wf.Steps, wf, st)
	} else {
		runErr = e.runSteps(runCtx, driver, wf.Steps, wf, st)
	}

	result := &schemas.WorkflowResult{
		Success:       runErr == nil && st.failed == 0,
		DurationMs:    time.Since(start).Milliseconds(),
		StepsExecuted: len(st.log),
		StepsFailed:   st.failed,
		Variables:     st.vars,
		ExecutionLog:  st.log,
	}

	e.logger.Info("Workflow finished",
		zap.String("workflow", wf.Name),
		zap.Bool("success", result.Success),
		zap.Int("steps_executed", result.StepsExecuted),
		zap.Int("steps_failed", result.StepsFailed),
		zap.Int64("duration_ms", result.DurationMs))
	return result, nil
}

// resolveInputs merges declared inputs with supplied values over the
// workflow's static variables. Untyped string inputs coerce to the most
// specific scalar they parse as.
func resolveInputs(wf *schemas.Workflow, supplied map[string]any) (map[string]any, error) {
	vars := make(map[string]any, len(wf.Variables)+len(wf.Inputs))
	for k, v := range wf.Variables {
		vars[k] = v
	}

	for _, def := range wf.Inputs {
		v, ok := supplied[def.Name]
		if !ok {
			if def.Default != nil {
				vars[def.Name] = def.Default
				continue
			}
			if def.Required {
				return nil, schemas.NewError(schemas.KindValidation, "workflow.inputs",
					fmt.Sprintf("required input %q was not supplied", def.Name))
			}
			continue
		}
		if s, isStr := v.(string); isStr && (def.InputType == "" || def.InputType == "auto") {
			v = coerce(s)
		}
		vars[def.Name] = v
	}
	return vars, nil
}

func (e *Engine) runSteps(ctx context.Context, driver schemas.Driver, steps []schemas.Step, wf *schemas.Workflow, st *runState) error {
	for i := range steps {
		if err := e.runStep(ctx, driver, &steps[i], wf, st); err != nil {
			return err
		}
	}
	return nil
}

// runParallel executes the steps concurrently. Driver access is serialized
// through a gate and variable writes are forbidden by validation, so the
// branches only race on the shared execution log, which runState guards.
func (e *Engine) runParallel(ctx context.Context, driver schemas.Driver, steps []schemas.Step, wf *schemas.Workflow, st *runState) error {
	gated := &gatedDriver{mu: &st.driverMu, d: driver}

	grp, grpCtx := errgroup.WithContext(ctx)
	for i := range steps {
		step := &steps[i]
		grp.Go(func() error {
			branch := &runState{vars: snapshotVars(st), stepsRun: 0}
			err := e.runStep(grpCtx, gated, step, wf, branch)
			st.mu.Lock()
			st.log = append(st.log, branch.log...)
			st.failed += branch.failed
			st.stepsRun += branch.stepsRun
			st.mu.Unlock()
			return err
		})
	}
	return grp.Wait()
}

func snapshotVars(st *runState) map[string]any {
	st.mu.Lock()
	defer st.mu.Unlock()
	snap := make(map[string]any, len(st.vars))
	for k, v := range st.vars {
		snap[k] = v
	}
	return snap
}

func (e *Engine) runStep(ctx context.Context, driver schemas.Driver, step *schemas.Step, wf *schemas.Workflow, st *runState) error {
	maxSteps := e.cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	if err := st.budget(maxSteps); err != nil {
		return err
	}

	if step.Condition != nil && !e.evalCondition(ctx, driver, step.Condition, st.vars) {
		st.append(schemas.ExecutionEntry{
			Timestamp: time.Now(),
			StepName:  step.Name,
			Action:    string(step.Action.Type),
			Success:   true,
			Data:      map[string]any{"skipped": true},
		})
		return nil
	}

	stepCtx := ctx
	if step.TimeoutS > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, time.Duration(step.TimeoutS)*time.Second)
		defer cancel()
	}

	data, err := e.executeWithRetries(stepCtx, driver, step, wf, st)
	if err == nil {
		if step.StoreAs != "" {
			st.mu.Lock()
			st.vars[step.StoreAs] = data
			st.mu.Unlock()
		}
		return nil
	}

	e.logger.Warn("Step failed",
		zap.String("step", step.Name),
		zap.String("action", string(step.Action.Type)),
		zap.Error(err))

	switch strategy := effectiveStrategy(step, wf); strategy.Kind {
	case schemas.OnErrorContinue:
		return nil
	case schemas.OnErrorFallback:
		return e.runSteps(ctx, driver, strategy.FallbackSteps, wf, st)
	default:
		// fail, and retry once its attempts are spent
		return err
	}
}

// effectiveStrategy prefers the step's own strategy over the workflow's.
func effectiveStrategy(step *schemas.Step, wf *schemas.Workflow) schemas.ErrorStrategy {
	if step.OnError != nil {
		return *step.OnError
	}
	if wf.OnError != nil {
		return *wf.OnError
	}
	return schemas.ErrorStrategy{Kind: schemas.OnErrorFail}
}

// executeWithRetries applies the step's retry policy. A step without an
// explicit retry block still retries when its error strategy is "retry".
// Every attempt lands in the execution log, so a step that fails twice and
// then succeeds contributes three entries and two failures.
func (e *Engine) executeWithRetries(ctx context.Context, driver schemas.Driver, step *schemas.Step, wf *schemas.Workflow, st *runState) (any, error) {
	attempts := 1
	delay := time.Second
	backoff := false
	if step.Retry != nil {
		attempts = step.Retry.MaxAttempts
		delay = time.Duration(step.Retry.DelaySeconds) * time.Second
		backoff = step.Retry.ExponentialBackoff
	} else if effectiveStrategy(step, wf).Kind == schemas.OnErrorRetry {
		attempts = defaultRetryAttempts
	}

	var data any
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := delay
			if backoff {
				wait = delay << (attempt - 1)
			}
			if serr := sleepCtx(ctx, wait); serr != nil {
				return nil, schemas.WrapError(schemas.KindTimeout, "workflow.step", serr)
			}
			e.logger.Debug("Retrying step",
				zap.String("step", step.Name),
				zap.Int("attempt", attempt+1))
		}
		start := time.Now()
		data, err = e.executeAction(ctx, driver, &step.Action, wf, st)
		entry := schemas.ExecutionEntry{
			Timestamp:  start,
			StepName:   step.Name,
			Action:     string(step.Action.Type),
			Success:    err == nil,
			DurationMs: time.Since(start).Milliseconds(),
		}
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Data = data
		}
		st.append(entry)
		if err == nil {
			return data, nil
		}
	}
	return nil, err
}

func (e *Engine) executeAction(ctx context.Context, driver schemas.Driver, a *schemas.StepAction, wf *schemas.Workflow, st *runState) (any, error) {
	vars := snapshotVars(st)

	switch a.Type {
	case schemas.StepNavigate:
		url := substitute(a.URL, vars)
		if err := driver.Navigate(ctx, url); err != nil {
			return nil, err
		}
		data := map[string]any{"url": url}
		if current, err := driver.CurrentURL(ctx); err == nil {
			data["url"] = current
		}
		if title, err := driver.Title(ctx); err == nil {
			data["title"] = title
		}
		if a.Screenshot {
			if path, err := e.captureScreenshot(ctx, driver); err == nil {
				data["screenshot_path"] = path
			}
		}
		return data, nil

	case schemas.StepClick:
		selector := substitute(a.Selector, vars)
		elem, err := driver.Find(ctx, selector)
		if err != nil {
			return nil, err
		}
		_ = driver.ScrollIntoView(ctx, elem)
		if err := driver.Click(ctx, elem); err != nil {
			return nil, err
		}
		if a.WaitAfterMs > 0 {
			if err := sleepCtx(ctx, time.Duration(a.WaitAfterMs)*time.Millisecond); err != nil {
				return nil, err
			}
		}
		return map[string]any{"clicked": selector}, nil

	case schemas.StepFill:
		selector := substitute(a.Selector, vars)
		value := substitute(a.Value, vars)
		elem, err := driver.Find(ctx, selector)
		if err != nil {
			return nil, err
		}
		if err := driver.Clear(ctx, elem); err != nil {
			return nil, err
		}
		if err := driver.SendKeys(ctx, elem, value); err != nil {
			return nil, err
		}
		return map[string]any{"filled": selector, "value": value}, nil

	case schemas.StepExtract:
		return e.extract(ctx, driver, a, vars)

	case schemas.StepWait:
		return e.wait(ctx, driver, a, vars)

	case schemas.StepAssert:
		return e.assert(ctx, driver, a, vars)

	case schemas.StepScript:
		raw, err := driver.Eval(ctx, substitute(a.Code, vars))
		if err != nil {
			return nil, err
		}
		var value any
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &value); err != nil {
				value = string(raw)
			}
		}
		return map[string]any{"result": value}, nil

	case schemas.StepLoop:
		return e.loop(ctx, driver, a, wf, st, vars)

	case schemas.StepConditional:
		if e.evalCondition(ctx, driver, a.If, vars) {
			return map[string]any{"branch": "then"},
				e.runSteps(ctx, driver, a.Then, wf, st)
		}
		return map[string]any{"branch": "else"},
			e.runSteps(ctx, driver, a.Else, wf, st)

	case schemas.StepParallel:
		return map[string]any{"parallel_steps": len(a.Steps)},
			e.runParallel(ctx, driver, a.Steps, wf, st)
	}

	return nil, schemas.NewError(schemas.KindValidation, "workflow.step",
		fmt.Sprintf("unknown action type %q", a.Type))
}

func (e *Engine) extract(ctx context.Context, driver schemas.Driver, a *schemas.StepAction, vars map[string]any) (any, error) {
	selector := substitute(a.Selector, vars)

	if a.Attribute != "" {
		script := fmt.Sprintf(
			`Array.from(document.querySelectorAll(%s)).slice(0, 100).map(el => el.getAttribute(%s) || '')`,
			jsArg(selector), jsArg(a.Attribute))
		raw, err := driver.Eval(ctx, script)
		if err != nil {
			return nil, err
		}
		var values []string
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, schemas.WrapError(schemas.KindProtocol, "workflow.extract", err)
		}
		return map[string]any{"selector": selector, "attribute": a.Attribute,
			"values": values, "count": len(values)}, nil
	}

	elems, err := driver.FindAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(elems))
	for _, el := range elems {
		if t := strings.TrimSpace(el.Text); t != "" {
			values = append(values, t)
		}
	}
	return map[string]any{"selector": selector, "values": values, "count": len(values)}, nil
}

func (e *Engine) wait(ctx context.Context, driver schemas.Driver, a *schemas.StepAction, vars map[string]any) (any, error) {
	switch a.WaitFor {
	case schemas.WaitElement:
		selector := substitute(a.Selector, vars)
		timeout := 10 * time.Second
		if a.Seconds > 0 {
			timeout = time.Duration(a.Seconds * float64(time.Second))
		}
		if err := driver.WaitVisible(ctx, selector, timeout); err != nil {
			return nil, err
		}
		return map[string]any{"waited_for": selector}, nil

	case schemas.WaitText:
		text := substitute(a.Text, vars)
		err := pollUntil(ctx, func() (bool, error) {
			html, herr := driver.OuterHTML(ctx)
			if herr != nil {
				return false, nil
			}
			return strings.Contains(html, text), nil
		})
		if err != nil {
			return nil, schemas.NewError(schemas.KindTimeout, "workflow.wait",
				fmt.Sprintf("text %q did not appear", text))
		}
		return map[string]any{"waited_for_text": text}, nil

	case schemas.WaitURL:
		pattern := substitute(a.Pattern, vars)
		re, rerr := regexp.Compile(pattern)
		if rerr != nil {
			return nil, schemas.WrapError(schemas.KindValidation, "workflow.wait", rerr)
		}
		err := pollUntil(ctx, func() (bool, error) {
			url, uerr := driver.CurrentURL(ctx)
			if uerr != nil {
				return false, nil
			}
			return re.MatchString(url), nil
		})
		if err != nil {
			return nil, schemas.NewError(schemas.KindTimeout, "workflow.wait",
				fmt.Sprintf("url never matched %q", pattern))
		}
		return map[string]any{"waited_for_url": pattern}, nil

	case schemas.WaitTime:
		d := time.Duration(a.Seconds * float64(time.Second))
		if err := sleepCtx(ctx, d); err != nil {
			return nil, schemas.WrapError(schemas.KindTimeout, "workflow.wait", err)
		}
		return map[string]any{"waited_seconds": a.Seconds}, nil
	}

	return nil, schemas.NewError(schemas.KindValidation, "workflow.wait",
		fmt.Sprintf("unknown wait_for kind %q", a.WaitFor))
}

func (e *Engine) assert(ctx context.Context, driver schemas.Driver, a *schemas.StepAction, vars map[string]any) (any, error) {
	switch a.Assert {
	case schemas.AssertElementExists:
		selector := substitute(a.Selector, vars)
		if _, err := driver.Find(ctx, selector); err != nil {
			return nil, schemas.NewError(schemas.KindAssertionFailed, "workflow.assert",
				fmt.Sprintf("element %q does not exist", selector))
		}
		return map[string]any{"assert": "element_exists", "selector": selector}, nil

	case schemas.AssertTextContains:
		text := substitute(a.Text, vars)
		html, err := driver.OuterHTML(ctx)
		if err != nil {
			return nil, err
		}
		if !strings.Contains(html, text) {
			return nil, schemas.NewError(schemas.KindAssertionFailed, "workflow.assert",
				fmt.Sprintf("page does not contain %q", text))
		}
		return map[string]any{"assert": "text_contains", "text": text}, nil

	case schemas.AssertURLMatches:
		pattern := substitute(a.Pattern, vars)
		re, rerr := regexp.Compile(pattern)
		if rerr != nil {
			return nil, schemas.WrapError(schemas.KindValidation, "workflow.assert", rerr)
		}
		url, err := driver.CurrentURL(ctx)
		if err != nil {
			return nil, err
		}
		if !re.MatchString(url) {
			return nil, schemas.NewError(schemas.KindAssertionFailed, "workflow.assert",
				fmt.Sprintf("url %q does not match %q", url, pattern))
		}
		return map[string]any{"assert": "url_matches", "url": url}, nil

	case schemas.AssertElementCount:
		selector := substitute(a.Selector, vars)
		elems, err := driver.FindAll(ctx, selector)
		if err != nil {
			return nil, err
		}
		if len(elems) != a.Count {
			return nil, schemas.NewError(schemas.KindAssertionFailed, "workflow.assert",
				fmt.Sprintf("expected %d elements for %q, found %d", a.Count, selector, len(elems)))
		}
		return map[string]any{"assert": "element_count", "count": len(elems)}, nil

	case schemas.AssertTitle:
		expected := substitute(a.Expected, vars)
		title, err := driver.Title(ctx)
		if err != nil {
			return nil, err
		}
		if !strings.Contains(title, expected) {
			return nil, schemas.NewError(schemas.KindAssertionFailed, "workflow.assert",
				fmt.Sprintf("title %q does not contain %q", title, expected))
		}
		return map[string]any{"assert": "title", "title": title}, nil
	}

	return nil, schemas.NewError(schemas.KindValidation, "workflow.assert",
		fmt.Sprintf("unknown assert kind %q", a.Assert))
}

// loop iterates over a variable holding a list, exposing _loop_index and
// _loop_item to the body. The body's log entries count toward the step total.
func (e *Engine) loop(ctx context.Context, driver schemas.Driver, a *schemas.StepAction, wf *schemas.Workflow, st *runState, vars map[string]any) (any, error) {
	items, err := loopItems(a.Over, vars)
	if err != nil {
		return nil, err
	}

	for i, item := range items {
		st.mu.Lock()
		st.vars["_loop_index"] = i
		st.vars["_loop_item"] = item
		st.mu.Unlock()

		if err := e.runSteps(ctx, driver, a.Do, wf, st); err != nil {
			return map[string]any{"iterations": i}, err
		}
	}

	st.mu.Lock()
	delete(st.vars, "_loop_index")
	delete(st.vars, "_loop_item")
	st.mu.Unlock()
	return map[string]any{"iterations": len(items)}, nil
}

// loopItems resolves the "over" reference: a variable holding a list, or a
// templated comma-separated string.
func loopItems(over string, vars map[string]any) ([]any, error) {
	name := strings.TrimSpace(over)
	name = strings.TrimPrefix(name, "{{")
	name = strings.TrimSuffix(name, "}}")
	name = strings.TrimSpace(name)

	if v, ok := vars[name]; ok {
		switch t := v.(type) {
		case []any:
			return t, nil
		case []string:
			items := make([]any, len(t))
			for i, s := range t {
				items[i] = s
			}
			return items, nil
		default:
			return nil, schemas.NewError(schemas.KindValidation, "workflow.loop",
				fmt.Sprintf("variable %q is not a list", name))
		}
	}

	resolved := substitute(over, vars)
	if resolved == "" {
		return nil, schemas.NewError(schemas.KindValidation, "workflow.loop",
			fmt.Sprintf("nothing to iterate for %q", over))
	}
	parts := strings.Split(resolved, ",")
	items := make([]any, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items, nil
}

// evalCondition evaluates a predicate; driver failures count as false.
func (e *Engine) evalCondition(ctx context.Context, driver schemas.Driver, c *schemas.Condition, vars map[string]any) bool {
	if c == nil {
		return true
	}

	switch c.Check {
	case schemas.CheckElementExists:
		_, err := driver.Find(ctx, substitute(c.Selector, vars))
		return err == nil

	case schemas.CheckTextContains:
		html, err := driver.OuterHTML(ctx)
		if err != nil {
			return false
		}
		return strings.Contains(html, substitute(c.Text, vars))

	case schemas.CheckVariableEquals:
		v, ok := vars[c.Var]
		if !ok {
			return false
		}
		return stringify(v) == stringify(c.Value)

	case schemas.CheckVariableGreaterThan:
		a, aok := toFloat(vars[c.Var])
		b, bok := toFloat(c.Value)
		return aok && bok && a > b

	case schemas.CheckVariableLessThan:
		a, aok := toFloat(vars[c.Var])
		b, bok := toFloat(c.Value)
		return aok && bok && a < b

	case schemas.CheckNot:
		return !e.evalCondition(ctx, driver, c.Condition, vars)

	case schemas.CheckAnd:
		for i := range c.Conditions {
			if !e.evalCondition(ctx, driver, &c.Conditions[i], vars) {
				return false
			}
		}
		return true

	case schemas.CheckOr:
		for i := range c.Conditions {
			if e.evalCondition(ctx, driver, &c.Conditions[i], vars) {
				return true
			}
		}
		return false
	}

	e.logger.Warn("Unknown condition check; treating as false", zap.String("check", string(c.Check)))
	return false
}

func (e *Engine) captureScreenshot(ctx context.Context, driver schemas.Driver) (string, error) {
	shot, err := driver.Screenshot(ctx, schemas.ScreenshotViewport)
	if err != nil {
		return "", err
	}
	path := filepath.Join(e.screenshotDir, "voyant-wf-"+uuid.NewString()+".png")
	if err := os.WriteFile(path, shot.Data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func jsArg(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// pollUntil re-checks the predicate until it holds or ctx expires.
func pollUntil(ctx context.Context, check func() (bool, error)) error {
	ticker := time.NewTicker(textPollInterval)
	defer ticker.Stop()
	for {
		ok, err := check()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
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
