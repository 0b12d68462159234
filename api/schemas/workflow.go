package schemas

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// StepActionType is the closed set of workflow step actions.
type StepActionType string

const (
	StepNavigate    StepActionType = "navigate"
	StepClick       StepActionType = "click"
	StepFill        StepActionType = "fill"
	StepExtract     StepActionType = "extract"
	StepWait        StepActionType = "wait"
	StepAssert      StepActionType = "assert"
	StepLoop        StepActionType = "loop"
	StepConditional StepActionType = "conditional"
	StepScript      StepActionType = "script"
	StepParallel    StepActionType = "parallel"
)

// WaitKind discriminates wait actions.
type WaitKind string

const (
	WaitElement WaitKind = "element"
	WaitText    WaitKind = "text"
	WaitURL     WaitKind = "url"
	WaitTime    WaitKind = "time"
)

// AssertKind discriminates assert actions.
type AssertKind string

const (
	AssertElementExists AssertKind = "element_exists"
	AssertTextContains  AssertKind = "text_contains"
	AssertURLMatches    AssertKind = "url_matches"
	AssertElementCount  AssertKind = "element_count"
	AssertTitle         AssertKind = "title"
)

// CheckKind discriminates conditions.
type CheckKind string

const (
	CheckElementExists       CheckKind = "element_exists"
	CheckTextContains        CheckKind = "text_contains"
	CheckVariableEquals      CheckKind = "variable_equals"
	CheckVariableGreaterThan CheckKind = "variable_greater_than"
	CheckVariableLessThan    CheckKind = "variable_less_than"
	CheckNot                 CheckKind = "not"
	CheckAnd                 CheckKind = "and"
	CheckOr                  CheckKind = "or"
)

// Condition is a predicate over page state or workflow variables. Check
// selects the variant; only the matching fields are set.
type Condition struct {
	Check CheckKind `json:"check" yaml:"check"`

	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"`
	Text     string `json:"text,omitempty" yaml:"text,omitempty"`

	Var   string `json:"var,omitempty" yaml:"var,omitempty"`
	Value any    `json:"value,omitempty" yaml:"value,omitempty"`

	Condition  *Condition  `json:"condition,omitempty" yaml:"condition,omitempty"`
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// StepAction is the tagged union of workflow actions. Type selects the
// variant; only the fields belonging to that variant are meaningful.
type StepAction struct {
	Type StepActionType `json:"type" yaml:"type"`

	// navigate
	URL        string `json:"url,omitempty" yaml:"url,omitempty"`
	Screenshot bool   `json:"screenshot,omitempty" yaml:"screenshot,omitempty"`

	// click, fill, extract, wait(element), assert(element_*)
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"`

	// click
	WaitAfterMs int64 `json:"wait_after,omitempty" yaml:"wait_after,omitempty"`

	// fill
	Value string `json:"value,omitempty" yaml:"value,omitempty"`

	// extract
	Attribute string `json:"attribute,omitempty" yaml:"attribute,omitempty"`

	// wait
	WaitFor WaitKind `json:"wait_for,omitempty" yaml:"wait_for,omitempty"`
	Text    string   `json:"text,omitempty" yaml:"text,omitempty"`
	Pattern string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Seconds float64  `json:"seconds,omitempty" yaml:"seconds,omitempty"`

	// assert
	Assert   AssertKind `json:"assert,omitempty" yaml:"assert,omitempty"`
	Count    int        `json:"count,omitempty" yaml:"count,omitempty"`
	Expected string     `json:"expected,omitempty" yaml:"expected,omitempty"`

	// loop
	Over string `json:"over,omitempty" yaml:"over,omitempty"`
	Do   []Step `json:"do,omitempty" yaml:"do,omitempty"`

	// conditional
	If   *Condition `json:"if,omitempty" yaml:"if,omitempty"`
	Then []Step     `json:"then,omitempty" yaml:"then,omitempty"`
	Else []Step     `json:"else,omitempty" yaml:"else,omitempty"`

	// script
	Code string `json:"code,omitempty" yaml:"code,omitempty"`

	// parallel
	Steps []Step `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// ErrorStrategy controls what happens after a step failure. Serialized as a
// bare string for fail/continue/retry and as {"fallback": {"steps": [...]}}
// for the fallback variant.
type ErrorStrategy struct {
	Kind          string
	FallbackSteps []Step
}

const (
	OnErrorFail     = "fail"
	OnErrorContinue = "continue"
	OnErrorRetry    = "retry"
	OnErrorFallback = "fallback"
)

type fallbackBody struct {
	Steps []Step `json:"steps" yaml:"steps"`
}

func (s ErrorStrategy) MarshalJSON() ([]byte, error) {
	if s.Kind == OnErrorFallback {
		return json.Marshal(map[string]fallbackBody{OnErrorFallback: {Steps: s.FallbackSteps}})
	}
	return json.Marshal(s.Kind)
}

func (s *ErrorStrategy) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		return s.setKind(str)
	}
	var m map[string]fallbackBody
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("invalid error strategy: %w", err)
	}
	body, ok := m[OnErrorFallback]
	if !ok {
		return fmt.Errorf("invalid error strategy object")
	}
	s.Kind = OnErrorFallback
	s.FallbackSteps = body.Steps
	return nil
}

func (s ErrorStrategy) MarshalYAML() (any, error) {
	if s.Kind == OnErrorFallback {
		return map[string]fallbackBody{OnErrorFallback: {Steps: s.FallbackSteps}}, nil
	}
	return s.Kind, nil
}

func (s *ErrorStrategy) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var str string
		if err := node.Decode(&str); err != nil {
			return err
		}
		return s.setKind(str)
	}
	var m map[string]fallbackBody
	if err := node.Decode(&m); err != nil {
		return fmt.Errorf("invalid error strategy: %w", err)
	}
	body, ok := m[OnErrorFallback]
	if !ok {
		return fmt.Errorf("invalid error strategy object")
	}
	s.Kind = OnErrorFallback
	s.FallbackSteps = body.Steps
	return nil
}

func (s *ErrorStrategy) setKind(str string) error {
	switch str {
	case OnErrorFail, OnErrorContinue, OnErrorRetry:
		s.Kind = str
		return nil
	default:
		return fmt.Errorf("unknown error strategy %q", str)
	}
}

// RetryConfig bounds retries for a single step.
type RetryConfig struct {
	MaxAttempts        int  `json:"max_attempts" yaml:"max_attempts"`
	DelaySeconds       int  `json:"delay_seconds" yaml:"delay_seconds"`
	ExponentialBackoff bool `json:"exponential_backoff,omitempty" yaml:"exponential_backoff,omitempty"`
}

// Step is one workflow step.
type Step struct {
	Name      string         `json:"name" yaml:"name"`
	Action    StepAction     `json:"action" yaml:"action"`
	Condition *Condition     `json:"condition,omitempty" yaml:"condition,omitempty"`
	OnError   *ErrorStrategy `json:"on_error,omitempty" yaml:"on_error,omitempty"`
	Retry     *RetryConfig   `json:"retry,omitempty" yaml:"retry,omitempty"`
	StoreAs   string         `json:"store_as,omitempty" yaml:"store_as,omitempty"`
	TimeoutS  int64          `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// InputDefinition declares a workflow input. Required inputs without a
// default must be supplied at execution time.
type InputDefinition struct {
	Name        string `json:"name" yaml:"name"`
	InputType   string `json:"input_type,omitempty" yaml:"input_type,omitempty"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Workflow is a declarative multi-step plan.
type Workflow struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string            `json:"version,omitempty" yaml:"version,omitempty"`
	Inputs      []InputDefinition `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Variables   map[string]any    `json:"variables,omitempty" yaml:"variables,omitempty"`
	Steps       []Step            `json:"steps" yaml:"steps"`
	Parallel    bool              `json:"parallel,omitempty" yaml:"parallel,omitempty"`
	OnError     *ErrorStrategy    `json:"on_error,omitempty" yaml:"on_error,omitempty"`
	TimeoutS    int64             `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// ParseWorkflowYAML decodes a workflow from YAML.
func ParseWorkflowYAML(data []byte) (*Workflow, error) {
	var w Workflow
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parsing workflow yaml: %w", err)
	}
	return &w, nil
}

// ParseWorkflowJSON decodes a workflow from JSON.
func ParseWorkflowJSON(data []byte) (*Workflow, error) {
	var w Workflow
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parsing workflow json: %w", err)
	}
	return &w, nil
}

// ToYAML serializes the workflow to YAML.
func (w *Workflow) ToYAML() ([]byte, error) { return yaml.Marshal(w) }

// ToJSON serializes the workflow to indented JSON.
func (w *Workflow) ToJSON() ([]byte, error) { return json.MarshalIndent(w, "", "  ") }

// Timeout returns the workflow-level deadline, or zero when unset.
func (w *Workflow) Timeout() time.Duration { return time.Duration(w.TimeoutS) * time.Second }

// Validate checks structural rules before execution.
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return NewError(KindValidation, "workflow.validate", "workflow name is required")
	}
	return validateSteps(w.Steps, false)
}

func validateSteps(steps []Step, inParallel bool) error {
	for i := range steps {
		if err := validateStep(&steps[i], inParallel); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(s *Step, inParallel bool) error {
	if s.Name == "" {
		return NewError(KindValidation, "workflow.validate", "step name is required")
	}
	if inParallel && s.StoreAs != "" {
		return NewError(KindValidation, "workflow.validate",
			fmt.Sprintf("step %q: store_as is not allowed inside a parallel block", s.Name))
	}
	if s.Retry != nil && s.Retry.MaxAttempts < 1 {
		return NewError(KindValidation, "workflow.validate",
			fmt.Sprintf("step %q: retry.max_attempts must be at least 1", s.Name))
	}
	a := &s.Action
	switch a.Type {
	case StepNavigate:
		if a.URL == "" {
			return stepFieldErr(s.Name, "navigate requires url")
		}
	case StepClick, StepExtract:
		if a.Selector == "" {
			return stepFieldErr(s.Name, string(a.Type)+" requires selector")
		}
	case StepFill:
		if a.Selector == "" {
			return stepFieldErr(s.Name, "fill requires selector")
		}
	case StepWait:
		switch a.WaitFor {
		case WaitElement:
			if a.Selector == "" {
				return stepFieldErr(s.Name, "wait for element requires selector")
			}
		case WaitText:
			if a.Text == "" {
				return stepFieldErr(s.Name, "wait for text requires text")
			}
		case WaitURL:
			if a.Pattern == "" {
				return stepFieldErr(s.Name, "wait for url requires pattern")
			}
		case WaitTime:
			if a.Seconds <= 0 {
				return stepFieldErr(s.Name, "wait for time requires positive seconds")
			}
		default:
			return stepFieldErr(s.Name, "unknown wait_for kind")
		}
	case StepAssert:
		switch a.Assert {
		case AssertElementExists, AssertElementCount:
			if a.Selector == "" {
				return stepFieldErr(s.Name, "assertion requires selector")
			}
		case AssertTextContains:
			if a.Text == "" {
				return stepFieldErr(s.Name, "assertion requires text")
			}
		case AssertURLMatches:
			if a.Pattern == "" {
				return stepFieldErr(s.Name, "assertion requires pattern")
			}
		case AssertTitle:
			if a.Expected == "" {
				return stepFieldErr(s.Name, "assertion requires expected")
			}
		default:
			return stepFieldErr(s.Name, "unknown assert kind")
		}
	case StepLoop:
		if a.Over == "" {
			return stepFieldErr(s.Name, "loop requires over")
		}
		return validateSteps(a.Do, inParallel)
	case StepConditional:
		if a.If == nil {
			return stepFieldErr(s.Name, "conditional requires if")
		}
		if err := validateSteps(a.Then, inParallel); err != nil {
			return err
		}
		return validateSteps(a.Else, inParallel)
	case StepScript:
		if a.Code == "" {
			return stepFieldErr(s.Name, "script requires code")
		}
	case StepParallel:
		return validateSteps(a.Steps, true)
	default:
		return stepFieldErr(s.Name, fmt.Sprintf("unknown action type %q", a.Type))
	}
	return nil
}

func stepFieldErr(name, msg string) error {
	return NewError(KindValidation, "workflow.validate", fmt.Sprintf("step %q: %s", name, msg))
}

// ExecutionEntry is one line of the workflow execution log.
type ExecutionEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	StepName   string    `json:"step_name"`
	Action     string    `json:"action"`
	Success    bool      `json:"success"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Data       any       `json:"data,omitempty"`
}

// WorkflowResult aggregates a finished run.
type WorkflowResult struct {
	Success       bool             `json:"success"`
	DurationMs    int64            `json:"duration_ms"`
	StepsExecuted int              `json:"steps_executed"`
	StepsFailed   int              `json:"steps_failed"`
	Variables     map[string]any   `json:"variables"`
	ExecutionLog  []ExecutionEntry `json:"execution_log"`
}
