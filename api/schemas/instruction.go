package schemas

// IntentKind tags the Intent union.
type IntentKind string

const (
	IntentNavigate   IntentKind = "navigate"
	IntentClick      IntentKind = "click"
	IntentType       IntentKind = "type"
	IntentSelect     IntentKind = "select"
	IntentExtract    IntentKind = "extract"
	IntentSearch     IntentKind = "search"
	IntentWait       IntentKind = "wait"
	IntentScreenshot IntentKind = "screenshot"
	IntentScroll     IntentKind = "scroll"
	IntentUnknown    IntentKind = "unknown"
)

// NavigateTarget distinguishes URL navigation from history moves.
type NavigateTarget string

const (
	NavURL     NavigateTarget = "url"
	NavBack    NavigateTarget = "back"
	NavForward NavigateTarget = "forward"
	NavRefresh NavigateTarget = "refresh"
)

// Intent is the typed outcome of parsing one instruction. Only the fields
// relevant to Kind are populated.
type Intent struct {
	Kind IntentKind `json:"kind"`

	// Navigate
	NavTarget NavigateTarget `json:"nav_target,omitempty"`
	URL       string         `json:"url,omitempty"`

	// Click / Type / Select
	TargetDescription string `json:"target_description,omitempty"`
	Text              string `json:"text,omitempty"`
	ClearFirst        bool   `json:"clear_first,omitempty"`
	Option            string `json:"option,omitempty"`

	// Extract
	DataType string   `json:"data_type,omitempty"`
	Filters  []string `json:"filters,omitempty"`

	// Search
	Query string `json:"query,omitempty"`
	Scope string `json:"scope,omitempty"`

	// Wait
	Condition string `json:"condition,omitempty"`
	TimeoutMs int64  `json:"timeout_ms,omitempty"`

	// Screenshot
	Area     string `json:"area,omitempty"`
	Filename string `json:"filename,omitempty"`

	// Scroll
	Direction string `json:"direction,omitempty"`
	Amount    int    `json:"amount,omitempty"`
}

// EntityType classifies a token recognized during entity extraction.
type EntityType string

const (
	EntityURL      EntityType = "url"
	EntityQuoted   EntityType = "quoted_text"
	EntitySelector EntityType = "selector"
	EntitySite     EntityType = "site"
	EntityLocation EntityType = "location"
	EntityTime     EntityType = "time"
	EntityNumber   EntityType = "number"
)

// Entity is one extracted token with the extractor's confidence.
type Entity struct {
	Type       EntityType `json:"type"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
}

// Instruction is the parsed form of a natural-language command. When
// Confidence falls below the configured threshold, NeedsClarification is set
// and ClarificationQuestions explains what is missing; such instructions are
// never executed.
type Instruction struct {
	Raw                    string            `json:"raw"`
	Intent                 Intent            `json:"intent"`
	Entities               []Entity          `json:"entities"`
	Confidence             float64           `json:"confidence"`
	Hints                  map[string]string `json:"hints,omitempty"`
	NeedsClarification     bool              `json:"needs_clarification,omitempty"`
	ClarificationQuestions []string          `json:"clarification_questions,omitempty"`
}

// ActionKind names the driver-level operation an action performs.
type ActionKind string

const (
	ActionNavigate   ActionKind = "navigate"
	ActionClick      ActionKind = "click"
	ActionType       ActionKind = "type"
	ActionSelect     ActionKind = "select"
	ActionScroll     ActionKind = "scroll"
	ActionWait       ActionKind = "wait"
	ActionExtract    ActionKind = "extract"
	ActionScreenshot ActionKind = "screenshot"
	ActionBack       ActionKind = "back"
	ActionForward    ActionKind = "forward"
	ActionRefresh    ActionKind = "refresh"
)

// ActionOptions tunes how one action is executed.
type ActionOptions struct {
	TimeoutMs      int64 `json:"timeout_ms"`
	WaitAfterMs    int64 `json:"wait_after_ms"`
	RetryCount     int   `json:"retry_count"`
	ValidateResult bool  `json:"validate_result"`
	TakeScreenshot bool  `json:"take_screenshot"`
	ScrollIntoView bool  `json:"scroll_into_view"`
}

// ExecutableAction is one concrete browser operation derived from an intent
// or workflow step. Click, Type and Select require Target; Navigate requires
// a well-formed URL in Value.
type ExecutableAction struct {
	Kind       ActionKind    `json:"kind"`
	Target     string        `json:"target,omitempty"`
	Value      string        `json:"value,omitempty"`
	Options    ActionOptions `json:"options"`
	Confidence float64       `json:"confidence"`
}

// ActionResult reports one executed action.
type ActionResult struct {
	Success         bool             `json:"success"`
	Action          ExecutableAction `json:"action"`
	ExecutionTimeMs int64            `json:"execution_time_ms"`
	Data            any              `json:"data,omitempty"`
	Error           string           `json:"error,omitempty"`
	Suggestions     []string         `json:"suggestions,omitempty"`
	ScreenshotPath  string           `json:"screenshot_path,omitempty"`
}
