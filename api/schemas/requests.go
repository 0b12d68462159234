package schemas

// -- API envelope --

// ResponseMetadata carries timing attached to every API response.
type ResponseMetadata struct {
	ProcessingTimeMs int64  `json:"processing_time_ms"`
	TotalTimeMs      int64  `json:"total_time_ms"`
	RequestID        string `json:"request_id,omitempty"`
}

// APIResponse is the uniform JSON envelope for every endpoint.
type APIResponse struct {
	Success  bool             `json:"success"`
	Data     any              `json:"data,omitempty"`
	Error    *APIError        `json:"error,omitempty"`
	Metadata ResponseMetadata `json:"metadata"`
}

// APIError is the typed error body. Kind is one of the stable ErrorKind
// strings; stack traces are never included.
type APIError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// -- Request bodies --

// AnalyzeRequest drives POST /perception/analyze.
type AnalyzeRequest struct {
	URL       string `json:"url,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// ModeRequest drives POST /perception/mode.
type ModeRequest struct {
	Mode      PerceptionMode `json:"mode"`
	URL       string         `json:"url,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
}

// FindElementRequest drives POST /perception/find_element.
type FindElementRequest struct {
	Description string `json:"description"`
	SessionID   string `json:"session_id,omitempty"`
}

// CommandRequest drives POST /perception/command.
type CommandRequest struct {
	Command   string `json:"command"`
	SessionID string `json:"session_id,omitempty"`
}

// FormAnalyzeRequest drives POST /perception/form_analyze.
type FormAnalyzeRequest struct {
	FormSelector string `json:"form_selector,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
}

// FormAutofillRequest drives POST /perception/form_autofill.
type FormAutofillRequest struct {
	FormSelector string          `json:"form_selector,omitempty"`
	ProfileName  string          `json:"profile_name"`
	UserProfile  AutofillProfile `json:"user_profile,omitempty"`
	SessionID    string          `json:"session_id,omitempty"`
}

// IntelligenceAnalyzeRequest drives POST /intelligence/analyze.
type IntelligenceAnalyzeRequest struct {
	UserIntent string              `json:"user_intent"`
	URL        string              `json:"url"`
	PageTitle  string              `json:"page_title,omitempty"`
	Config     *IntelligenceTuning `json:"config,omitempty"`
}

// IntelligenceTuning bounds classifier behavior per request.
type IntelligenceTuning struct {
	ConfidenceThreshold   float64 `json:"confidence_threshold,omitempty"`
	AdaptationSensitivity float64 `json:"adaptation_sensitivity,omitempty"`
}

// RecommendRequest drives POST /intelligence/recommend.
type RecommendRequest struct {
	Analysis SituationAnalysis   `json:"analysis"`
	Config   *IntelligenceTuning `json:"config,omitempty"`
}

// FeedbackRequest drives POST /intelligence/feedback.
type FeedbackRequest struct {
	Recommendation  ActionRecommendation `json:"action_recommendation"`
	ActualResult    string               `json:"actual_result"`
	Success         bool                 `json:"success"`
	ExecutionTimeMs int64                `json:"execution_time_ms"`
}

// WorkflowRunRequest drives POST /workflow/run. Workflow holds raw YAML or
// JSON; JSON is detected by a leading brace.
type WorkflowRunRequest struct {
	Workflow string         `json:"workflow"`
	Inputs   map[string]any `json:"inputs,omitempty"`
}

// InstructionRequest drives POST /instruction/execute.
type InstructionRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id,omitempty"`
}

// SessionCreateRequest drives POST /session.
type SessionCreateRequest struct {
	SessionID  string            `json:"session_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	TTLSeconds int64             `json:"ttl_seconds,omitempty"`
}

// MaxUserIntentLen bounds user_intent and instruction text.
const MaxUserIntentLen = 2000

// MaxExecutionTimeMs bounds reported execution times in feedback.
const MaxExecutionTimeMs = 300_000
