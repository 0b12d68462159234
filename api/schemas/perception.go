package schemas

// PerceptionMode names one of the four analysis tiers, or adaptive selection.
type PerceptionMode string

const (
	ModeLightning PerceptionMode = "lightning"
	ModeQuick     PerceptionMode = "quick"
	ModeStandard  PerceptionMode = "standard"
	ModeDeep      PerceptionMode = "deep"
	ModeAdaptive  PerceptionMode = "adaptive"
)

// ValidPerceptionMode reports whether m is in the accepted allowlist.
func ValidPerceptionMode(m PerceptionMode) bool {
	switch m {
	case ModeLightning, ModeQuick, ModeStandard, ModeDeep, ModeAdaptive:
		return true
	}
	return false
}

// LightningPerception is the cheapest tier: counts plus page identity.
type LightningPerception struct {
	URL              string `json:"url"`
	Title            string `json:"title"`
	ReadyState       string `json:"ready_state"`
	ClickableCount   int    `json:"clickable_count"`
	InputCount       int    `json:"input_count"`
	LinkCount        int    `json:"link_count"`
	FormCount        int    `json:"form_count"`
	PerceptionTimeMs int64  `json:"perception_time_ms"`
	FromCache        bool   `json:"from_cache"`
}

// ElementBounds is an element's bounding box in CSS pixels.
type ElementBounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// InteractiveElement describes one clickable or focusable control.
type InteractiveElement struct {
	Selector    string        `json:"selector"`
	ElementType string        `json:"element_type"`
	Text        string        `json:"text"`
	IsVisible   bool          `json:"is_visible"`
	Bounds      ElementBounds `json:"bounds"`
}

// TextBlock is a visible run of text, flagged when it is a heading.
type TextBlock struct {
	Content   string  `json:"content"`
	TagName   string  `json:"tag_name"`
	IsHeading bool    `json:"is_heading"`
	FontSize  float64 `json:"font_size"`
}

// FormField describes one input discovered inside a form.
type FormField struct {
	Name        string `json:"name"`
	FieldType   string `json:"field_type"`
	Required    bool   `json:"required"`
	Placeholder string `json:"placeholder"`
}

// LayoutInfo captures viewport versus content dimensions.
type LayoutInfo struct {
	ViewportWidth  int `json:"viewport_width"`
	ViewportHeight int `json:"viewport_height"`
	ContentWidth   int `json:"content_width"`
	ContentHeight  int `json:"content_height"`
}

// QuickPerception extends Lightning with interactive structure.
type QuickPerception struct {
	Lightning           LightningPerception  `json:"lightning"`
	InteractiveElements []InteractiveElement `json:"interactive_elements"`
	VisibleTextBlocks   []TextBlock          `json:"visible_text_blocks"`
	FormFields          []FormField          `json:"form_fields"`
	LayoutInfo          LayoutInfo           `json:"layout_info"`
}

// SemanticStructure summarizes the page's document outline.
type SemanticStructure struct {
	Headings    []string `json:"headings"`
	MainContent string   `json:"main_content"`
	Navigation  []string `json:"navigation"`
}

// AccessibilityInfo collects a11y signals and obvious violations.
type AccessibilityInfo struct {
	AriaLabels              []string `json:"aria_labels"`
	AltTexts                []string `json:"alt_texts"`
	AccessibilityViolations []string `json:"accessibility_violations"`
}

// ComputedStyleInfo holds the style subset sampled per key element.
type ComputedStyleInfo struct {
	Display    string `json:"display"`
	Visibility string `json:"visibility"`
	ZIndex     string `json:"z_index"`
}

// PerformanceMetrics reports navigation timing figures in milliseconds.
type PerformanceMetrics struct {
	LoadTime      float64 `json:"load_time"`
	DOMReadyTime  float64 `json:"dom_ready_time"`
	ResourceCount int     `json:"resource_count"`
}

// StandardPerception extends Quick with semantics and performance.
type StandardPerception struct {
	Quick              QuickPerception              `json:"quick"`
	SemanticStructure  SemanticStructure            `json:"semantic_structure"`
	AccessibilityInfo  AccessibilityInfo            `json:"accessibility_info"`
	ComputedStyles     map[string]ComputedStyleInfo `json:"computed_styles"`
	PerformanceMetrics PerformanceMetrics           `json:"performance_metrics"`
}

// DOMAnalysis is the deep-tier structural walk.
type DOMAnalysis struct {
	TotalNodes       int `json:"total_nodes"`
	MaxDepth         int `json:"max_depth"`
	InteractiveNodes int `json:"interactive_nodes"`
}

// VisualAnalysis is the deep-tier rendering summary.
type VisualAnalysis struct {
	ScreenshotHash string   `json:"screenshot_hash"`
	ColorPalette   []string `json:"color_palette"`
	VisualElements []string `json:"visual_elements"`
}

// BehaviorPatterns describes inferred user flows and hotspots.
type BehaviorPatterns struct {
	UserFlows           []string `json:"user_flows"`
	InteractionHotspots []string `json:"interaction_hotspots"`
}

// AIInsights carries the heuristic usability assessment.
type AIInsights struct {
	PagePurpose        string   `json:"page_purpose"`
	RecommendedActions []string `json:"recommended_actions"`
	UsabilityScore     float64  `json:"usability_score"`
}

// DeepPerception extends Standard with the full analysis suite.
type DeepPerception struct {
	Standard           StandardPerception `json:"standard"`
	DOMAnalysis        DOMAnalysis        `json:"dom_analysis"`
	VisualAnalysis     VisualAnalysis     `json:"visual_analysis"`
	BehavioralPatterns BehaviorPatterns   `json:"behavioral_patterns"`
	AIInsights         AIInsights         `json:"ai_insights"`
}

// PerceptionResult is the tagged union returned by the engine. Exactly one of
// the tier fields is populated, named by Mode (never adaptive; adaptive
// resolves to the tier it selected).
type PerceptionResult struct {
	Mode      PerceptionMode       `json:"mode"`
	Lightning *LightningPerception `json:"lightning,omitempty"`
	Quick     *QuickPerception     `json:"quick,omitempty"`
	Standard  *StandardPerception  `json:"standard,omitempty"`
	Deep      *DeepPerception      `json:"deep,omitempty"`
}

// ElementMatch is the outcome of a smart element search.
type ElementMatch struct {
	Selector    string  `json:"selector"`
	Description string  `json:"description"`
	Text        string  `json:"text,omitempty"`
	Confidence  float64 `json:"confidence"`
	Strategy    string  `json:"strategy"`
}
