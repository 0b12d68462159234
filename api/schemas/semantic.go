package schemas

// PageType is the coarse classification of a page, chosen by
// priority-ordered heuristics over the live DOM.
type PageType string

const (
	PageHomepage      PageType = "homepage"
	PageSearchResults PageType = "search_results"
	PageProduct       PageType = "product_page"
	PageArticle       PageType = "article_page"
	PageForm          PageType = "form_page"
	PageLogin         PageType = "login_page"
	PageDashboard     PageType = "dashboard"
	PageListing       PageType = "listing_page"
	PageCheckout      PageType = "checkout_page"
	PageProfile       PageType = "profile_page"
	PageDocumentation PageType = "documentation_page"
	PageUnknown       PageType = "unknown"
)

// RegionKind names a structural area of a page.
type RegionKind string

const (
	RegionNavigation  RegionKind = "navigation"
	RegionSearchBar   RegionKind = "search_bar"
	RegionProductGrid RegionKind = "product_grid"
	RegionArticle     RegionKind = "article"
	RegionForm        RegionKind = "form"
	RegionFooter      RegionKind = "footer"
	RegionComments    RegionKind = "comments"
)

// Region is one structural area with its anchor selector and child selectors.
type Region struct {
	Kind     RegionKind `json:"kind"`
	Selector string     `json:"selector"`
	Children []string   `json:"children,omitempty"`
	TextHint string     `json:"text_hint,omitempty"`
}

// ElementKind classifies a semantic element.
type ElementKind string

const (
	ElemButton     ElementKind = "button"
	ElemLink       ElementKind = "link"
	ElemInput      ElementKind = "input"
	ElemImage      ElementKind = "image"
	ElemVideo      ElementKind = "video"
	ElemTable      ElementKind = "table"
	ElemList       ElementKind = "list"
	ElemCard       ElementKind = "card"
	ElemModal      ElementKind = "modal"
	ElemDropdown   ElementKind = "dropdown"
	ElemTab        ElementKind = "tab"
	ElemAccordion  ElementKind = "accordion"
	ElemBreadcrumb ElementKind = "breadcrumb"
	ElemPagination ElementKind = "pagination"
	ElemBadge      ElementKind = "badge"
	ElemAlert      ElementKind = "alert"
	ElemCustom     ElementKind = "custom"
)

// ElementPurpose is the inferred role an element plays for the user.
type ElementPurpose string

const (
	PurposeNavigation    ElementPurpose = "navigation"
	PurposeAction        ElementPurpose = "action"
	PurposeInformation   ElementPurpose = "information"
	PurposeInput         ElementPurpose = "input"
	PurposeFeedback      ElementPurpose = "feedback"
	PurposeDecoration    ElementPurpose = "decoration"
	PurposeAdvertisement ElementPurpose = "advertisement"
)

// SemanticElement is one element of the page model. Importance is
// deterministic for a fixed DOM snapshot and always within [0,1].
type SemanticElement struct {
	Selector   string            `json:"selector"`
	Kind       ElementKind       `json:"kind"`
	CustomKind string            `json:"custom_kind,omitempty"`
	Content    string            `json:"content"`
	Purpose    ElementPurpose    `json:"purpose"`
	Importance float64           `json:"importance"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// RelationshipKind names how two elements relate.
type RelationshipKind string

const (
	RelContains    RelationshipKind = "contains"
	RelLabelFor    RelationshipKind = "label_for"
	RelSubmitsForm RelationshipKind = "submits_form"
	RelNavigatesTo RelationshipKind = "navigates_to"
)

// Relationship links a source element to a target element.
type Relationship struct {
	Source string           `json:"source"`
	Target string           `json:"target"`
	Kind   RelationshipKind `json:"kind"`
}

// InteractionPoint is something the user (or the engine) can act on, with the
// result the action is expected to have.
type InteractionPoint struct {
	Selector       string `json:"selector"`
	Action         string `json:"action"`
	Label          string `json:"label,omitempty"`
	ExpectedResult string `json:"expected_result,omitempty"`
}

// DataStructure is a table or list extracted from the page, capped by the
// analyzer.
type DataStructure struct {
	Kind     string     `json:"kind"`
	Selector string     `json:"selector"`
	Fields   []string   `json:"fields,omitempty"`
	Rows     [][]string `json:"rows,omitempty"`
	Items    []string   `json:"items,omitempty"`
}

// PageModel is the full semantic snapshot of one page.
type PageModel struct {
	URL               string             `json:"url"`
	PageType          PageType           `json:"page_type"`
	Regions           []Region           `json:"regions"`
	SemanticElements  []SemanticElement  `json:"semantic_elements"`
	Relationships     []Relationship     `json:"relationships"`
	InteractionPoints []InteractionPoint `json:"interaction_points"`
	DataStructures    []DataStructure    `json:"data_structures"`
}
