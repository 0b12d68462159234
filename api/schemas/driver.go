package schemas

import (
	"context"
	"encoding/json"
	"time"
)

// ScreenshotMode selects how much of the page a capture covers.
type ScreenshotMode string

const (
	ScreenshotViewport ScreenshotMode = "viewport"
	ScreenshotFullPage ScreenshotMode = "full_page"
)

// Element is an opaque reference to a DOM node located by a driver. The
// selector is retained so follow-up operations can re-resolve the node after
// DOM mutation.
type Element struct {
	Selector string `json:"selector"`
	Tag      string `json:"tag,omitempty"`
	Text     string `json:"text,omitempty"`
	Visible  bool   `json:"visible"`
}

// ScreenshotResult carries captured image bytes plus a warning when a
// full-page capture degraded to viewport-only.
type ScreenshotResult struct {
	Data    []byte         `json:"data"`
	Mode    ScreenshotMode `json:"mode"`
	Warning string         `json:"warning,omitempty"`
}

// Driver is the uniform operation set against a single headless browser.
//
// Calls on one Driver must be issued sequentially by a single logical holder;
// concurrent calls on the same handle are undefined. Every call honors the
// deadline on ctx and the driver's own default operation timeout, whichever
// is sooner.
//
//go:generate mockery --name Driver --output ../../internal/mocks --outpkg mocks
type Driver interface {
	// ID returns the driver's unique handle id.
	ID() string

	// Navigate loads the given URL and waits for the load event. URLs
	// without a scheme are normalized by prepending https://.
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	ReadyState(ctx context.Context) (string, error)
	Back(ctx context.Context) error
	Forward(ctx context.Context) error
	Refresh(ctx context.Context) error

	// Find returns the first element matching the CSS selector, or a
	// not_found error.
	Find(ctx context.Context, selector string) (*Element, error)
	FindAll(ctx context.Context, selector string) ([]*Element, error)

	Click(ctx context.Context, elem *Element) error
	Clear(ctx context.Context, elem *Element) error
	SendKeys(ctx context.Context, elem *Element, text string) error
	SelectOption(ctx context.Context, elem *Element, option string) error
	ScrollIntoView(ctx context.Context, elem *Element) error
	ScrollBy(ctx context.Context, dx, dy int) error

	// Eval runs a JavaScript expression in the page and returns its
	// JSON-serialized result. Promises are awaited.
	Eval(ctx context.Context, script string) (json.RawMessage, error)

	// Screenshot captures the page. Full-page mode resizes the window to
	// the document scroll size and restores it afterwards; on failure it
	// degrades to a viewport capture with a warning instead of an error.
	Screenshot(ctx context.Context, mode ScreenshotMode) (*ScreenshotResult, error)

	// OuterHTML returns the serialized document for offline analysis.
	OuterHTML(ctx context.Context) (string, error)

	SetWindow(ctx context.Context, width, height int) error
	WaitLoadEvent(ctx context.Context) error
	WaitDOMContentLoaded(ctx context.Context) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// Healthy reports whether the underlying browser still responds.
	Healthy(ctx context.Context) bool

	// Quit tears down the browser process. Safe to call more than once.
	Quit(ctx context.Context) error
}
