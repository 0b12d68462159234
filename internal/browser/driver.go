// File: internal/browser/driver.go

// Package browser implements the driver abstraction over a single headless
// Chrome instance, speaking CDP through chromedp.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/voyant/api/schemas"
	"github.com/xkilldash9x/voyant/internal/config"
)

// Driver drives one Chrome process. It implements schemas.Driver. Operations
// are sequential per holder; the driver itself does not serialize callers.
type Driver struct {
	id     string
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
}

var _ schemas.Driver = (*Driver)(nil)

// New launches a Chrome process and returns a ready driver. The process
// lifetime is bound to the driver, not to ctx; ctx only bounds startup.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Driver, error) {
	id := uuid.NewString()

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), buildAllocatorOptions(cfg)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	d := &Driver{
		id:            id,
		logger:        logger.Named("driver").With(zap.String("driver_id", id)),
		cfg:           cfg,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}
	if cfg.OpsPerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.OpsPerSecond), 1)
	}

	// First Run starts the process. Bound it by the caller's context so a
	// missing Chrome binary fails fast.
	startCtx, cancel := CombineContext(browserCtx, ctx)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, schemas.WrapError(schemas.KindDriverUnavailable, "driver.start", err)
	}

	d.logger.Debug("Browser process started")
	return d, nil
}

// ID returns the driver's unique handle id.
func (d *Driver) ID() string { return d.id }

// run executes chromedp actions under the operation timeout, combining the
// caller's context with the browser's master context.
func (d *Driver) run(ctx context.Context, op string, timeout time.Duration, actions ...chromedp.Action) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return schemas.NewError(schemas.KindDriverUnavailable, op, "driver is closed")
	}
	d.mu.Unlock()

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return schemas.WrapError(schemas.KindTimeout, op, err)
		}
	}

	if timeout <= 0 {
		timeout = d.defaultTimeout()
	}
	opCtx, cancelOp := context.WithTimeout(ctx, timeout)
	defer cancelOp()

	runCtx, cancel := CombineContext(d.browserCtx, opCtx)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err != nil {
		return d.mapError(op, timeout, err, opCtx)
	}
	return nil
}

func (d *Driver) defaultTimeout() time.Duration {
	if d.cfg.DefaultTimeout > 0 {
		return d.cfg.DefaultTimeout
	}
	return 30 * time.Second
}

func (d *Driver) navTimeout() time.Duration {
	if d.cfg.NavTimeout > 0 {
		return d.cfg.NavTimeout
	}
	return d.defaultTimeout()
}

// mapError translates chromedp failures into the engine's error taxonomy.
func (d *Driver) mapError(op string, timeout time.Duration, err error, opCtx context.Context) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || opCtx.Err() == context.DeadlineExceeded:
		return schemas.NewError(schemas.KindTimeout, op, fmt.Sprintf("operation exceeded %s", timeout))
	case errors.Is(err, context.Canceled):
		return schemas.WrapError(schemas.KindDriverUnavailable, op, err)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "could not find node") || strings.Contains(msg, "no nodes"):
		return schemas.WrapError(schemas.KindNotFound, op, err)
	case strings.Contains(msg, "websocket") || strings.Contains(msg, "connection"):
		return schemas.WrapError(schemas.KindDriverUnavailable, op, err)
	default:
		return schemas.WrapError(schemas.KindProtocol, op, err)
	}
}

// NormalizeURL prepends https:// when raw carries no scheme. about:blank and
// file URLs pass through.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "about:blank" {
		return raw
	}
	if strings.Contains(raw, "://") {
		return raw
	}
	return "https://" + raw
}

// Navigate loads url and waits for the load event.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	target := NormalizeURL(url)
	d.logger.Debug("Navigating", zap.String("url", target))
	return d.run(ctx, "driver.navigate", d.navTimeout(),
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (d *Driver) Back(ctx context.Context) error {
	return d.run(ctx, "driver.back", d.navTimeout(), chromedp.NavigateBack())
}

func (d *Driver) Forward(ctx context.Context) error {
	return d.run(ctx, "driver.forward", d.navTimeout(), chromedp.NavigateForward())
}

func (d *Driver) Refresh(ctx context.Context) error {
	return d.run(ctx, "driver.refresh", d.navTimeout(), chromedp.Reload())
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := d.run(ctx, "driver.current_url", 0, chromedp.Location(&url))
	return url, err
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	var title string
	err := d.run(ctx, "driver.title", 0, chromedp.Title(&title))
	return title, err
}

func (d *Driver) ReadyState(ctx context.Context) (string, error) {
	raw, err := d.Eval(ctx, "document.readyState")
	if err != nil {
		return "", err
	}
	var state string
	if err := json.Unmarshal(raw, &state); err != nil {
		return "", schemas.WrapError(schemas.KindProtocol, "driver.ready_state", err)
	}
	return state, nil
}

// elementProbe is the JSON shape returned by the find scripts.
type elementProbe struct {
	Tag     string `json:"tag"`
	Text    string `json:"text"`
	Visible bool   `json:"visible"`
}

const findScript = `(function(sel) {
	const probe = (n) => {
		const r = n.getBoundingClientRect();
		const s = window.getComputedStyle(n);
		return {
			tag: n.tagName.toLowerCase(),
			text: (n.innerText || n.value || '').trim().slice(0, 200),
			visible: r.width > 0 && r.height > 0 && s.display !== 'none' && s.visibility !== 'hidden'
		};
	};
	const n = document.querySelector(sel);
	return n ? probe(n) : null;
})(%s)`

const findAllScript = `(function(sel) {
	const probe = (n) => {
		const r = n.getBoundingClientRect();
		const s = window.getComputedStyle(n);
		return {
			tag: n.tagName.toLowerCase(),
			text: (n.innerText || n.value || '').trim().slice(0, 200),
			visible: r.width > 0 && r.height > 0 && s.display !== 'none' && s.visibility !== 'hidden'
		};
	};
	return Array.from(document.querySelectorAll(sel)).slice(0, 100).map(probe);
})(%s)`

// Find returns the first element matching the CSS selector.
func (d *Driver) Find(ctx context.Context, selector string) (*schemas.Element, error) {
	raw, err := d.Eval(ctx, fmt.Sprintf(findScript, jsString(selector)))
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, schemas.NewError(schemas.KindNotFound, "driver.find", selector)
	}
	var p elementProbe
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, schemas.WrapError(schemas.KindProtocol, "driver.find", err)
	}
	return &schemas.Element{Selector: selector, Tag: p.Tag, Text: p.Text, Visible: p.Visible}, nil
}

// FindAll returns every element matching the CSS selector, capped at 100.
func (d *Driver) FindAll(ctx context.Context, selector string) ([]*schemas.Element, error) {
	raw, err := d.Eval(ctx, fmt.Sprintf(findAllScript, jsString(selector)))
	if err != nil {
		return nil, err
	}
	var probes []elementProbe
	if err := json.Unmarshal(raw, &probes); err != nil {
		return nil, schemas.WrapError(schemas.KindProtocol, "driver.find_all", err)
	}
	elems := make([]*schemas.Element, 0, len(probes))
	for _, p := range probes {
		elems = append(elems, &schemas.Element{Selector: selector, Tag: p.Tag, Text: p.Text, Visible: p.Visible})
	}
	return elems, nil
}

func (d *Driver) Click(ctx context.Context, elem *schemas.Element) error {
	if elem == nil || elem.Selector == "" {
		return schemas.NewError(schemas.KindValidation, "driver.click", "element selector is required")
	}
	return d.run(ctx, "driver.click", 0,
		chromedp.WaitVisible(elem.Selector, chromedp.ByQuery),
		chromedp.Click(elem.Selector, chromedp.ByQuery),
	)
}

func (d *Driver) Clear(ctx context.Context, elem *schemas.Element) error {
	if elem == nil || elem.Selector == "" {
		return schemas.NewError(schemas.KindValidation, "driver.clear", "element selector is required")
	}
	return d.run(ctx, "driver.clear", 0, chromedp.Clear(elem.Selector, chromedp.ByQuery))
}

func (d *Driver) SendKeys(ctx context.Context, elem *schemas.Element, text string) error {
	if elem == nil || elem.Selector == "" {
		return schemas.NewError(schemas.KindValidation, "driver.send_keys", "element selector is required")
	}
	return d.run(ctx, "driver.send_keys", 0,
		chromedp.WaitVisible(elem.Selector, chromedp.ByQuery),
		chromedp.SendKeys(elem.Selector, text, chromedp.ByQuery),
	)
}

// SelectOption picks an option of a <select> by value or visible label and
// fires the change event.
func (d *Driver) SelectOption(ctx context.Context, elem *schemas.Element, option string) error {
	if elem == nil || elem.Selector == "" {
		return schemas.NewError(schemas.KindValidation, "driver.select", "element selector is required")
	}
	script := fmt.Sprintf(`(function(sel, opt) {
		const el = document.querySelector(sel);
		if (!el) return false;
		for (const o of el.options) {
			if (o.value === opt || o.textContent.trim() === opt) {
				el.value = o.value;
				el.dispatchEvent(new Event('change', { bubbles: true }));
				return true;
			}
		}
		return false;
	})(%s, %s)`, jsString(elem.Selector), jsString(option))

	raw, err := d.Eval(ctx, script)
	if err != nil {
		return err
	}
	var ok bool
	if err := json.Unmarshal(raw, &ok); err != nil || !ok {
		return schemas.NewError(schemas.KindNotFound, "driver.select",
			fmt.Sprintf("option %q not found in %s", option, elem.Selector))
	}
	return nil
}

func (d *Driver) ScrollIntoView(ctx context.Context, elem *schemas.Element) error {
	if elem == nil || elem.Selector == "" {
		return schemas.NewError(schemas.KindValidation, "driver.scroll_into_view", "element selector is required")
	}
	return d.run(ctx, "driver.scroll_into_view", 0, chromedp.ScrollIntoView(elem.Selector, chromedp.ByQuery))
}

func (d *Driver) ScrollBy(ctx context.Context, dx, dy int) error {
	_, err := d.Eval(ctx, fmt.Sprintf("window.scrollBy(%d, %d); true", dx, dy))
	return err
}

// Eval runs script in the page and returns its JSON-serialized result.
// Promises are awaited and console noise suppressed.
func (d *Driver) Eval(ctx context.Context, script string) (json.RawMessage, error) {
	var res json.RawMessage
	err := d.run(ctx, "driver.eval", 0,
		chromedp.Evaluate(script, &res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
		}),
	)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		res = json.RawMessage("null")
	}
	return res, nil
}

// OuterHTML returns the serialized document.
func (d *Driver) OuterHTML(ctx context.Context) (string, error) {
	var html string
	err := d.run(ctx, "driver.outer_html", 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// SetWindow overrides the viewport metrics.
func (d *Driver) SetWindow(ctx context.Context, width, height int) error {
	return d.run(ctx, "driver.set_window", 0,
		emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false),
	)
}

func (d *Driver) WaitLoadEvent(ctx context.Context) error {
	var ready bool
	return d.run(ctx, "driver.wait_load", d.navTimeout(),
		chromedp.Poll("document.readyState === 'complete'", &ready,
			chromedp.WithPollingInterval(50*time.Millisecond)),
	)
}

func (d *Driver) WaitDOMContentLoaded(ctx context.Context) error {
	var ready bool
	return d.run(ctx, "driver.wait_dom", d.navTimeout(),
		chromedp.Poll("document.readyState !== 'loading'", &ready,
			chromedp.WithPollingInterval(50*time.Millisecond)),
	)
}

func (d *Driver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return d.run(ctx, "driver.wait_visible", timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
	)
}

// Healthy pings the page with a cheap title call.
func (d *Driver) Healthy(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := d.Title(pingCtx)
	return err == nil
}

// Quit tears down the browser process. Safe to call more than once.
func (d *Driver) Quit(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.logger.Debug("Quitting browser")

	// Give the browser a moment to close cleanly before cutting the contexts.
	closeCtx, cancel := context.WithTimeout(Detach(d.browserCtx), 5*time.Second)
	_ = chromedp.Run(closeCtx, page.Close())
	cancel()

	d.browserCancel()
	d.allocCancel()
	return nil
}

// jsString encodes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
