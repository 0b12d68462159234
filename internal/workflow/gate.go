// File: internal/workflow/gate.go
package workflow

import (
	"context"
	encjson "encoding/json"
	"sync"
	"time"

	"github.com/xkilldash9x/voyant/api/schemas"
)

// gatedDriver serializes driver access for parallel blocks. The underlying
// CDP connection handles one logical caller at a time, so parallel steps
// interleave at operation granularity rather than running truly concurrently.
type gatedDriver struct {
	mu *sync.Mutex
	d  schemas.Driver
}

var _ schemas.Driver = (*gatedDriver)(nil)

func (g *gatedDriver) ID() string { return g.d.ID() }

func (g *gatedDriver) Navigate(ctx context.Context, url string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.Navigate(ctx, url)
}

func (g *gatedDriver) CurrentURL(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.CurrentURL(ctx)
}

func (g *gatedDriver) Title(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.Title(ctx)
}

func (g *gatedDriver) ReadyState(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.ReadyState(ctx)
}

func (g *gatedDriver) Back(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.Back(ctx)
}

func (g *gatedDriver) Forward(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.Forward(ctx)
}

func (g *gatedDriver) Refresh(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.Refresh(ctx)
}

func (g *gatedDriver) Find(ctx context.Context, selector string) (*schemas.Element, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.Find(ctx, selector)
}

func (g *gatedDriver) FindAll(ctx context.Context, selector string) ([]*schemas.Element, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.FindAll(ctx, selector)
}

func (g *gatedDriver) Click(ctx context.Context, elem *schemas.Element) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.Click(ctx, elem)
}

func (g *gatedDriver) Clear(ctx context.Context, elem *schemas.Element) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.Clear(ctx, elem)
}

func (g *gatedDriver) SendKeys(ctx context.Context, elem *schemas.Element, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.SendKeys(ctx, elem, text)
}

func (g *gatedDriver) SelectOption(ctx context.Context, elem *schemas.Element, option string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.SelectOption(ctx, elem, option)
}

func (g *gatedDriver) ScrollIntoView(ctx context.Context, elem *schemas.Element) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.ScrollIntoView(ctx, elem)
}

func (g *gatedDriver) ScrollBy(ctx context.Context, dx, dy int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.ScrollBy(ctx, dx, dy)
}

func (g *gatedDriver) Eval(ctx context.Context, script string) (encjson.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.Eval(ctx, script)
}

func (g *gatedDriver) Screenshot(ctx context.Context, mode schemas.ScreenshotMode) (*schemas.ScreenshotResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.Screenshot(ctx, mode)
}

func (g *gatedDriver) OuterHTML(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.OuterHTML(ctx)
}

func (g *gatedDriver) SetWindow(ctx context.Context, width, height int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.SetWindow(ctx, width, height)
}

func (g *gatedDriver) WaitLoadEvent(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.WaitLoadEvent(ctx)
}

func (g *gatedDriver) WaitDOMContentLoaded(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.WaitDOMContentLoaded(ctx)
}

func (g *gatedDriver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.WaitVisible(ctx, selector, timeout)
}

func (g *gatedDriver) Healthy(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.Healthy(ctx)
}

func (g *gatedDriver) Quit(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.Quit(ctx)
}
