// File: internal/mocks/driver.go

// Package mocks provides hand-rolled test doubles for the driver interface.
package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/voyant/api/schemas"
)

// MockDriver implements schemas.Driver with overridable behavior. Zero value
// methods succeed with empty results; tests override the function fields
// they care about. Call counts are tracked per method name.
type MockDriver struct {
	IDValue string

	NavigateFunc     func(ctx context.Context, url string) error
	CurrentURLFunc   func(ctx context.Context) (string, error)
	TitleFunc        func(ctx context.Context) (string, error)
	ReadyStateFunc   func(ctx context.Context) (string, error)
	FindFunc         func(ctx context.Context, selector string) (*schemas.Element, error)
	FindAllFunc      func(ctx context.Context, selector string) ([]*schemas.Element, error)
	ClickFunc        func(ctx context.Context, elem *schemas.Element) error
	ClearFunc        func(ctx context.Context, elem *schemas.Element) error
	SendKeysFunc     func(ctx context.Context, elem *schemas.Element, text string) error
	SelectOptionFunc func(ctx context.Context, elem *schemas.Element, option string) error
	EvalFunc         func(ctx context.Context, script string) (json.RawMessage, error)
	ScreenshotFunc   func(ctx context.Context, mode schemas.ScreenshotMode) (*schemas.ScreenshotResult, error)
	OuterHTMLFunc    func(ctx context.Context) (string, error)
	HealthyFunc      func(ctx context.Context) bool
	QuitFunc         func(ctx context.Context) error

	mu    sync.Mutex
	calls map[string]int
}

var _ schemas.Driver = (*MockDriver)(nil)

// NewMockDriver returns a driver whose operations all succeed.
func NewMockDriver() *MockDriver {
	return &MockDriver{IDValue: uuid.NewString()}
}

func (m *MockDriver) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

// Calls returns how often the named method was invoked.
func (m *MockDriver) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *MockDriver) ID() string { return m.IDValue }

func (m *MockDriver) Navigate(ctx context.Context, url string) error {
	m.record("Navigate")
	if m.NavigateFunc != nil {
		return m.NavigateFunc(ctx, url)
	}
	return nil
}

func (m *MockDriver) CurrentURL(ctx context.Context) (string, error) {
	m.record("CurrentURL")
	if m.CurrentURLFunc != nil {
		return m.CurrentURLFunc(ctx)
	}
	return "https://example.com", nil
}

func (m *MockDriver) Title(ctx context.Context) (string, error) {
	m.record("Title")
	if m.TitleFunc != nil {
		return m.TitleFunc(ctx)
	}
	return "Example", nil
}

func (m *MockDriver) ReadyState(ctx context.Context) (string, error) {
	m.record("ReadyState")
	if m.ReadyStateFunc != nil {
		return m.ReadyStateFunc(ctx)
	}
	return "complete", nil
}

func (m *MockDriver) Back(ctx context.Context) error    { m.record("Back"); return nil }
func (m *MockDriver) Forward(ctx context.Context) error { m.record("Forward"); return nil }
func (m *MockDriver) Refresh(ctx context.Context) error { m.record("Refresh"); return nil }

func (m *MockDriver) Find(ctx context.Context, selector string) (*schemas.Element, error) {
	m.record("Find")
	if m.FindFunc != nil {
		return m.FindFunc(ctx, selector)
	}
	return &schemas.Element{Selector: selector, Tag: "div", Visible: true}, nil
}

func (m *MockDriver) FindAll(ctx context.Context, selector string) ([]*schemas.Element, error) {
	m.record("FindAll")
	if m.FindAllFunc != nil {
		return m.FindAllFunc(ctx, selector)
	}
	return []*schemas.Element{{Selector: selector, Tag: "div", Visible: true}}, nil
}

func (m *MockDriver) Click(ctx context.Context, elem *schemas.Element) error {
	m.record("Click")
	if m.ClickFunc != nil {
		return m.ClickFunc(ctx, elem)
	}
	return nil
}

func (m *MockDriver) Clear(ctx context.Context, elem *schemas.Element) error {
	m.record("Clear")
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx, elem)
	}
	return nil
}

func (m *MockDriver) SendKeys(ctx context.Context, elem *schemas.Element, text string) error {
	m.record("SendKeys")
	if m.SendKeysFunc != nil {
		return m.SendKeysFunc(ctx, elem, text)
	}
	return nil
}

func (m *MockDriver) SelectOption(ctx context.Context, elem *schemas.Element, option string) error {
	m.record("SelectOption")
	if m.SelectOptionFunc != nil {
		return m.SelectOptionFunc(ctx, elem, option)
	}
	return nil
}

func (m *MockDriver) ScrollIntoView(ctx context.Context, elem *schemas.Element) error {
	m.record("ScrollIntoView")
	return nil
}

func (m *MockDriver) ScrollBy(ctx context.Context, dx, dy int) error {
	m.record("ScrollBy")
	return nil
}

func (m *MockDriver) Eval(ctx context.Context, script string) (json.RawMessage, error) {
	m.record("Eval")
	if m.EvalFunc != nil {
		return m.EvalFunc(ctx, script)
	}
	return json.RawMessage("null"), nil
}

func (m *MockDriver) Screenshot(ctx context.Context, mode schemas.ScreenshotMode) (*schemas.ScreenshotResult, error) {
	m.record("Screenshot")
	if m.ScreenshotFunc != nil {
		return m.ScreenshotFunc(ctx, mode)
	}
	return &schemas.ScreenshotResult{Data: []byte("png"), Mode: mode}, nil
}

func (m *MockDriver) OuterHTML(ctx context.Context) (string, error) {
	m.record("OuterHTML")
	if m.OuterHTMLFunc != nil {
		return m.OuterHTMLFunc(ctx)
	}
	return "<html><body></body></html>", nil
}

func (m *MockDriver) SetWindow(ctx context.Context, width, height int) error {
	m.record("SetWindow")
	return nil
}

func (m *MockDriver) WaitLoadEvent(ctx context.Context) error {
	m.record("WaitLoadEvent")
	return nil
}

func (m *MockDriver) WaitDOMContentLoaded(ctx context.Context) error {
	m.record("WaitDOMContentLoaded")
	return nil
}

func (m *MockDriver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	m.record("WaitVisible")
	return nil
}

func (m *MockDriver) Healthy(ctx context.Context) bool {
	m.record("Healthy")
	if m.HealthyFunc != nil {
		return m.HealthyFunc(ctx)
	}
	return true
}

func (m *MockDriver) Quit(ctx context.Context) error {
	m.record("Quit")
	if m.QuitFunc != nil {
		return m.QuitFunc(ctx)
	}
	return nil
}
