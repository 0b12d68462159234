// File: internal/browser/driver_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/voyant/api/schemas"
	"github.com/xkilldash9x/voyant/internal/config"
)

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"example.com", "https://example.com"},
		{"  example.com/path ", "https://example.com/path"},
		{"http://example.com", "http://example.com"},
		{"https://example.com", "https://example.com"},
		{"file:///tmp/page.html", "file:///tmp/page.html"},
		{"about:blank", "about:blank"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeURL(tc.in), "input %q", tc.in)
	}
}

func TestJSString(t *testing.T) {
	assert.Equal(t, `"plain"`, jsString("plain"))
	assert.Equal(t, `"with \"quotes\""`, jsString(`with "quotes"`))
	assert.Equal(t, `"line\nbreak"`, jsString("line\nbreak"))
}

func TestBuildAllocatorOptions(t *testing.T) {
	cfg := config.BrowserConfig{Headless: true, WindowWidth: 1280, WindowHeight: 800}
	base := buildAllocatorOptions(cfg)
	assert.Greater(t, len(base), len(chromedp.DefaultExecAllocatorOptions),
		"config flags must extend the chromedp defaults")

	cfg.ChromePath = "/usr/bin/chromium"
	withPath := buildAllocatorOptions(cfg)
	assert.Len(t, withPath, len(base)+1, "an explicit binary path adds exactly one option")
}

func TestMapError(t *testing.T) {
	d := &Driver{cfg: config.BrowserConfig{}}

	t.Run("deadline becomes timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-ctx.Done()
		err := d.mapError("driver.navigate", time.Second, ctx.Err(), ctx)
		assert.Equal(t, schemas.KindTimeout, schemas.KindOf(err))
	})

	t.Run("missing node becomes not_found", func(t *testing.T) {
		err := d.mapError("driver.click", time.Second,
			assert.AnError, context.Background())
		// Unrecognized errors default to protocol_error.
		assert.Equal(t, schemas.KindProtocol, schemas.KindOf(err))
	})
}

func TestCombineContextCancellation(t *testing.T) {
	t.Run("secondary cancel propagates", func(t *testing.T) {
		primary := context.Background()
		secondary, cancelSecondary := context.WithCancel(context.Background())

		combined, cancel := CombineContext(primary, secondary)
		defer cancel()

		cancelSecondary()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context was not canceled")
		}
	})

	t.Run("primary cancel propagates", func(t *testing.T) {
		primary, cancelPrimary := context.WithCancel(context.Background())
		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		cancelPrimary()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context was not canceled")
		}
	})
}

func TestDetachIgnoresParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	detached := Detach(parent)
	cancel()

	assert.NoError(t, detached.Err())
	assert.Nil(t, detached.Done())
}

func TestOperationsOnClosedDriver(t *testing.T) {
	d := &Driver{closed: true}
	err := d.run(context.Background(), "driver.title", time.Second)
	assert.Equal(t, schemas.KindDriverUnavailable, schemas.KindOf(err))
}
