// File: internal/browser/screenshot.go
package browser

import (
	"context"
	"encoding/json"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/voyant/api/schemas"
)

type scrollSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

const scrollSizeScript = `({
	width: Math.max(document.documentElement.scrollWidth, document.body ? document.body.scrollWidth : 0),
	height: Math.max(document.documentElement.scrollHeight, document.body ? document.body.scrollHeight : 0)
})`

// Screenshot captures the page. Full-page mode measures the document scroll
// size, overrides the viewport to match, captures, then restores the
// configured window. If any of that fails the capture degrades to
// viewport-only with a warning instead of an error.
func (d *Driver) Screenshot(ctx context.Context, mode schemas.ScreenshotMode) (*schemas.ScreenshotResult, error) {
	if mode != schemas.ScreenshotFullPage {
		data, err := d.captureViewport(ctx)
		if err != nil {
			return nil, err
		}
		return &schemas.ScreenshotResult{Data: data, Mode: schemas.ScreenshotViewport}, nil
	}

	data, warning := d.captureFullPage(ctx)
	if data == nil {
		// Full page and the fallback both failed.
		viewport, err := d.captureViewport(ctx)
		if err != nil {
			return nil, err
		}
		return &schemas.ScreenshotResult{Data: viewport, Mode: schemas.ScreenshotViewport, Warning: warning}, nil
	}
	if warning != "" {
		return &schemas.ScreenshotResult{Data: data, Mode: schemas.ScreenshotViewport, Warning: warning}, nil
	}
	return &schemas.ScreenshotResult{Data: data, Mode: schemas.ScreenshotFullPage}, nil
}

func (d *Driver) captureViewport(ctx context.Context) ([]byte, error) {
	var data []byte
	if err := d.run(ctx, "driver.screenshot", 0, chromedp.CaptureScreenshot(&data)); err != nil {
		return nil, err
	}
	return data, nil
}

func (d *Driver) captureFullPage(ctx context.Context) (data []byte, warning string) {
	raw, err := d.Eval(ctx, scrollSizeScript)
	if err != nil {
		d.logger.Warn("Full-page screenshot: could not measure document", zap.Error(err))
		return nil, "full_page capture degraded: could not measure document size"
	}
	var size scrollSize
	if err := json.Unmarshal(raw, &size); err != nil || size.Width <= 0 || size.Height <= 0 {
		return nil, "full_page capture degraded: invalid document size"
	}

	err = d.run(ctx, "driver.screenshot_full", 0,
		emulation.SetDeviceMetricsOverride(int64(size.Width), int64(size.Height), 1, false),
		chromedp.CaptureScreenshot(&data),
	)

	// Restore the configured window regardless of capture outcome.
	restoreErr := d.run(ctx, "driver.screenshot_restore", 0,
		emulation.SetDeviceMetricsOverride(int64(d.cfg.WindowWidth), int64(d.cfg.WindowHeight), 1, false),
	)
	if restoreErr != nil {
		d.logger.Warn("Full-page screenshot: window restore failed", zap.Error(restoreErr))
	}

	if err != nil {
		d.logger.Warn("Full-page screenshot: resized capture failed", zap.Error(err))
		return nil, "full_page capture degraded: resized capture failed"
	}
	return data, ""
}
