// File: internal/perception/engine.go

// Package perception runs tiered page analysis against a borrowed driver.
// Four tiers trade depth for latency; adaptive mode picks a tier from a
// cheap complexity probe. Results are cached per URL in 30-second windows.
package perception

import (
	"context"
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/voyant/api/schemas"
	"github.com/xkilldash9x/voyant/internal/cache"
	"github.com/xkilldash9x/voyant/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Complexity thresholds for adaptive tier selection.
const (
	complexityQuick    = 50.0
	complexityStandard = 150.0
	complexityDeep     = 300.0
)

// Engine executes perception queries. Safe for concurrent use; concurrent
// subqueries within a tier are serialized at the driver boundary.
type Engine struct {
	cfg    config.PerceptionConfig
	logger *zap.Logger
	cache  *cache.Cache[string, schemas.PerceptionResult]

	now func() time.Time
}

func NewEngine(cfg config.PerceptionConfig, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger.Named("perception"),
		cache:  cache.New[string, schemas.PerceptionResult](cfg.MaxCacheSize, cfg.CacheTTL),
		now:    time.Now,
	}
}

// gatedDriver serializes concurrent subquery dispatch onto one driver.
type gatedDriver struct {
	mu sync.Mutex
	d  schemas.Driver
}

func (g *gatedDriver) eval(ctx context.Context, script string, out any) error {
	g.mu.Lock()
	raw, err := g.d.Eval(ctx, script)
	g.mu.Unlock()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (g *gatedDriver) currentURL(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.CurrentURL(ctx)
}

func (g *gatedDriver) title(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.Title(ctx)
}

func (g *gatedDriver) readyState(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.d.ReadyState(ctx)
}

// Perceive runs one perception query at the requested tier. Adaptive mode
// resolves to a concrete tier before dispatch and never recurses.
func (e *Engine) Perceive(ctx context.Context, driver schemas.Driver, mode schemas.PerceptionMode) (*schemas.PerceptionResult, error) {
	if !schemas.ValidPerceptionMode(mode) {
		return nil, schemas.NewError(schemas.KindValidation, "perception.perceive",
			fmt.Sprintf("unknown perception mode %q", mode))
	}

	g := &gatedDriver{d: driver}

	if mode == schemas.ModeAdaptive {
		selected, err := e.selectTier(ctx, g)
		if err != nil {
			return nil, err
		}
		e.logger.Debug("Adaptive tier selected", zap.String("mode", string(selected)))
		mode = selected
	}

	var key string
	if e.cfg.EnableCache {
		url, err := g.currentURL(ctx)
		if err == nil {
			key = e.cacheKey(url, mode)
			if cached, ok := e.cache.Get(key); ok {
				return withCacheFlag(cached), nil
			}
		}
	}

	result, err := e.dispatch(ctx, g, mode)
	if err != nil {
		return nil, err
	}

	if e.cfg.EnableCache && key != "" {
		e.cache.Put(key, *result)
	}
	return result, nil
}

// CacheStats exposes the perception cache counters.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// cacheKey buckets time into 30-second windows so a busy page re-perceives
// at most twice a minute per mode.
func (e *Engine) cacheKey(url string, mode schemas.PerceptionMode) string {
	return fmt.Sprintf("%s:%s:%d", url, mode, e.now().Unix()/30)
}

func withCacheFlag(r schemas.PerceptionResult) *schemas.PerceptionResult {
	switch {
	case r.Lightning != nil:
		l := *r.Lightning
		l.FromCache = true
		r.Lightning = &l
	case r.Quick != nil:
		q := *r.Quick
		q.Lightning.FromCache = true
		r.Quick = &q
	case r.Standard != nil:
		s := *r.Standard
		s.Quick.Lightning.FromCache = true
		r.Standard = &s
	case r.Deep != nil:
		d := *r.Deep
		d.Standard.Quick.Lightning.FromCache = true
		r.Deep = &d
	}
	return &r
}

func (e *Engine) dispatch(ctx context.Context, g *gatedDriver, mode schemas.PerceptionMode) (*schemas.PerceptionResult, error) {
	switch mode {
	case schemas.ModeLightning:
		l, err := e.perceiveLightning(ctx, g)
		if err != nil {
			return nil, err
		}
		return &schemas.PerceptionResult{Mode: mode, Lightning: l}, nil
	case schemas.ModeQuick:
		q, err := e.perceiveQuick(ctx, g)
		if err != nil {
			return nil, err
		}
		return &schemas.PerceptionResult{Mode: mode, Quick: q}, nil
	case schemas.ModeStandard:
		s, err := e.perceiveStandard(ctx, g)
		if err != nil {
			return nil, err
		}
		return &schemas.PerceptionResult{Mode: mode, Standard: s}, nil
	case schemas.ModeDeep:
		d, err := e.perceiveDeep(ctx, g)
		if err != nil {
			return nil, err
		}
		return &schemas.PerceptionResult{Mode: mode, Deep: d}, nil
	default:
		// Adaptive resolving to adaptive would loop; degrade to quick.
		q, err := e.perceiveQuick(ctx, g)
		if err != nil {
			return nil, err
		}
		return &schemas.PerceptionResult{Mode: schemas.ModeQuick, Quick: q}, nil
	}
}

// selectTier probes page complexity and maps the score onto a tier.
func (e *Engine) selectTier(ctx context.Context, g *gatedDriver) (schemas.PerceptionMode, error) {
	probeCtx, cancel := context.WithTimeout(ctx, e.cfg.QuickTimeout)
	defer cancel()

	var probe struct {
		DOMSize     float64 `json:"dom_size"`
		Forms       float64 `json:"forms"`
		Interactive float64 `json:"interactive"`
		Scripts     float64 `json:"scripts"`
		Score       float64 `json:"score"`
	}
	if err := g.eval(probeCtx, complexityScript, &probe); err != nil {
		return "", schemas.WrapError(schemas.KindOf(err), "perception.adaptive", err)
	}

	switch {
	case probe.Score < complexityQuick:
		return schemas.ModeLightning, nil
	case probe.Score < complexityStandard:
		return schemas.ModeQuick, nil
	case probe.Score < complexityDeep:
		return schemas.ModeStandard, nil
	default:
		return schemas.ModeDeep, nil
	}
}

func (e *Engine) timeoutError(mode schemas.PerceptionMode, budget time.Duration) error {
	return schemas.NewError(schemas.KindTimeout, "perception."+string(mode),
		fmt.Sprintf("perception timed out after %dms", budget.Milliseconds()))
}

func (e *Engine) perceiveLightning(ctx context.Context, g *gatedDriver) (*schemas.LightningPerception, error) {
	budget := e.cfg.LightningTimeout
	if budget <= 0 {
		return nil, e.timeoutError(schemas.ModeLightning, budget)
	}
	tierCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	start := time.Now()

	var (
		l      schemas.LightningPerception
		counts struct {
			Clickable int `json:"clickable"`
			Input     int `json:"input"`
			Link      int `json:"link"`
			Form      int `json:"form"`
		}
	)

	grp, gctx := errgroup.WithContext(tierCtx)
	grp.Go(func() error {
		url, err := g.currentURL(gctx)
		l.URL = url
		return err
	})
	grp.Go(func() error {
		title, err := g.title(gctx)
		l.Title = title
		return err
	})
	grp.Go(func() error {
		rs, err := g.readyState(gctx)
		l.ReadyState = rs
		return err
	})
	grp.Go(func() error {
		return g.eval(gctx, countsScript, &counts)
	})

	if err := grp.Wait(); err != nil {
		if tierCtx.Err() == context.DeadlineExceeded {
			return nil, e.timeoutError(schemas.ModeLightning, budget)
		}
		return nil, err
	}

	l.ClickableCount = counts.Clickable
	l.InputCount = counts.Input
	l.LinkCount = counts.Link
	l.FormCount = counts.Form
	l.PerceptionTimeMs = time.Since(start).Milliseconds()
	return &l, nil
}

func (e *Engine) perceiveQuick(ctx context.Context, g *gatedDriver) (*schemas.QuickPerception, error) {
	budget := e.cfg.QuickTimeout
	if budget <= 0 {
		return nil, e.timeoutError(schemas.ModeQuick, budget)
	}
	tierCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	start := time.Now()

	lightning, err := e.perceiveLightning(tierCtx, g)
	if err != nil {
		return nil, err
	}

	q := schemas.QuickPerception{Lightning: *lightning}

	grp, gctx := errgroup.WithContext(tierCtx)
	grp.Go(func() error { return g.eval(gctx, interactiveElementsScript, &q.InteractiveElements) })
	grp.Go(func() error { return g.eval(gctx, textBlocksScript, &q.VisibleTextBlocks) })
	grp.Go(func() error { return g.eval(gctx, formFieldsScript, &q.FormFields) })
	grp.Go(func() error { return g.eval(gctx, layoutScript, &q.LayoutInfo) })

	if err := grp.Wait(); err != nil {
		if tierCtx.Err() == context.DeadlineExceeded {
			return nil, e.timeoutError(schemas.ModeQuick, budget)
		}
		return nil, err
	}

	q.Lightning.PerceptionTimeMs = time.Since(start).Milliseconds()
	return &q, nil
}

func (e *Engine) perceiveStandard(ctx context.Context, g *gatedDriver) (*schemas.StandardPerception, error) {
	budget := e.cfg.StandardTimeout
	if budget <= 0 {
		return nil, e.timeoutError(schemas.ModeStandard, budget)
	}
	tierCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	start := time.Now()

	quick, err := e.perceiveQuick(tierCtx, g)
	if err != nil {
		return nil, err
	}

	s := schemas.StandardPerception{
		Quick:          *quick,
		ComputedStyles: map[string]schemas.ComputedStyleInfo{},
	}

	grp, gctx := errgroup.WithContext(tierCtx)
	grp.Go(func() error { return g.eval(gctx, semanticStructureScript, &s.SemanticStructure) })
	grp.Go(func() error { return g.eval(gctx, accessibilityScript, &s.AccessibilityInfo) })
	grp.Go(func() error { return g.eval(gctx, computedStylesScript, &s.ComputedStyles) })
	grp.Go(func() error { return g.eval(gctx, performanceScript, &s.PerformanceMetrics) })

	if err := grp.Wait(); err != nil {
		if tierCtx.Err() == context.DeadlineExceeded {
			return nil, e.timeoutError(schemas.ModeStandard, budget)
		}
		return nil, err
	}

	s.Quick.Lightning.PerceptionTimeMs = time.Since(start).Milliseconds()
	return &s, nil
}

func (e *Engine) perceiveDeep(ctx context.Context, g *gatedDriver) (*schemas.DeepPerception, error) {
	budget := e.cfg.DeepTimeout
	if budget <= 0 {
		return nil, e.timeoutError(schemas.ModeDeep, budget)
	}
	tierCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	start := time.Now()

	standard, err := e.perceiveStandard(tierCtx, g)
	if err != nil {
		return nil, err
	}

	d := schemas.DeepPerception{Standard: *standard}

	grp, gctx := errgroup.WithContext(tierCtx)
	grp.Go(func() error { return g.eval(gctx, domAnalysisScript, &d.DOMAnalysis) })
	grp.Go(func() error { return g.eval(gctx, visualAnalysisScript, &d.VisualAnalysis) })
	grp.Go(func() error { return g.eval(gctx, behaviorScript, &d.BehavioralPatterns) })
	grp.Go(func() error { return g.eval(gctx, insightsScript, &d.AIInsights) })

	if err := grp.Wait(); err != nil {
		if tierCtx.Err() == context.DeadlineExceeded {
			return nil, e.timeoutError(schemas.ModeDeep, budget)
		}
		return nil, err
	}

	d.Standard.Quick.Lightning.PerceptionTimeMs = time.Since(start).Milliseconds()
	return &d, nil
}
