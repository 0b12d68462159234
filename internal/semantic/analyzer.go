// File: internal/semantic/analyzer.go

// Package semantic builds a structured page model from a DOM snapshot:
// page type, regions, notable elements, relationships, interaction
// points and extractable data structures.
package semantic

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/xkilldash9x/voyant/api/schemas"
)

const (
	maxButtons        = 20
	maxLinks          = 30
	maxInputs         = 20
	maxDataStructures = 5
	linkImportanceMin = 0.5
)

var (
	primaryClassRe = regexp.MustCompile(`(?i)\b(primary|main|important)\b`)
	primaryTextRe  = regexp.MustCompile(`(?i)\b(submit|buy|checkout|sign\s*up|register|download)\b`)
	minorClassRe   = regexp.MustCompile(`(?i)\b(secondary|minor)\b`)
	homepageRe     = regexp.MustCompile(`(?i)\b(home|welcome)\b`)
)

// Analyzer extracts a PageModel from HTML. It is stateless and safe for
// concurrent use.
type Analyzer struct {
	logger *zap.Logger
}

func NewAnalyzer(logger *zap.Logger) *Analyzer {
	return &Analyzer{logger: logger.Named("semantic")}
}

// Analyze snapshots the driver's current DOM and builds the page model.
func (a *Analyzer) Analyze(ctx context.Context, driver schemas.Driver) (*schemas.PageModel, error) {
	html, err := driver.OuterHTML(ctx)
	if err != nil {
		return nil, schemas.WrapError(schemas.KindOf(err), "semantic.analyze", err)
	}
	url, err := driver.CurrentURL(ctx)
	if err != nil {
		a.logger.Debug("URL lookup failed during analysis", zap.Error(err))
		url = ""
	}
	return a.AnalyzeHTML(url, html)
}

// AnalyzeHTML builds the page model from a raw HTML snapshot. Stages may
// fail individually; the model is always returned with whatever was
// extracted.
func (a *Analyzer) AnalyzeHTML(url, html string) (*schemas.PageModel, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, schemas.WrapError(schemas.KindProtocol, "semantic.analyze", err)
	}

	model := &schemas.PageModel{
		URL:      url,
		PageType: a.classifyPage(doc, url),
	}
	model.Regions = a.extractRegions(doc, model.PageType)
	model.SemanticElements = a.extractElements(doc)
	model.Relationships = a.extractRelationships(doc, model.SemanticElements)
	model.InteractionPoints = a.extractInteractionPoints(doc)
	model.DataStructures = a.extractDataStructures(doc)
	return model, nil
}

// classifyPage applies priority-ordered heuristics. The first matching rule
// wins.
func (a *Analyzer) classifyPage(doc *goquery.Document, url string) schemas.PageType {
	lowerURL := strings.ToLower(url)
	bodyText := strings.ToLower(doc.Find("body").Text())
	title := strings.ToLower(doc.Find("title").First().Text())

	if doc.Find(`input[type="password"]`).Length() > 0 {
		if strings.Contains(bodyText, "log in") || strings.Contains(bodyText, "login") ||
			strings.Contains(bodyText, "sign in") || strings.Contains(lowerURL, "login") {
			return schemas.PageLogin
		}
		return schemas.PageForm
	}

	if strings.Contains(lowerURL, "checkout") ||
		doc.Find(`[class*="checkout"], [id*="checkout"]`).Length() > 0 {
		return schemas.PageCheckout
	}

	hasPrice := doc.Find(`[class*="price"], [itemprop="price"]`).Length() > 0 ||
		regexp.MustCompile(`[$€£]\s?\d`).MatchString(bodyText)
	hasCTA := doc.Find("button, input[type=submit]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		t := strings.ToLower(s.Text() + " " + s.AttrOr("value", ""))
		return strings.Contains(t, "add to cart") || strings.Contains(t, "buy")
	}).Length() > 0
	hasProduct := doc.Find(`[class*="product"], [id*="product"], [itemtype*="Product"]`).Length() > 0
	if hasProduct && hasPrice {
		if hasCTA {
			return schemas.PageProduct
		}
		// Many product cards and no single CTA reads as a listing.
		if doc.Find(`[class*="product"]`).Length() > 3 {
			return schemas.PageListing
		}
		return schemas.PageProduct
	}

	if doc.Find(`[class*="search-results"], [id*="search-results"], [class*="results"], [id*="results"]`).Length() > 0 {
		return schemas.PageSearchResults
	}

	if doc.Find("article").Length() > 0 ||
		doc.Find(`[class*="article"], [class*="post"], [id*="post"]`).Length() > 0 {
		return schemas.PageArticle
	}

	if doc.Find(`[class*="dashboard"], [id*="dashboard"], [class*="panel"]`).Length() > 0 ||
		strings.Contains(lowerURL, "dashboard") {
		return schemas.PageDashboard
	}

	if strings.Contains(lowerURL, "/profile") || strings.Contains(lowerURL, "/account") ||
		doc.Find(`[class*="profile"], [id*="profile"]`).Length() > 0 {
		return schemas.PageProfile
	}

	if doc.Find("pre > code").Length() > 0 || strings.Contains(lowerURL, "docs") ||
		doc.Find(`[class*="docs"], [class*="documentation"]`).Length() > 0 {
		return schemas.PageDocumentation
	}

	if doc.Find("form").Length() > 0 && doc.Find("input, textarea, select").Length() > 2 {
		return schemas.PageForm
	}

	if doc.Find("header").Length() > 0 && doc.Find("nav").Length() > 0 &&
		homepageRe.MatchString(title) {
		return schemas.PageHomepage
	}

	return schemas.PageUnknown
}

func (a *Analyzer) extractRegions(doc *goquery.Document, pageType schemas.PageType) []schemas.Region {
	var regions []schemas.Region

	if nav := doc.Find(`nav, [role="navigation"]`).First(); nav.Length() > 0 {
		var children []string
		nav.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			children = append(children, selectorFor(s))
			return len(children) < 10
		})
		regions = append(regions, schemas.Region{
			Kind:     schemas.RegionNavigation,
			Selector: selectorFor(nav),
			Children: children,
		})
	}

	if search := doc.Find(`input[type="search"], form[role="search"], [class*="search"] input[type="text"]`).First(); search.Length() > 0 {
		regions = append(regions, schemas.Region{
			Kind:     schemas.RegionSearchBar,
			Selector: selectorFor(search),
			TextHint: search.AttrOr("placeholder", ""),
		})
	}

	if pageType == schemas.PageProduct || pageType == schemas.PageListing {
		if grid := doc.Find(`[class*="product"], [class*="grid"]`).First(); grid.Length() > 0 {
			regions = append(regions, schemas.Region{
				Kind:     schemas.RegionProductGrid,
				Selector: selectorFor(grid),
			})
		}
	}

	if pageType == schemas.PageArticle {
		if art := doc.Find(`article, [class*="article"], [class*="post"]`).First(); art.Length() > 0 {
			regions = append(regions, schemas.Region{
				Kind:     schemas.RegionArticle,
				Selector: selectorFor(art),
				TextHint: truncate(strings.TrimSpace(art.Find("h1, h2").First().Text()), 80),
			})
		}
	}

	doc.Find("form").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var children []string
		s.Find("input, textarea, select").EachWithBreak(func(_ int, f *goquery.Selection) bool {
			children = append(children, selectorFor(f))
			return len(children) < 15
		})
		regions = append(regions, schemas.Region{
			Kind:     schemas.RegionForm,
			Selector: selectorFor(s),
			Children: children,
		})
		return len(regions) < 12
	})

	if footer := doc.Find("footer").First(); footer.Length() > 0 {
		regions = append(regions, schemas.Region{
			Kind:     schemas.RegionFooter,
			Selector: selectorFor(footer),
		})
	}

	if comments := doc.Find(`#comments, [class*="comments"]`).First(); comments.Length() > 0 {
		regions = append(regions, schemas.Region{
			Kind:     schemas.RegionComments,
			Selector: selectorFor(comments),
		})
	}

	return regions
}

func (a *Analyzer) extractElements(doc *goquery.Document) []schemas.SemanticElement {
	var elements []schemas.SemanticElement

	buttons := 0
	doc.Find(`button, input[type="submit"], input[type="button"], [role="button"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		elements = append(elements, a.buildElement(s, schemas.ElemButton, schemas.PurposeAction))
		buttons++
		return buttons < maxButtons
	})

	links := 0
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		el := a.buildElement(s, schemas.ElemLink, schemas.PurposeNavigation)
		if el.Importance >= linkImportanceMin {
			elements = append(elements, el)
			links++
		}
		return links < maxLinks
	})

	inputs := 0
	doc.Find(`input:not([type="hidden"]):not([type="submit"]):not([type="button"]), textarea, select`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		kind := schemas.ElemInput
		if goquery.NodeName(s) == "select" {
			kind = schemas.ElemDropdown
		}
		elements = append(elements, a.buildElement(s, kind, schemas.PurposeInput))
		inputs++
		return inputs < maxInputs
	})

	return elements
}

func (a *Analyzer) buildElement(s *goquery.Selection, kind schemas.ElementKind, purpose schemas.ElementPurpose) schemas.SemanticElement {
	content := strings.TrimSpace(s.Text())
	if content == "" {
		content = s.AttrOr("value", s.AttrOr("placeholder", s.AttrOr("aria-label", "")))
	}

	attrs := map[string]string{}
	for _, name := range []string{"id", "name", "type", "href", "aria-label", "placeholder"} {
		if v, ok := s.Attr(name); ok && v != "" {
			attrs[name] = v
		}
	}

	return schemas.SemanticElement{
		Selector:   selectorFor(s),
		Kind:       kind,
		Content:    truncate(content, 120),
		Purpose:    purpose,
		Importance: a.importance(s, kind, content),
		Attributes: attrs,
	}
}

// importance scores an element from a fixed base per kind plus visibility
// and emphasis adjustments, clamped to [0,1].
func (a *Analyzer) importance(s *goquery.Selection, kind schemas.ElementKind, content string) float64 {
	var score float64
	switch kind {
	case schemas.ElemButton:
		score = 0.7
	case schemas.ElemInput, schemas.ElemDropdown:
		score = 0.65
	default:
		score = 0.5
	}

	style := strings.ToLower(s.AttrOr("style", ""))
	hidden := strings.Contains(style, "display:none") || strings.Contains(style, "display: none") ||
		strings.Contains(style, "visibility:hidden") || strings.Contains(style, "visibility: hidden")
	if _, ok := s.Attr("hidden"); ok {
		hidden = true
	}
	if !hidden {
		score += 0.2
	} else {
		score -= 0.3
	}

	class := s.AttrOr("class", "")
	if primaryClassRe.MatchString(class) || primaryTextRe.MatchString(content) {
		score += 0.2
	}
	if minorClassRe.MatchString(class) {
		score -= 0.1
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// extractRelationships derives containment from selector prefixing plus a
// few structural rules (labels, submit buttons, links).
func (a *Analyzer) extractRelationships(doc *goquery.Document, elements []schemas.SemanticElement) []schemas.Relationship {
	var rels []schemas.Relationship

	for _, outer := range elements {
		for _, inner := range elements {
			if outer.Selector == inner.Selector {
				continue
			}
			if strings.HasPrefix(inner.Selector, outer.Selector+" ") {
				rels = append(rels, schemas.Relationship{
					Source: outer.Selector,
					Target: inner.Selector,
					Kind:   schemas.RelContains,
				})
			}
		}
	}

	doc.Find("label[for]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		target := s.AttrOr("for", "")
		if target != "" {
			rels = append(rels, schemas.Relationship{
				Source: selectorFor(s),
				Target: "#" + target,
				Kind:   schemas.RelLabelFor,
			})
		}
		return len(rels) < 100
	})

	doc.Find("form").EachWithBreak(func(_ int, form *goquery.Selection) bool {
		formSel := selectorFor(form)
		form.Find(`button[type="submit"], input[type="submit"], button:not([type])`).EachWithBreak(func(_ int, btn *goquery.Selection) bool {
			rels = append(rels, schemas.Relationship{
				Source: selectorFor(btn),
				Target: formSel,
				Kind:   schemas.RelSubmitsForm,
			})
			return false
		})
		return len(rels) < 100
	})

	count := 0
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := s.AttrOr("href", "")
		if href == "" || href == "#" || strings.HasPrefix(href, "javascript:") {
			return true
		}
		rels = append(rels, schemas.Relationship{
			Source: selectorFor(s),
			Target: href,
			Kind:   schemas.RelNavigatesTo,
		})
		count++
		return count < 30
	})

	return rels
}

func (a *Analyzer) extractInteractionPoints(doc *goquery.Document) []schemas.InteractionPoint {
	var points []schemas.InteractionPoint

	clicks := 0
	doc.Find(`button, a[href], [onclick], input[type="submit"], [role="button"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		label := strings.TrimSpace(s.Text())
		if label == "" {
			label = s.AttrOr("aria-label", s.AttrOr("value", s.AttrOr("title", "")))
		}
		expected := "triggers page action"
		if goquery.NodeName(s) == "a" {
			expected = "navigates to " + s.AttrOr("href", "unknown")
		} else if t, _ := s.Attr("type"); t == "submit" {
			expected = "submits enclosing form"
		}
		points = append(points, schemas.InteractionPoint{
			Selector:       selectorFor(s),
			Action:         "click",
			Label:          truncate(label, 80),
			ExpectedResult: expected,
		})
		clicks++
		return clicks < 50
	})

	inputs := 0
	doc.Find(`input[type="text"], input[type="email"], input[type="password"], input[type="search"], input[type="tel"], input[type="number"], input:not([type]), textarea`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		points = append(points, schemas.InteractionPoint{
			Selector:       selectorFor(s),
			Action:         "type",
			Label:          s.AttrOr("placeholder", s.AttrOr("name", "")),
			ExpectedResult: "accepts text input",
		})
		inputs++
		return inputs < 30
	})

	selects := 0
	doc.Find("select").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		points = append(points, schemas.InteractionPoint{
			Selector:       selectorFor(s),
			Action:         "select",
			Label:          s.AttrOr("name", ""),
			ExpectedResult: "changes selected option",
		})
		selects++
		return selects < 20
	})

	return points
}

func (a *Analyzer) extractDataStructures(doc *goquery.Document) []schemas.DataStructure {
	var structures []schemas.DataStructure

	tables := 0
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		var fields []string
		table.Find("th").Each(func(_ int, th *goquery.Selection) {
			fields = append(fields, strings.TrimSpace(th.Text()))
		})
		var rows [][]string
		table.Find("tbody tr, tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
			var cells []string
			tr.Find("td").Each(func(_ int, td *goquery.Selection) {
				cells = append(cells, strings.TrimSpace(td.Text()))
			})
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return len(rows) < 50
		})
		structures = append(structures, schemas.DataStructure{
			Kind:     "table",
			Selector: selectorFor(table),
			Fields:   fields,
			Rows:     rows,
		})
		tables++
		return tables < maxDataStructures
	})

	lists := 0
	doc.Find("ul, ol").EachWithBreak(func(_ int, list *goquery.Selection) bool {
		// Navigation lists are covered by regions, not data extraction.
		if list.ParentsFiltered("nav").Length() > 0 {
			return true
		}
		var items []string
		list.ChildrenFiltered("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
			text := strings.TrimSpace(li.Text())
			if text != "" {
				items = append(items, truncate(text, 200))
			}
			return len(items) < 50
		})
		if len(items) == 0 {
			return true
		}
		structures = append(structures, schemas.DataStructure{
			Kind:     "list",
			Selector: selectorFor(list),
			Items:    items,
		})
		lists++
		return lists < maxDataStructures
	})

	return structures
}

// selectorFor prefers #id, then the first class, then the tag name.
func selectorFor(s *goquery.Selection) string {
	if id, ok := s.Attr("id"); ok && id != "" {
		return "#" + id
	}
	if class, ok := s.Attr("class"); ok {
		for _, c := range strings.Fields(class) {
			return "." + c
		}
	}
	if name := goquery.NodeName(s); name != "" && name != "#text" {
		return name
	}
	return "*"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
