// File: internal/semantic/analyzer_test.go
package semantic

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/voyant/api/schemas"
	"github.com/xkilldash9x/voyant/internal/mocks"
)

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(zap.NewNop())
}

func TestClassifyPage(t *testing.T) {
	cases := []struct {
		name string
		url  string
		html string
		want schemas.PageType
	}{
		{
			name: "password input with login text",
			url:  "https://example.com/login",
			html: `<html><body><form><input type="email"><input type="password"><button>Sign in</button></form></body></html>`,
			want: schemas.PageLogin,
		},
		{
			name: "password input without login text",
			url:  "https://example.com/register-device",
			html: `<html><body><form><input type="text" name="device"><input type="password" name="pin"></form></body></html>`,
			want: schemas.PageForm,
		},
		{
			name: "product with price and cta",
			url:  "https://shop.example.com/widget",
			html: `<html><body><div class="product"><span class="price">$19.99</span><button>Add to cart</button></div></body></html>`,
			want: schemas.PageProduct,
		},
		{
			name: "checkout page",
			url:  "https://shop.example.com/checkout",
			html: `<html><body><div>Order summary</div></body></html>`,
			want: schemas.PageCheckout,
		},
		{
			name: "search results container",
			url:  "https://example.com/search?q=go",
			html: `<html><body><div id="search-results"><div>hit one</div></div></body></html>`,
			want: schemas.PageSearchResults,
		},
		{
			name: "article",
			url:  "https://blog.example.com/post/1",
			html: `<html><body><article><h1>On Channels</h1><p>text</p></article></body></html>`,
			want: schemas.PageArticle,
		},
		{
			name: "dashboard",
			url:  "https://example.com/dashboard",
			html: `<html><body><div class="dashboard-panel">metrics</div></body></html>`,
			want: schemas.PageDashboard,
		},
		{
			name: "documentation",
			url:  "https://example.com/docs/api",
			html: `<html><body><pre><code>func main() {}</code></pre></body></html>`,
			want: schemas.PageDocumentation,
		},
		{
			name: "homepage",
			url:  "https://example.com/",
			html: `<html><head><title>Welcome to Example</title></head><body><header></header><nav></nav></body></html>`,
			want: schemas.PageHomepage,
		},
		{
			name: "nothing matches",
			url:  "https://example.com/x",
			html: `<html><body><p>plain text</p></body></html>`,
			want: schemas.PageUnknown,
		},
	}

	a := newTestAnalyzer()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model, err := a.AnalyzeHTML(tc.url, tc.html)
			require.NoError(t, err)
			assert.Equal(t, tc.want, model.PageType)
		})
	}
}

func TestExtractRegions(t *testing.T) {
	html := `<html><body>
		<nav id="main-nav"><a href="/a">A</a><a href="/b">B</a></nav>
		<form id="contact"><input type="text" name="q"><button type="submit">Go</button></form>
		<footer class="site-footer">© Example</footer>
		<div id="comments"><p>first!</p></div>
	</body></html>`

	model, err := newTestAnalyzer().AnalyzeHTML("https://example.com", html)
	require.NoError(t, err)

	kinds := map[schemas.RegionKind]schemas.Region{}
	for _, r := range model.Regions {
		kinds[r.Kind] = r
	}

	nav, ok := kinds[schemas.RegionNavigation]
	require.True(t, ok)
	assert.Equal(t, "#main-nav", nav.Selector)
	assert.Len(t, nav.Children, 2)

	form, ok := kinds[schemas.RegionForm]
	require.True(t, ok)
	assert.Equal(t, "#contact", form.Selector)

	assert.Contains(t, kinds, schemas.RegionFooter)
	assert.Contains(t, kinds, schemas.RegionComments)
}

func TestExtractElementsAndCaps(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, `<button id="btn-%d">Button %d</button>`, i, i)
	}
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, `<a id="lnk-%d" href="/p/%d" class="primary">Link %d</a>`, i, i, i)
	}
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, `<input id="in-%d" type="text">`, i)
	}
	b.WriteString("</body></html>")

	model, err := newTestAnalyzer().AnalyzeHTML("https://example.com", b.String())
	require.NoError(t, err)

	var buttons, links, inputs int
	for _, el := range model.SemanticElements {
		switch el.Kind {
		case schemas.ElemButton:
			buttons++
		case schemas.ElemLink:
			links++
		case schemas.ElemInput:
			inputs++
		}
	}
	assert.Equal(t, 20, buttons)
	assert.Equal(t, 30, links)
	assert.Equal(t, 20, inputs)
}

func TestImportanceScoring(t *testing.T) {
	a := newTestAnalyzer()

	t.Run("primary visible button caps at 1", func(t *testing.T) {
		html := `<html><body><button id="go" class="btn-primary">Checkout</button></body></html>`
		model, err := a.AnalyzeHTML("", html)
		require.NoError(t, err)
		require.NotEmpty(t, model.SemanticElements)
		// base 0.7 + visible 0.2 + primary 0.2, clamped.
		assert.InDelta(t, 1.0, model.SemanticElements[0].Importance, 0.001)
	})

	t.Run("hidden secondary button scores low", func(t *testing.T) {
		html := `<html><body><button id="meh" class="secondary" style="display:none">Later</button></body></html>`
		model, err := a.AnalyzeHTML("", html)
		require.NoError(t, err)
		require.NotEmpty(t, model.SemanticElements)
		// base 0.7 - hidden 0.3 - secondary 0.1.
		assert.InDelta(t, 0.3, model.SemanticElements[0].Importance, 0.001)
	})

	t.Run("unimportant link filtered out", func(t *testing.T) {
		html := `<html><body><a href="/tos" class="secondary" style="display:none">Terms</a></body></html>`
		model, err := a.AnalyzeHTML("", html)
		require.NoError(t, err)
		for _, el := range model.SemanticElements {
			assert.NotEqual(t, schemas.ElemLink, el.Kind)
		}
	})
}

func TestRelationships(t *testing.T) {
	html := `<html><body>
		<label for="email">Email</label>
		<form id="signup"><input id="email" type="email"><button type="submit">Join</button></form>
		<a id="home-link" href="/home">Home</a>
	</body></html>`

	model, err := newTestAnalyzer().AnalyzeHTML("https://example.com", html)
	require.NoError(t, err)

	var labelFor, submits, navigates bool
	for _, r := range model.Relationships {
		switch r.Kind {
		case schemas.RelLabelFor:
			labelFor = r.Target == "#email"
		case schemas.RelSubmitsForm:
			submits = r.Target == "#signup"
		case schemas.RelNavigatesTo:
			navigates = r.Source == "#home-link" && r.Target == "/home"
		}
	}
	assert.True(t, labelFor, "label[for] relationship missing")
	assert.True(t, submits, "submit button relationship missing")
	assert.True(t, navigates, "link navigation relationship missing")
}

func TestInteractionPoints(t *testing.T) {
	html := `<html><body>
		<a id="docs" href="/docs">Docs</a>
		<input id="q" type="search" placeholder="Search...">
		<select id="lang" name="lang"><option>Go</option></select>
	</body></html>`

	model, err := newTestAnalyzer().AnalyzeHTML("https://example.com", html)
	require.NoError(t, err)

	byAction := map[string][]schemas.InteractionPoint{}
	for _, p := range model.InteractionPoints {
		byAction[p.Action] = append(byAction[p.Action], p)
	}

	require.NotEmpty(t, byAction["click"])
	assert.Equal(t, "navigates to /docs", byAction["click"][0].ExpectedResult)
	require.NotEmpty(t, byAction["select"])
	assert.Equal(t, "#lang", byAction["select"][0].Selector)
}

func TestDataStructures(t *testing.T) {
	html := `<html><body>
		<table id="prices">
			<tr><th>Item</th><th>Price</th></tr>
			<tr><td>Widget</td><td>$5</td></tr>
			<tr><td>Gadget</td><td>$9</td></tr>
		</table>
		<ul id="features"><li>Fast</li><li>Cheap</li></ul>
		<nav><ul><li>skipped nav list</li></ul></nav>
	</body></html>`

	model, err := newTestAnalyzer().AnalyzeHTML("https://example.com", html)
	require.NoError(t, err)

	var table, list *schemas.DataStructure
	for i := range model.DataStructures {
		switch model.DataStructures[i].Kind {
		case "table":
			table = &model.DataStructures[i]
		case "list":
			list = &model.DataStructures[i]
		}
	}

	require.NotNil(t, table)
	assert.Equal(t, []string{"Item", "Price"}, table.Fields)
	assert.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"Widget", "$5"}, table.Rows[0])

	require.NotNil(t, list)
	assert.Equal(t, "#features", list.Selector)
	assert.Equal(t, []string{"Fast", "Cheap"}, list.Items)
}

func TestSelectorPreference(t *testing.T) {
	html := `<html><body>
		<button id="with-id" class="also-classy">A</button>
		<button class="first second">B</button>
		<button>C</button>
	</body></html>`

	model, err := newTestAnalyzer().AnalyzeHTML("https://example.com", html)
	require.NoError(t, err)

	var selectors []string
	for _, el := range model.SemanticElements {
		if el.Kind == schemas.ElemButton {
			selectors = append(selectors, el.Selector)
		}
	}
	require.Len(t, selectors, 3)
	assert.Equal(t, "#with-id", selectors[0])
	assert.Equal(t, ".first", selectors[1])
	assert.Equal(t, "button", selectors[2])
}

func TestAnalyzeThroughDriver(t *testing.T) {
	d := mocks.NewMockDriver()
	d.OuterHTMLFunc = func(ctx context.Context) (string, error) {
		return `<html><body><article><h1>Post</h1></article></body></html>`, nil
	}
	d.CurrentURLFunc = func(ctx context.Context) (string, error) {
		return "https://blog.example.com/post/1", nil
	}

	model, err := newTestAnalyzer().Analyze(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, "https://blog.example.com/post/1", model.URL)
	assert.Equal(t, schemas.PageArticle, model.PageType)
}

func TestMalformedHTMLStillProducesModel(t *testing.T) {
	model, err := newTestAnalyzer().AnalyzeHTML("https://example.com", `<div><button>ok`)
	require.NoError(t, err)
	assert.Equal(t, schemas.PageUnknown, model.PageType)
	require.NotEmpty(t, model.SemanticElements)
}
