// File: internal/instruction/parser_test.go
package instruction

import (
	"testing"

	gofuzzheaders "github.com/AdaLogics/go-fuzz-headers"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/voyant/api/schemas"
)

func TestSplitConjoined(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "single instruction untouched",
			in:   "click the login button",
			want: []string{"click the login button"},
		},
		{
			name: "and before a verb splits",
			in:   "Go to amazon.com and search for wireless headphones",
			want: []string{"Go to amazon.com", "search for wireless headphones"},
		},
		{
			name: "and inside a phrase stays intact",
			in:   "search for cats and dogs",
			want: []string{"search for cats and dogs"},
		},
		{
			name: "comma then splits",
			in:   "open github.com, then click sign in",
			want: []string{"open github.com", "click sign in"},
		},
		{
			name: "comma before verb splits",
			in:   "go to example.com, click the first link",
			want: []string{"go to example.com", "click the first link"},
		},
		{
			name: "comma before non-verb stays",
			in:   "type hello, world into the box",
			want: []string{"type hello, world into the box"},
		},
		{
			name: "three steps",
			in:   "go to example.com and click login and type my name",
			want: []string{"go to example.com", "click login", "type my name"},
		},
		{
			name: "whitespace normalized",
			in:   "  go   to   example.com  ",
			want: []string{"go to example.com"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SplitConjoined(tc.in))
		})
	}
}

func TestExtractEntities(t *testing.T) {
	entities := ExtractEntities(`go to https://example.com/shop and type "blue socks" into #search-input`)

	byType := map[schemas.EntityType][]string{}
	for _, e := range entities {
		byType[e.Type] = append(byType[e.Type], e.Value)
		assert.Positive(t, e.Confidence)
	}

	assert.Contains(t, byType[schemas.EntityURL], "https://example.com/shop")
	assert.Contains(t, byType[schemas.EntityQuoted], "blue socks")
	assert.Contains(t, byType[schemas.EntitySelector], "#search-input")
}

func TestExtractEntitiesDomainsAndSites(t *testing.T) {
	entities := ExtractEntities("open amazon.com today")

	var site, timeEnt bool
	for _, e := range entities {
		if e.Type == schemas.EntitySite && e.Value == "amazon.com" {
			site = true
		}
		if e.Type == schemas.EntityTime && e.Value == "today" {
			timeEnt = true
		}
	}
	assert.True(t, site, "domain should be extracted as a site entity")
	assert.True(t, timeEnt, "time word should be extracted")
}

func TestParseIntents(t *testing.T) {
	p := NewParser(0.4)

	cases := []struct {
		name  string
		in    string
		check func(t *testing.T, instr schemas.Instruction)
	}{
		{
			name: "navigate with explicit url",
			in:   "Go to https://example.com",
			check: func(t *testing.T, instr schemas.Instruction) {
				assert.Equal(t, schemas.IntentNavigate, instr.Intent.Kind)
				assert.Equal(t, schemas.NavURL, instr.Intent.NavTarget)
				assert.Equal(t, "https://example.com", instr.Intent.URL)
				assert.GreaterOrEqual(t, instr.Confidence, 0.8)
			},
		},
		{
			name: "navigate with bare domain",
			in:   "go to amazon.com",
			check: func(t *testing.T, instr schemas.Instruction) {
				assert.Equal(t, schemas.IntentNavigate, instr.Intent.Kind)
				assert.Equal(t, "https://amazon.com", instr.Intent.URL)
			},
		},
		{
			name: "navigate with known site name",
			in:   "open google",
			check: func(t *testing.T, instr schemas.Instruction) {
				assert.Equal(t, "https://google.com", instr.Intent.URL)
			},
		},
		{
			name: "go back",
			in:   "go back",
			check: func(t *testing.T, instr schemas.Instruction) {
				assert.Equal(t, schemas.IntentNavigate, instr.Intent.Kind)
				assert.Equal(t, schemas.NavBack, instr.Intent.NavTarget)
			},
		},
		{
			name: "refresh",
			in:   "refresh the page",
			check: func(t *testing.T, instr schemas.Instruction) {
				assert.Equal(t, schemas.NavRefresh, instr.Intent.NavTarget)
			},
		},
		{
			name: "click with description",
			in:   "click on the login button",
			check: func(t *testing.T, instr schemas.Instruction) {
				assert.Equal(t, schemas.IntentClick, instr.Intent.Kind)
				assert.Equal(t, "login button", instr.Intent.TargetDescription)
			},
		},
		{
			name: "click with selector",
			in:   "click #submit-btn",
			check: func(t *testing.T, instr schemas.Instruction) {
				assert.Equal(t, schemas.IntentClick, instr.Intent.Kind)
				assert.Equal(t, "#submit-btn", instr.Intent.TargetDescription)
			},
		},
		{
			name: "type with quoted text and target",
			in:   `type "jane@example.com" into the email field`,
			check: func(t *testing.T, instr schemas.Instruction) {
				assert.Equal(t, schemas.IntentType, instr.Intent.Kind)
				assert.Equal(t, "jane@example.com", instr.Intent.Text)
				assert.Equal(t, "email field", instr.Intent.TargetDescription)
			},
		},
		{
			name: "search",
			in:   "search for wireless headphones",
			check: func(t *testing.T, instr schemas.Instruction) {
				assert.Equal(t, schemas.IntentSearch, instr.Intent.Kind)
				assert.Equal(t, "wireless headphones", instr.Intent.Query)
			},
		},
		{
			name: "select from dropdown",
			in:   `select "Germany" from the country dropdown`,
			check: func(t *testing.T, instr schemas.Instruction) {
				assert.Equal(t, schemas.IntentSelect, instr.Intent.Kind)
				assert.Equal(t, "Germany", instr.Intent.Option)
				assert.Equal(t, "country dropdown", instr.Intent.TargetDescription)
			},
		},
		{
			name: "extract links",
			in:   "extract all links",
			check: func(t *testing.T, instr schemas.Instruction) {
				assert.Equal(t, schemas.IntentExtract, instr.Intent.Kind)
				assert.Contains(t, instr.Intent.DataType, "links")
			},
		},
		{
			name: "wait with duration",
			in:   "wait for 5 seconds",
			check: func(t *testing.T, instr schemas.Instruction) {
				assert.Equal(t, schemas.IntentWait, instr.Intent.Kind)
				assert.Equal(t, int64(5000), instr.Intent.TimeoutMs)
			},
		},
		{
			name: "full page screenshot",
			in:   "take a screenshot of the entire page",
			check: func(t *testing.T, instr schemas.Instruction) {
				assert.Equal(t, schemas.IntentScreenshot, instr.Intent.Kind)
				assert.Equal(t, "full_page", instr.Intent.Area)
			},
		},
		{
			name: "scroll down",
			in:   "scroll down 300",
			check: func(t *testing.T, instr schemas.Instruction) {
				assert.Equal(t, schemas.IntentScroll, instr.Intent.Kind)
				assert.Equal(t, "down", instr.Intent.Direction)
				assert.Equal(t, 300, instr.Intent.Amount)
			},
		},
		{
			name: "gibberish is unknown and needs clarification",
			in:   "flibber the wozzle",
			check: func(t *testing.T, instr schemas.Instruction) {
				assert.Equal(t, schemas.IntentUnknown, instr.Intent.Kind)
				assert.True(t, instr.NeedsClarification)
				assert.NotEmpty(t, instr.ClarificationQuestions)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.check(t, p.Parse(tc.in))
		})
	}
}

func TestParseIsIdempotent(t *testing.T) {
	p := NewParser(0.4)
	inputs := []string{
		"Go to https://example.com",
		"click the login button",
		`type "hello" into the search box`,
		"flibber the wozzle",
	}
	for _, in := range inputs {
		first := p.Parse(in)
		second := p.Parse(first.Raw)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("parse not idempotent for %q (-first +second):\n%s", in, diff)
		}
	}
}

func TestClarificationBlocksLowConfidence(t *testing.T) {
	p := NewParser(0.95)
	instr := p.Parse("search for things")
	require.True(t, instr.NeedsClarification, "confidence %v should be under 0.95", instr.Confidence)
}

func FuzzParse(f *testing.F) {
	f.Add([]byte("go to example.com and click login"))
	f.Add([]byte(`type "x" into #field, then wait for 2 seconds`))
	f.Fuzz(func(t *testing.T, data []byte) {
		fz := gofuzzheaders.NewConsumer(data)
		text, err := fz.GetString()
		if err != nil {
			return
		}
		p := NewParser(0.4)
		for _, part := range SplitConjoined(text) {
			instr := p.Parse(part)
			if instr.Confidence < 0 || instr.Confidence > 1 {
				t.Fatalf("confidence out of range: %v for %q", instr.Confidence, part)
			}
		}
	})
}
