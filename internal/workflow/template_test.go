// File: internal/workflow/template_test.go
package workflow

import (
	"testing"

	gofuzzheaders "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
)

func TestSubstitute(t *testing.T) {
	vars := map[string]any{
		"base":  "https://example.com",
		"path":  "/search?q={{query}}",
		"query": "shoes",
		"count": float64(3),
		"on":    true,
	}

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "no placeholders here", "no placeholders here"},
		{"single variable", "{{base}}/login", "https://example.com/login"},
		{"multiple variables", "{{base}} x {{query}}", "https://example.com x shoes"},
		{"nested resolves one level", "{{base}}{{path}}", "https://example.com/search?q=shoes"},
		{"unknown name kept", "{{missing}}/page", "{{missing}}/page"},
		{"integral float prints as integer", "page {{count}}", "page 3"},
		{"bool", "enabled={{on}}", "enabled=true"},
		{"whitespace inside braces", "{{ base }}", "https://example.com"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, substitute(tc.in, vars))
		})
	}
}

func TestCoerce(t *testing.T) {
	assert.Equal(t, true, coerce("true"))
	assert.Equal(t, false, coerce("false"))
	assert.Equal(t, 42, coerce("42"))
	assert.Equal(t, -7, coerce("-7"))
	assert.Equal(t, 3.14, coerce("3.14"))
	assert.Equal(t, "hello", coerce("hello"))
	assert.Equal(t, "42abc", coerce("42abc"))
}

func TestToFloat(t *testing.T) {
	f, ok := toFloat(5)
	assert.True(t, ok)
	assert.Equal(t, 5.0, f)

	f, ok = toFloat("2.5")
	assert.True(t, ok)
	assert.Equal(t, 2.5, f)

	_, ok = toFloat([]string{"no"})
	assert.False(t, ok)
}

func FuzzSubstitute(f *testing.F) {
	f.Add([]byte("{{a}} and {{b}}"))
	f.Add([]byte("{{{{nested}}}}"))
	f.Fuzz(func(t *testing.T, data []byte) {
		fz := gofuzzheaders.NewConsumer(data)
		tmpl, err := fz.GetString()
		if err != nil {
			return
		}
		vars := map[string]any{"a": "x", "b": 2, "nested": "{{a}}"}
		// Must terminate and never panic regardless of input shape.
		_ = substitute(tmpl, vars)
	})
}
