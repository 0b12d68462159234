// File: internal/workflow/template.go
package workflow

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][\w]*)\s*\}\}`)

// substitute replaces {{name}} placeholders with variable values. It runs two
// passes so a variable whose value contains a placeholder resolves once more;
// deeper nesting is left as-is. Unknown names keep their placeholder form.
func substitute(s string, vars map[string]any) string {
	for pass := 0; pass < 2; pass++ {
		if !strings.Contains(s, "{{") {
			break
		}
		s = placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
			name := placeholderRe.FindStringSubmatch(match)[1]
			if v, ok := vars[name]; ok {
				return stringify(v)
			}
			return match
		})
	}
	return s
}

// stringify renders a variable value for interpolation. Integral floats print
// without a decimal point because YAML and JSON both decode whole numbers
// into float64.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// coerce interprets a raw string input as the most specific scalar it parses
// as, in the order bool, integer, float, string.
func coerce(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// toFloat converts a variable value to a number for ordered comparisons.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
