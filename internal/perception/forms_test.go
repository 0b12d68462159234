// File: internal/perception/forms_test.go
package perception

import (
	"context"
	encjson "encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/voyant/api/schemas"
	"github.com/xkilldash9x/voyant/internal/mocks"
)

const signupFormJSON = `{
	"selector": "#signup",
	"action": "/register",
	"method": "post",
	"fields": [
		{"selector": "#email", "name": "email", "field_type": "email", "label": "Email", "required": true},
		{"selector": "#fname", "name": "first-name", "field_type": "text", "label": "First name", "required": true},
		{"selector": "#captcha", "name": "captcha_answer", "field_type": "text", "label": "Captcha", "required": true}
	],
	"submit_label": "Create account"
}`

func formDriver(t *testing.T) (*mocks.MockDriver, *[]string) {
	t.Helper()
	var filled []string
	d := mocks.NewMockDriver()
	d.EvalFunc = func(ctx context.Context, script string) (encjson.RawMessage, error) {
		if strings.Contains(script, "submit_label") {
			return encjson.RawMessage(signupFormJSON), nil
		}
		if strings.Contains(script, "dispatchEvent") {
			filled = append(filled, script)
			return encjson.RawMessage("true"), nil
		}
		return encjson.RawMessage("null"), nil
	}
	return d, &filled
}

func TestAnalyzeForm(t *testing.T) {
	d, _ := formDriver(t)
	e := NewEngine(testPerceptionConfig(), zap.NewNop())

	analysis, err := e.AnalyzeForm(context.Background(), d, "#signup")
	require.NoError(t, err)
	assert.Equal(t, "#signup", analysis.Selector)
	assert.Equal(t, "post", analysis.Method)
	assert.Equal(t, "Create account", analysis.SubmitLabel)
	require.Len(t, analysis.Fields, 3)
	assert.Equal(t, "email", analysis.Fields[0].FieldType)
	assert.True(t, analysis.Fields[0].Required)
}

func TestAnalyzeFormNoForm(t *testing.T) {
	d := mocks.NewMockDriver() // default Eval returns null
	e := NewEngine(testPerceptionConfig(), zap.NewNop())

	_, err := e.AnalyzeForm(context.Background(), d, "")
	require.Error(t, err)
	assert.Equal(t, schemas.KindNotFound, schemas.KindOf(err))
}

func TestAutofillWithBuiltinProfile(t *testing.T) {
	d, filled := formDriver(t)
	e := NewEngine(testPerceptionConfig(), zap.NewNop())

	result, err := e.Autofill(context.Background(), d, "#signup", "default", nil)
	require.NoError(t, err)

	assert.Equal(t, "#signup", result.FormSelector)
	assert.Equal(t, "default", result.Profile)
	// Email and first name match the profile; the captcha field cannot.
	assert.Equal(t, 2, result.Filled)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Fields, 3)

	assert.True(t, result.Fields[0].Filled)
	assert.Equal(t, "email", result.Fields[0].Field)
	assert.True(t, result.Fields[1].Filled)
	assert.Equal(t, "first_name", result.Fields[1].Field)
	assert.False(t, result.Fields[2].Filled)
	assert.NotEmpty(t, result.Fields[2].Reason)

	require.Len(t, *filled, 2)
	assert.Contains(t, (*filled)[0], "alex.morgan@example.com")
}

func TestAutofillWithUserProfile(t *testing.T) {
	d, filled := formDriver(t)
	e := NewEngine(testPerceptionConfig(), zap.NewNop())

	profile := schemas.AutofillProfile{
		"email":      "custom@example.org",
		"first_name": "Robin",
	}
	result, err := e.Autofill(context.Background(), d, "#signup", "custom", profile)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Filled)
	assert.Contains(t, (*filled)[0], "custom@example.org")
}

func TestAutofillUnknownProfile(t *testing.T) {
	e := NewEngine(testPerceptionConfig(), zap.NewNop())
	_, err := e.Autofill(context.Background(), mocks.NewMockDriver(), "", "nonexistent", nil)
	require.Error(t, err)
	assert.Equal(t, schemas.KindValidation, schemas.KindOf(err))
}

func TestNormalizeFieldKey(t *testing.T) {
	cases := map[string]string{
		"given-name":    "first_name",
		"Family Name":   "last_name",
		"tel":           "phone",
		"E-Mail":        "email",
		"postal-code":   "zip",
		"organization":  "company",
		"custom_widget": "custom_widget",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeFieldKey(in), "input %q", in)
	}
}
