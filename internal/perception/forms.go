// File: internal/perception/forms.go
package perception

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/voyant/api/schemas"
)

// Built-in autofill profiles. Callers may pass their own profile instead.
var builtinProfiles = map[string]schemas.AutofillProfile{
	"default": {
		"name":       "Alex Morgan",
		"first_name": "Alex",
		"last_name":  "Morgan",
		"email":      "alex.morgan@example.com",
		"phone":      "+1-555-0142",
		"address":    "742 Evergreen Terrace",
		"city":       "Springfield",
		"zip":        "49007",
		"country":    "US",
		"company":    "Example Corp",
	},
	"work": {
		"name":       "Alex Morgan",
		"first_name": "Alex",
		"last_name":  "Morgan",
		"email":      "amorgan@example-corp.com",
		"phone":      "+1-555-0178",
		"address":    "1 Infinite Campus",
		"city":       "Springfield",
		"zip":        "49008",
		"country":    "US",
		"company":    "Example Corp",
	},
}

const formAnalysisScript = `
((sel) => {
  const form = sel ? document.querySelector(sel) : document.querySelector('form');
  if (!form) return null;
  let formSelector = form.tagName.toLowerCase();
  if (form.id) formSelector = '#' + form.id;
  else if (form.classList.length > 0) formSelector = '.' + form.classList[0];

  const fields = [];
  form.querySelectorAll('input,textarea,select').forEach(el => {
    if (el.type === 'hidden' || el.type === 'submit' || el.type === 'button') return;
    let selector = el.tagName.toLowerCase();
    if (el.id) selector = '#' + el.id;
    else if (el.name) selector = formSelector + ' [name="' + el.name + '"]';
    let label = '';
    if (el.id) {
      const l = document.querySelector('label[for="' + el.id + '"]');
      if (l) label = l.innerText.trim();
    }
    if (!label && el.closest('label')) label = el.closest('label').innerText.trim();
    fields.push({
      selector: selector,
      name: el.name || el.id || '',
      field_type: el.type || el.tagName.toLowerCase(),
      label: label,
      placeholder: el.placeholder || '',
      autocomplete: el.getAttribute('autocomplete') || '',
      required: el.required === true,
      value: el.value || ''
    });
  });

  const submit = form.querySelector('button[type=submit],input[type=submit],button:not([type])');
  return {
    selector: formSelector,
    action: form.getAttribute('action') || '',
    method: (form.getAttribute('method') || 'get').toLowerCase(),
    fields: fields,
    submit_label: submit ? (submit.innerText || submit.value || '').trim() : ''
  };
})(%s)`

const fillFieldScript = `
((sel, value) => {
  const el = document.querySelector(sel);
  if (!el) return false;
  const proto = el.tagName === 'TEXTAREA' ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
  const setter = Object.getOwnPropertyDescriptor(proto, 'value');
  if (setter && setter.set) setter.set.call(el, value);
  else el.value = value;
  el.dispatchEvent(new Event('input', { bubbles: true }));
  el.dispatchEvent(new Event('change', { bubbles: true }));
  return true;
})(%s, %s)`

// AnalyzeForm inventories the form matching formSelector, or the first form
// on the page when the selector is empty.
func (e *Engine) AnalyzeForm(ctx context.Context, driver schemas.Driver, formSelector string) (*schemas.FormAnalysis, error) {
	script := fmt.Sprintf(formAnalysisScript, jsArg(formSelector))
	raw, err := driver.Eval(ctx, script)
	if err != nil {
		return nil, schemas.WrapError(schemas.KindOf(err), "perception.form_analyze", err)
	}
	if string(raw) == "null" {
		return nil, schemas.NewError(schemas.KindNotFound, "perception.form_analyze", "no form found on page")
	}
	var analysis schemas.FormAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, schemas.WrapError(schemas.KindProtocol, "perception.form_analyze", err)
	}
	return &analysis, nil
}

// Autofill analyzes the form, matches each field against the profile and
// fills what it can. Unmatched fields are reported, not failed.
func (e *Engine) Autofill(ctx context.Context, driver schemas.Driver, formSelector, profileName string, userProfile schemas.AutofillProfile) (*schemas.AutofillResult, error) {
	profile := userProfile
	if profile == nil {
		var ok bool
		profile, ok = builtinProfiles[profileName]
		if !ok {
			return nil, schemas.NewError(schemas.KindValidation, "perception.form_autofill",
				fmt.Sprintf("unknown autofill profile %q", profileName))
		}
	}

	analysis, err := e.AnalyzeForm(ctx, driver, formSelector)
	if err != nil {
		return nil, err
	}

	result := &schemas.AutofillResult{
		FormSelector: analysis.Selector,
		Profile:      profileName,
	}

	for _, field := range analysis.Fields {
		fieldResult := schemas.AutofillFieldResult{Selector: field.Selector}

		key, value := matchProfileField(field, profile)
		if key == "" {
			fieldResult.Reason = "no profile value matched"
			result.Skipped++
			result.Fields = append(result.Fields, fieldResult)
			continue
		}
		fieldResult.Field = key

		script := fmt.Sprintf(fillFieldScript, jsArg(field.Selector), jsArg(value))
		raw, err := driver.Eval(ctx, script)
		if err != nil {
			fieldResult.Reason = err.Error()
			result.Skipped++
		} else if string(raw) != "true" {
			fieldResult.Reason = "element not found"
			result.Skipped++
		} else {
			fieldResult.Filled = true
			result.Filled++
		}
		result.Fields = append(result.Fields, fieldResult)
	}

	e.logger.Info("Form autofill completed",
		zap.String("form", result.FormSelector),
		zap.Int("filled", result.Filled),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// matchProfileField picks the profile entry for a field by autocomplete
// token, then name, then label, then placeholder.
func matchProfileField(field schemas.FormFieldAnalysis, profile schemas.AutofillProfile) (string, string) {
	candidates := []string{
		normalizeFieldKey(field.Autocomplete),
		normalizeFieldKey(field.Name),
		normalizeFieldKey(field.Label),
		normalizeFieldKey(field.Placeholder),
	}
	if field.FieldType == "email" {
		candidates = append([]string{"email"}, candidates...)
	}
	if field.FieldType == "tel" {
		candidates = append([]string{"phone"}, candidates...)
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		if v, ok := profile[c]; ok {
			return c, v
		}
		// Substring fallback in a fixed key order so matching is
		// deterministic regardless of map iteration.
		for _, key := range profileKeyOrder {
			v, ok := profile[key]
			if !ok {
				continue
			}
			if strings.Contains(c, key) || strings.Contains(key, c) {
				return key, v
			}
		}
	}
	return "", ""
}

var profileKeyOrder = []string{
	"email", "phone", "first_name", "last_name", "name",
	"address", "city", "zip", "country", "company",
}

// normalizeFieldKey maps common HTML naming to canonical profile keys.
func normalizeFieldKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	switch s {
	case "given_name", "firstname", "fname":
		return "first_name"
	case "family_name", "lastname", "lname", "surname":
		return "last_name"
	case "full_name", "your_name":
		return "name"
	case "tel", "telephone", "mobile", "phone_number":
		return "phone"
	case "e_mail", "email_address":
		return "email"
	case "street_address", "address_line1", "street":
		return "address"
	case "postal_code", "zipcode", "zip_code":
		return "zip"
	case "organization", "organisation":
		return "company"
	}
	return s
}

func jsArg(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
